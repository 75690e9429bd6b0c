// Package htmlreport renders standalone HTML reports for gate verdicts
// and model swap comparisons.
package htmlreport

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stellarlinkco/ragate/internal/gate"
)

type metricRow struct {
	Name       string
	Value      string
	Threshold  string
	Passed     bool
	HasVerdict bool
}

type verdictPage struct {
	RunID       string
	Model       string
	Generated   string
	Passed      bool
	BannerText  string
	Rows        []metricRow
	PassRate    string
	MinPassRate string
	HasTests    bool
}

type deltaRow struct {
	Name           string
	Baseline       string
	Candidate      string
	Delta          string
	Regressed      bool
	Classification string
}

type comparisonPage struct {
	Generated      string
	BaselineRun    string
	BaselineModel  string
	CandidateRun   string
	CandidateModel string
	Tolerance      string
	Recommend      bool
	BannerText     string
	Rows           []deltaRow
	ThresholdsMet  bool
	NoRegression   bool
}

// RenderVerdict writes a verdict report to w.
func RenderVerdict(w io.Writer, v *gate.Verdict, now time.Time) error {
	if v == nil {
		return fmt.Errorf("htmlreport: nil verdict")
	}

	page := verdictPage{
		RunID:     v.RunID,
		Model:     v.Model,
		Generated: now.Format("January 2, 2006 at 3:04 PM"),
		Passed:    v.OverallPassed,
	}
	if v.OverallPassed {
		page.BannerText = "GATE: PASSED"
	} else {
		page.BannerText = "GATE: FAILED"
	}

	names := make([]string, 0, len(v.Metrics))
	for name := range v.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mv := v.Metrics[name]
		row := metricRow{
			Name:  name,
			Value: fmt.Sprintf("%.2f", mv.Value),
		}
		if mv.Threshold != nil {
			row.Threshold = fmt.Sprintf("%.2f", *mv.Threshold)
			row.Passed = mv.Passed
			row.HasVerdict = true
		} else {
			row.Threshold = "N/A"
		}
		page.Rows = append(page.Rows, row)
	}

	if v.PassRate != nil {
		page.HasTests = true
		page.PassRate = fmt.Sprintf("%.1f%%", *v.PassRate*100)
		page.MinPassRate = fmt.Sprintf("%.1f%%", v.MinPassRate*100)
	}

	return verdictTmpl.Execute(w, page)
}

// RenderComparison writes a side-by-side swap report to w.
func RenderComparison(w io.Writer, c *gate.Comparison, now time.Time) error {
	if c == nil || c.Baseline == nil || c.Candidate == nil {
		return fmt.Errorf("htmlreport: incomplete comparison")
	}

	page := comparisonPage{
		Generated:      now.Format("January 2, 2006 at 3:04 PM"),
		BaselineRun:    c.Baseline.RunID,
		BaselineModel:  c.Baseline.Model,
		CandidateRun:   c.Candidate.RunID,
		CandidateModel: c.Candidate.Model,
		Tolerance:      fmt.Sprintf("%.2f", c.Tolerance),
		Recommend:      c.RecommendSwap,
		ThresholdsMet:  c.Candidate.OverallPassed,
		NoRegression:   len(c.Regressions()) == 0,
	}
	if c.RecommendSwap {
		page.BannerText = "RECOMMENDATION: SAFE TO SWAP"
	} else {
		page.BannerText = "RECOMMENDATION: DO NOT SWAP"
	}

	for _, name := range c.MetricNames() {
		d := c.Deltas[name]
		page.Rows = append(page.Rows, deltaRow{
			Name:           name,
			Baseline:       fmt.Sprintf("%.2f", d.Baseline),
			Candidate:      fmt.Sprintf("%.2f", d.Candidate),
			Delta:          fmt.Sprintf("%+.2f", d.Delta),
			Regressed:      d.Classification == gate.Regressed,
			Classification: string(d.Classification),
		})
	}

	return comparisonTmpl.Execute(w, page)
}

// WriteVerdictFile renders a verdict report to path, creating parent
// directories as needed.
func WriteVerdictFile(path string, v *gate.Verdict, now time.Time) error {
	return writeFile(path, func(w io.Writer) error {
		return RenderVerdict(w, v, now)
	})
}

// WriteComparisonFile renders a comparison report to path.
func WriteComparisonFile(path string, c *gate.Comparison, now time.Time) error {
	return writeFile(path, func(w io.Writer) error {
		return RenderComparison(w, c, now)
	})
}

func writeFile(path string, render func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("htmlreport: create dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("htmlreport: create %q: %w", path, err)
	}
	defer f.Close()
	if err := render(f); err != nil {
		return fmt.Errorf("htmlreport: render %q: %w", path, err)
	}
	return f.Close()
}

var verdictTmpl = template.Must(template.New("verdict").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1.0">
<title>Gate Verdict - {{.RunID}}</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:'Segoe UI',system-ui,sans-serif;background:linear-gradient(135deg,#0f172a,#1e293b);color:#e2e8f0;min-height:100vh;padding:40px 20px}
.container{max-width:900px;margin:0 auto}
.banner{text-align:center;padding:18px;border-radius:12px;font-size:22px;font-weight:700;margin-bottom:28px;color:#fff}
.banner.pass{background:#10b981}
.banner.fail{background:#ef4444}
.header{text-align:center;margin-bottom:28px;padding:20px;background:rgba(30,41,59,.8);border-radius:16px;border:1px solid rgba(148,163,184,.1)}
.header h1{font-size:24px;margin-bottom:6px}
.header p{color:#94a3b8;font-size:13px}
.table-wrap{background:rgba(30,41,59,.9);border-radius:12px;padding:24px;border:1px solid rgba(148,163,184,.1);margin-bottom:24px}
.table-wrap h2{font-size:18px;margin-bottom:14px}
table{width:100%;border-collapse:collapse;font-size:14px}
th,td{padding:12px;text-align:center;border-bottom:1px solid #334155}
th{color:#94a3b8;font-weight:600;background:rgba(15,23,42,.5)}
td:first-child{text-align:left}
.footer{text-align:center;margin-top:28px;color:#64748b;font-size:11px}
</style></head>
<body><div class="container">
    <div class="banner {{if .Passed}}pass{{else}}fail{{end}}">{{.BannerText}}</div>
    <div class="header">
        <h1>Promotion Gate Report</h1>
        <p>{{.Generated}} | Run {{.RunID}}{{if .Model}} | Model {{.Model}}{{end}}</p>
    </div>
    <div class="table-wrap">
        <h2>Metrics</h2>
        <table><thead><tr><th>Metric</th><th>Value</th><th>Threshold</th><th>Status</th></tr></thead>
        <tbody>{{range .Rows}}<tr><td><strong>{{.Name}}</strong></td><td>{{.Value}}</td><td>{{.Threshold}}</td><td>{{if not .HasVerdict}}&mdash;{{else if .Passed}}&#x2705;{{else}}&#x274C;{{end}}</td></tr>{{end}}</tbody></table>
    </div>
{{if .HasTests}}    <div class="table-wrap">
        <h2>Safety</h2>
        <p style="font-size:15px;line-height:1.8;">Pass rate: {{.PassRate}} (minimum {{.MinPassRate}})</p>
    </div>
{{end}}    <div class="footer">ragate | Promotion Gate</div>
</div></body></html>
`))

var comparisonTmpl = template.Must(template.New("comparison").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1.0">
<title>Model Comparison - {{.CandidateRun}}</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:'Segoe UI',system-ui,sans-serif;background:linear-gradient(135deg,#0f172a,#1e293b);color:#e2e8f0;min-height:100vh;padding:40px 20px}
.container{max-width:900px;margin:0 auto}
.banner{text-align:center;padding:18px;border-radius:12px;font-size:22px;font-weight:700;margin-bottom:28px;color:#fff}
.banner.pass{background:#10b981}
.banner.fail{background:#ef4444}
.header{text-align:center;margin-bottom:28px;padding:20px;background:rgba(30,41,59,.8);border-radius:16px;border:1px solid rgba(148,163,184,.1)}
.header h1{font-size:24px;margin-bottom:6px}
.header p{color:#94a3b8;font-size:13px}
.models{display:grid;grid-template-columns:1fr 1fr;gap:16px;margin-bottom:24px}
.model-card{background:rgba(30,41,59,.9);border-radius:12px;padding:20px;border:1px solid rgba(148,163,184,.1);text-align:center}
.model-card h3{color:#94a3b8;font-size:13px;margin-bottom:8px}
.model-card .name{font-size:24px;font-weight:700;color:#60a5fa}
.table-wrap{background:rgba(30,41,59,.9);border-radius:12px;padding:24px;border:1px solid rgba(148,163,184,.1);margin-bottom:24px}
.table-wrap h2{font-size:18px;margin-bottom:14px}
table{width:100%;border-collapse:collapse;font-size:14px}
th,td{padding:12px;text-align:center;border-bottom:1px solid #334155}
th{color:#94a3b8;font-weight:600;background:rgba(15,23,42,.5)}
td:first-child{text-align:left}
.regressed{color:#ef4444}
.footer{text-align:center;margin-top:28px;color:#64748b;font-size:11px}
</style></head>
<body><div class="container">
    <div class="banner {{if .Recommend}}pass{{else}}fail{{end}}">{{.BannerText}}</div>
    <div class="header">
        <h1>Model Swap Comparison Report</h1>
        <p>{{.Generated}} | Tolerance {{.Tolerance}}</p>
    </div>
    <div class="models">
        <div class="model-card"><h3>BASELINE</h3><div class="name">{{if .BaselineModel}}{{.BaselineModel}}{{else}}{{.BaselineRun}}{{end}}</div></div>
        <div class="model-card"><h3>CANDIDATE</h3><div class="name">{{if .CandidateModel}}{{.CandidateModel}}{{else}}{{.CandidateRun}}{{end}}</div></div>
    </div>
    <div class="table-wrap">
        <h2>Side-by-Side Metrics</h2>
        <table><thead><tr><th>Metric</th><th>Baseline</th><th>Candidate</th><th>Delta</th><th>Change</th></tr></thead>
        <tbody>{{range .Rows}}<tr><td><strong>{{.Name}}</strong></td><td>{{.Baseline}}</td><td>{{.Candidate}}</td><td{{if .Regressed}} class="regressed"{{end}}>{{.Delta}}</td><td>{{.Classification}}</td></tr>{{end}}</tbody></table>
    </div>
    <div class="table-wrap">
        <h2>Verdict</h2>
        <p style="font-size:15px;line-height:1.8;">
            Candidate passed gate: {{if .ThresholdsMet}}&#x2705; Yes{{else}}&#x274C; No{{end}}<br/>
            No regression beyond tolerance: {{if .NoRegression}}&#x2705; Yes{{else}}&#x274C; No{{end}}<br/>
            <strong>{{if .Recommend}}Proceed with swap{{else}}Do not swap until regressions are addressed{{end}}</strong>
        </p>
    </div>
    <div class="footer">ragate | Model Swap Workflow</div>
</div></body></html>
`))
