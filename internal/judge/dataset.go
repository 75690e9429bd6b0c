package judge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Sample is one row of the evaluation dataset (JSONL).
type Sample struct {
	Question    string `json:"question"`
	Context     string `json:"context,omitempty"`
	GroundTruth string `json:"ground_truth"`
	Response    string `json:"response,omitempty"`
}

// LoadSamples reads a JSONL dataset. A row without a recorded response is
// replayed with its ground truth, matching the workshop datasets. max <= 0
// means no limit.
func LoadSamples(path string, max int) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("judge: open dataset %q: %w", path, err)
	}
	defer f.Close()

	var out []Sample
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var s Sample
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("judge: dataset %q line %d: %w", path, line, err)
		}
		if strings.TrimSpace(s.Question) == "" {
			return nil, fmt.Errorf("judge: dataset %q line %d: missing question", path, line)
		}
		if strings.TrimSpace(s.Response) == "" {
			s.Response = s.GroundTruth
		}
		if strings.TrimSpace(s.Response) == "" {
			return nil, fmt.Errorf("judge: dataset %q line %d: no response or ground_truth", path, line)
		}
		out = append(out, s)
		if max > 0 && len(out) >= max {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("judge: read dataset %q: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("judge: dataset %q is empty", path)
	}
	return out, nil
}
