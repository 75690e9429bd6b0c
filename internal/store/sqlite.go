package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/ragate/internal/gate"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertVerdictStmt    *sql.Stmt
	getVerdictStmt       *sql.Stmt
	insertComparisonStmt *sql.Stmt
	listComparisonsStmt  *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS verdicts (
			run_id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			run_at INTEGER NOT NULL,
			overall_passed INTEGER NOT NULL,
			pass_rate REAL,
			min_pass_rate REAL NOT NULL,
			metrics_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_model ON verdicts(model)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_run_at ON verdicts(run_at)`,
		`CREATE TABLE IF NOT EXISTS comparisons (
			id TEXT PRIMARY KEY,
			baseline_run TEXT NOT NULL,
			candidate_run TEXT NOT NULL,
			tolerance REAL NOT NULL,
			recommend_swap INTEGER NOT NULL,
			deltas_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertVerdictStmt,
			query: `
				INSERT OR REPLACE INTO verdicts (
					run_id, model, run_at, overall_passed, pass_rate, min_pass_rate, metrics_json, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert verdict: %w",
		},
		{
			dst: &s.getVerdictStmt,
			query: `
				SELECT run_id, model, run_at, overall_passed, pass_rate, min_pass_rate, metrics_json
				FROM verdicts WHERE run_id = ?
			`,
			errFmt: "store: prepare get verdict: %w",
		},
		{
			dst: &s.insertComparisonStmt,
			query: `
				INSERT INTO comparisons (
					id, baseline_run, candidate_run, tolerance, recommend_swap, deltas_json, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert comparison: %w",
		},
		{
			dst: &s.listComparisonsStmt,
			query: `
				SELECT id, baseline_run, candidate_run, tolerance, recommend_swap, deltas_json, created_at
				FROM comparisons
				ORDER BY created_at DESC
				LIMIT ?
			`,
			errFmt: "store: prepare list comparisons: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertVerdictStmt,
		s.getVerdictStmt,
		s.insertComparisonStmt,
		s.listComparisonsStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveVerdict persists a gate verdict, replacing any earlier verdict for
// the same run id (a run re-checked against new thresholds supersedes).
func (s *SQLiteStore) SaveVerdict(ctx context.Context, v *gate.Verdict) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if v == nil {
		return errors.New("store: nil verdict")
	}
	runID := strings.TrimSpace(v.RunID)
	if runID == "" {
		return errors.New("store: empty run id")
	}
	if v.Timestamp.IsZero() {
		return errors.New("store: missing run timestamp")
	}

	metricsJSON, err := json.Marshal(v.Metrics)
	if err != nil {
		return fmt.Errorf("store: marshal metrics: %w", err)
	}

	var passRate sql.NullFloat64
	if v.PassRate != nil {
		passRate = sql.NullFloat64{Float64: *v.PassRate, Valid: true}
	}

	_, err = s.insertVerdictStmt.ExecContext(
		ctx,
		runID,
		v.Model,
		v.Timestamp.UTC().UnixMilli(),
		boolToInt(v.OverallPassed),
		passRate,
		v.MinPassRate,
		string(metricsJSON),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert verdict: %w", err)
	}
	return nil
}

// GetVerdict loads a verdict by run id.
func (s *SQLiteStore) GetVerdict(ctx context.Context, runID string) (*gate.Verdict, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getVerdictStmt.QueryRowContext(ctx, runID)
	v, err := scanVerdict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: verdict %q", ErrNotFound, runID)
		}
		return nil, err
	}
	return v, nil
}

// ListVerdicts returns verdicts matching the filter, newest first.
func (s *SQLiteStore) ListVerdicts(ctx context.Context, filter Filter) ([]*gate.Verdict, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT run_id, model, run_at, overall_passed, pass_rate, min_pass_rate, metrics_json FROM verdicts WHERE 1=1`)

	var args []any
	if model := strings.TrimSpace(filter.Model); model != "" {
		sb.WriteString(` AND model = ? COLLATE NOCASE`)
		args = append(args, model)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND run_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND run_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY run_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list verdicts: %w", err)
	}
	defer rows.Close()

	var out []*gate.Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list verdicts: %w", err)
	}
	return out, nil
}

// SaveComparison records a swap decision.
func (s *SQLiteStore) SaveComparison(ctx context.Context, id string, c *gate.Comparison) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("store: empty comparison id")
	}
	if c == nil || c.Baseline == nil || c.Candidate == nil {
		return errors.New("store: incomplete comparison")
	}

	deltasJSON, err := json.Marshal(c.Deltas)
	if err != nil {
		return fmt.Errorf("store: marshal deltas: %w", err)
	}

	_, err = s.insertComparisonStmt.ExecContext(
		ctx,
		id,
		c.Baseline.RunID,
		c.Candidate.RunID,
		c.Tolerance,
		boolToInt(c.RecommendSwap),
		string(deltasJSON),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert comparison: %w", err)
	}
	return nil
}

// ListComparisons returns stored swap decisions, newest first.
func (s *SQLiteStore) ListComparisons(ctx context.Context, limit int) ([]*ComparisonRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.listComparisonsStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list comparisons: %w", err)
	}
	defer rows.Close()

	var out []*ComparisonRecord
	for rows.Next() {
		var (
			rec         ComparisonRecord
			recommend   int
			deltasJSON  []byte
			createdAtMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.BaselineRun, &rec.CandidateRun, &rec.Tolerance, &recommend, &deltasJSON, &createdAtMS); err != nil {
			return nil, fmt.Errorf("store: scan comparison: %w", err)
		}
		if err := json.Unmarshal(deltasJSON, &rec.Deltas); err != nil {
			return nil, fmt.Errorf("store: decode deltas: %w", err)
		}
		rec.RecommendSwap = recommend != 0
		rec.CreatedAt = time.UnixMilli(createdAtMS).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list comparisons: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerdict(row rowScanner) (*gate.Verdict, error) {
	var (
		runID       string
		model       string
		runAtMS     int64
		overall     int
		passRate    sql.NullFloat64
		minPassRate float64
		metricsJSON []byte
	)
	if err := row.Scan(&runID, &model, &runAtMS, &overall, &passRate, &minPassRate, &metricsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan verdict: %w", err)
	}

	v := &gate.Verdict{
		RunID:         runID,
		Model:         model,
		Timestamp:     time.UnixMilli(runAtMS).UTC(),
		MinPassRate:   minPassRate,
		OverallPassed: overall != 0,
	}
	if err := json.Unmarshal(metricsJSON, &v.Metrics); err != nil {
		return nil, fmt.Errorf("store: decode metrics: %w", err)
	}
	if passRate.Valid {
		rate := passRate.Float64
		v.PassRate = &rate
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
