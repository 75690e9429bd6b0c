package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/ragate/internal/gate"
	"github.com/stellarlinkco/ragate/internal/report"
	"github.com/stellarlinkco/ragate/internal/store"
)

type checkRequest struct {
	Report            report.Document `json:"report"`
	MinSafetyPassRate *float64        `json:"min_safety_pass_rate,omitempty"`
}

type compareRequest struct {
	BaselineRun  string   `json:"baseline_run"`
	CandidateRun string   `json:"candidate_run"`
	Tolerance    *float64 `json:"tolerance,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCheck evaluates an inline report against the configured
// thresholds, persists the verdict, and returns it.
func (s *Server) handleCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	run, err := report.FromDocument(&req.Report)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}

	minPassRate := s.config.MinSafetyPassRate()
	if req.MinSafetyPassRate != nil {
		minPassRate = *req.MinSafetyPassRate
	}

	verdict, err := gate.Evaluate(run, s.config.ThresholdSpecs(), minPassRate)
	if err != nil {
		var missing *gate.MissingMetricError
		if errors.As(err, &missing) {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.store.SaveVerdict(c.Request.Context(), verdict); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// handleCompare compares two stored verdicts and records the swap
// decision.
func (s *Server) handleCompare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.BaselineRun) == "" || strings.TrimSpace(req.CandidateRun) == "" {
		respondError(c, http.StatusBadRequest, errors.New("baseline_run and candidate_run are required"))
		return
	}

	ctx := c.Request.Context()
	baseline, err := s.store.GetVerdict(ctx, req.BaselineRun)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	candidate, err := s.store.GetVerdict(ctx, req.CandidateRun)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	tolerance := s.config.RegressionTolerance()
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}

	cmp, err := gate.Compare(baseline, candidate, tolerance)
	if err != nil {
		if errors.Is(err, gate.ErrIncomparableRuns) {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		respondError(c, http.StatusBadRequest, err)
		return
	}

	id := newComparisonID()
	if err := s.store.SaveComparison(ctx, id, cmp); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         id,
		"comparison": cmp,
	})
}

func (s *Server) handleListVerdicts(c *gin.Context) {
	limit, err := parseLimitParam(c.Query("limit"), 50)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	filter := store.Filter{
		Model: strings.TrimSpace(c.Query("model")),
		Limit: limit,
	}

	verdicts, err := s.store.ListVerdicts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if verdicts == nil {
		verdicts = []*gate.Verdict{}
	}
	c.JSON(http.StatusOK, verdicts)
}

func (s *Server) handleGetVerdict(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("run_id"))
	if runID == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	verdict, err := s.store.GetVerdict(c.Request.Context(), runID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (s *Server) handleListComparisons(c *gin.Context) {
	limit, err := parseLimitParam(c.Query("limit"), 50)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	records, err := s.store.ListComparisons(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []*store.ComparisonRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondError(c, http.StatusInternalServerError, err)
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func newComparisonID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("cmp_%d", time.Now().UTC().UnixNano())
	}
	return "cmp_" + hex.EncodeToString(b[:])
}
