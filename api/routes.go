package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("RAGATE_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("RAGATE_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set RAGATE_API_KEY or set RAGATE_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.POST("/check", s.handleCheck)
	api.POST("/compare", s.handleCompare)

	api.GET("/verdicts", s.handleListVerdicts)
	api.GET("/verdicts/:run_id", s.handleGetVerdict)

	api.GET("/comparisons", s.handleListComparisons)

	return nil
}
