package api

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes registers all API routes.
func (s *Server) registerRoutes() {
	s.App.Get("/healthz", s.handleHealth)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.App.Group("/api/v1")

	v1.Get("/keywords", s.handleListKeywords)
	// Registered before the :id routes so "export" is never parsed as an ID.
	v1.Get("/keywords/export", s.handleExport)
	v1.Get("/keywords/:id/runs", s.handleRecentRuns)
	v1.Post("/keywords/:id/crawl", s.triggerLimiter(), s.handleCrawl)

	v1.Get("/crawl-runs/:id", s.handleGetRun)
}
