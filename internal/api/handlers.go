package api

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/nao1215/serpscan/internal/config"
	"github.com/nao1215/serpscan/internal/database"
	"github.com/nao1215/serpscan/internal/export"
	"github.com/nao1215/serpscan/internal/model"
	"github.com/nao1215/serpscan/internal/pipeline"
)

// maxRecentRuns caps the limit query parameter of the runs endpoint.
const maxRecentRuns = 100

// healthResponse is the payload of /healthz.
type healthResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return jsonSuccess(c, healthResponse{Healthy: true, Version: s.version})
}

// handleListKeywords returns the keyword registry.
func (s *Server) handleListKeywords(c fiber.Ctx) error {
	keywords, err := s.store.ListKeywords(c.Context())
	if err != nil {
		s.logger.Error("failed to list keywords", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to list keywords")
	}
	return jsonSuccess(c, keywords)
}

// handleCrawl runs one crawl synchronously and returns the finished run.
func (s *Server) handleCrawl(c fiber.Ctx) error {
	kw, ok, err := s.lookupKeyword(c)
	if !ok {
		return err
	}

	run, err := s.crawler.Crawl(c.Context(), kw)
	if err != nil {
		s.logger.Warn("on-demand crawl failed", "query", kw.Query, "error", err)

		switch pipeline.KindOf(err) {
		case pipeline.KindFetch:
			return jsonError(c, fiber.StatusBadGateway, err.Error())
		case pipeline.KindCancelled:
			return jsonError(c, fiber.StatusServiceUnavailable, "crawl was cancelled")
		default:
			return jsonError(c, fiber.StatusInternalServerError, "crawl failed")
		}
	}

	return jsonSuccess(c, run)
}

// handleRecentRuns returns the newest runs of a keyword.
func (s *Server) handleRecentRuns(c fiber.Ctx) error {
	kw, ok, err := s.lookupKeyword(c)
	if !ok {
		return err
	}

	limit := config.DefaultRecentRuns
	if raw := c.Query("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 || n > maxRecentRuns {
			return jsonError(c, fiber.StatusBadRequest,
				"limit must be between 1 and "+strconv.Itoa(maxRecentRuns))
		}
		limit = n
	}

	runs, err := s.store.RecentRuns(c.Context(), kw.ID, limit)
	if err != nil {
		s.logger.Error("failed to load runs", "keyword_id", kw.ID.String(), "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to load runs")
	}
	if runs == nil {
		runs = []*model.CrawlRun{}
	}
	return jsonSuccess(c, runs)
}

// handleGetRun returns one run with its entries and checks.
func (s *Server) handleGetRun(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid run id")
	}

	run, err := s.store.GetRun(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			return jsonError(c, fiber.StatusNotFound, "run not found")
		}
		s.logger.Error("failed to load run", "run_id", id.String(), "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to load run")
	}
	return jsonSuccess(c, run)
}

// handleExport streams the keyword export as CSV (default) or XLSX.
func (s *Server) handleExport(c fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format", string(export.FormatCSV)))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	rows, err := export.Rows(c.Context(), s.store)
	if err != nil {
		s.logger.Error("failed to build export", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to build export")
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, rows); err != nil {
		s.logger.Error("failed to write export", "format", string(format), "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to write export")
	}

	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+format.Filename()+`"`)
	return c.Send(buf.Bytes())
}

// lookupKeyword resolves the :id route parameter. When ok is false the
// error response has already been written and err is what the handler
// must return.
func (s *Server) lookupKeyword(c fiber.Ctx) (kw *model.Keyword, ok bool, err error) {
	id, parseErr := uuid.Parse(c.Params("id"))
	if parseErr != nil {
		return nil, false, jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	kw, getErr := s.store.GetKeyword(c.Context(), id)
	if getErr != nil {
		if errors.Is(getErr, database.ErrKeywordNotFound) {
			return nil, false, jsonError(c, fiber.StatusNotFound, "keyword not found")
		}
		s.logger.Error("failed to load keyword", "keyword_id", id.String(), "error", getErr)
		return nil, false, jsonError(c, fiber.StatusInternalServerError, "failed to load keyword")
	}
	return kw, true, nil
}
