package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"evalgo.org/tagscope/internal/audit"
	"evalgo.org/tagscope/models"
)

// sourceAPI marks reports created through POST /analyze.
const sourceAPI = "api"

// analyze accepts a container export and returns its report.
func (s *Server) analyze(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return BadRequestError("Failed to read request body", err.Error())
	}

	container, err := models.ParseContainer(body)
	if err != nil {
		return containerError(err)
	}

	start := time.Now()
	report := s.engine.Analyze(container)
	took := time.Since(start)

	s.Publish(EventReportCreated, sourceAPI, report)

	if err := s.audit.LogAnalysis(audit.OpAnalyze, sourceAPI, report, took); err != nil {
		s.logger.Warn("failed to write audit entry", "report", report.ID, "error", err)
	}

	s.logger.Debug("container analyzed",
		"report", report.ID,
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		"duration", took)

	return c.JSON(http.StatusOK, report)
}

// getReport returns a cached report.
func (s *Server) getReport(c echo.Context) error {
	id := c.Param("id")
	report, ok := s.Report(id)
	if !ok {
		return NotFoundError("Report", id)
	}
	return c.JSON(http.StatusOK, report)
}

// listIssues returns a page of a cached report's issues, optionally
// filtered by category and severity.
func (s *Server) listIssues(c echo.Context) error {
	id := c.Param("id")
	report, ok := s.Report(id)
	if !ok {
		return NotFoundError("Report", id)
	}

	issues := report.Filter(c.QueryParam("category"))

	if v := c.QueryParam("severity"); v != "" {
		severity, err := models.ParseSeverity(v)
		if err != nil {
			return BadRequestError("Invalid severity", err.Error())
		}
		filtered := make([]models.Issue, 0, len(issues))
		for _, i := range issues {
			if i.Severity == severity {
				filtered = append(filtered, i)
			}
		}
		issues = filtered
	}

	limit, offset := parsePagination(c)
	page := paginate(issues, limit, offset)

	return c.JSON(http.StatusOK, IssuesResponse{
		ReportID: id,
		Total:    len(issues),
		Count:    len(page),
		Limit:    limit,
		Offset:   offset,
		Issues:   page,
	})
}

// listAudit returns the most recent audit entries.
func (s *Server) listAudit(c echo.Context) error {
	if !s.audit.Enabled() {
		return NewAPIError(http.StatusServiceUnavailable, "Audit log disabled", "set audit.enabled to record analysis runs")
	}

	limit, _ := parsePagination(c)
	entries, err := s.audit.Query(audit.Query{
		Operation: c.QueryParam("operation"),
		ReportID:  c.QueryParam("report_id"),
		Limit:     limit,
	})
	if err != nil {
		return InternalError("Failed to query audit log", err.Error())
	}

	return c.JSON(http.StatusOK, AuditResponse{Count: len(entries), Entries: entries})
}
