package api

import (
	"evalgo.org/tagscope/internal/audit"
	"evalgo.org/tagscope/models"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	CachedReports    int    `json:"cached_reports"`
	WebSocketClients int    `json:"websocket_clients"`
}

// IssuesResponse is one page of a report's issues.
type IssuesResponse struct {
	ReportID string         `json:"report_id"`
	Total    int            `json:"total"`
	Count    int            `json:"count"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
	Issues   []models.Issue `json:"issues"`
}

// AuditResponse lists recent audit entries.
type AuditResponse struct {
	Count   int           `json:"count"`
	Entries []audit.Entry `json:"entries"`
}
