// Package tagscope is a quality and security analyzer for Google Tag Manager
// container exports.
//
// # Overview
//
// Tagscope reads a GTM export (the JSON produced by "Export container") and
// produces a single report: a 0-100 quality score, per-area findings and a
// flat, indexed list of issues. The analysis is a pure function of the
// export; the same file always yields the same report and report ID.
//
// The repository consists of three main parts:
//   - Analysis Engine: usage graph, analyzers, scoring and issue index
//   - Command Line: analyze, validate and watch exports locally
//   - API Server: the engine over HTTP with a WebSocket feed
//
// # Architecture
//
//	┌─────────────────┐       ┌─────────────────┐
//	│  CLI (cobra)    │       │  API Server     │
//	│  analyze/watch  │       │  (Echo REST)    │
//	└────────┬────────┘       └────────┬────────┘
//	         │                         │
//	┌────────▼─────────────────────────▼────────┐
//	│              Analysis Engine              │
//	│ usage ─ tags ─ consent ─ triggers ─       │
//	│ variables ─ custom html ─ score ─ index   │
//	└───────────────────────────────────────────┘
//
// # Analyzers
//
// Tags:
//   - Paused tags, obsolete Universal Analytics tags, naming conventions
//   - Tags without triggers and references to missing triggers or variables
//
// Consent:
//   - Tags that need consent but have none, or only partial settings
//
// Triggers:
//   - Unused, duplicate and all-pages triggers, timing and blocking rules
//
// Variables:
//   - Unused and duplicate variables, missing defaults and fallbacks
//   - Malformed regular expressions and fragile CSS selectors
//
// Custom HTML:
//   - eval and dynamic network calls, DOM XSS sinks, PII in URLs
//   - Timers, postMessage without origin checks, missing error handling
//   - Third-party hosts grouped by registrable domain
//
// # Usage
//
// Analyze an export:
//
//	tagscope analyze GTM-XXXX_workspace.json
//
// Fail a CI job when the score drops:
//
//	tagscope analyze export.json --fail-under 80
//
// Re-analyze on every save:
//
//	tagscope watch export.json
//
// Start the API server:
//
//	tagscope server --config config.yaml
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (config.yaml, see "tagscope config init")
//   - Environment variables (TAGSCOPE_ prefix)
//   - .env file
//
// Example configuration:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	audit:
//	  enabled: true
//	  path: ./audit
//	analysis:
//	  parallel: true
//
// # API Endpoints
//
//   - GET  /health                         - Service health
//   - POST /api/v1/analyze                 - Analyze a posted export
//   - GET  /api/v1/reports/:id             - Get a cached report
//   - GET  /api/v1/reports/:id/issues      - Filter and page report issues
//   - GET  /api/v1/audit                   - Query the audit log
//   - GET  /api/v1/ws/reports              - Report events
//   - GET  /api/v1/ws/stats                - WebSocket statistics
//
// # Development
//
// Run tests:
//
//	go test ./...
//
// Build the binary:
//
//	go build -o tagscope ./cmd/tagscope
package tagscope
