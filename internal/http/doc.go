// Package http serves a read-only view of project memory documents and
// the Prometheus quality metrics.
//
// Routes:
//
//	GET /health
//	GET /metrics
//	GET /api/v1/projects
//	GET /api/v1/projects/:id                 (?format=html|markdown)
//	GET /api/v1/projects/:id/sections/:name  (?format=html|markdown)
package http
