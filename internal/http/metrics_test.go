package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/telemetry"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	tel := telemetry.NewTestTelemetry(t)
	m := newHTTPMetrics(tel.Meter("test"), logging.Nop())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/items/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "nope")
		}
		return c.String(http.StatusOK, "ok")
	})

	for _, target := range []string{"/items/1", "/items/2", "/items/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, int64(3), tel.Sum(t, "researchd.http.requests_total",
		attribute.String("route", "/items/:id")))
	assert.Equal(t, int64(2), tel.Sum(t, "researchd.http.requests_total",
		attribute.Int("status", http.StatusOK)))
	assert.Equal(t, int64(1), tel.Sum(t, "researchd.http.requests_total",
		attribute.Int("status", http.StatusNotFound)))
	assert.Equal(t, int64(0), tel.Sum(t, "researchd.http.active_requests"))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/api/v1/projects/:id", routeLabel("/api/v1/projects/:id"))
}
