package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/memory"
)

// Projects is the read side of the memory store.
type Projects interface {
	List() ([]string, error)
	Get(projectID string) (*memory.Memory, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the researchd HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	projects Projects
	logger   *logging.Logger
	config   *Config
}

// NewServer creates a server. gatherer backs /metrics and may be nil to
// use the default Prometheus registry.
func NewServer(projects Projects, gatherer prometheus.Gatherer, logger *logging.Logger, cfg *Config) (*Server, error) {
	if projects == nil {
		return nil, fmt.Errorf("project store cannot be nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(e)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:     e,
		projects: projects,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes(gatherer)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/projects", s.handleListProjects)
	v1.GET("/projects/:id", s.handleProject)
	v1.GET("/projects/:id/sections/:name", s.handleSection)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListProjects(c echo.Context) error {
	ids, err := s.projects.List()
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Projects: ids})
}

func (s *Server) handleProject(c echo.Context) error {
	mem, err := s.projects.Get(c.Param("id"))
	if err != nil {
		return err
	}
	doc, err := mem.ReadAll()
	if err != nil {
		return err
	}
	if handled, err := s.writeFormatted(c, doc); handled {
		return err
	}
	names, err := mem.Sections()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProjectResponse{
		ProjectID: mem.ProjectID(),
		Sections:  names,
		Document:  doc,
	})
}

func (s *Server) handleSection(c echo.Context) error {
	mem, err := s.projects.Get(c.Param("id"))
	if err != nil {
		return err
	}
	name := c.Param("name")
	content, err := mem.ReadSectionStrict(name)
	if err != nil {
		return err
	}
	if handled, err := s.writeFormatted(c, content); handled {
		return err
	}
	return c.JSON(http.StatusOK, SectionResponse{
		ProjectID: mem.ProjectID(),
		Name:      name,
		Content:   content,
	})
}

// writeFormatted answers ?format=html and ?format=markdown. handled is
// false for the default JSON representation.
func (s *Server) writeFormatted(c echo.Context, text string) (handled bool, err error) {
	switch c.QueryParam("format") {
	case "", "json":
		return false, nil
	case "html":
		out, err := RenderHTML(text)
		if err != nil {
			return true, err
		}
		return true, c.HTML(http.StatusOK, out)
	case "markdown", "md":
		return true, c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(text))
	default:
		return true, echo.NewHTTPError(http.StatusBadRequest, "format must be json, html or markdown")
	}
}

// errorHandler maps memory errors to status codes and hides internal
// error text from clients.
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
		case errors.Is(err, memory.ErrProjectNotFound), errors.Is(err, memory.ErrSectionNotFound):
			he = echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, memory.ErrInvalidProjectID), errors.Is(err, memory.ErrInvalidSectionName):
			he = echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			he = echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		e.DefaultHTTPErrorHandler(he, c)
	}
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
