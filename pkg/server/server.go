//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package server exposes a [core.Hub] over HTTP as an OCPI 2.2.1 receiver.
//
// Every module request is translated to a [types.Request], served by the
// hub and rendered in the OCPI response envelope:
//
//	{"data": ..., "status_code": 1000, "status_message": "Success", "timestamp": "..."}
//
// The server also carries the operational endpoints: /healthz, /metrics and,
// when an admin token is configured, the /admin/parties API.
//
// # Usage
//
//	metrics := server.NewMetrics()
//	hub, _ := core.NewHub(options.WithObserver(metrics.ObserveWrite))
//	srv, _ := server.CreateServer(hub, server.WithMetrics(metrics))
//	defer srv.Stop(ctx)
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/core"
	"github.com/manetu/ocpihub/pkg/core/types"
)

var logger = logging.GetLogger("ocpihub.server")

const agent = "server"

// maxBody bounds request bodies.
const maxBody = "1M"

// Server serves a hub over HTTP.
type Server struct {
	echo    *echo.Echo
	hub     core.Hub
	metrics *Metrics
	limiter *limiter
	clock   func() time.Time
	port    int
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics shares a metrics set with the hub observer.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithClock sets the time source of envelope timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithPort overrides the port of the hub settings.
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// New builds a server for hub without starting it.
func New(hub core.Hub, opts ...Option) *Server {
	settings := hub.Settings()
	s := &Server{
		hub:   hub,
		clock: time.Now,
		port:  settings.Port,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.limiter = newLimiter(settings.RateLimitRPS, settings.RateLimitBurst)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpError

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBody))
	e.Use(requestIDs)
	e.Use(s.metrics.instrument)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	ocpi := e.Group("/ocpi", s.rateLimit)
	ocpi.GET("/versions", s.fixed(types.KindVersions))
	ocpi.GET("/"+types.Version, s.fixed(types.KindVersionDetails))
	ocpi.Any("/"+types.Version+"/:kind", s.module)
	ocpi.Any("/"+types.Version+"/:kind/*", s.module)

	if settings.AdminToken != "" {
		s.registerAdmin(e.Group("/admin", s.adminAuth(settings.AdminToken)))
	} else {
		logger.SysInfo("admin API disabled: no admin token configured")
	}

	s.echo = e
	return s
}

// CreateServer builds a server for hub and starts listening in the background.
func CreateServer(hub core.Hub, opts ...Option) (*Server, error) {
	s := New(hub, opts...)

	// Start server in goroutine since e.Start() blocks
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			logger.Fatalf(agent, "start", "server failed: %+v", err)
		}
	}()

	logger.SysInfof("listening on :%d", s.port)
	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Stop gracefully stops the server by shutting down the Echo HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) now() time.Time {
	return s.clock().UTC()
}
