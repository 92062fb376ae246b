// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the loadout generator over HTTP.
//
// # Description
//
// Routes:
//
//	GET  /health               liveness
//	GET  /metrics              Prometheus exposition
//	POST /generate_loadout     cached loadout now, regeneration in background
//	GET  /get_cached_loadout   cached loadout for ?role=&enemy=
//	POST /v1/loadouts/generate synchronous generation
//	GET  /v1/usage             item usage across history
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/LoadoutForge/services/generator"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ServiceName names the otelgin server spans. Default: "loadoutforge".
	ServiceName string

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration
}

// Server serves the generator API.
type Server struct {
	cfg    Config
	gen    *generator.Generator
	router *gin.Engine
	logger *slog.Logger
}

// New builds the router. gatherer may be nil, in which case /metrics is not
// registered.
func New(cfg Config, gen *generator.Generator, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	if gen == nil {
		return nil, errors.New("server requires a generator")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "loadoutforge"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		gen:    gen,
		logger: logger.With(slog.String("component", "server")),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(s.requestLogger())
	s.setupRoutes(router, gatherer)
	s.router = router
	return s, nil
}

func (s *Server) setupRoutes(router *gin.Engine, gatherer prometheus.Gatherer) {
	router.GET("/health", HealthCheck)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	router.POST("/generate_loadout", HandleGenerateLoadout(s.gen))
	router.GET("/get_cached_loadout", HandleGetCachedLoadout(s.gen))

	v1 := router.Group("/v1")
	{
		v1.POST("/loadouts/generate", HandleGenerate(s.gen))
		v1.GET("/usage", HandleUsage(s.gen))
	}
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

// Router returns the gin engine, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully and waits
// for background regenerations to finish.
//
// # Outputs
//
//   - error: Non-nil if the listener failed or shutdown timed out.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting loadout server", slog.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down loadout server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.gen.Wait()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
