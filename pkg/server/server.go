// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the chat backend over HTTP: the chat endpoint,
// per-session memory operations, health, and the audit log endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/chatlog"
	llmtypes "github.com/teradata-labs/bobbin/pkg/llm/types"
	"github.com/teradata-labs/bobbin/pkg/memory"
)

// DefaultModel is used when a chat request does not name a model.
const DefaultModel = "meta/llama-4-maverick-17b-128e-instruct"

// ProviderSource resolves a model identifier to a provider client.
type ProviderSource interface {
	CreateProvider(model string) (llmtypes.Provider, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":5000".
	Addr string

	// ExportKey guards the log export and cleanup endpoints. When empty
	// those endpoints always return 401.
	ExportKey string

	// DefaultModel overrides the built-in default chat model.
	DefaultModel string

	// MaxSessions caps the session registry. Zero disables cleanup.
	MaxSessions int

	// CleanupSchedule is a cron expression for periodic session cleanup.
	// Default: "@every 10m".
	CleanupSchedule string

	// CORS policy for browser clients.
	CORS CORSConfig
}

// Server is the HTTP front end.
type Server struct {
	config       Config
	registry     *memory.Registry
	providers    ProviderSource
	chatLog      *chatlog.Store
	logger       *zap.Logger
	corsConfig   CORSConfig
	httpServer   *http.Server
	cron         *cron.Cron
	defaultModel string
}

// New creates the server. chatLog may be nil to disable audit logging.
func New(config Config, registry *memory.Registry, providers ProviderSource, chatLog *chatlog.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Addr == "" {
		config.Addr = ":5000"
	}
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = "@every 10m"
	}

	defaultModel := config.DefaultModel
	if defaultModel == "" {
		defaultModel = DefaultModel
	}

	return &Server{
		config:       config,
		registry:     registry,
		providers:    providers,
		chatLog:      chatLog,
		logger:       logger,
		corsConfig:   config.CORS,
		defaultModel: defaultModel,
		httpServer: &http.Server{
			Addr:         config.Addr,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions/{id}/stats", s.handleSessionStats)
	mux.HandleFunc("POST /api/sessions/{id}/clear", s.handleSessionClear)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleSessionExport)
	mux.HandleFunc("POST /api/sessions/{id}/import", s.handleSessionImport)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("GET /export_logs", s.handleExportLogs)
	mux.HandleFunc("POST /cleanup_logs", s.handleCleanupLogs)

	var handler http.Handler = mux
	if s.corsConfig.Enabled {
		handler = s.corsMiddleware(handler)
	}
	handler = s.requestLogging(handler)

	return handler
}

// Start runs the server until it is stopped or fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer.Handler = s.Handler()

	if err := s.startCleanup(); err != nil {
		return err
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	if s.cron != nil {
		s.cron.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// startCleanup schedules periodic session eviction. Runs on a schedule
// rather than on every chat request, so request latency stays flat.
func (s *Server) startCleanup() error {
	if s.config.MaxSessions <= 0 {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.config.CleanupSchedule, func() {
		removed := s.registry.CleanupOldSessions(s.config.MaxSessions)
		if removed > 0 {
			s.logger.Info("Cleaned up old sessions",
				zap.Int("removed", removed),
				zap.Int("max_sessions", s.config.MaxSessions))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session cleanup: %w", err)
	}

	s.cron.Start()
	return nil
}
