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
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/internal/log"
	"github.com/teradata-labs/bobbin/internal/version"
	"github.com/teradata-labs/bobbin/pkg/chatlog"
	"github.com/teradata-labs/bobbin/pkg/llm"
	"github.com/teradata-labs/bobbin/pkg/llm/factory"
	"github.com/teradata-labs/bobbin/pkg/memory"
	"github.com/teradata-labs/bobbin/pkg/prompts"
	"github.com/teradata-labs/bobbin/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Bobbin chat server",
	Long: `Start the Bobbin HTTP chat server.

The server will:
- Route chat requests to the configured LLM providers
- Keep per-session conversation memory inside each model's token budget
- Record chat round trips in the SQLite audit log (if configured)

Press Ctrl+C to gracefully shutdown.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if err := log.Configure(config.Logging.Level, config.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}
	logger := log.Logger()
	defer func() { _ = log.Sync() }()

	logger.Info("Starting Bobbin",
		zap.String("version", version.Get()),
		zap.String("addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if config.LLM.NvidiaAPIKey == "" && config.LLM.OpenRouterAPIKey == "" && config.LLM.AnthropicAPIKey == "" {
		logger.Fatal("No provider API keys configured")
	}

	systemPrompt := config.Memory.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = prompts.MasterSystemPrompt()
	}

	registry := memory.NewRegistry(memory.RegistryConfig{
		SystemPrompt:    systemPrompt,
		AssistantFilter: prompts.FormatFilter(config.Memory.ResponseFormat),
		Logger:          logger.Named("memory"),
	})

	providers := factory.NewProviderFactory(factory.FactoryConfig{
		NvidiaAPIKey:     config.LLM.NvidiaAPIKey,
		OpenRouterAPIKey: config.LLM.OpenRouterAPIKey,
		AnthropicAPIKey:  config.LLM.AnthropicAPIKey,
		MaxTokens:        config.LLM.MaxTokens,
		RateLimiterConfig: llm.RateLimiterConfig{
			Enabled:           config.LLM.RateLimitEnabled,
			RequestsPerSecond: config.LLM.RequestsPerSec,
			BurstCapacity:     config.LLM.BurstCapacity,
			Logger:            logger.Named("ratelimit"),
		},
	})

	var store *chatlog.Store
	if config.ChatLog.Path != "" {
		var err error
		store, err = chatlog.NewStore(config.ChatLog.Path)
		if err != nil {
			logger.Fatal("Failed to open chat log", zap.Error(err))
		}
		defer store.Close()
	}

	srv := server.New(server.Config{
		Addr:            fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		ExportKey:       config.ChatLog.ExportKey,
		DefaultModel:    config.LLM.DefaultModel,
		MaxSessions:     config.Memory.MaxSessions,
		CleanupSchedule: config.Memory.CleanupSchedule,
		CORS: server.CORSConfig{
			Enabled:          config.Server.CORS.Enabled,
			AllowedOrigins:   config.Server.CORS.AllowedOrigins,
			AllowedMethods:   config.Server.CORS.AllowedMethods,
			AllowedHeaders:   config.Server.CORS.AllowedHeaders,
			ExposedHeaders:   config.Server.CORS.ExposedHeaders,
			AllowCredentials: config.Server.CORS.AllowCredentials,
			MaxAge:           config.Server.CORS.MaxAge,
		},
	}, registry, providers, store, logger.Named("http"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Shutdown error", zap.Error(err))
		}
	}
}
