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
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the name of the config file
const DefaultConfigFileName = "bobbin"

// Config holds all configuration for the Bobbin server.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Memory  MemoryConfig  `mapstructure:"memory"`
	ChatLog ChatLogConfig `mapstructure:"chatlog"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string     `mapstructure:"host"`
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration for the HTTP API.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// LLMConfig holds provider credentials and request settings.
type LLMConfig struct {
	NvidiaAPIKey     string  `mapstructure:"nvidia_api_key"`
	OpenRouterAPIKey string  `mapstructure:"openrouter_api_key"`
	AnthropicAPIKey  string  `mapstructure:"anthropic_api_key"`
	DefaultModel     string  `mapstructure:"default_model"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	RateLimitEnabled bool    `mapstructure:"rate_limit_enabled"`
	RequestsPerSec   float64 `mapstructure:"requests_per_second"`
	BurstCapacity    int     `mapstructure:"burst_capacity"`
}

// MemoryConfig holds conversation memory settings.
type MemoryConfig struct {
	MaxSessions     int    `mapstructure:"max_sessions"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	ResponseFormat  string `mapstructure:"response_format"`
	SystemPrompt    string `mapstructure:"system_prompt"`
}

// ChatLogConfig holds audit log settings.
type ChatLogConfig struct {
	Path      string `mapstructure:"path"`
	ExportKey string `mapstructure:"export_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from file, environment, and defaults.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/bobbin/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	// Bind environment variables: BOBBIN_LLM_NVIDIA_API_KEY etc.
	viper.SetEnvPrefix("BOBBIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5000)

	// CORS defaults (permissive for development)
	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})
	viper.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("server.cors.allowed_headers", []string{"*"})
	viper.SetDefault("server.cors.exposed_headers", []string{"Content-Length", "Content-Type", "Content-Disposition"})
	viper.SetDefault("server.cors.allow_credentials", false)
	viper.SetDefault("server.cors.max_age", 86400)

	viper.SetDefault("llm.default_model", "meta/llama-4-maverick-17b-128e-instruct")
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.rate_limit_enabled", true)
	viper.SetDefault("llm.requests_per_second", 2.0)
	viper.SetDefault("llm.burst_capacity", 5)

	viper.SetDefault("memory.max_sessions", 500)
	viper.SetDefault("memory.cleanup_schedule", "@every 10m")
	viper.SetDefault("memory.response_format", "markdown")
	viper.SetDefault("memory.system_prompt", "")

	viper.SetDefault("chatlog.path", "bobbin.db")
	viper.SetDefault("chatlog.export_key", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}
