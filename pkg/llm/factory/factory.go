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

// Package factory routes model identifiers to provider clients. Models
// with a ":free" suffix go to OpenRouter, "claude-" models go to
// Anthropic, and everything else goes to the NVIDIA integrate endpoint.
package factory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/teradata-labs/bobbin/pkg/llm"
	"github.com/teradata-labs/bobbin/pkg/llm/anthropic"
	"github.com/teradata-labs/bobbin/pkg/llm/openai"
	llmtypes "github.com/teradata-labs/bobbin/pkg/llm/types"
)

// FactoryConfig holds the per-backend credentials used to construct
// provider clients.
type FactoryConfig struct {
	// NvidiaAPIKey authenticates against the NVIDIA integrate endpoint.
	NvidiaAPIKey string

	// OpenRouterAPIKey authenticates against OpenRouter for ":free" models.
	OpenRouterAPIKey string

	// AnthropicAPIKey authenticates against the Anthropic Messages API.
	AnthropicAPIKey string

	// MaxTokens caps the completion length per request. Default: 1024.
	MaxTokens int

	// RateLimiterConfig is shared by all constructed clients.
	RateLimiterConfig llm.RateLimiterConfig
}

// ProviderFactory creates and caches provider clients per model.
type ProviderFactory struct {
	config FactoryConfig

	mu      sync.Mutex
	clients map[string]llmtypes.Provider
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}

	return &ProviderFactory{
		config:  config,
		clients: make(map[string]llmtypes.Provider),
	}
}

// CreateProvider returns the provider client for the given model,
// constructing and caching it on first use.
func (f *ProviderFactory) CreateProvider(model string) (llmtypes.Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("model must not be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[model]; ok {
		return client, nil
	}

	client, err := f.createProvider(model)
	if err != nil {
		return nil, err
	}

	f.clients[model] = client
	return client, nil
}

func (f *ProviderFactory) createProvider(model string) (llmtypes.Provider, error) {
	switch {
	case strings.HasPrefix(model, "claude-"):
		if f.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured for model %s", model)
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:            f.config.AnthropicAPIKey,
			Model:             model,
			MaxTokens:         f.config.MaxTokens,
			RateLimiterConfig: f.config.RateLimiterConfig,
		}), nil

	case strings.HasSuffix(model, ":free"):
		if f.config.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter API key not configured for model %s", model)
		}
		return openai.NewClient(openai.Config{
			APIKey:            f.config.OpenRouterAPIKey,
			Model:             model,
			Name:              "openrouter",
			Endpoint:          openai.OpenRouterEndpoint,
			MaxTokens:         f.config.MaxTokens,
			RateLimiterConfig: f.config.RateLimiterConfig,
		}), nil

	default:
		if f.config.NvidiaAPIKey == "" {
			return nil, fmt.Errorf("nvidia API key not configured for model %s", model)
		}
		return openai.NewClient(openai.Config{
			APIKey:            f.config.NvidiaAPIKey,
			Model:             model,
			Name:              "nvidia",
			MaxTokens:         f.config.MaxTokens,
			RateLimiterConfig: f.config.RateLimiterConfig,
		}), nil
	}
}
