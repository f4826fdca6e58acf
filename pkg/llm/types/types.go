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

// Package types holds the provider-agnostic chat types shared by the
// LLM client implementations. Keeping them in their own package lets
// pkg/llm (rate limiting) and the per-provider subpackages depend on
// them without import cycles.
package types

import "context"

// Message is a single chat turn in provider wire order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting returned by a provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a completed chat turn from a provider.
type Response struct {
	Content    string
	StopReason string
	Model      string
	Usage      Usage
}

// Provider is the interface implemented by all LLM backends.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Model returns the model identifier this provider targets.
	Model() string

	// Chat sends a conversation and returns the assistant response.
	Chat(ctx context.Context, messages []Message) (*Response, error)
}
