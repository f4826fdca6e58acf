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
package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory() *ProviderFactory {
	return NewProviderFactory(FactoryConfig{
		NvidiaAPIKey:     "nvidia-key",
		OpenRouterAPIKey: "openrouter-key",
		AnthropicAPIKey:  "anthropic-key",
	})
}

func TestCreateProviderRouting(t *testing.T) {
	f := newTestFactory()

	tests := []struct {
		model    string
		provider string
	}{
		{"meta/llama-4-maverick-17b-128e-instruct", "nvidia"},
		{"deepseek-ai/deepseek-r1", "nvidia"},
		{"qwen/qwen3-235b-a22b:free", "openrouter"},
		{"x-ai/grok-4-fast:free", "openrouter"},
		{"claude-sonnet-4-5-20250929", "anthropic"},
	}

	for _, tt := range tests {
		client, err := f.CreateProvider(tt.model)
		require.NoError(t, err, tt.model)
		assert.Equal(t, tt.provider, client.Name(), tt.model)
		assert.Equal(t, tt.model, client.Model())
	}
}

func TestCreateProviderCached(t *testing.T) {
	f := newTestFactory()

	a, err := f.CreateProvider("openai/gpt-oss-120b")
	require.NoError(t, err)
	b, err := f.CreateProvider("openai/gpt-oss-120b")
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestCreateProviderMissingKey(t *testing.T) {
	f := NewProviderFactory(FactoryConfig{NvidiaAPIKey: "nvidia-key"})

	_, err := f.CreateProvider("qwen/qwen3-235b-a22b:free")
	assert.Error(t, err)

	_, err = f.CreateProvider("claude-sonnet-4-5-20250929")
	assert.Error(t, err)

	_, err = f.CreateProvider("")
	assert.Error(t, err)
}
