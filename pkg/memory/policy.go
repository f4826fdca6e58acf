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
package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Defaults applied when a policy does not override them.
const (
	// DefaultReserveTokens is headroom kept free for response generation.
	DefaultReserveTokens = 1000

	// DefaultSummaryThreshold is the fraction of the effective budget at
	// which summarization kicks in instead of plain eviction.
	DefaultSummaryThreshold = 0.7

	// DefaultMaxTokens is the conservative context size assumed for model
	// ids that are not in the built-in table.
	DefaultMaxTokens = 32000
)

// ErrInvalidPolicy reports a degenerate model policy whose reserve leaves
// no room for conversation content. This is a configuration error, never a
// runtime condition.
var ErrInvalidPolicy = errors.New("model policy has non-positive effective budget")

// ModelPolicy describes how much context a model offers and when the
// buffer should start summarizing. A policy is immutable once resolved for
// a given operation.
type ModelPolicy struct {
	DisplayName      string
	MaxTokens        int
	ReserveTokens    int
	SummaryThreshold float64
}

// NewModelPolicy builds a policy with default reserve and threshold.
func NewModelPolicy(displayName string, maxTokens int) ModelPolicy {
	return ModelPolicy{
		DisplayName:      displayName,
		MaxTokens:        maxTokens,
		ReserveTokens:    DefaultReserveTokens,
		SummaryThreshold: DefaultSummaryThreshold,
	}
}

// EffectiveBudget is the context available for conversation content after
// reserving response headroom.
func (p ModelPolicy) EffectiveBudget() int {
	return p.MaxTokens - p.ReserveTokens
}

// Validate rejects degenerate policies.
func (p ModelPolicy) Validate() error {
	if p.EffectiveBudget() <= 0 {
		return fmt.Errorf("%w: max_tokens=%d reserve_tokens=%d", ErrInvalidPolicy, p.MaxTokens, p.ReserveTokens)
	}
	return nil
}

// PolicyTable maps model identifiers to context policies. The built-in
// table covers the models the backend serves; unknown ids are inserted on
// first use with a conservative default so later lookups within the
// process are stable. Lookups never fail.
type PolicyTable struct {
	mu       sync.Mutex
	policies map[string]ModelPolicy
}

// builtinPolicies lists the models the backend serves, with their
// advertised context windows.
func builtinPolicies() map[string]ModelPolicy {
	return map[string]ModelPolicy{
		"meta/llama-4-maverick-17b-128e-instruct": NewModelPolicy("Llama 4 Maverick", 1000000),
		"deepseek-ai/deepseek-r1":                 NewModelPolicy("DeepSeek R1", 128000),
		"qwen/qwen2.5-coder-32b-instruct":         NewModelPolicy("Qwen 2.5 Coder", 32000),
		"qwen/qwen3-coder-480b-a35b-instruct":     NewModelPolicy("Qwen3 Coder 480B", 256000),
		"deepseek-ai/deepseek-v3.1":               NewModelPolicy("DeepSeek V3.1", 128000),
		"openai/gpt-oss-120b":                     NewModelPolicy("GPT OSS", 128000),
		"qwen/qwen3-235b-a22b:free":               NewModelPolicy("Qwen3 235B", 131000),
		"google/gemma-3-27b-it:free":              NewModelPolicy("Gemma 3", 96000),
		"x-ai/grok-4-fast:free":                   NewModelPolicy("Grok 4", 2000000),
	}
}

// NewPolicyTable creates a policy table seeded with the built-in models.
func NewPolicyTable() *PolicyTable {
	return &PolicyTable{policies: builtinPolicies()}
}

// Get resolves the policy for a model id. An empty id resolves to a fixed
// default policy without touching the table. An unknown id is inserted
// with DefaultMaxTokens on first use.
func (t *PolicyTable) Get(model string) ModelPolicy {
	if model == "" {
		return NewModelPolicy("Default", DefaultMaxTokens)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if policy, ok := t.policies[model]; ok {
		return policy
	}
	policy := NewModelPolicy("Unknown-"+model, DefaultMaxTokens)
	t.policies[model] = policy
	return policy
}

// Set registers or overrides the policy for a model id. Used to load
// custom model limits from configuration.
func (t *PolicyTable) Set(model string, policy ModelPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.policies[model] = policy
}

// Known reports whether the model id is already in the table, without
// inserting it.
func (t *PolicyTable) Known(model string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.policies[model]
	return ok
}

// Models returns the ids currently in the table, sorted.
func (t *PolicyTable) Models() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.policies))
	for id := range t.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
