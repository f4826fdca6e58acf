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
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ContentFilter transforms assistant-authored content before it is stored,
// e.g. coercing markdown output to plain text. It must be a pure function;
// the buffer applies it exactly once per assistant message, before token
// estimation.
type ContentFilter func(content string) string

// summaryPrefix marks synthesized digest messages in the buffer.
const summaryPrefix = "[CONVERSATION SUMMARY] "

// BufferConfig configures a conversation buffer. Zero values select
// sensible defaults.
type BufferConfig struct {
	// SessionID identifies the conversation. Defaults to "default".
	SessionID string

	// SystemPrompt is the mandatory persona prompt seeded as a pinned
	// system message.
	SystemPrompt string

	// Estimator counts tokens. Defaults to NewEstimator().
	Estimator Estimator

	// Policies resolves model context budgets. Defaults to a fresh table;
	// a registry normally shares one table across all its buffers.
	Policies *PolicyTable

	// AssistantFilter post-processes assistant content before storage.
	// Defaults to the identity function.
	AssistantFilter ContentFilter

	// Logger for eviction events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Buffer owns the ordered message history of one session and keeps it
// within the current model's token budget. Every insertion re-evaluates
// the budget and either evicts old unpinned turns or replaces them with a
// summary message.
//
// All operations are synchronous and guarded by an internal mutex, so a
// buffer may be shared across request goroutines; there is at most one
// in-flight mutation per session at a time.
type Buffer struct {
	mu           sync.Mutex
	sessionID    string
	systemPrompt string
	model        string
	messages     []Message

	estimator  Estimator
	summarizer Summarizer
	policies   *PolicyTable
	filter     ContentFilter
	logger     *zap.Logger
}

// NewBuffer creates a buffer seeded with the pinned system prompt.
func NewBuffer(cfg BufferConfig) *Buffer {
	if cfg.SessionID == "" {
		cfg.SessionID = "default"
	}
	if cfg.Estimator == nil {
		cfg.Estimator = NewEstimator()
	}
	if cfg.Policies == nil {
		cfg.Policies = NewPolicyTable()
	}
	if cfg.AssistantFilter == nil {
		cfg.AssistantFilter = func(content string) string { return content }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	b := &Buffer{
		sessionID:    cfg.SessionID,
		systemPrompt: cfg.SystemPrompt,
		estimator:    cfg.Estimator,
		policies:     cfg.Policies,
		filter:       cfg.AssistantFilter,
		logger:       cfg.Logger,
	}
	b.seedSystemPrompt()
	return b
}

// seedSystemPrompt appends the pinned persona message.
func (b *Buffer) seedSystemPrompt() {
	b.messages = append(b.messages, Message{
		Role:       RoleSystem,
		Content:    b.systemPrompt,
		CreatedAt:  time.Now().UTC(),
		TokenCount: b.estimator.Estimate(b.systemPrompt),
		Pinned:     true,
	})
}

// SessionID returns the session identifier.
func (b *Buffer) SessionID() string {
	return b.sessionID
}

// SetModel switches the buffer to a model id, registering it in the
// policy table if unknown.
func (b *Buffer) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.model = model
	b.policies.Get(model)
}

// Model returns the current model id ("" when unset).
func (b *Buffer) Model() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model
}

// AddMessage estimates, stores, and returns a message, then re-enforces
// the token budget. Assistant content passes through the configured
// content filter exactly once before estimation.
//
// The only error condition is a degenerate model policy (ErrInvalidPolicy);
// a full buffer is never an error, eviction always makes room or the
// over-budget state is surfaced through Stats.
func (b *Buffer) AddMessage(role, content string, pinned bool) (Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	policy := b.policies.Get(b.model)
	if err := policy.Validate(); err != nil {
		return Message{}, err
	}

	if role == RoleAssistant {
		content = b.filter(content)
	}

	msg := Message{
		Role:       role,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
		TokenCount: b.estimator.Estimate(content),
		Pinned:     pinned,
	}
	b.messages = append(b.messages, msg)
	b.manageBudget(policy)
	return msg, nil
}

// totalTokens sums the stored token counts. Counts are fixed at insertion
// time and never recomputed.
func (b *Buffer) totalTokens() int {
	total := 0
	for _, msg := range b.messages {
		total += msg.TokenCount
	}
	return total
}

// manageBudget runs the eviction state machine once. Over the effective
// budget and past the summarization threshold, old turns are folded into a
// summary; otherwise they are simply dropped oldest-first. The pass is not
// reapplied even if a single summarize-and-evict leaves the buffer over
// budget; growth of the summary itself is bounded, and repeated passes
// could not reclaim anything more from an all-pinned buffer anyway.
func (b *Buffer) manageBudget(policy ModelPolicy) {
	budget := policy.EffectiveBudget()
	total := b.totalTokens()
	if total <= budget {
		return
	}

	threshold := int(math.Floor(float64(budget) * policy.SummaryThreshold))
	if total > threshold {
		b.summarizeAndEvict(budget)
	} else {
		b.simpleEvict(budget)
	}
}

// evictable reports whether a message may be removed by budget pressure.
func evictable(msg Message) bool {
	return !msg.Pinned && msg.Role != RoleSystem
}

// simpleEvict removes evictable messages oldest-first until the buffer
// fits the budget or nothing removable remains. Surviving messages keep
// their relative order.
func (b *Buffer) simpleEvict(budget int) {
	total := b.totalTokens()
	evicted := 0

	kept := b.messages[:0]
	for _, msg := range b.messages {
		if total > budget && evictable(msg) {
			total -= msg.TokenCount
			evicted++
			continue
		}
		kept = append(kept, msg)
	}
	b.messages = kept

	if evicted > 0 {
		b.logger.Debug("evicted messages",
			zap.String("session_id", b.sessionID),
			zap.Int("evicted", evicted),
			zap.Int("total_tokens", total))
	}
}

// summarizeAndEvict partitions the buffer into fixed messages (pinned or
// system, always retained) and movable ones, keeps the newest movable
// messages that fit the remaining budget, and folds the rest into a single
// pinned summary message. The resulting order is: fixed messages in their
// original order, then the summary, then the retained newest turns in
// chronological order. With two or fewer movable messages there is too
// little to compress and plain eviction runs instead.
func (b *Buffer) summarizeAndEvict(budget int) {
	var fixed, movable []Message
	for _, msg := range b.messages {
		if evictable(msg) {
			movable = append(movable, msg)
		} else {
			fixed = append(fixed, msg)
		}
	}

	if len(movable) <= 2 {
		b.simpleEvict(budget)
		return
	}

	fixedTokens := 0
	for _, msg := range fixed {
		fixedTokens += msg.TokenCount
	}
	target := budget - fixedTokens

	// Walk newest to oldest, greedily keeping what fits.
	var keep, toSummarize []Message
	keptTokens := 0
	for i := len(movable) - 1; i >= 0; i-- {
		msg := movable[i]
		if keptTokens+msg.TokenCount <= target {
			keep = append([]Message{msg}, keep...)
			keptTokens += msg.TokenCount
		} else {
			toSummarize = append([]Message{msg}, toSummarize...)
		}
	}

	if len(toSummarize) == 0 {
		return
	}

	digest := b.summarizer.Summarize(toSummarize)
	summary := Message{
		Role:       RoleSystem,
		Content:    summaryPrefix + digest,
		CreatedAt:  time.Now().UTC(),
		TokenCount: b.estimator.Estimate(digest),
		Pinned:     true,
		IsSummary:  true,
	}

	b.messages = make([]Message, 0, len(fixed)+1+len(keep))
	b.messages = append(b.messages, fixed...)
	b.messages = append(b.messages, summary)
	b.messages = append(b.messages, keep...)

	b.logger.Debug("summarized conversation",
		zap.String("session_id", b.sessionID),
		zap.Int("summarized", len(toSummarize)),
		zap.Int("kept", len(keep)),
		zap.Int("total_tokens", b.totalTokens()))
}

// ConversationBuffer projects the history into the shape handed to a
// chat-completion API. Calling it twice without an intervening mutation
// yields identical output.
func (b *Buffer) ConversationBuffer() []APIMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]APIMessage, 0, len(b.messages))
	for _, msg := range b.messages {
		out = append(out, APIMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			IsSummary: msg.IsSummary,
		})
	}
	return out
}

// Messages returns a copy of the full internal history.
func (b *Buffer) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Stats reports buffer occupancy against the current model's window.
// A utilization above 100% means eviction could not reclaim enough because
// everything left is pinned; that state is accepted, not an error.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	policy := b.policies.Get(b.model)
	total := b.totalTokens()

	pinned, summaries := 0, 0
	for _, msg := range b.messages {
		if msg.Pinned {
			pinned++
		}
		if msg.IsSummary {
			summaries++
		}
	}

	utilization := 0.0
	if policy.MaxTokens > 0 {
		utilization = math.Round(float64(total)/float64(policy.MaxTokens)*100*100) / 100
	}

	return Stats{
		SessionID:          b.sessionID,
		Model:              b.model,
		MessageCount:       len(b.messages),
		TotalTokens:        total,
		MaxTokens:          policy.MaxTokens,
		UtilizationPercent: utilization,
		PinnedCount:        pinned,
		SummaryCount:       summaries,
	}
}

// Clear resets the conversation. With keepSystemPrompt it retains only
// pinned system messages; otherwise it wipes everything and re-seeds the
// mandatory persona prompt.
func (b *Buffer) Clear(keepSystemPrompt bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if keepSystemPrompt {
		kept := b.messages[:0]
		for _, msg := range b.messages {
			if msg.Pinned && msg.Role == RoleSystem {
				kept = append(kept, msg)
			}
		}
		b.messages = kept
		return
	}

	b.messages = nil
	b.seedSystemPrompt()
}
