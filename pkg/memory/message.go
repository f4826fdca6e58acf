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

// Package memory implements token-budgeted conversation buffers for a
// multi-provider LLM chat backend. Each session owns an ordered message
// history that is trimmed on every insertion so it fits the target model's
// context window, either by evicting the oldest turns or by replacing them
// with a compact extractive summary.
package memory

import "time"

// Message roles. Only these three appear in a conversation buffer.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in the conversation.
// Messages are immutable after creation; they are only ever removed by
// eviction or an explicit clear.
type Message struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	TokenCount int       `json:"token_count"`
	Pinned     bool      `json:"pinned"`     // pinned messages are never evicted
	IsSummary  bool      `json:"is_summary"` // synthesized digest of evicted turns
}

// APIMessage is the projection of a Message handed to a chat-completion API.
// Internal bookkeeping (timestamps, token counts, pin state) is not exposed.
type APIMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	IsSummary bool   `json:"is_summary,omitempty"`
}

// Stats describes the current state of a conversation buffer.
type Stats struct {
	SessionID          string  `json:"session_id"`
	Model              string  `json:"model,omitempty"`
	MessageCount       int     `json:"message_count"`
	TotalTokens        int     `json:"total_tokens"`
	MaxTokens          int     `json:"max_tokens"`
	UtilizationPercent float64 `json:"utilization_percent"`
	PinnedCount        int     `json:"pinned_count"`
	SummaryCount       int     `json:"summary_count"`
}
