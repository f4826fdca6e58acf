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
	"time"
)

// ErrMalformedState reports an import payload that cannot be restored:
// missing fields, unknown roles, or unparseable timestamps. A failed
// import leaves the in-memory conversation untouched.
var ErrMalformedState = errors.New("malformed conversation state")

// ExportedMessage is the serialized form of a Message. Timestamps travel
// as RFC 3339 text so exports are readable and portable.
type ExportedMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
	TokenCount int    `json:"token_count"`
	Pinned     bool   `json:"pinned"`
	IsSummary  bool   `json:"is_summary"`
}

// ExportedConversation is the full serializable state of a session.
type ExportedConversation struct {
	SessionID string            `json:"session_id"`
	Model     string            `json:"model,omitempty"`
	Messages  []ExportedMessage `json:"messages"`
	Stats     Stats             `json:"stats"`
}

// Export snapshots the full conversation state for persistence or
// debugging.
func (b *Buffer) Export() ExportedConversation {
	stats := b.Stats()

	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := make([]ExportedMessage, 0, len(b.messages))
	for _, msg := range b.messages {
		msgs = append(msgs, ExportedMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt.UTC().Format(time.RFC3339Nano),
			TokenCount: msg.TokenCount,
			Pinned:     msg.Pinned,
			IsSummary:  msg.IsSummary,
		})
	}

	return ExportedConversation{
		SessionID: b.sessionID,
		Model:     b.model,
		Messages:  msgs,
		Stats:     stats,
	}
}

// Import replaces the conversation with previously exported state. The
// whole payload is validated before anything is touched; on error the
// buffer keeps its current state.
func (b *Buffer) Import(state ExportedConversation) error {
	restored := make([]Message, 0, len(state.Messages))
	for i, msg := range state.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		case "":
			return fmt.Errorf("%w: message %d: missing role", ErrMalformedState, i)
		default:
			return fmt.Errorf("%w: message %d: unknown role %q", ErrMalformedState, i, msg.Role)
		}
		if msg.CreatedAt == "" {
			return fmt.Errorf("%w: message %d: missing created_at", ErrMalformedState, i)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: message %d: bad created_at %q: %v", ErrMalformedState, i, msg.CreatedAt, err)
		}
		if msg.TokenCount < 0 {
			return fmt.Errorf("%w: message %d: negative token_count", ErrMalformedState, i)
		}

		restored = append(restored, Message{
			Role:       msg.Role,
			Content:    msg.Content,
			CreatedAt:  createdAt,
			TokenCount: msg.TokenCount,
			Pinned:     msg.Pinned,
			IsSummary:  msg.IsSummary,
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if state.SessionID != "" {
		b.sessionID = state.SessionID
	}
	b.model = state.Model
	b.messages = restored
	return nil
}
