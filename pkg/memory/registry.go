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
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// RegistryConfig configures a session registry.
type RegistryConfig struct {
	// SystemPrompt is the persona prompt seeded into every new session.
	SystemPrompt string

	// Estimator shared by all sessions. Defaults to NewEstimator().
	Estimator Estimator

	// Policies shared by all sessions. Defaults to a fresh table.
	Policies *PolicyTable

	// AssistantFilter applied to assistant content in every session.
	AssistantFilter ContentFilter

	// Logger for registry and buffer events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Registry owns the mapping from session id to conversation buffer and is
// the sole authority for session lifecycle. It is an explicitly
// constructed object passed by handle into the request-handling layer;
// there is no process-wide instance.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Buffer
	cfg      RegistryConfig
}

// NewRegistry creates an empty session registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Estimator == nil {
		cfg.Estimator = NewEstimator()
	}
	if cfg.Policies == nil {
		cfg.Policies = NewPolicyTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Buffer),
		cfg:      cfg,
	}
}

// Policies returns the policy table shared across sessions.
func (r *Registry) Policies() *PolicyTable {
	return r.cfg.Policies
}

// GetOrCreate resolves a session id to its buffer, lazily constructing one
// seeded with the persona system prompt. An empty id maps to "default".
func (r *Registry) GetOrCreate(sessionID string) *Buffer {
	if sessionID == "" {
		sessionID = "default"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if buf, ok := r.sessions[sessionID]; ok {
		return buf
	}

	buf := NewBuffer(BufferConfig{
		SessionID:       sessionID,
		SystemPrompt:    r.cfg.SystemPrompt,
		Estimator:       r.cfg.Estimator,
		Policies:        r.cfg.Policies,
		AssistantFilter: r.cfg.AssistantFilter,
		Logger:          r.cfg.Logger,
	})
	r.sessions[sessionID] = buf
	r.cfg.Logger.Debug("created session", zap.String("session_id", sessionID))
	return buf
}

// Get returns an existing session's buffer.
func (r *Registry) Get(sessionID string) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.sessions[sessionID]
	return buf, ok
}

// Delete removes a session.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// SessionIDs returns the live session ids, sorted.
func (r *Registry) SessionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sortedIDsLocked()
}

func (r *Registry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CleanupOldSessions bounds total memory: when more than maxSessions are
// live, the sessions with the lexicographically smallest ids are deleted
// until the count is back at the cap. Returns the number evicted.
//
// Smallest-id-first is a proxy for "oldest" that holds only for sortable,
// monotonically increasing ids; callers wanting true LRU must use ids that
// sort by creation time.
func (r *Registry) CleanupOldSessions(maxSessions int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	excess := len(r.sessions) - maxSessions
	if excess <= 0 {
		return 0
	}

	ids := r.sortedIDsLocked()
	for _, id := range ids[:excess] {
		delete(r.sessions, id)
	}
	r.cfg.Logger.Info("evicted old sessions",
		zap.Int("evicted", excess),
		zap.Int("remaining", len(r.sessions)))
	return excess
}

// AddMessage appends a message to a session under a model id, creating the
// session as needed. This is the primary entry point for the
// request-handling layer.
func (r *Registry) AddMessage(sessionID, model, role, content string, pinned bool) (Message, error) {
	buf := r.GetOrCreate(sessionID)
	if model != "" {
		buf.SetModel(model)
	}
	msg, err := buf.AddMessage(role, content, pinned)
	if err != nil {
		return Message{}, fmt.Errorf("session %s: %w", buf.SessionID(), err)
	}
	return msg, nil
}

// ConversationBuffer returns the transmission-ready message list for a
// session.
func (r *Registry) ConversationBuffer(sessionID string) []APIMessage {
	return r.GetOrCreate(sessionID).ConversationBuffer()
}

// ConversationStats returns buffer statistics for a session.
func (r *Registry) ConversationStats(sessionID string) Stats {
	return r.GetOrCreate(sessionID).Stats()
}

// ClearConversation resets a session's history.
func (r *Registry) ClearConversation(sessionID string, keepSystemPrompt bool) {
	r.GetOrCreate(sessionID).Clear(keepSystemPrompt)
}

// ExportConversation snapshots a session's full state.
func (r *Registry) ExportConversation(sessionID string) ExportedConversation {
	return r.GetOrCreate(sessionID).Export()
}

// ImportConversation restores a session from exported state.
func (r *Registry) ImportConversation(sessionID string, state ExportedConversation) error {
	return r.GetOrCreate(sessionID).Import(state)
}
