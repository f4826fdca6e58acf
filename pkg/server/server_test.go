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
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/bobbin/pkg/chatlog"
	llmtypes "github.com/teradata-labs/bobbin/pkg/llm/types"
	"github.com/teradata-labs/bobbin/pkg/memory"
)

// fakeProvider echoes a canned reply and records the messages it was sent.
type fakeProvider struct {
	model    string
	reply    string
	err      error
	lastSent []llmtypes.Message
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return p.model }

func (p *fakeProvider) Chat(ctx context.Context, messages []llmtypes.Message) (*llmtypes.Response, error) {
	p.lastSent = messages
	if p.err != nil {
		return nil, p.err
	}
	return &llmtypes.Response{Content: p.reply, StopReason: "end_turn"}, nil
}

type fakeProviderSource struct {
	provider *fakeProvider
}

func (f *fakeProviderSource) CreateProvider(model string) (llmtypes.Provider, error) {
	f.provider.model = model
	return f.provider, nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	provider *fakeProvider
	registry *memory.Registry
	chatLog  *chatlog.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry := memory.NewRegistry(memory.RegistryConfig{
		SystemPrompt: "You are a helpful assistant.",
	})

	store, err := chatlog.NewStore(filepath.Join(t.TempDir(), "chatlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := &fakeProvider{reply: "Hello from the model."}
	srv := New(Config{
		ExportKey: "secret-key",
		CORS:      DefaultCORSConfig(),
	}, registry, &fakeProviderSource{provider: provider}, store, nil)

	return &testEnv{
		server:   srv,
		handler:  srv.Handler(),
		provider: provider,
		registry: registry,
		chatLog:  store,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/chat", map[string]string{
		"message":    "What is Go?",
		"session_id": "s1",
		"model":      "meta/llama-4-maverick-17b-128e-instruct",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello from the model.", resp.Response)
	assert.Equal(t, "meta/llama-4-maverick-17b-128e-instruct", resp.Model)
	assert.Equal(t, "s1", resp.ConversationStats.SessionID)
	// system prompt + user turn + assistant turn
	assert.Equal(t, 3, resp.ConversationStats.MessageCount)

	// The provider saw the system prompt and the user message, but not
	// the assistant reply that had not happened yet.
	require.Len(t, env.provider.lastSent, 2)
	assert.Equal(t, "system", env.provider.lastSent[0].Role)
	assert.Equal(t, "What is Go?", env.provider.lastSent[1].Content)

	// The round trip landed in the audit log.
	n, err := env.chatLog.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChatDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/chat", map[string]string{"message": "hi"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, DefaultModel, resp.Model)
	assert.Equal(t, "default", resp.ConversationStats.SessionID)
}

func TestChatUnsupportedModel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/chat", map[string]string{
		"message": "hi",
		"model":   "not/a-real-model",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error   string   `json:"error"`
		Allowed []string `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Unsupported model", resp.Error)
	assert.NotEmpty(t, resp.Allowed)
}

func TestChatNoMessage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/chat", map[string]string{
		"model": "meta/llama-4-maverick-17b-128e-instruct",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No message provided")
}

func TestChatProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = fmt.Errorf("API error 500: upstream down")

	rec := env.do(t, "POST", "/api/chat", map[string]string{"message": "hi"}, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream down")

	// The failed round trip is still audited.
	report, err := env.chatLog.ExportText()
	require.NoError(t, err)
	assert.Contains(t, report, "AI: Error:")
}

func TestChatEmptyProviderResponse(t *testing.T) {
	env := newTestEnv(t)
	env.provider.reply = ""

	rec := env.do(t, "POST", "/api/chat", map[string]string{"message": "hi"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Empty response", resp.Response)
}

func TestSessionStatsAndClear(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/api/chat", map[string]string{
		"message":    "hello",
		"session_id": "s2",
	}, nil)

	rec := env.do(t, "GET", "/api/sessions/s2/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats memory.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.MessageCount)

	rec = env.do(t, "POST", "/api/sessions/s2/clear", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/sessions/s2/stats", nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	// Default clear keeps the pinned system prompt.
	assert.Equal(t, 1, stats.MessageCount)
}

func TestSessionExportImport(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/api/chat", map[string]string{
		"message":    "remember this",
		"session_id": "src",
	}, nil)

	rec := env.do(t, "GET", "/api/sessions/src/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state memory.ExportedConversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))

	rec = env.do(t, "POST", "/api/sessions/dst/import", state, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "GET", "/api/sessions/dst/stats", nil, nil)
	var stats memory.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.MessageCount)
}

func TestSessionImportMalformed(t *testing.T) {
	env := newTestEnv(t)

	state := memory.ExportedConversation{
		SessionID: "bad",
		Messages: []memory.ExportedMessage{
			{Role: "wizard", Content: "nope", CreatedAt: "2026-08-30T00:00:00Z"},
		},
	}

	rec := env.do(t, "POST", "/api/sessions/bad/import", state, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed conversation state")
}

func TestExportLogsAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/export_logs", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "GET", "/export_logs", nil, map[string]string{"X-API-KEY": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Empty log with the right key is a 404, not an empty report.
	rec = env.do(t, "GET", "/export_logs", nil, map[string]string{"X-API-KEY": "secret-key"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportLogsReport(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/api/chat", map[string]string{
		"message":    "log me",
		"session_id": "audited",
	}, nil)

	rec := env.do(t, "GET", "/export_logs?key=secret-key", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "chat_report_")
	assert.Contains(t, rec.Body.String(), "Session: audited")
	assert.Contains(t, rec.Body.String(), "User: log me")
}

func TestCleanupLogs(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/api/chat", map[string]string{"message": "hi"}, nil)

	rec := env.do(t, "POST", "/cleanup_logs", nil, map[string]string{"X-API-KEY": "secret-key"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"cleared"}`, rec.Body.String())

	n, err := env.chatLog.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST"))
}

func TestCORSSpecificOrigin(t *testing.T) {
	registry := memory.NewRegistry(memory.RegistryConfig{})
	provider := &fakeProvider{reply: "ok"}
	srv := New(Config{
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"https://app.example.com"},
		},
	}, registry, &fakeProviderSource{provider: provider}, nil, nil)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
