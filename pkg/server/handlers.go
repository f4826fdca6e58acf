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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/chatlog"
	llmtypes "github.com/teradata-labs/bobbin/pkg/llm/types"
	"github.com/teradata-labs/bobbin/pkg/memory"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

type chatResponse struct {
	Response          string       `json:"response"`
	Model             string       `json:"model"`
	ConversationStats memory.Stats `json:"conversation_stats"`
}

type clearRequest struct {
	KeepSystemPrompt *bool `json:"keep_system_prompt"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}

	if !s.registry.Policies().Known(req.Model) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Unsupported model",
			"allowed": s.registry.Policies().Models(),
		})
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}

	if _, err := s.registry.AddMessage(req.SessionID, req.Model, memory.RoleUser, req.Message, false); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conversation := s.registry.ConversationBuffer(req.SessionID)

	apiMessages := make([]llmtypes.Message, 0, len(conversation))
	for _, msg := range conversation {
		apiMessages = append(apiMessages, llmtypes.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	provider, err := s.providers.CreateProvider(req.Model)
	if err != nil {
		s.logChat(req, conversation, "", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := provider.Chat(r.Context(), apiMessages)
	if err != nil {
		s.logChat(req, conversation, "", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	botMessage := resp.Content
	if botMessage == "" {
		botMessage = "Empty response"
	}

	if _, err := s.registry.AddMessage(req.SessionID, req.Model, memory.RoleAssistant, botMessage, false); err != nil {
		s.logChat(req, conversation, "", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logChat(req, conversation, botMessage, nil)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:          botMessage,
		Model:             req.Model,
		ConversationStats: s.registry.ConversationStats(req.SessionID),
	})
}

// logChat records one chat round trip in the audit log. Failures are
// logged and swallowed so a broken audit store never fails a request.
func (s *Server) logChat(req chatRequest, conversation []memory.APIMessage, response string, chatErr error) {
	if s.chatLog == nil {
		return
	}

	entry := chatlog.Entry{
		SessionID:  req.SessionID,
		Model:      req.Model,
		UserPrompt: req.Message,
		Response:   response,
		Status:     "success",
	}
	if chatErr != nil {
		entry.Response = fmt.Sprintf("Error: %v", chatErr)
		entry.Status = "error"
	}

	for _, msg := range conversation {
		entry.Context = append(entry.Context, chatlog.ContextMessage{
			Role:           msg.Role,
			ContentPreview: chatlog.Preview(msg.Content),
			ContentLength:  len(msg.Content),
			IsSummary:      msg.IsSummary,
		})
	}

	if err := s.chatLog.Append(entry); err != nil {
		s.logger.Warn("Failed to write chat log entry", zap.Error(err))
	}
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	writeJSON(w, http.StatusOK, s.registry.ConversationStats(sessionID))
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	keepSystemPrompt := true
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.KeepSystemPrompt != nil {
		keepSystemPrompt = *req.KeepSystemPrompt
	}

	s.registry.ClearConversation(sessionID, keepSystemPrompt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	writeJSON(w, http.StatusOK, s.registry.ExportConversation(sessionID))
}

func (s *Server) handleSessionImport(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var state memory.ExportedConversation
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := s.registry.ImportConversation(sessionID, state); err != nil {
		if errors.Is(err, memory.ErrMalformedState) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "imported"})
}

// verifyAPIKey checks the export key on the log endpoints. The key may
// come from the X-API-KEY header or the "key" query parameter.
func (s *Server) verifyAPIKey(r *http.Request) bool {
	if s.config.ExportKey == "" {
		return false
	}
	key := r.Header.Get("X-API-KEY")
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	return key == s.config.ExportKey
}

func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	if !s.verifyAPIKey(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if s.chatLog == nil {
		writeError(w, http.StatusNotFound, "No logs found")
		return
	}

	count, err := s.chatLog.Count()
	if err != nil {
		s.logger.Error("Failed to count chat log entries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to export logs")
		return
	}
	if count == 0 {
		writeError(w, http.StatusNotFound, "No logs found")
		return
	}

	report, err := s.chatLog.ExportText()
	if err != nil {
		s.logger.Error("Failed to export chat logs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to export logs")
		return
	}

	filename := fmt.Sprintf("chat_report_%s.txt", time.Now().UTC().Format("20060102_1504"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write([]byte(report))
}

func (s *Server) handleCleanupLogs(w http.ResponseWriter, r *http.Request) {
	if !s.verifyAPIKey(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if s.chatLog == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}

	if err := s.chatLog.Clear(); err != nil {
		s.logger.Error("Failed to clear chat logs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to cleanup logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
