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

// Package chatlog persists per-request chat audit records in SQLite.
// Each record captures the session, model, user prompt, assistant
// response, and a truncated preview of the conversation context that
// was sent upstream.
package chatlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/teradata-labs/bobbin/internal/sqlitedriver"
)

const previewLength = 100

// Entry is one chat request audit record.
type Entry struct {
	Timestamp  time.Time
	SessionID  string
	Model      string
	UserPrompt string
	Response   string
	Status     string // "success" or "error"
	Context    []ContextMessage
}

// ContextMessage is a truncated view of one message in the upstream
// request context.
type ContextMessage struct {
	Role           string `json:"role"`
	ContentPreview string `json:"content_preview"`
	ContentLength  int    `json:"content_length"`
	IsSummary      bool   `json:"is_summary"`
}

// Preview truncates content for context logging. Full message bodies
// never land in the audit log.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

// Store is a SQLite-backed chat log.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore opens (or creates) the chat log database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers during request logging
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 10000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	createSQL := `
		CREATE TABLE IF NOT EXISTS chat_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			session_id TEXT NOT NULL,
			model TEXT NOT NULL,
			user_prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			status TEXT NOT NULL,
			context_json TEXT NOT NULL
		)
	`
	if _, err := s.db.Exec(createSQL); err != nil {
		return err
	}

	indexSQL := `
		CREATE INDEX IF NOT EXISTS idx_chat_log_session
		ON chat_log(session_id)
	`
	_, err := s.db.Exec(indexSQL)
	return err
}

// Append writes one audit record. A zero Timestamp is filled with the
// current time.
func (s *Store) Append(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = "success"
	}

	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO chat_log (timestamp, session_id, model, user_prompt, response, status, context_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.SessionID,
		entry.Model,
		entry.UserPrompt,
		entry.Response,
		entry.Status,
		string(contextJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chat_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count log entries: %w", err)
	}
	return n, nil
}

// ExportText renders all records as a plain-text report, one block per
// request in insertion order.
func (s *Store) ExportText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT session_id, user_prompt, response FROM chat_log ORDER BY id`)
	if err != nil {
		return "", fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var sessionID, userPrompt, response string
		if err := rows.Scan(&sessionID, &userPrompt, &response); err != nil {
			return "", fmt.Errorf("failed to scan log entry: %w", err)
		}

		b.WriteString("Session: " + sessionID + "\n")
		if userPrompt != "" {
			b.WriteString("User: " + userPrompt + "\n")
		}
		if response != "" {
			b.WriteString("AI: " + response + "\n")
		}
		b.WriteString("\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to iterate log entries: %w", err)
	}

	return b.String(), nil
}

// Clear deletes all records.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM chat_log`); err != nil {
		return fmt.Errorf("failed to clear log: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
