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
	"strings"
)

// Summarizer builds a compact extractive digest of evicted messages.
// The digest is intentionally lossy: it only needs to preserve gross
// topical continuity for a truncated context, not conversational fidelity,
// so no LLM call is involved.
type Summarizer struct{}

// Summarize digests an ordered sequence of messages into one line.
// User and assistant turns are summarized separately and joined with " | ".
// Empty input returns an empty string.
func (Summarizer) Summarize(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}

	var userTopics []string
	assistantCount := 0
	var firstAssistant string
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			userTopics = append(userTopics, truncate(msg.Content, 100))
		case RoleAssistant:
			if assistantCount == 0 {
				firstAssistant = msg.Content
			}
			assistantCount++
		}
	}

	var parts []string

	if len(userTopics) == 1 {
		parts = append(parts, "User asked: "+userTopics[0])
	} else if len(userTopics) > 1 {
		part := "User discussed: " + strings.Join(userTopics[:min(3, len(userTopics))], "; ")
		if len(userTopics) > 3 {
			part += fmt.Sprintf(" and %d other topics", len(userTopics)-3)
		}
		parts = append(parts, part)
	}

	if assistantCount == 1 {
		parts = append(parts, "Assistant responded: "+truncate(firstAssistant, 150))
	} else if assistantCount > 1 {
		parts = append(parts, fmt.Sprintf("Assistant provided %d detailed responses", assistantCount))
	}

	return strings.Join(parts, " | ")
}

// truncate cuts content to at most limit characters, appending "..." when
// anything was cut.
func truncate(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
