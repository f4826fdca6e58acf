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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// charEstimator counts one token per byte, making budget arithmetic exact
// in tests.
type charEstimator struct{}

func (charEstimator) Estimate(text string) int { return len(text) }

func (charEstimator) EstimateMessage(text string) int { return len(text) + messageOverheadTokens }

// testBuffer builds a buffer with a char-exact estimator and a custom
// policy registered under model id "test/model".
func testBuffer(t *testing.T, systemPrompt string, policy ModelPolicy) *Buffer {
	t.Helper()

	table := NewPolicyTable()
	table.Set("test/model", policy)

	buf := NewBuffer(BufferConfig{
		SessionID:    "test-session",
		SystemPrompt: systemPrompt,
		Estimator:    charEstimator{},
		Policies:     table,
	})
	buf.SetModel("test/model")
	return buf
}

func TestNewBuffer_SeedsPinnedSystemPrompt(t *testing.T) {
	buf := NewBuffer(BufferConfig{SystemPrompt: "you are helpful"})

	msgs := buf.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "you are helpful", msgs[0].Content)
	assert.True(t, msgs[0].Pinned)
	assert.False(t, msgs[0].IsSummary)
}

func TestAddMessage_TokenCountFixedAtInsertion(t *testing.T) {
	buf := testBuffer(t, "sys", NewModelPolicy("Test", 32000))

	msg, err := buf.AddMessage(RoleUser, "hello world", false)
	require.NoError(t, err)
	assert.Equal(t, len("hello world"), msg.TokenCount)
	assert.False(t, msg.CreatedAt.IsZero())

	stored := buf.Messages()
	assert.Equal(t, msg.TokenCount, stored[len(stored)-1].TokenCount)
}

func TestAddMessage_DegeneratePolicy(t *testing.T) {
	policy := ModelPolicy{DisplayName: "Bad", MaxTokens: 500, ReserveTokens: 1000, SummaryThreshold: 0.7}
	buf := testBuffer(t, "sys", policy)

	before := len(buf.Messages())
	_, err := buf.AddMessage(RoleUser, "hello", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	assert.Len(t, buf.Messages(), before, "failed insert must not mutate the buffer")
}

func TestConversationBuffer_Idempotent(t *testing.T) {
	buf := testBuffer(t, "sys", NewModelPolicy("Test", 32000))
	_, err := buf.AddMessage(RoleUser, "question", false)
	require.NoError(t, err)
	_, err = buf.AddMessage(RoleAssistant, "answer", false)
	require.NoError(t, err)

	first := buf.ConversationBuffer()
	second := buf.ConversationBuffer()
	assert.Equal(t, first, second)
}

func TestConversationBuffer_Projection(t *testing.T) {
	buf := testBuffer(t, "persona", NewModelPolicy("Test", 32000))
	_, err := buf.AddMessage(RoleUser, "hi", false)
	require.NoError(t, err)

	got := buf.ConversationBuffer()
	require.Len(t, got, 2)
	assert.Equal(t, APIMessage{Role: RoleSystem, Content: "persona"}, got[0])
	assert.Equal(t, APIMessage{Role: RoleUser, Content: "hi"}, got[1])
}

// Exactly at budget nothing happens; one message more triggers
// summarize-and-evict because any over-budget total also exceeds the
// threshold fraction of the budget.
func TestManageBudget_SummarizeAndEvict(t *testing.T) {
	policy := ModelPolicy{DisplayName: "Test", MaxTokens: 1000, ReserveTokens: 100, SummaryThreshold: 0.7}
	buf := testBuffer(t, strings.Repeat("s", 50), policy)

	// 10 messages of 85 tokens on top of the 50-token system prompt:
	// total 900 == effective budget, so no action.
	for i := 0; i < 10; i++ {
		content := fmt.Sprintf("%-85s", fmt.Sprintf("message number %02d", i))
		_, err := buf.AddMessage(RoleUser, content, false)
		require.NoError(t, err)
	}
	require.Len(t, buf.Messages(), 11)
	require.Equal(t, 900, buf.Stats().TotalTokens)

	// One more 50-token message pushes total to 950 > 900, which is also
	// above the threshold (630): summarize-and-evict runs.
	_, err := buf.AddMessage(RoleUser, strings.Repeat("x", 50), false)
	require.NoError(t, err)

	msgs := buf.Messages()
	require.GreaterOrEqual(t, len(msgs), 3)

	// kept_fixed first: the pinned system prompt.
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.True(t, msgs[0].Pinned)
	assert.False(t, msgs[0].IsSummary)

	// Then exactly one summary message.
	summary := msgs[1]
	assert.True(t, summary.IsSummary)
	assert.True(t, summary.Pinned)
	assert.Equal(t, RoleSystem, summary.Role)
	assert.True(t, strings.HasPrefix(summary.Content, "[CONVERSATION SUMMARY] "))

	summaryCount := 0
	for _, msg := range msgs {
		if msg.IsSummary {
			summaryCount++
		}
	}
	assert.Equal(t, 1, summaryCount)

	// Then the retained newest subset in chronological order, fitting the
	// budget that remains after the fixed messages.
	keptTokens := 0
	for i := 2; i < len(msgs); i++ {
		assert.False(t, msgs[i].Pinned)
		keptTokens += msgs[i].TokenCount
		if i > 2 {
			assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
	assert.LessOrEqual(t, keptTokens, 900-50)

	// The newest message always survives.
	assert.Equal(t, strings.Repeat("x", 50), msgs[len(msgs)-1].Content)
}

// With two or fewer movable messages there is too little to compress, so
// the over-budget pass falls back to plain oldest-first eviction.
func TestManageBudget_SimpleEvictionFallback(t *testing.T) {
	policy := ModelPolicy{DisplayName: "Test", MaxTokens: 170, ReserveTokens: 50, SummaryThreshold: 0.7}
	buf := testBuffer(t, strings.Repeat("s", 10), policy)

	_, err := buf.AddMessage(RoleUser, strings.Repeat("a", 60), false)
	require.NoError(t, err)
	// 10 + 60 = 70 <= 120: still idle.
	require.Len(t, buf.Messages(), 2)

	_, err = buf.AddMessage(RoleUser, strings.Repeat("b", 60), false)
	require.NoError(t, err)

	// 130 > 120 with only two movable messages: the oldest one is dropped.
	msgs := buf.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, strings.Repeat("b", 60), msgs[1].Content)

	for _, msg := range msgs {
		assert.False(t, msg.IsSummary, "simple eviction must not synthesize a summary")
	}
}

func TestManageBudget_EvictionPreservesOrder(t *testing.T) {
	policy := ModelPolicy{DisplayName: "Test", MaxTokens: 1050, ReserveTokens: 50, SummaryThreshold: 0.7}
	buf := testBuffer(t, "", policy)

	var contents []string
	for i := 0; i < 12; i++ {
		content := fmt.Sprintf("%-100s", fmt.Sprintf("turn %02d", i))
		contents = append(contents, content)
		_, err := buf.AddMessage(RoleUser, content, false)
		require.NoError(t, err)
	}

	// Survivors must be a suffix of the original order.
	msgs := buf.Messages()
	var survivors []string
	for _, msg := range msgs {
		if !msg.Pinned && msg.Role != RoleSystem {
			survivors = append(survivors, msg.Content)
		}
	}
	require.NotEmpty(t, survivors)
	assert.Equal(t, contents[len(contents)-len(survivors):], survivors)
}

// Pinned and system messages are never removed by budget pressure, even
// when that leaves the buffer permanently over budget. The state is
// surfaced through stats, not as an error.
func TestManageBudget_AllPinnedAcceptedOverBudget(t *testing.T) {
	policy := ModelPolicy{DisplayName: "Test", MaxTokens: 100, ReserveTokens: 50, SummaryThreshold: 0.7}
	buf := testBuffer(t, "", policy)

	_, err := buf.AddMessage(RoleUser, strings.Repeat("a", 80), true)
	require.NoError(t, err)
	_, err = buf.AddMessage(RoleUser, strings.Repeat("b", 60), true)
	require.NoError(t, err)

	msgs := buf.Messages()
	require.Len(t, msgs, 3)

	stats := buf.Stats()
	assert.Equal(t, 140, stats.TotalTokens)
	assert.Greater(t, stats.UtilizationPercent, 100.0)
}

// The eviction pass runs once per insertion. When the kept subset plus the
// synthesized summary still exceed the budget, the pass does not re-loop;
// the overshoot is visible in stats and corrected on later insertions.
func TestManageBudget_SinglePass(t *testing.T) {
	policy := ModelPolicy{DisplayName: "Test", MaxTokens: 1000, ReserveTokens: 100, SummaryThreshold: 0.7}
	buf := testBuffer(t, strings.Repeat("s", 50), policy)

	for i := 0; i < 10; i++ {
		content := fmt.Sprintf("%-85s", fmt.Sprintf("message number %02d", i))
		_, err := buf.AddMessage(RoleUser, content, false)
		require.NoError(t, err)
	}
	_, err := buf.AddMessage(RoleUser, strings.Repeat("x", 50), false)
	require.NoError(t, err)

	// One message was summarized; the digest itself costs more than the
	// single evicted 85-token message freed, so the post-pass total may
	// exceed the 900-token budget. Exactly one summary exists: the pass
	// did not recurse.
	stats := buf.Stats()
	assert.Equal(t, 1, stats.SummaryCount)
	assert.Equal(t, 962, stats.TotalTokens)
}

func TestAssistantFilter_AppliedOnceBeforeEstimation(t *testing.T) {
	table := NewPolicyTable()
	calls := 0
	buf := NewBuffer(BufferConfig{
		SystemPrompt: "sys",
		Estimator:    charEstimator{},
		Policies:     table,
		AssistantFilter: func(content string) string {
			calls++
			return strings.ReplaceAll(content, "*", "")
		},
	})

	msg, err := buf.AddMessage(RoleAssistant, "**bold** text", false)
	require.NoError(t, err)
	assert.Equal(t, "bold text", msg.Content)
	assert.Equal(t, len("bold text"), msg.TokenCount, "estimation must see filtered content")
	assert.Equal(t, 1, calls)

	// User content is stored verbatim.
	msg, err = buf.AddMessage(RoleUser, "**bold** text", false)
	require.NoError(t, err)
	assert.Equal(t, "**bold** text", msg.Content)
	assert.Equal(t, 1, calls)
}

func TestClear_KeepSystemPrompt(t *testing.T) {
	buf := testBuffer(t, "persona", NewModelPolicy("Test", 32000))

	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		_, err := buf.AddMessage(role, fmt.Sprintf("turn %d", i), false)
		require.NoError(t, err)
	}
	require.Len(t, buf.Messages(), 6)

	buf.Clear(true)

	msgs := buf.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "persona", msgs[0].Content)
	assert.Equal(t, 0, buf.Stats().SummaryCount)
}

func TestClear_WipeReseedsSystemPrompt(t *testing.T) {
	buf := testBuffer(t, "persona", NewModelPolicy("Test", 32000))
	_, err := buf.AddMessage(RoleUser, "hello", true)
	require.NoError(t, err)

	buf.Clear(false)

	msgs := buf.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "persona", msgs[0].Content)
	assert.True(t, msgs[0].Pinned)
}

func TestStats(t *testing.T) {
	buf := testBuffer(t, strings.Repeat("s", 20), NewModelPolicy("Test", 32000))
	_, err := buf.AddMessage(RoleUser, strings.Repeat("u", 30), false)
	require.NoError(t, err)

	stats := buf.Stats()
	assert.Equal(t, "test-session", stats.SessionID)
	assert.Equal(t, "test/model", stats.Model)
	assert.Equal(t, 2, stats.MessageCount)
	assert.Equal(t, 50, stats.TotalTokens)
	assert.Equal(t, 32000, stats.MaxTokens)
	assert.InDelta(t, 0.16, stats.UtilizationPercent, 0.001)
	assert.Equal(t, 1, stats.PinnedCount)
	assert.Equal(t, 0, stats.SummaryCount)
}
