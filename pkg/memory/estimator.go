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
	"strings"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// messageOverheadTokens accounts for role and structure framing when a
// message is serialized for transmission.
const messageOverheadTokens = 10

// Estimator converts text into a token estimate. Implementations must be
// deterministic: the same input always yields the same count.
type Estimator interface {
	// Estimate returns the token estimate for text. Empty text returns 0.
	Estimate(text string) int

	// EstimateMessage returns the token estimate for a message carrying
	// text, including the fixed per-message framing overhead.
	EstimateMessage(text string) int
}

// NewEstimator returns the best available estimator: tiktoken with
// cl100k_base encoding when the encoding loads, otherwise the
// deterministic word-count heuristic. The choice is made once here; call
// sites never need to probe for tokenizer availability.
func NewEstimator() Estimator {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return HeuristicEstimator{}
	}
	return &tiktokenEstimator{encoder: enc}
}

// tiktokenEstimator counts tokens with a tiktoken encoding.
type tiktokenEstimator struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

func (e *tiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.encoder.Encode(text, nil, nil))
}

func (e *tiktokenEstimator) EstimateMessage(text string) int {
	return e.Estimate(text) + messageOverheadTokens
}

// HeuristicEstimator approximates token counts without a tokenizer model.
// It is a pure function of the input text: roughly 1.3 tokens per
// whitespace-separated word, plus a correction for punctuation-dense text
// (one extra token per three symbol characters). Non-empty text never
// estimates below 1.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}

	words := len(strings.Fields(text))
	estimate := int(math.Round(float64(words) * 1.3))

	symbols := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}
	estimate += symbols / 3

	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func (h HeuristicEstimator) EstimateMessage(text string) int {
	return h.Estimate(text) + messageOverheadTokens
}
