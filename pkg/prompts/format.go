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
package prompts

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats supported by CoerceFormat.
const (
	FormatMarkdown  = "markdown"
	FormatPlaintext = "plaintext"
	FormatJSON      = "json"
	FormatYAML      = "yaml"
)

// CoerceFormat applies the global formatting policy to assistant output.
// Markdown (and any unrecognized format) passes text through unchanged.
// Plaintext strips markdown markers; json and yaml wrap the text in a
// one-field response document.
func CoerceFormat(text, format string) string {
	switch format {
	case FormatPlaintext:
		return strings.Map(func(r rune) rune {
			switch r {
			case '*', '#', '`':
				return -1
			}
			return r
		}, text)

	case FormatJSON:
		out, err := json.MarshalIndent(map[string]string{"response": text}, "", "  ")
		if err != nil {
			return text
		}
		return string(out)

	case FormatYAML:
		out, err := yaml.Marshal(map[string]string{"response": text})
		if err != nil {
			return text
		}
		return strings.TrimRight(string(out), "\n")
	}

	// Default: markdown, no transformation.
	return text
}

// FormatFilter returns a function applying CoerceFormat with a fixed
// format, suitable as a conversation buffer's assistant content filter.
// Unset or markdown formats return nil so callers fall back to identity.
func FormatFilter(format string) func(string) string {
	if format == "" || format == FormatMarkdown {
		return nil
	}
	return func(text string) string {
		return CoerceFormat(text, format)
	}
}
