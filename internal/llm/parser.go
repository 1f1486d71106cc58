package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// OutputParser extracts structured data from model response text. Providers
// without native tool-call support emit tool calls inline as JSON; this
// parser recovers them.
type OutputParser struct {
	toolCallPatterns []*regexp.Regexp
	jsonPattern      *regexp.Regexp
}

// NewOutputParser creates a parser with patterns for common tool call formats.
func NewOutputParser() *OutputParser {
	return &OutputParser{
		toolCallPatterns: []*regexp.Regexp{
			// JSON array format: [{"name": "tool", "arguments": {...}}]
			regexp.MustCompile(`\[\s*\{\s*"name"\s*:\s*"([^"]+)"\s*,\s*"arguments"\s*:\s*(\{.*?\})\s*\}\s*\]`),
			// Object format: {"tool": "name", "arguments": {...}}
			regexp.MustCompile(`\{\s*"tool"\s*:\s*"([^"]+)"\s*,\s*"arguments"\s*:\s*(\{.*?\})\s*\}`),
		},
		jsonPattern: regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`),
	}
}

// ParseToolCalls extracts tool calls from a model response text.
func (p *OutputParser) ParseToolCalls(text string) []ToolCall {
	var calls []ToolCall

	for _, pattern := range p.toolCallPatterns {
		matches := pattern.FindAllStringSubmatch(text, -1)
		for _, match := range matches {
			if len(match) < 3 {
				continue
			}

			name := strings.TrimSpace(match[1])
			argsStr := fixJSON(strings.TrimSpace(match[2]))

			args := map[string]any{}
			if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
				continue
			}

			calls = append(calls, ToolCall{Name: name, Arguments: args})
		}
		if len(calls) > 0 {
			break
		}
	}

	return calls
}

// ParseJSONObject extracts the first JSON object or array embedded in text.
func (p *OutputParser) ParseJSONObject(text string) (json.RawMessage, error) {
	match := p.jsonPattern.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	cleaned := fixJSON(match)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("invalid JSON in response")
	}

	return json.RawMessage(cleaned), nil
}

// fixJSON repairs the formatting mistakes models make most often.
func fixJSON(jsonStr string) string {
	// Trailing commas before closing braces/brackets.
	jsonStr = regexp.MustCompile(`,\s*([}\]])`).ReplaceAllString(jsonStr, "$1")

	// Unquoted keys.
	jsonStr = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`).ReplaceAllString(jsonStr, `$1"$2":`)

	return jsonStr
}
