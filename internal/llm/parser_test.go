package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolCallsArrayFormat(t *testing.T) {
	p := NewOutputParser()

	text := `I need to search for that.
[{"name": "web_search", "arguments": {"query": "weather in tokyo"}}]`

	calls := p.ParseToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "web_search", calls[0].Name)
	assert.Equal(t, "weather in tokyo", calls[0].Arguments["query"])
}

func TestParseToolCallsObjectFormat(t *testing.T) {
	p := NewOutputParser()

	text := `{"tool": "web_search", "arguments": {"query": "golang generics"}}`

	calls := p.ParseToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "web_search", calls[0].Name)
	assert.Equal(t, "golang generics", calls[0].Arguments["query"])
}

func TestParseToolCallsNoCalls(t *testing.T) {
	p := NewOutputParser()

	assert.Empty(t, p.ParseToolCalls("Just a plain text answer with no JSON at all."))
	assert.Empty(t, p.ParseToolCalls(`{"unrelated": "json"}`))
}

func TestParseToolCallsRepairsSloppyJSON(t *testing.T) {
	p := NewOutputParser()

	// Trailing comma in arguments.
	text := `[{"name": "web_search", "arguments": {"query": "news",}}]`

	calls := p.ParseToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "news", calls[0].Arguments["query"])
}

func TestParseJSONObjectExtractsEmbedded(t *testing.T) {
	p := NewOutputParser()

	raw, err := p.ParseJSONObject(`Sure, here is the data: {"title": "hello", "count": 2} hope it helps`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "hello", "count": 2}`, string(raw))
}

func TestParseJSONObjectNoJSON(t *testing.T) {
	p := NewOutputParser()

	_, err := p.ParseJSONObject("nothing structured here")
	assert.Error(t, err)
}

func TestFixJSONQuotesBareKeys(t *testing.T) {
	fixed := fixJSON(`{title: "x", count: 1}`)
	assert.JSONEq(t, `{"title": "x", "count": 1}`, fixed)
}
