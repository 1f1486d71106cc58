package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateThreadID(t *testing.T) {
	valid := []string{"default", "thread-1", "user_42", "a.b.c", "ABC123"}
	for _, id := range valid {
		assert.NoError(t, ValidateThreadID(id), "id %q", id)
	}

	invalid := []string{
		"",
		strings.Repeat("x", 129),
		"has space",
		"slash/es",
		"dot-dot/../escape",
		"émoji",
	}
	for _, id := range invalid {
		assert.Error(t, ValidateThreadID(id), "id %q", id)
	}
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent(strings.Repeat("x", 100001)))
	assert.Error(t, ValidateMessageContent(string([]byte{0xff, 0xfe})))
}

func TestValidateSearchQuery(t *testing.T) {
	assert.NoError(t, ValidateSearchQuery("python"))
	assert.Error(t, ValidateSearchQuery(""))
	assert.Error(t, ValidateSearchQuery(strings.Repeat("q", 513)))
}
