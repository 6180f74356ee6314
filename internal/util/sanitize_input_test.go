package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"trims whitespace", "  hello  ", "hello"},
		{"strips script tags", `before<script>alert("x")</script>after`, "beforeafter"},
		{"strips script tags with attributes", `<script type="text/javascript">bad()</script>ok`, "ok"},
		{"strips html tags", "<b>bold</b> text", "bold text"},
		{"strips javascript protocol", "click javascript:alert(1)", "click alert(1)"},
		{"strips data protocol", "data:text/html;base64,xyz", "text/html;base64,xyz"},
		{"strips event handlers", `img onerror=alert(1) here`, "img alert(1) here"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeInput(tt.input))
		})
	}
}

func TestContainsSuspicious(t *testing.T) {
	assert.True(t, ContainsSuspicious("<img src=x>"))
	assert.True(t, ContainsSuspicious("SCRIPT injection"))
	assert.True(t, ContainsSuspicious("x onerror=y"))
	assert.False(t, ContainsSuspicious("a perfectly normal listing"))
}
