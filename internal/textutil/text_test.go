package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Q3 revenue\n\twas  $4.2M ", "Q3 revenue was $4.2M"},
		{"html", "<html><head><style>p{}</style></head><body><p>Q3 <b>revenue</b></p><script>x()</script></body></html>", "Q3 revenue"},
		{"less than sign", "a < b and c > d", "a < b and c > d"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "What is...", Truncate("What is the Q3 revenue?", 10))
	assert.Equal(t, "héé", Truncate("héééé", 3))
	assert.Equal(t, "anything", Truncate("anything", 0))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "one two three...", Snippet("<p>one two three four five</p>", 3))
	assert.Equal(t, "one two", Snippet("one two", 3))
}
