package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t  ", 0},
		{"single word", "hello", 1},
		{"multiple words", "the quick brown fox", 4},
		{"extra whitespace", "  hello   world \n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WordCount(tt.content))
		})
	}
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 0, ReadingTime(0))
	assert.Equal(t, 1, ReadingTime(1))
	assert.Equal(t, 1, ReadingTime(200))
	assert.Equal(t, 2, ReadingTime(201))
	assert.Equal(t, 5, ReadingTime(1000))
}

func TestReadingTimeFromContent(t *testing.T) {
	// 400 words read in exactly 2 minutes at 200 wpm.
	content := strings.TrimSpace(strings.Repeat("word ", 400))
	assert.Equal(t, 2, ReadingTime(WordCount(content)))
}
