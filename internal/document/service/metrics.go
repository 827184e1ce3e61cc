package service

import "strings"

const wordsPerMinute = 200

// WordCount counts whitespace-separated words; empty or whitespace-only
// content counts zero.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// ReadingTime estimates minutes to read at 200 words per minute, rounded
// up. Zero words means zero minutes.
func ReadingTime(wordCount int) int {
	return (wordCount + wordsPerMinute - 1) / wordsPerMinute
}
