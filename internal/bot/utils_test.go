package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildWordRegex(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		words    []string
		input    string
		expected string
	}{
		{name: "single word", words: []string{"hello"}, input: "hello", expected: "hello"},
		{name: "case insensitive", words: []string{"hello"}, input: "HELLO", expected: "HELLO"},
		{name: "word in the middle", words: []string{"hi"}, input: "oh hi there", expected: "hi"},
		{name: "punctuation is a boundary", words: []string{"hi"}, input: "Hi!", expected: "Hi"},
		{name: "no match inside another word", words: []string{"hi"}, input: "this and that", expected: ""},
		{name: "no match as prefix", words: []string{"hey"}, input: "heyday", expected: ""},
		{name: "longest first", words: []string{"good", "good morning"}, input: "good morning all", expected: "good morning"},
		{name: "metacharacters are quoted", words: []string{"a.b"}, input: "axb", expected: ""},
		{name: "no match", words: []string{"hello"}, input: "goodbye", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, BuildWordRegex(tt.words).FindString(tt.input))
		})
	}
}

func TestBuildWordRegex_PanicsOnEmpty(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { BuildWordRegex(nil) })
}

func TestBuildWordRegex_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	words := []string{"a", "abc", "ab"}
	BuildWordRegex(words)
	assert.Equal(t, []string{"a", "abc", "ab"}, words)
}

func TestContainsAnyFold(t *testing.T) {
	t.Parallel()
	keywords := []string{"sell", "buy", "shop"}

	tests := []struct {
		input string
		want  bool
	}{
		{"I want to sell my bike", true},
		{"I want to BUY this", true},
		{"Shopping list", true},
		{"reselling", true},
		{"nothing here", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ContainsAnyFold(tt.input, keywords))
		})
	}
}
