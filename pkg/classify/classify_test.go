package classify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		rel      string
		content  []byte
		class    Class
		language string
	}{
		{"go source", "cmd/main.go", []byte("package main\n"), Text, "go"},
		{"plain text", "a.txt", []byte("hello\n"), Text, "text"},
		{"special filename", "build/Dockerfile", []byte("FROM scratch\n"), Text, "dockerfile"},
		{"uppercase extension", "README.MD", []byte("# hi\n"), Text, "markdown"},
		{"unknown extension", "data.xyz", []byte("payload"), Text, LanguageUnknown},
		{"no extension", "notes", []byte("payload"), Text, LanguageUnknown},
		{"empty file", "empty.go", nil, Text, "go"},
		{"null byte", "b.bin", []byte{'a', 0, 'b'}, Binary, LanguageBinary},
		{"invalid utf8", "latin1.txt", []byte{'c', 'a', 'f', 0xe9}, Binary, LanguageBinary},
		{"utf8 text", "i18n.txt", []byte("héllo wörld ✓\n"), Text, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.rel, tt.content)
			assert.Equal(t, tt.class, got.Class)
			assert.Equal(t, tt.language, got.Language)
		})
	}
}

func TestIsBinaryOnlySniffsPrefixForNullBytes(t *testing.T) {
	content := append(bytes.Repeat([]byte("a"), SniffLen), 0)
	assert.False(t, IsBinary(content))

	content = append(bytes.Repeat([]byte("a"), SniffLen-1), 0)
	assert.True(t, IsBinary(content))
}

func TestGuessLanguage(t *testing.T) {
	assert.Equal(t, LanguageBinary, GuessLanguage("assets/logo.PNG"))
	assert.Equal(t, "go", GuessLanguage("main.go"))
	assert.Equal(t, LanguageUnknown, GuessLanguage("blob"))
}
