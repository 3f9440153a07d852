// Package metadata computes descriptive attributes of loaded file content.
package metadata

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Metadata describes a file's content.
type Metadata struct {
	Size  int64
	Lines int
	Hash  string // lowercase hex SHA-256
}

// Extract computes size, line count and hash of content. It performs no I/O.
func Extract(content []byte) Metadata {
	return Metadata{
		Size:  int64(len(content)),
		Lines: CountLines(content),
		Hash:  Hash(content),
	}
}

// CountLines counts '\n' terminated lines plus a trailing partial line.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// Hash returns the hex SHA-256 digest of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
