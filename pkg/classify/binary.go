// File: pkg/classify/binary.go
package classify

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// SniffLen is the prefix length scanned for null bytes.
const SniffLen = 8 << 10

// Class is the text/binary verdict for a file.
type Class int

const (
	Text Class = iota + 1
	Binary
)

func (c Class) String() string {
	if c == Binary {
		return "binary"
	}
	return "text"
}

// Result is the outcome of classifying a file.
type Result struct {
	Class    Class
	Language string // LanguageBinary for binary files
}

// Classify inspects content (the whole file or a prefix of it) and derives a
// language tag for text from rel. A null byte in the first SniffLen bytes or
// bytes that are not valid UTF-8 make the file binary.
func Classify(rel string, content []byte) Result {
	if IsBinary(content) {
		return Result{Class: Binary, Language: LanguageBinary}
	}
	return Result{Class: Text, Language: Language(rel)}
}

// IsBinary applies the null byte and UTF-8 checks to content.
func IsBinary(content []byte) bool {
	sniff := content
	if len(sniff) > SniffLen {
		sniff = sniff[:SniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return true
	}
	return !utf8.Valid(content)
}

// IsBinaryExtension reports whether rel carries a well-known binary extension.
// Used only when content was never read, e.g. for oversized files.
func IsBinaryExtension(rel string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(rel))]
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true, ".webp": true,
	".pdf": true, ".zip": true, ".gz": true, ".tgz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
	".tar": true, ".jar": true, ".war": true, ".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".a": true, ".o": true, ".obj": true, ".class": true, ".pyc": true, ".wasm": true, ".bin": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true, ".flac": true, ".ogg": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true, ".psd": true, ".sqlite": true,
	".db": true, ".lockb": true,
}
