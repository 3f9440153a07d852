// File: pkg/flatten/format.go
package flatten

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"contxt/pkg/metadata"
)

// Block layout markers. Content is length-prefixed by the CONTENT line, so
// the terminator never has to be searched for inside file content.
const (
	blockStart   = "=== FILE ==="
	contentStart = "--- CONTENT "
	contentEnd   = " ---"
	blockEnd     = "=== END ==="
)

// ErrMalformedBlock is returned by DecodeBlocks for an unreadable document.
var ErrMalformedBlock = errors.New("malformed block")

// Block is one decoded file block.
type Block struct {
	Path     string
	Size     int64
	Lines    int
	Language string
	Hash     string
	Content  []byte
}

// encodeBlock renders rec as a self-delimiting block.
func encodeBlock(rec *FileRecord) []byte {
	var b bytes.Buffer
	b.Grow(len(rec.Content) + 192 + len(rec.Path))
	fmt.Fprintf(&b, "%s\n", blockStart)
	fmt.Fprintf(&b, "path: %s\n", strconv.Quote(rec.Path))
	fmt.Fprintf(&b, "size: %d\n", len(rec.Content))
	fmt.Fprintf(&b, "lines: %d\n", rec.Lines)
	fmt.Fprintf(&b, "language: %s\n", rec.Language)
	fmt.Fprintf(&b, "sha256: %s\n", rec.Hash)
	fmt.Fprintf(&b, "%s%d%s\n", contentStart, len(rec.Content), contentEnd)
	b.Write(rec.Content)
	fmt.Fprintf(&b, "\n%s\n", blockEnd)
	return b.Bytes()
}

// DecodeBlocks parses a document produced by the aggregator and verifies
// each block's terminator and hash.
func DecodeBlocks(r io.Reader) ([]Block, error) {
	br := bufio.NewReader(r)
	var blocks []Block
	for {
		line, err := readLine(br)
		if errors.Is(err, io.EOF) && line == "" {
			return blocks, nil
		}
		if err != nil {
			return blocks, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
		}
		if line != blockStart {
			return blocks, fmt.Errorf("%w: expected %q, got %q", ErrMalformedBlock, blockStart, line)
		}
		blk, err := decodeBlock(br)
		if err != nil {
			return blocks, fmt.Errorf("%w: block %d: %v", ErrMalformedBlock, len(blocks)+1, err)
		}
		blocks = append(blocks, blk)
	}
}

func decodeBlock(br *bufio.Reader) (Block, error) {
	var blk Block
	fields := map[string]string{}
	for {
		line, err := readLine(br)
		if err != nil {
			return blk, err
		}
		if strings.HasPrefix(line, contentStart) && strings.HasSuffix(line, contentEnd) {
			n, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(line, contentStart), contentEnd), 10, 64)
			if err != nil || n < 0 {
				return blk, fmt.Errorf("bad content length in %q", line)
			}
			blk.Content = make([]byte, n)
			if _, err := io.ReadFull(br, blk.Content); err != nil {
				return blk, fmt.Errorf("truncated content: %v", err)
			}
			break
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return blk, fmt.Errorf("bad header line %q", line)
		}
		fields[key] = value
	}

	if nl, err := br.ReadByte(); err != nil || nl != '\n' {
		return blk, errors.New("missing newline after content")
	}
	if end, err := readLine(br); err != nil || end != blockEnd {
		return blk, fmt.Errorf("missing %q terminator", blockEnd)
	}

	var err error
	if blk.Path, err = strconv.Unquote(fields["path"]); err != nil {
		return blk, fmt.Errorf("bad path %q", fields["path"])
	}
	if blk.Size, err = strconv.ParseInt(fields["size"], 10, 64); err != nil || blk.Size != int64(len(blk.Content)) {
		return blk, fmt.Errorf("size %q does not match content length %d", fields["size"], len(blk.Content))
	}
	if blk.Lines, err = strconv.Atoi(fields["lines"]); err != nil {
		return blk, fmt.Errorf("bad line count %q", fields["lines"])
	}
	blk.Language = fields["language"]
	blk.Hash = fields["sha256"]
	if got := metadata.Hash(blk.Content); got != blk.Hash {
		return blk, fmt.Errorf("hash mismatch for %s", blk.Path)
	}
	return blk, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, io.ErrUnexpectedEOF
		}
		return line, err
	}
	return strings.TrimSuffix(line, "\n"), nil
}
