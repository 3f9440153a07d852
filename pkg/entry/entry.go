// Package entry holds the closed set of filesystem entry kinds and skip reasons
// shared by the walker, the path filter and the flatten pipeline.
package entry

import "fmt"

// Kind is the kind of a filesystem entry seen during a walk.
type Kind int

const (
	KindFile Kind = iota + 1
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Reason is a non-fatal cause for leaving an entry out of the output.
type Reason string

const (
	ReasonExcluded          Reason = "excluded"
	ReasonNotIncluded       Reason = "not included"
	ReasonIgnored           Reason = "ignored"
	ReasonSymlink           Reason = "symlink"
	ReasonSymlinkCycle      Reason = "symlink cycle"
	ReasonNotRegular        Reason = "not a regular file"
	ReasonTraversal         Reason = "traversal error"
	ReasonRead              Reason = "read error"
	ReasonBinary            Reason = "binary"
	ReasonExceedsFileSize   Reason = "exceeds max file size"
	ReasonExceedsOutputSize Reason = "exceeds max output size"
	ReasonNotWritten        Reason = "not written"
)
