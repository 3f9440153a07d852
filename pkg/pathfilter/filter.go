// File: pkg/pathfilter/filter.go

// Package pathfilter decides whether a path relative to the flatten root is
// included, excluded or descended into.
//
// Patterns are globs evaluated on slash separated relative paths with
// github.com/bmatcuk/doublestar, where "**" crosses directory boundaries.
// A glob without a slash matches any single path component, so "node_modules"
// and "*.lock" apply at every depth. A glob containing a slash is anchored at
// the root and matches the path or any of its ancestors. A "re:" prefix turns
// the remainder into a Go regular expression matched against the path and its
// ancestors. Matching is case-sensitive.
package pathfilter

import (
	"fmt"
	"regexp"
	"strings"

	"contxt/pkg/entry"

	"github.com/bmatcuk/doublestar/v4"
)

// RegexPrefix marks a pattern as a regular expression instead of a glob.
const RegexPrefix = "re:"

// Verdict is the outcome of evaluating one path.
type Verdict int

const (
	Include Verdict = iota + 1
	Exclude
	Descend
)

func (v Verdict) String() string {
	switch v {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	case Descend:
		return "descend"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Decision carries the verdict and, for exclusions, why.
type Decision struct {
	Verdict Verdict
	Reason  entry.Reason // set when Verdict is Exclude
	Pattern string       // the pattern responsible, when one is
}

// Ignorer reports whether an ignore file (e.g. .gitignore) covers a path.
type Ignorer interface {
	Ignored(rel string, isDir bool) bool
}

// Options configures a Filter.
type Options struct {
	Include        []string
	Exclude        []string
	FollowSymlinks bool
	Ignorer        Ignorer // optional
}

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Filter evaluates include/exclude rules. It is immutable and safe for
// concurrent use.
type Filter struct {
	include []matcher
	exclude []matcher
	follow  bool
	ignorer Ignorer
}

type matcher struct {
	raw      string
	glob     string
	anchored bool
	re       *regexp.Regexp
}

// New compiles the patterns in opts.
func New(opts Options) (*Filter, error) {
	include, err := compileAll(opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(opts.Exclude)
	if err != nil {
		return nil, err
	}
	return &Filter{
		include: include,
		exclude: exclude,
		follow:  opts.FollowSymlinks,
		ignorer: opts.Ignorer,
	}, nil
}

func compileAll(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func compile(pattern string) (matcher, error) {
	if strings.TrimSpace(pattern) == "" {
		return matcher{}, &PatternError{Pattern: pattern, Err: fmt.Errorf("empty pattern")}
	}
	if expr, ok := strings.CutPrefix(pattern, RegexPrefix); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return matcher{}, &PatternError{Pattern: pattern, Err: err}
		}
		return matcher{raw: pattern, re: re}, nil
	}

	glob := strings.TrimSuffix(pattern, "/")
	glob = strings.TrimPrefix(glob, "/")
	anchored := strings.Contains(glob, "/") || strings.HasPrefix(pattern, "/")
	if glob == "" || !doublestar.ValidatePattern(glob) {
		return matcher{}, &PatternError{Pattern: pattern, Err: doublestar.ErrBadPattern}
	}
	return matcher{raw: pattern, glob: glob, anchored: anchored}, nil
}

// match reports whether rel or one of its ancestors matches.
func (m matcher) match(rel string) bool {
	parts := strings.Split(rel, "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		switch {
		case m.re != nil:
			if m.re.MatchString(prefix) {
				return true
			}
		case m.anchored:
			if ok, _ := doublestar.Match(m.glob, prefix); ok {
				return true
			}
		default:
			if ok, _ := doublestar.Match(m.glob, parts[i]); ok {
				return true
			}
		}
	}
	return false
}

func firstMatch(ms []matcher, rel string) (string, bool) {
	for _, m := range ms {
		if m.match(rel) {
			return m.raw, true
		}
	}
	return "", false
}

// Decide evaluates rel, a slash separated path relative to the root.
//
// Directories yield Descend or Exclude; an excluded directory is pruned.
// Without FollowSymlinks every symlink is excluded. With it, a symlink that
// survives the exclude rules yields Include and the caller resolves the link
// and decides again with the kind of its target.
func (f *Filter) Decide(rel string, kind entry.Kind) Decision {
	if kind == entry.KindSymlink && !f.follow {
		return Decision{Verdict: Exclude, Reason: entry.ReasonSymlink}
	}
	if p, ok := firstMatch(f.exclude, rel); ok {
		return Decision{Verdict: Exclude, Reason: entry.ReasonExcluded, Pattern: p}
	}
	if f.ignorer != nil && kind != entry.KindSymlink && f.ignorer.Ignored(rel, kind == entry.KindDir) {
		return Decision{Verdict: Exclude, Reason: entry.ReasonIgnored}
	}

	switch kind {
	case entry.KindDir:
		return Decision{Verdict: Descend}
	case entry.KindSymlink:
		return Decision{Verdict: Include}
	case entry.KindFile:
		if len(f.include) > 0 {
			if _, ok := firstMatch(f.include, rel); !ok {
				return Decision{Verdict: Exclude, Reason: entry.ReasonNotIncluded}
			}
		}
		return Decision{Verdict: Include}
	default:
		panic(fmt.Sprintf("pathfilter: unhandled entry kind %v", kind))
	}
}
