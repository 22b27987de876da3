// Package diffview turns the raw unified diff of one file into classified
// lines for display.
package diffview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codefionn/codebridge/internal/vcs"
)

// LineKind classifies a diff line.
type LineKind int

const (
	LineContext LineKind = iota
	LineAdded
	LineRemoved
)

func (k LineKind) String() string {
	switch k {
	case LineAdded:
		return "added"
	case LineRemoved:
		return "removed"
	default:
		return "context"
	}
}

// Line is one displayed diff line with its prefix removed. Header marks file
// header lines (diff --git, index, ---, +++), which are always context.
type Line struct {
	Kind   LineKind `json:"kind"`
	Text   string   `json:"text"`
	Header bool     `json:"header,omitempty"`
}

// ErrNotInStatus is returned by Load for paths the status does not list.
var ErrNotInStatus = errors.New("path has no changes")

// View is the diff of a single file.
type View struct {
	Path  string `json:"path"`
	Lines []Line `json:"lines"`
	Stats Stats  `json:"stats"`
}

// Classify splits raw into lines and classifies each by its prefix.
func Classify(raw string) []Line {
	if raw == "" {
		return []Line{}
	}

	parts := strings.Split(raw, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	lines := make([]Line, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, classifyLine(strings.TrimSuffix(p, "\r")))
	}
	return lines
}

func classifyLine(s string) Line {
	switch {
	case isHeader(s):
		return Line{Kind: LineContext, Text: s, Header: true}
	case strings.HasPrefix(s, "+"):
		return Line{Kind: LineAdded, Text: s[1:]}
	case strings.HasPrefix(s, "-"):
		return Line{Kind: LineRemoved, Text: s[1:]}
	case strings.HasPrefix(s, " "):
		return Line{Kind: LineContext, Text: s[1:]}
	default:
		return Line{Kind: LineContext, Text: s}
	}
}

func isHeader(s string) bool {
	return strings.HasPrefix(s, "+++") ||
		strings.HasPrefix(s, "---") ||
		strings.HasPrefix(s, "diff --git ") ||
		strings.HasPrefix(s, "index ")
}

// Load fetches the diff of path through gw and classifies it. The path must
// be listed in status, otherwise ErrNotInStatus is returned without calling gw.
func Load(ctx context.Context, gw vcs.VCS, repo string, status vcs.Status, path string) (*View, error) {
	if !status.Contains(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotInStatus)
	}

	raw, err := gw.Diff(ctx, repo, path)
	if err != nil {
		return nil, err
	}

	return &View{
		Path:  path,
		Lines: Classify(raw),
		Stats: Summarize(raw),
	}, nil
}
