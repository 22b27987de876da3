package diffview

import (
	"bytes"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// Stats counts changed lines of a diff.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Hunks   int `json:"hunks"`
}

// Summarize counts added and removed lines. Unified diffs are parsed hunk by
// hunk; anything go-diff rejects is counted line by line instead.
func Summarize(raw string) Stats {
	if raw == "" {
		return Stats{}
	}

	if stats, ok := parseStats(raw); ok {
		return stats
	}

	var stats Stats
	for _, l := range Classify(raw) {
		switch {
		case l.Header:
		case l.Kind == LineAdded:
			stats.Added++
		case l.Kind == LineRemoved:
			stats.Removed++
		}
	}
	return stats
}

func parseStats(raw string) (Stats, bool) {
	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(raw))
	if err != nil || len(fileDiffs) == 0 {
		return Stats{}, false
	}

	var stats Stats
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			stats.Hunks++
			for _, line := range bytes.Split(h.Body, []byte("\n")) {
				if len(line) == 0 {
					continue
				}
				switch line[0] {
				case '+':
					stats.Added++
				case '-':
					stats.Removed++
				}
			}
		}
	}
	if stats.Hunks == 0 {
		return Stats{}, false
	}
	return stats, true
}
