package fs

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// gitignoreMatcher holds the patterns of one .gitignore file. Patterns are
// matched against paths relative to base, the directory holding the file.
type gitignoreMatcher struct {
	base     string
	patterns []*gitignorePattern
}

type gitignorePattern struct {
	regex     *regexp.Regexp
	isNegated bool
	isDir     bool
}

// appendGitignore returns chain extended with dir/.gitignore when present.
// The returned slice never aliases chain so sibling directories stay independent.
func appendGitignore(chain []*gitignoreMatcher, dir string) []*gitignoreMatcher {
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return chain
	}
	m := parseGitignore(dir, data)
	if len(m.patterns) == 0 {
		return chain
	}
	out := make([]*gitignoreMatcher, len(chain), len(chain)+1)
	copy(out, chain)
	return append(out, m)
}

func parseGitignore(base string, data []byte) *gitignoreMatcher {
	m := &gitignoreMatcher{base: base}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := &gitignorePattern{}
		if strings.HasPrefix(line, "!") {
			p.isNegated = true
			line = strings.TrimPrefix(line, "!")
		}
		if strings.HasSuffix(line, "/") {
			p.isDir = true
			line = strings.TrimSuffix(line, "/")
		}
		if line == "" {
			continue
		}

		re, err := regexp.Compile(gitignorePatternToRegex(line))
		if err != nil {
			continue
		}
		p.regex = re
		m.patterns = append(m.patterns, p)
	}
	return m
}

// gitignorePatternToRegex converts a gitignore pattern to a regex pattern
func gitignorePatternToRegex(pattern string) string {
	anchored := strings.HasPrefix(pattern, "/") || strings.Contains(strings.TrimSuffix(pattern, "/"), "/")
	pattern = strings.TrimPrefix(pattern, "/")

	pattern = regexp.QuoteMeta(pattern)
	pattern = strings.ReplaceAll(pattern, `\*\*/`, "(.*/)?")
	pattern = strings.ReplaceAll(pattern, `\*\*`, ".*")
	pattern = strings.ReplaceAll(pattern, `\*`, "[^/]*")
	pattern = strings.ReplaceAll(pattern, `\?`, "[^/]")

	if anchored {
		return "^" + pattern + "$"
	}
	return "(^|/)" + pattern + "$"
}

// match returns (ignored, decided) for a path relative to the matcher base.
func (m *gitignoreMatcher) match(relPath string, isDir bool) (bool, bool) {
	ignored, decided := false, false
	for _, p := range m.patterns {
		if p.isDir && !isDir {
			continue
		}
		if p.regex.MatchString(relPath) {
			ignored = !p.isNegated
			decided = true
		}
	}
	return ignored, decided
}

// ignoredByChain applies matchers outermost first so deeper .gitignore files
// override their parents.
func ignoredByChain(chain []*gitignoreMatcher, absPath string, isDir bool) bool {
	ignored := false
	for _, m := range chain {
		rel, err := filepath.Rel(m.base, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if v, ok := m.match(filepath.ToSlash(rel), isDir); ok {
			ignored = v
		}
	}
	return ignored
}
