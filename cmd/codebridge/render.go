package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/codefionn/codebridge/internal/collab"
	"github.com/codefionn/codebridge/internal/diffview"
	"github.com/codefionn/codebridge/internal/fs"
	"github.com/codefionn/codebridge/internal/vcs"
	"github.com/codefionn/codebridge/internal/workspace"
	"github.com/fatih/color"
)

func renderTree(w io.Writer, tree *workspace.Tree) {
	fmt.Fprintln(w, color.CyanString("%s", tree.Root))
	renderNodes(w, tree.Nodes, "")
}

func renderNodes(w io.Writer, nodes []*fs.FileNode, indent string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		name := n.Name
		if n.IsDir() {
			name = color.BlueString("%s/", name)
		}
		fmt.Fprintln(w, indent+branch+name)
		if n.IsDir() {
			renderNodes(w, n.Children, indent+next)
		}
	}
}

func renderStatus(w io.Writer, s vcs.Status) {
	if !s.Available {
		fmt.Fprintln(w, "not under version control")
		return
	}
	if s.Branch != "" {
		fmt.Fprintf(w, "On branch %s\n", color.CyanString("%s", s.Branch))
	}
	if s.Clean() {
		fmt.Fprintln(w, "nothing changed")
		return
	}

	sections := []struct {
		title string
		paths []string
		paint func(string, ...interface{}) string
	}{
		{"Conflicted", s.Conflicted, color.MagentaString},
		{"Staged", s.Staged, color.GreenString},
		{"Modified", s.Modified, color.YellowString},
		{"Deleted", s.Deleted, color.RedString},
		{"Untracked", s.Untracked, color.HiBlackString},
	}
	for _, sec := range sections {
		if len(sec.paths) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", sec.title)
		for _, p := range sec.paths {
			fmt.Fprintf(w, "  %s\n", sec.paint("%s", p))
		}
	}
}

// renderDiff prints the classified lines with their prefixes restored.
func renderDiff(w io.Writer, view *diffview.View) {
	for _, l := range view.Lines {
		switch {
		case l.Header:
			fmt.Fprintln(w, color.New(color.Bold).Sprint(l.Text))
		case l.Kind == diffview.LineAdded:
			fmt.Fprintln(w, color.GreenString("+%s", l.Text))
		case l.Kind == diffview.LineRemoved:
			fmt.Fprintln(w, color.RedString("-%s", l.Text))
		case strings.HasPrefix(l.Text, "@@"):
			fmt.Fprintln(w, color.CyanString("%s", l.Text))
		default:
			fmt.Fprintln(w, " "+l.Text)
		}
	}
	fmt.Fprintf(w, "%s, %s\n",
		color.GreenString("%d added", view.Stats.Added),
		color.RedString("%d removed", view.Stats.Removed))
}

func renderRoster(w io.Writer, roster []collab.Participant, selfID string) {
	fmt.Fprintf(w, "%d connected:\n", len(roster))
	for _, p := range roster {
		marker := ""
		if p.ID == selfID {
			marker = " (you)"
		}
		fmt.Fprintf(w, "  %s %s%s\n", swatch(p.Color), p.Name, marker)
	}
}

// swatch paints a block in the participant color on truecolor terminals.
func swatch(hex string) string {
	var r, g, b int
	if color.NoColor || !collab.ValidColor(hex) {
		return "■"
	}
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return "■"
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm■\x1b[0m", r, g, b)
}
