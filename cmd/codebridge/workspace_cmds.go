package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/codebridge/internal/diffview"
	"github.com/codefionn/codebridge/internal/fs"
	"github.com/codefionn/codebridge/internal/vcs"
	"github.com/codefionn/codebridge/internal/workspace"
	"github.com/spf13/cobra"
)

var watchTree bool

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "List the workspace directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context(), args)
		if err != nil {
			return err
		}
		renderTree(cmd.OutOrStdout(), ws.Tree())

		if !watchTree && !cfg.FS.Watch {
			return nil
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintln(cmd.ErrOrStderr(), "watching for changes, press Ctrl+C to stop")
		err = ws.Watch(ctx, cfg.WatchDebounce(), func(tree *workspace.Tree) {
			fmt.Fprintln(cmd.OutOrStdout())
			renderTree(cmd.OutOrStdout(), tree)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [dir]",
	Short: "Show the version control status of the workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context(), args)
		if err != nil {
			return err
		}
		renderStatus(cmd.OutOrStdout(), ws.Status())
		return nil
	},
}

var diffDir string

var diffCmd = &cobra.Command{
	Use:   "diff <path>",
	Short: "Show the diff of a changed file",
	Long:  "Show the diff of a file listed by 'codebridge status'. The path is relative to the repository root.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dirArgs []string
		if diffDir != "" {
			dirArgs = []string{diffDir}
		}
		ws, err := openWorkspace(cmd.Context(), dirArgs)
		if err != nil {
			return err
		}

		view, err := ws.Diff(cmd.Context(), args[0])
		if errors.Is(err, diffview.ErrNotInStatus) {
			return fmt.Errorf("%s has no changes", args[0])
		}
		if err != nil {
			return err
		}
		renderDiff(cmd.OutOrStdout(), view)
		return nil
	},
}

func openWorkspace(ctx context.Context, args []string) (*workspace.Workspace, error) {
	dir := cfg.WorkingDir
	if len(args) > 0 {
		dir = args[0]
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ws := workspace.New(fs.NewOSFS(cfg.FS.RespectGitignore), vcs.NewGit())
	if _, err := ws.OpenFolder(ctx, dir); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dir, err)
	}
	return ws, nil
}

func init() {
	treeCmd.Flags().BoolVarP(&watchTree, "watch", "w", false, "Keep running and rescan on changes")
	diffCmd.Flags().StringVarP(&diffDir, "dir", "C", "", "Workspace directory")

	rootCmd.AddCommand(treeCmd, statusCmd, diffCmd)
}
