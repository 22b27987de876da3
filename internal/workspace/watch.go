package workspace

import (
	"context"
	"errors"
	"time"

	"github.com/codefionn/codebridge/internal/fs"
)

// Watch rescans the opened folder whenever something below it changes and
// flags clean open documents whose file content changed on disk. onRescan,
// if set, receives every new tree. It blocks until ctx is done, or returns
// ErrSuperseded as soon as a change arrives after OpenFolder was called again.
func (w *Workspace) Watch(ctx context.Context, debounce time.Duration, onRescan func(*Tree)) error {
	w.mu.Lock()
	root, gen := w.root, w.generation
	w.mu.Unlock()
	if root == "" {
		return ErrNoFolder
	}

	watcher, err := fs.NewWatcher(debounce)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.WatchTree(root, w.Tree().Nodes); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	superseded := false
	watcher.Run(runCtx, func(paths []string) {
		w.log.Debug("%d paths changed below %s", len(paths), root)

		tree, err := w.rescan(runCtx, root, gen)
		switch {
		case errors.Is(err, ErrSuperseded):
			w.log.Debug("stopped watching %s: another folder was opened", root)
			superseded = true
			cancel()
			return
		case err != nil:
			w.log.Warn("rescan of %s failed: %v", root, err)
			return
		}
		if err := watcher.WatchTree(root, tree.Nodes); err != nil {
			w.log.Warn("re-watching %s failed: %v", root, err)
		}

		w.detectDiskChanges(runCtx, paths)
		if onRescan != nil {
			onRescan(tree)
		}
	})
	if superseded {
		return ErrSuperseded
	}
	return ctx.Err()
}

// detectDiskChanges compares open documents among paths with their files.
func (w *Workspace) detectDiskChanges(ctx context.Context, paths []string) {
	for _, p := range paths {
		doc, ok := w.Document(p)
		if !ok || doc.IsDirty() {
			continue
		}
		data, err := w.fs.ReadFile(ctx, doc.path)
		if err != nil {
			w.log.Debug("cannot compare %s with disk: %v", doc.path, err)
			continue
		}
		if doc.compareDisk(data) {
			w.log.Info("%s changed on disk", doc.path)
		}
	}
}
