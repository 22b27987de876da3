package fs

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/codefionn/codebridge/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports filesystem changes below a workspace root in debounced
// batches.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *logger.Logger
}

// NewWatcher creates a watcher. A non-positive debounce defaults to 200ms.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		watcher:  w,
		debounce: debounce,
		log:      logger.Global().WithPrefix("watch"),
	}, nil
}

// WatchTree adds root and every directory in nodes. Adding an already
// watched path is harmless, so this is called again after each rescan.
func (w *Watcher) WatchTree(root string, nodes []*FileNode) error {
	if err := w.watcher.Add(root); err != nil {
		return err
	}
	Walk(nodes, func(n *FileNode) bool {
		if n.IsDir() {
			if err := w.watcher.Add(n.Path); err != nil {
				w.log.Warn("failed to watch %s: %v", n.Path, err)
			}
		}
		return true
	})
	return nil
}

// Run delivers batches of changed paths to onChange until ctx is done or
// the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			pending[filepath.Clean(event.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})
			onChange(paths)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
