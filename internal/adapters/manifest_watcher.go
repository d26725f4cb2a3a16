package adapters

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"depswap/internal/ports"
)

const watchEventBuffer = 100

// FSWatcherAdapter watches directory trees recursively with fsnotify.
// Directories created after Watch are added as they appear.
type FSWatcherAdapter struct {
	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
}

func NewFSWatcherAdapter() *FSWatcherAdapter {
	return &FSWatcherAdapter{}
}

func (a *FSWatcherAdapter) Watch(ctx context.Context, roots []string) (<-chan ports.WatchEvent, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to start file watcher").
			WithCause(err)
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			log.Debug().Err(err).Str("root", root).Msg("not watching missing path")
			continue
		}
		if !info.IsDir() {
			if err := watcher.Add(root); err != nil {
				_ = watcher.Close()
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to watch " + root).
					WithCause(err)
			}
			continue
		}
		addRecursive(watcher, root)
	}

	a.mu.Lock()
	a.fsWatcher = watcher
	a.mu.Unlock()

	events := make(chan ports.WatchEvent, watchEventBuffer)
	go a.processEvents(ctx, watcher, events)
	return events, nil
}

func (a *FSWatcherAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fsWatcher == nil {
		return nil
	}
	err := a.fsWatcher.Close()
	a.fsWatcher = nil
	return err
}

func addRecursive(watcher *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are not watched.
			return nil //nolint:nilerr
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && shouldSkipWorkspaceDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("failed to watch directory")
		}
		return nil
	})
}

func (a *FSWatcherAdapter) processEvents(ctx context.Context, watcher *fsnotify.Watcher, events chan<- ports.WatchEvent) {
	defer close(events)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			converted, ok := convertEvent(event)
			if !ok {
				continue
			}
			if converted.Op == ports.WatchOpCreate {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !shouldSkipWorkspaceDir(info.Name()) {
					addRecursive(watcher, event.Name)
				}
			}
			select {
			case events <- converted:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func convertEvent(event fsnotify.Event) (ports.WatchEvent, bool) {
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		return ports.WatchEvent{Path: event.Name, Op: ports.WatchOpCreate}, true
	case event.Op&fsnotify.Write == fsnotify.Write:
		return ports.WatchEvent{Path: event.Name, Op: ports.WatchOpWrite}, true
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		return ports.WatchEvent{Path: event.Name, Op: ports.WatchOpRemove}, true
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		return ports.WatchEvent{Path: event.Name, Op: ports.WatchOpRename}, true
	default:
		return ports.WatchEvent{}, false
	}
}

var _ ports.WatcherPort = (*FSWatcherAdapter)(nil)
