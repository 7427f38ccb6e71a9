package difhist

import (
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ExternalChange describes a filesystem event the WatcherCoordinator has
// decided is a genuine external edit (not an echo of the engine's own
// write). NodeAppender consumes these to append USER_SAVE nodes.
type ExternalChange struct {
	Path    string
	Removed bool
	// Content is the new file content for a modify event. Unset (and
	// ignored) when Removed is true.
	Content string
}

// NodeAppender is the subset of DiffHistoryService the coordinator drives.
// Kept narrow so the watcher can be tested against a fake.
type NodeAppender interface {
	ApplyExternalChange(change ExternalChange)
}

// WatcherCoordinator observes exactly the paths with pending changes and
// turns externally-originated edits into USER_SAVE history nodes. It
// mirrors internal/agents/watch.WatchAgent's fsnotify event loop, scoped to
// a dynamic, ever-changing set of watched paths rather than a recursive
// directory walk.
type WatcherCoordinator struct {
	watcher  *fsnotify.Watcher
	locks    *LockRegistry
	appender NodeAppender
	log      *slog.Logger

	mu      sync.Mutex
	watched map[string]struct{}

	done chan struct{}
}

// NewWatcherCoordinator creates a coordinator. Call Start to begin the
// event loop and Stop to tear it down.
func NewWatcherCoordinator(locks *LockRegistry, appender NodeAppender, log *slog.Logger) (*WatcherCoordinator, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &WatcherCoordinator{
		watcher:  w,
		locks:    locks,
		appender: appender,
		log:      log,
		watched:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the background event loop.
func (c *WatcherCoordinator) Start() {
	go c.eventLoop()
}

// Stop closes the underlying fsnotify watcher and stops the event loop.
func (c *WatcherCoordinator) Stop() {
	close(c.done)
	_ = c.watcher.Close()
}

// Sync reconciles the watched path set with paths, adding new ones and
// removing any that no longer have pending changes. Call after every
// history mutation. A path the underlying watcher cannot add (for example,
// one that does not exist on disk) is logged and left out of the watched
// set, so the watched set is the subset of paths that could be watched.
func (c *WatcherCoordinator) Sync(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[p] = struct{}{}
	}

	for p := range c.watched {
		if _, ok := want[p]; !ok {
			if err := c.watcher.Remove(p); err != nil {
				c.log.Debug("difhist: unwatch path failed", slog.String("path", p), slog.Any("error", err))
			}
			delete(c.watched, p)
		}
	}
	for p := range want {
		if _, ok := c.watched[p]; ok {
			continue
		}
		if err := c.watcher.Add(p); err != nil {
			c.log.Warn("difhist: watch path failed", slog.String("path", p), slog.Any("error", err))
			continue
		}
		c.watched[p] = struct{}{}
	}
}

func (c *WatcherCoordinator) eventLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(event)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn("difhist: watcher error", slog.Any("error", err))
		case <-c.done:
			return
		}
	}
}

func (c *WatcherCoordinator) handleEvent(event fsnotify.Event) {
	path := event.Name

	// Locked paths are the engine's own writes in flight: dropping the
	// event here is the sole mechanism that prevents echo-effect loops.
	if c.locks.Contains(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Remove != 0:
		c.appender.ApplyExternalChange(ExternalChange{Path: path, Removed: true})
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		content, err := os.ReadFile(path)
		if err != nil {
			c.log.Debug("difhist: read changed file failed, dropping event", slog.String("path", path), slog.Any("error", err))
			return
		}
		c.appender.ApplyExternalChange(ExternalChange{Path: path, Content: string(content)})
	}
}
