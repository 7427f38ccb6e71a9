package difhist

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DiskWriter executes a FilePlan against a filesystem, suppressing the
// watcher's view of its own writes via a LockRegistry. Use NewDiskWriter
// with afero.NewOsFs() for production and afero.NewMemMapFs() in tests,
// the same substitution internal/policy.Loader uses.
type DiskWriter struct {
	fs      afero.Fs
	locks   *LockRegistry
	cfg     Config
	log     *slog.Logger
	afterFn func(time.Duration, func()) *time.Timer
}

// NewDiskWriter builds a DiskWriter backed by fs, using locks to suppress
// watcher echoes around every write it performs.
func NewDiskWriter(fs afero.Fs, locks *LockRegistry, cfg Config, log *slog.Logger) *DiskWriter {
	if log == nil {
		log = slog.Default()
	}
	return &DiskWriter{
		fs:      fs,
		locks:   locks,
		cfg:     cfg,
		log:     log,
		afterFn: time.AfterFunc,
	}
}

// Execute performs every write and delete in plan. Writes happen
// concurrently via an errgroup; a failure on one path is logged and does
// not prevent the others from completing — there is no cross-file
// atomicity guarantee.
func (w *DiskWriter) Execute(ctx context.Context, plan FilePlan) {
	g, _ := errgroup.WithContext(ctx)

	for path, content := range plan.Writes {
		path, content := path, content
		g.Go(func() error {
			w.writeOne(path, content)
			return nil
		})
	}
	for _, path := range plan.Deletes {
		path := path
		g.Go(func() error {
			w.deleteOne(path)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *DiskWriter) writeOne(path, content string) {
	w.locks.Add(path)
	defer w.scheduleUnlock(path)

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			w.log.Error("difhist: create parent directory failed", slog.String("path", path), slog.Any("error", err))
			return
		}
	}
	if err := afero.WriteFile(w.fs, path, []byte(content), 0o644); err != nil {
		w.log.Error("difhist: write file failed", slog.String("path", path), slog.Any("error", err))
	}
}

func (w *DiskWriter) deleteOne(path string) {
	w.locks.Add(path)
	defer w.scheduleUnlock(path)

	if err := w.fs.Remove(path); err != nil {
		w.log.Error("difhist: delete file failed", slog.String("path", path), slog.Any("error", err))
	}
}

// scheduleUnlock releases the lock on path after cfg.LockReleaseDelay, the
// grace period chosen empirically to absorb delayed or duplicate watcher
// event delivery.
func (w *DiskWriter) scheduleUnlock(path string) {
	w.afterFn(w.cfg.LockReleaseDelay, func() {
		w.locks.Remove(path)
	})
}
