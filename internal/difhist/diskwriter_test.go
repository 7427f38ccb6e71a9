package difhist

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useImmediateUnlock replaces the DiskWriter's delayed-release timer with
// one that fires immediately, so tests can assert post-write lock state
// without sleeping for the real 500ms grace period.
func useImmediateUnlock(w *DiskWriter) {
	w.afterFn = func(_ time.Duration, f func()) *time.Timer {
		f()
		return time.NewTimer(0)
	}
}

func TestDiskWriter_ExecuteWritesAndDeletes(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "gone.txt", []byte("bye"), 0o644))

	locks := NewLockRegistry()
	w := NewDiskWriter(fs, locks, NewDefaultConfig(), nil)
	useImmediateUnlock(w)

	plan := FilePlan{
		Writes:  FileMap{"dir/new.txt": "hello"},
		Deletes: []string{"gone.txt"},
	}
	w.Execute(context.Background(), plan)

	content, err := afero.ReadFile(fs, "dir/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	exists, err := afero.Exists(fs, "gone.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDiskWriter_LocksPathDuringWriteAndReleasesAfter(t *testing.T) {
	fs := afero.NewMemMapFs()
	locks := NewLockRegistry()
	w := NewDiskWriter(fs, locks, NewDefaultConfig(), nil)

	var lockedWhenReleaseScheduled bool
	w.afterFn = func(delay time.Duration, f func()) *time.Timer {
		// By the time the release timer is scheduled, the write has
		// already completed and the path must still be locked.
		lockedWhenReleaseScheduled = locks.Contains("watched.txt")
		assert.Equal(t, DefaultLockReleaseDelay, delay)
		f()
		return time.NewTimer(0)
	}

	w.Execute(context.Background(), FilePlan{Writes: FileMap{"watched.txt": "v"}})

	assert.True(t, lockedWhenReleaseScheduled, "path must be locked for the duration of the write")
	assert.False(t, locks.Contains("watched.txt"), "lock must be released once the grace period fires")
}

func TestDiskWriter_FailedWriteDoesNotAbortSiblings(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	locks := NewLockRegistry()
	w := NewDiskWriter(fs, locks, NewDefaultConfig(), nil)
	useImmediateUnlock(w)

	plan := FilePlan{
		Writes: FileMap{"a.txt": "1", "b.txt": "2"},
	}

	assert.NotPanics(t, func() {
		w.Execute(context.Background(), plan)
	})
	assert.False(t, locks.Contains("a.txt"))
	assert.False(t, locks.Contains("b.txt"))
}
