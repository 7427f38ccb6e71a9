package difhist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// Errors the service distinguishes. Per spec, none of these are fatal:
// the engine stays alive and a later call can succeed once context exists.
var (
	// ErrNoActiveChat is returned (and logged) when PushSnapshot is
	// called with no chat currently active on the ChatStateBridge.
	ErrNoActiveChat = errors.New("difhist: no active chat")
	// ErrNoUserMessage is returned (and logged) when PushSnapshot is
	// called with no known last user-message id.
	ErrNoUserMessage = errors.New("difhist: no last user message id")
)

// DiffHistoryService is the public facade of the diff history engine: the
// timeline-based snapshot store that answers what is pending, what to
// write/delete on accept/reject/revert, and how to rewind to an earlier
// conversational checkpoint.
type DiffHistoryService struct {
	mu      sync.Mutex
	history *HistoryStore
	locks   *LockRegistry
	disk    *DiskWriter
	watcher *WatcherCoordinator
	bridge  ChatStateBridge
	clock   Clock
	log     *slog.Logger
}

// NewService wires a DiffHistoryService backed by fs for disk I/O and
// bridge for reading/publishing conversational state. It starts the
// filesystem watcher immediately; call Close when done.
func NewService(fs afero.Fs, bridge ChatStateBridge, cfg Config, log *slog.Logger) (*DiffHistoryService, error) {
	if log == nil {
		log = slog.Default()
	}
	locks := NewLockRegistry()
	s := &DiffHistoryService{
		history: NewHistoryStore(),
		locks:   locks,
		disk:    NewDiskWriter(fs, locks, cfg, log),
		bridge:  bridge,
		clock:   SystemClock,
		log:     log,
	}
	watcher, err := NewWatcherCoordinator(locks, s, log)
	if err != nil {
		return nil, fmt.Errorf("difhist: start watcher: %w", err)
	}
	s.watcher = watcher
	watcher.Start()
	return s, nil
}

// Close stops the background filesystem watcher.
func (s *DiffHistoryService) Close() {
	s.watcher.Stop()
}

// LockForAgent marks path as engine-owned so the watcher ignores changes
// to it until UnlockForAgent is called. Exposed for callers performing
// their own writes outside of PushAgentEdit (e.g. a file-edit tool).
func (s *DiffHistoryService) LockForAgent(path string) {
	s.locks.Add(path)
}

// UnlockForAgent releases a lock taken with LockForAgent.
func (s *DiffHistoryService) UnlockForAgent(path string) {
	s.locks.Remove(path)
}

// AddInitialSnapshotIfNeeded seeds or back-fills the initial snapshot.
//
// If history is empty, files becomes the INITIAL_LOAD node verbatim.
// Otherwise, for each path in files: if it is new to both history[0] and
// the current node, it is back-filled into history[0] (the agent is
// touching it for the first time, but it already existed on disk before
// tracking began). If it was already in history[0] and its content
// differs from the computed baseline, the discrepancy is recorded as an
// accepted USER_SAVE node — this absorbs an external revert (e.g. a
// manual git checkout) performed while the engine was not watching. This
// silently promotes the external edit into the baseline; see DESIGN.md's
// Open Question 1 for why that behavior is preserved rather than changed
// to leave the discrepancy pending.
//
// Newly created files — ones the agent is about to create that do not yet
// exist on disk — must not be passed here; PushAgentEdit alone handles
// creation.
func (s *DiffHistoryService) AddInitialSnapshotIfNeeded(files FileMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.IsEmpty() {
		_, err := s.pushSnapshotLocked(TriggerInitialLoad, files, nil)
		return err
	}

	initial := s.history.At(0)
	current := s.history.Current()
	baseline := ComputeBaseline(s.history.Nodes(), s.history.Cursor())

	for p, content := range files {
		_, inInitial := initial.Files[p]
		_, inCurrent := current.Files[p]
		switch {
		case !inInitial && !inCurrent:
			initial.Files[p] = content
		case inInitial:
			if baseline[p] != content {
				newFiles := current.Files.With(p, content)
				if _, err := s.pushSnapshotLocked(TriggerUserSave, newFiles, []string{p}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// PushAgentEdit records a file the coding assistant just wrote
// (afterContent non-nil) or deleted (afterContent nil). The assistant's
// tool has already performed the write itself under its own lock; this
// call never touches disk.
func (s *DiffHistoryService) PushAgentEdit(path string, afterContent *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.currentFilesLocked()
	var newFiles FileMap
	if afterContent != nil {
		newFiles = current.With(path, *afterContent)
	} else {
		newFiles = current.Without(path)
	}
	_, err := s.pushSnapshotLocked(TriggerAgentEdit, newFiles, nil)
	return err
}

// PushSnapshot is the low-level primitive behind every history mutation.
// It enforces branching (truncating any undone "future" nodes before
// appending) and refuses the push if the ChatStateBridge reports no
// active chat or no last user-message id — the turn has not begun yet.
func (s *DiffHistoryService) PushSnapshot(trigger TriggerKind, files FileMap, acceptedPaths []string) (*TimelineNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushSnapshotLocked(trigger, files, acceptedPaths)
}

func (s *DiffHistoryService) pushSnapshotLocked(trigger TriggerKind, files FileMap, acceptedPaths []string) (*TimelineNode, error) {
	chatID, ok := s.bridge.ActiveChatID()
	if !ok {
		s.log.Warn("difhist: push refused, no active chat", slog.String("trigger", string(trigger)))
		return nil, ErrNoActiveChat
	}
	userMessageID, ok := s.bridge.LastUserMessageID()
	if !ok {
		s.log.Warn("difhist: push refused, no user message id", slog.String("trigger", string(trigger)))
		return nil, ErrNoUserMessage
	}

	node, err := newTimelineNode(s.clock, chatID, userMessageID, trigger, files, acceptedPaths)
	if err != nil {
		s.log.Error("difhist: invalid node, push refused", slog.Any("error", err))
		return nil, err
	}

	s.history.Append(node)
	s.publishLocked()
	return node, nil
}

// GetDiff returns the diff between the computed baseline and the current
// node's files — the set of changes still pending a user decision. Empty
// when history is empty.
func (s *DiffHistoryService) GetDiff() []FileDiff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDiffLocked()
}

func (s *DiffHistoryService) getDiffLocked() []FileDiff {
	if s.history.IsEmpty() {
		return nil
	}
	baseline := ComputeBaseline(s.history.Nodes(), s.history.Cursor())
	return Diff(baseline, s.history.Current().Files)
}

// GetSessionDiff returns the diff from the very first node to the current
// one — the conversation's total net change.
func (s *DiffHistoryService) GetSessionDiff() []FileDiff {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history.IsEmpty() {
		return nil
	}
	return Diff(s.history.At(0).Files, s.history.Current().Files)
}

// AcceptPendingChanges accepts everything currently pending, including
// deletions. It mutates the current node's AcceptedPaths in place rather
// than appending a new node — the one documented exception to "every
// mutation appends" — so a subsequent PushAgentEdit continues from the
// same state without spurious churn.
func (s *DiffHistoryService) AcceptPendingChanges() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.IsEmpty() {
		return
	}
	cursor := s.history.Cursor()
	var prevBaseline FileMap
	if cursor <= 0 {
		prevBaseline = s.history.At(0).Files
	} else {
		prevBaseline = ComputeBaseline(s.history.Nodes(), cursor-1)
	}

	current := s.history.Current()
	accepted := make(map[string]struct{}, len(current.Files))
	for p := range current.Files {
		accepted[p] = struct{}{}
	}
	for p := range prevBaseline {
		if _, ok := current.Files[p]; !ok {
			accepted[p] = struct{}{}
		}
	}

	paths := make([]string, 0, len(accepted))
	for p := range accepted {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	current.AcceptedPaths = paths

	s.publishLocked()
}

// PartialAccept accepts only paths, leaving the rest pending. Unlike
// AcceptPendingChanges, this appends a new node rather than mutating the
// current one, since only a subset is being promoted to the baseline.
func (s *DiffHistoryService) PartialAccept(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.IsEmpty() {
		return nil
	}
	current := s.history.Current()
	_, err := s.pushSnapshotLocked(TriggerPartialUserAccept, current.Files, paths)
	return err
}

// RejectPendingChanges reverts every pending path to the computed
// baseline and writes that state to disk. Returns an empty plan (and
// performs no history mutation) when history is empty — this must never
// panic.
func (s *DiffHistoryService) RejectPendingChanges(ctx context.Context) (FilePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.IsEmpty() {
		return FilePlan{}, nil
	}

	target := ComputeBaseline(s.history.Nodes(), s.history.Cursor())
	current := s.history.Current().Files
	plan := Plan(current, target)

	acceptedPaths := make([]string, 0, len(target))
	for p := range target {
		acceptedPaths = append(acceptedPaths, p)
	}
	sort.Strings(acceptedPaths)

	if _, err := s.pushSnapshotLocked(TriggerUserReject, target, acceptedPaths); err != nil {
		return plan, err
	}
	s.disk.Execute(ctx, plan)
	return plan, nil
}

// PartialReject reverts only paths to their baseline value (or deletes
// them if absent from the baseline) and writes that state to disk. Calling
// it twice with the same paths is idempotent with respect to GetDiff.
// Returns an empty plan when history is empty, rather than the panic the
// original implementation this engine is modeled after would raise (see
// DESIGN.md Open Question 2).
func (s *DiffHistoryService) PartialReject(ctx context.Context, paths []string) (FilePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.IsEmpty() {
		return FilePlan{}, nil
	}

	baseline := ComputeBaseline(s.history.Nodes(), s.history.Cursor())
	current := s.history.Current().Files
	newFiles := current.Clone()
	for _, p := range paths {
		if content, ok := baseline[p]; ok {
			newFiles[p] = content
		} else {
			delete(newFiles, p)
		}
	}

	plan := Plan(current, newFiles)
	if _, err := s.pushSnapshotLocked(TriggerUserReject, newFiles, nil); err != nil {
		return plan, err
	}
	s.disk.Execute(ctx, plan)
	return plan, nil
}

// RevertToMessage moves the cursor to the state immediately before the
// user turn identified by userMessageID, writes that state to disk, and
// returns the plan. ok is false (with no state mutated) if no node in
// history carries that user-message id. If the target index would be
// negative, it is clamped to 0 and the semantics become "revert to the
// initial snapshot" — the cursor moves to 0 but nodes 1..n are not
// truncated; the next PushSnapshot call performs that truncation (see
// DESIGN.md Open Question 3).
func (s *DiffHistoryService) RevertToMessage(ctx context.Context, userMessageID string) (plan FilePlan, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.history.IndexOfUserMessage(userMessageID)
	if k == -1 {
		s.log.Info("difhist: revert target not found", slog.String("userMessageId", userMessageID))
		return FilePlan{}, false
	}

	target := k - 1
	if target < 0 {
		s.log.Info("difhist: revert undoing past the beginning of history, clamping to 0")
		target = 0
	}

	current := s.history.Current().Files
	plan = Plan(current, s.history.At(target).Files)

	s.history.SetCursor(target)
	s.disk.Execute(ctx, plan)
	s.publishLocked()
	return plan, true
}

// ApplyExternalChange implements NodeAppender for the WatcherCoordinator.
// An externally-originated edit during pending changes becomes a new
// USER_SAVE node with no paths accepted: the diff presented to the user
// updates to reflect the save, but it is not silently blessed as baseline.
func (s *DiffHistoryService) ApplyExternalChange(change ExternalChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.IsEmpty() {
		return
	}
	current := s.history.Current().Files
	var newFiles FileMap
	if change.Removed {
		newFiles = current.Without(change.Path)
	} else {
		newFiles = current.With(change.Path, change.Content)
	}
	if _, err := s.pushSnapshotLocked(TriggerUserSave, newFiles, nil); err != nil {
		s.log.Debug("difhist: dropped external change, no active turn", slog.String("path", change.Path))
	}
}

func (s *DiffHistoryService) currentFilesLocked() FileMap {
	if s.history.IsEmpty() {
		return FileMap{}
	}
	return s.history.Current().Files
}

// publishLocked republishes the current pending diff to the chat state
// bridge and resyncs the watcher's path set to match. Must be called with
// s.mu held.
func (s *DiffHistoryService) publishLocked() {
	diffs := s.getDiffLocked()
	if s.bridge != nil {
		s.bridge.PublishPendingEdits(diffs)
	}
	if s.watcher != nil {
		s.watcher.Sync(pendingPaths(diffs))
	}
}

func pendingPaths(diffs []FileDiff) []string {
	paths := make([]string, len(diffs))
	for i, d := range diffs {
		paths[i] = d.Path
	}
	return paths
}
