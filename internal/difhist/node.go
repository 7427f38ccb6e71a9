package difhist

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TriggerKind identifies what caused a TimelineNode to be recorded.
type TriggerKind string

const (
	// TriggerInitialLoad marks the first node in a history, seeded from
	// the files on disk when the engine started tracking a chat.
	TriggerInitialLoad TriggerKind = "INITIAL_LOAD"
	// TriggerAgentEdit marks a node created by the coding assistant
	// writing or deleting a file.
	TriggerAgentEdit TriggerKind = "AGENT_EDIT"
	// TriggerUserSave marks a node created by an externally-originated
	// edit observed through the filesystem watcher.
	TriggerUserSave TriggerKind = "USER_SAVE"
	// TriggerPartialUserAccept marks a node created when the user accepts
	// a subset of the pending changes.
	TriggerPartialUserAccept TriggerKind = "PARTIAL_USER_ACCEPT"
	// TriggerUserReject marks a node created when the user rejects some
	// or all of the pending changes.
	TriggerUserReject TriggerKind = "USER_REJECT"
)

var validTriggers = map[TriggerKind]bool{
	TriggerInitialLoad:       true,
	TriggerAgentEdit:         true,
	TriggerUserSave:          true,
	TriggerPartialUserAccept: true,
	TriggerUserReject:        true,
}

var structValidator = validator.New()

// TimelineNode is one immutable point in a chat's edit history.
type TimelineNode struct {
	ID            string      `validate:"required,uuid4"`
	Timestamp     time.Time   `validate:"required"`
	ChatID        string      `validate:"required"`
	UserMessageID string      `validate:"required"`
	Trigger       TriggerKind `validate:"required"`
	// Files is the full managed-file state at this moment. Deep-copied on
	// entry so the caller cannot mutate history after the fact.
	Files FileMap
	// AcceptedPaths is the subset of paths whose value in Files becomes
	// part of the computed baseline. A path present here but absent from
	// Files encodes an accepted deletion.
	AcceptedPaths []string
}

// newTimelineNode builds a validated TimelineNode, deep-copying files so
// later mutation of the caller's map cannot corrupt history.
func newTimelineNode(clock Clock, chatID, userMessageID string, trigger TriggerKind, files FileMap, acceptedPaths []string) (*TimelineNode, error) {
	if !validTriggers[trigger] {
		return nil, fmt.Errorf("difhist: unknown trigger kind %q", trigger)
	}
	accepted := make([]string, len(acceptedPaths))
	copy(accepted, acceptedPaths)

	node := &TimelineNode{
		ID:            uuid.NewString(),
		Timestamp:     clock.Now(),
		ChatID:        chatID,
		UserMessageID: userMessageID,
		Trigger:       trigger,
		Files:         files.Clone(),
		AcceptedPaths: accepted,
	}
	if err := structValidator.Struct(node); err != nil {
		return nil, fmt.Errorf("difhist: invalid timeline node: %w", err)
	}
	return node, nil
}

// Clock supplies the current time to the engine. Production code uses
// systemClock; tests inject a fixed or stepped implementation so assertions
// about timestamps and lock-release delays are deterministic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock backed by the wall clock.
var SystemClock Clock = systemClock{}
