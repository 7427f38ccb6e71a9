package difhist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestNewTimelineNode_GeneratesUniqueIDs(t *testing.T) {
	clock := fixedClock{t: time.Unix(0, 0)}

	n1, err := newTimelineNode(clock, "chat-1", "msg-1", TriggerAgentEdit, FileMap{"a": "v"}, nil)
	require.NoError(t, err)
	n2, err := newTimelineNode(clock, "chat-1", "msg-1", TriggerAgentEdit, FileMap{"a": "v"}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, n1.ID, n2.ID)
}

func TestNewTimelineNode_DeepCopiesFiles(t *testing.T) {
	clock := fixedClock{t: time.Unix(0, 0)}
	files := FileMap{"a": "v1"}

	n, err := newTimelineNode(clock, "chat-1", "msg-1", TriggerAgentEdit, files, nil)
	require.NoError(t, err)

	files["a"] = "mutated-after-the-fact"
	assert.Equal(t, "v1", n.Files["a"], "caller mutating its map must not corrupt the stored node")
}

func TestNewTimelineNode_RequiresUserMessageID(t *testing.T) {
	clock := fixedClock{t: time.Unix(0, 0)}
	_, err := newTimelineNode(clock, "chat-1", "", TriggerAgentEdit, FileMap{}, nil)
	assert.Error(t, err)
}

func TestNewTimelineNode_RejectsUnknownTrigger(t *testing.T) {
	clock := fixedClock{t: time.Unix(0, 0)}
	_, err := newTimelineNode(clock, "chat-1", "msg-1", TriggerKind("BOGUS"), FileMap{}, nil)
	assert.Error(t, err)
}
