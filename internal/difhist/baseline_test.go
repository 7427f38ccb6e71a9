package difhist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func node(files FileMap, accepted ...string) *TimelineNode {
	return &TimelineNode{Files: files, AcceptedPaths: accepted}
}

func TestComputeBaseline_EmptyHistory(t *testing.T) {
	assert.Equal(t, FileMap{}, ComputeBaseline(nil, -1))
}

func TestComputeBaseline_OnlyInitialNode(t *testing.T) {
	history := []*TimelineNode{
		node(FileMap{"a": "orig"}),
	}
	assert.Equal(t, FileMap{"a": "orig"}, ComputeBaseline(history, 0))
}

func TestComputeBaseline_ReplaysOnlyAcceptedPaths(t *testing.T) {
	history := []*TimelineNode{
		node(FileMap{"a": "v0"}),
		node(FileMap{"a": "v1"}),           // pending edit, not accepted
		node(FileMap{"a": "v2"}, "a"),      // accepted
		node(FileMap{"a": "v3"}),           // pending again
	}

	assert.Equal(t, FileMap{"a": "v0"}, ComputeBaseline(history, 1), "unaccepted edits must not perturb baseline")
	assert.Equal(t, FileMap{"a": "v2"}, ComputeBaseline(history, 2))
	assert.Equal(t, FileMap{"a": "v2"}, ComputeBaseline(history, 3), "baseline only advances on acceptance")
}

func TestComputeBaseline_AcceptedDeletionRemovesPath(t *testing.T) {
	history := []*TimelineNode{
		node(FileMap{"a": "orig"}),
		node(FileMap{}, "a"), // accepted deletion: "a" present in AcceptedPaths but absent from Files
	}

	baseline := ComputeBaseline(history, 1)
	assert.NotContains(t, baseline, "a")
}

func TestComputeBaseline_DoesNotMutateHistoryNodes(t *testing.T) {
	initial := node(FileMap{"a": "orig"})
	history := []*TimelineNode{
		initial,
		node(FileMap{"a": "changed"}, "a"),
	}

	_ = ComputeBaseline(history, 1)
	assert.Equal(t, "orig", initial.Files["a"], "replay must not mutate history[0].Files in place")
}
