package difhist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlan_WritesChangedAndNewPaths(t *testing.T) {
	current := FileMap{"a": "v1", "unchanged": "same"}
	target := FileMap{"a": "v2", "unchanged": "same", "new": "created"}

	plan := Plan(current, target)
	assert.Equal(t, FileMap{"a": "v2", "new": "created"}, plan.Writes)
	assert.Empty(t, plan.Deletes)
}

func TestPlan_DeletesPathsMissingFromTarget(t *testing.T) {
	current := FileMap{"a": "v1", "gone": "bye"}
	target := FileMap{"a": "v1"}

	plan := Plan(current, target)
	assert.Empty(t, plan.Writes)
	assert.ElementsMatch(t, []string{"gone"}, plan.Deletes)
}

func TestPlan_IsEmpty(t *testing.T) {
	same := FileMap{"a": "v1"}
	assert.True(t, Plan(same, same).IsEmpty())

	plan := Plan(FileMap{}, FileMap{"a": "v1"})
	assert.False(t, plan.IsEmpty())
}
