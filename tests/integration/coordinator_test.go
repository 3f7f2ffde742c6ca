// Integration tests for the coordinator fanning a workload out over several
// attached stores.
package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-health/careledger/internal/coordinator"
	"github.com/mesh-health/careledger/pkg/types"
)

func TestCoordinatorRoutesAndMerges(t *testing.T) {
	primary := newAttachedStore(t)
	secondary := newAttachedStore(t)

	c := coordinator.New()
	c.Register(primary)
	c.Register(secondary)

	// Adds land on the first registered store by default.
	_, err := c.Add([]types.Entity{types.TaskEntity(dailyTask("meds", "Medication", 0))})
	require.NoError(t, err)
	assert.True(t, primary.Holds(types.KindTask, "meds"))
	assert.False(t, secondary.Holds(types.KindTask, "meds"))

	// Seed the secondary directly; updates follow the holding store.
	mustAdd(t, secondary, types.TaskEntity(dailyTask("steps", "Step count", 0)))

	updated := dailyTask("steps", "Daily step count", 1)
	updated.EffectiveDate = day(1)
	_, err = c.Update([]types.Entity{types.TaskEntity(updated)})
	require.NoError(t, err)

	task, err := secondary.FetchTask("steps")
	require.NoError(t, err)
	assert.Equal(t, "Daily step count", task.Title)

	// Reads merge both stores and honor sorting across the merge.
	tasks, err := c.FetchTasks(types.Query{
		SortDescriptors: []types.SortDescriptor{{Field: types.SortByTitle, Ascending: true}},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Daily step count", tasks[0].Title)
	assert.Equal(t, "Medication", tasks[1].Title)

	events, err := c.FetchEvents(types.EventQueryForDate(day(1)))
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Writes naming an identifier held by neither store fail cleanly.
	_, err = c.Delete([]types.Entity{types.TaskEntity(types.Task{
		VersionMeta: types.VersionMeta{ID: "missing"},
	})})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCoordinatorRejectsAmbiguousWrites(t *testing.T) {
	primary := newAttachedStore(t)
	secondary := newAttachedStore(t)

	c := coordinator.New()
	c.Register(primary)
	c.Register(secondary)

	mustAdd(t, primary, types.TaskEntity(dailyTask("meds", "Medication", 0)))
	mustAdd(t, secondary, types.TaskEntity(dailyTask("meds", "Meds", 0)))

	_, err := c.Delete([]types.Entity{types.TaskEntity(types.Task{
		VersionMeta: types.VersionMeta{ID: "meds"},
	})})
	assert.ErrorIs(t, err, types.ErrAmbiguousRoute)
}
