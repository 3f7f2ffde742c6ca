package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-health/careledger/pkg/schedule"
	"github.com/mesh-health/careledger/pkg/types"
)

// day returns midnight UTC d days after 2024-03-01. Dates sit in the past so
// now-current queries see them as effective.
func day(d int) time.Time {
	return time.Date(2024, time.March, 1+d, 0, 0, 0, 0, time.UTC)
}

func newAttachedStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Attach(types.Config{DataDir: t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Detach() })
	return s
}

// dailyTask builds a task with one occurrence per day at 08:00 starting on
// day(start).
func dailyTask(id string, start int) types.Task {
	return types.NewTask(id, "", nil, schedule.DailyAtTime(8, 0, day(start), nil, "", schedule.Duration{}))
}

func addTask(t *testing.T, s *Store, task types.Task) types.Task {
	t.Helper()
	out, err := s.Add([]types.Entity{types.TaskEntity(task)})
	if err != nil {
		t.Fatal(err)
	}
	return *out[0].Task
}

func TestAttachTwiceFails(t *testing.T) {
	s := newAttachedStore(t)
	err := s.Attach(types.Config{DataDir: t.TempDir()})
	if !errors.Is(err, types.ErrAlreadyAttached) {
		t.Fatalf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	s := New()
	if err := s.Attach(types.Config{DataDir: t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	if err := s.Detach(); err != nil {
		t.Fatal(err)
	}
	if err := s.Detach(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchTasks(types.Query{}); !errors.Is(err, types.ErrStoreDetached) {
		t.Fatalf("expected ErrStoreDetached, got %v", err)
	}
}

func TestAddAssignsStoreFields(t *testing.T) {
	s := newAttachedStore(t)
	stored := addTask(t, s, dailyTask("meds", 0))

	if stored.UUID == uuid.Nil {
		t.Fatal("expected a version UUID")
	}
	if stored.CreatedDate == nil || stored.UpdatedDate == nil {
		t.Fatal("expected created and updated dates")
	}
	if stored.SchemaVersion == "" {
		t.Fatal("expected a schema version")
	}
	if !stored.EffectiveDate.Equal(day(0).Add(8 * time.Hour)) {
		t.Fatalf("effective date should default to the schedule start, got %v", stored.EffectiveDate)
	}
}

func TestAddDuplicateIdentifierFails(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 0))

	_, err := s.Add([]types.Entity{types.TaskEntity(dailyTask("meds", 1))})
	if !errors.Is(err, types.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestAddBatchIsAtomic(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 0))

	_, err := s.Add([]types.Entity{
		types.TaskEntity(dailyTask("stretch", 0)),
		types.TaskEntity(dailyTask("meds", 0)),
	})
	if !errors.Is(err, types.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}

	tasks, err := s.FetchTasks(types.Query{IDs: []string{"stretch"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatal("failed batch must not persist any entity")
	}
}

func TestFetchTaskReturnsNewestVersion(t *testing.T) {
	s := newAttachedStore(t)
	v1 := addTask(t, s, dailyTask("meds", 0))

	updated := dailyTask("meds", 0)
	updated.Title = "Aspirin"
	updated.EffectiveDate = day(1)
	if _, err := s.Update([]types.Entity{types.TaskEntity(updated)}); err != nil {
		t.Fatal(err)
	}

	got, err := s.FetchTask("meds")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Aspirin" {
		t.Fatalf("expected the updated version, got title %q", got.Title)
	}
	if got.UUID == v1.UUID {
		t.Fatal("update must mint a new version UUID")
	}
}

func TestUpdateLinksVersions(t *testing.T) {
	s := newAttachedStore(t)
	v1 := addTask(t, s, dailyTask("meds", 0))

	updated := dailyTask("meds", 0)
	updated.EffectiveDate = day(1)
	out, err := s.Update([]types.Entity{types.TaskEntity(updated)})
	if err != nil {
		t.Fatal(err)
	}
	v2 := *out[0].Task

	if len(v2.PreviousVersionUUIDs) != 1 || v2.PreviousVersionUUIDs[0] != v1.UUID {
		t.Fatal("new version must link back to its predecessor")
	}

	iv := types.DateInterval{Start: day(0), End: day(2)}
	tasks, err := s.FetchTasks(types.Query{IDs: []string{"meds"}, Interval: &iv})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected both versions, got %d", len(tasks))
	}
	if len(tasks[0].NextVersionUUIDs) != 1 || tasks[0].NextVersionUUIDs[0] != v2.UUID {
		t.Fatal("old version must link forward to its successor")
	}
}

func TestUpdateMissingTaskFails(t *testing.T) {
	s := newAttachedStore(t)
	_, err := s.Update([]types.Entity{types.TaskEntity(dailyTask("meds", 0))})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateWithEarlierEffectiveDateFails(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 2))

	updated := dailyTask("meds", 2)
	updated.EffectiveDate = day(0)
	_, err := s.Update([]types.Entity{types.TaskEntity(updated)})
	if !errors.Is(err, types.ErrInvalidEffectiveDate) {
		t.Fatalf("expected ErrInvalidEffectiveDate, got %v", err)
	}
}

func TestUpdateFailsWhenOutcomesWouldBeStranded(t *testing.T) {
	s := newAttachedStore(t)
	stored := addTask(t, s, dailyTask("meds", 0))

	outcome := types.NewOutcome(stored.UUID, 5, []types.OutcomeValue{types.NewOutcomeValue(1.0)})
	if _, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)}); err != nil {
		t.Fatal(err)
	}

	// occurrence 5 starts on day 5, after the proposed boundary
	updated := dailyTask("meds", 0)
	updated.EffectiveDate = day(2)
	_, err := s.Update([]types.Entity{types.TaskEntity(updated)})
	if !errors.Is(err, types.ErrDataLossRisk) {
		t.Fatalf("expected ErrDataLossRisk, got %v", err)
	}
}

func TestUpdateSucceedsWhenOutcomesPrecedeBoundary(t *testing.T) {
	s := newAttachedStore(t)
	stored := addTask(t, s, dailyTask("meds", 0))

	outcome := types.NewOutcome(stored.UUID, 0, nil)
	if _, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)}); err != nil {
		t.Fatal(err)
	}

	updated := dailyTask("meds", 0)
	updated.EffectiveDate = day(1)
	if _, err := s.Update([]types.Entity{types.TaskEntity(updated)}); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateAtOutcomeOccurrenceStartSucceeds(t *testing.T) {
	s := newAttachedStore(t)
	stored := addTask(t, s, dailyTask("meds", 0))

	outcome := types.NewOutcome(stored.UUID, 0, nil)
	if _, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)}); err != nil {
		t.Fatal(err)
	}

	updated := dailyTask("meds", 0)
	updated.EffectiveDate = day(0).Add(8 * time.Hour)
	if _, err := s.Update([]types.Entity{types.TaskEntity(updated)}); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteTombstonesAndHidesTask(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 0))

	out, err := s.Delete([]types.Entity{types.TaskEntity(dailyTask("meds", 0))})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Task.DeletedDate == nil {
		t.Fatal("deleted version must carry a tombstone date")
	}

	if _, err := s.FetchTask("meds"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	tasks, err := s.FetchTasks(types.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatal("deleted tasks must not appear in now-current queries")
	}
}

func TestDeleteMissingTaskFails(t *testing.T) {
	s := newAttachedStore(t)
	_, err := s.Delete([]types.Entity{types.TaskEntity(dailyTask("meds", 0))})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddAfterDeleteReusesIdentifier(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 0))
	if _, err := s.Delete([]types.Entity{types.TaskEntity(dailyTask("meds", 0))}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Update([]types.Entity{types.TaskEntity(dailyTask("meds", 0))}); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("update after delete must fail with ErrNotFound, got %v", err)
	}
	addTask(t, s, dailyTask("meds", 1))
	if _, err := s.FetchTask("meds"); err != nil {
		t.Fatal(err)
	}
}

func TestIntervalQueryReturnsNewestVersionOfSameDay(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 0))

	updated := dailyTask("meds", 0)
	updated.Title = "Aspirin"
	updated.EffectiveDate = day(0).Add(10 * time.Hour)
	if _, err := s.Update([]types.Entity{types.TaskEntity(updated)}); err != nil {
		t.Fatal(err)
	}

	iv := types.DateInterval{Start: day(0), End: day(1)}
	tasks, err := s.FetchTasks(types.Query{Interval: &iv})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Aspirin" {
		t.Fatalf("same-day supersession must return only the newest version, got %d", len(tasks))
	}
}

func TestIntervalQueryReturnsOldVersionForOldRange(t *testing.T) {
	s := newAttachedStore(t)
	v1 := addTask(t, s, dailyTask("meds", 0))

	updated := dailyTask("meds", 0)
	updated.EffectiveDate = day(5)
	if _, err := s.Update([]types.Entity{types.TaskEntity(updated)}); err != nil {
		t.Fatal(err)
	}

	iv := types.DateInterval{Start: day(0), End: day(2)}
	tasks, err := s.FetchTasks(types.Query{Interval: &iv})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].UUID != v1.UUID {
		t.Fatal("a range before the update must see only the old version")
	}
}

func TestIntervalQueryExcludesNotYetEffectiveTasks(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("future", 5))

	iv := types.DateInterval{Start: day(0), End: day(2)}
	tasks, err := s.FetchTasks(types.Query{Interval: &iv})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatal("tasks effective after the interval must be excluded")
	}
}

func TestQueryByGroupIdentifier(t *testing.T) {
	s := newAttachedStore(t)
	grouped := dailyTask("grouped", 0)
	group := "morning"
	grouped.GroupIdentifier = &group
	addTask(t, s, grouped)
	addTask(t, s, dailyTask("ungrouped", 0))

	tasks, err := s.FetchTasks(types.Query{GroupIdentifiers: []*string{&group}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != "grouped" {
		t.Fatal("group filter must select the grouped task")
	}

	tasks, err = s.FetchTasks(types.Query{GroupIdentifiers: []*string{nil}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != "ungrouped" {
		t.Fatal("a nil group filter must select tasks without a group")
	}
}

func TestQueryByTags(t *testing.T) {
	s := newAttachedStore(t)
	tagged := dailyTask("tagged", 0)
	tagged.Tags = []string{"cardio", "daily"}
	addTask(t, s, tagged)
	addTask(t, s, dailyTask("untagged", 0))

	tasks, err := s.FetchTasks(types.Query{Tags: []string{"cardio"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != "tagged" {
		t.Fatal("tag filter must select the tagged task")
	}

	tasks, err = s.FetchTasks(types.Query{Tags: []string{"cardio", "weekly"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatal("every queried tag must be present on the entity")
	}
}

func TestQueryTasksByCarePlan(t *testing.T) {
	s := newAttachedStore(t)
	plan := types.NewCarePlan("recovery", "Knee recovery", nil)
	out, err := s.Add([]types.Entity{types.CarePlanEntity(plan)})
	if err != nil {
		t.Fatal(err)
	}
	planUUID := out[0].CarePlan.UUID

	member := types.NewTask("stretch", "", &planUUID, schedule.DailyAtTime(8, 0, day(0), nil, "", schedule.Duration{}))
	addTask(t, s, member)
	addTask(t, s, dailyTask("other", 0))

	tasks, err := s.FetchTasks(types.Query{CarePlanIDs: []string{"recovery"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != "stretch" {
		t.Fatal("care-plan filter must select plan members")
	}

	tasks, err = s.FetchTasks(types.Query{CarePlanUUIDs: []uuid.UUID{planUUID}})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != "stretch" {
		t.Fatal("care-plan UUID filter must select plan members")
	}
}

func TestQuerySortLimitOffset(t *testing.T) {
	s := newAttachedStore(t)
	for _, spec := range []struct{ id, title string }{
		{"a", "Walk"}, {"b", "Stretch"}, {"c", "Meditate"},
	} {
		task := dailyTask(spec.id, 0)
		task.Title = spec.title
		addTask(t, s, task)
	}

	q := types.Query{
		SortDescriptors: []types.SortDescriptor{{Field: types.SortByTitle, Ascending: true}},
		Limit:           2,
		Offset:          1,
	}
	tasks, err := s.FetchTasks(q)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Stretch" || tasks[1].Title != "Walk" {
		t.Fatalf("unexpected page: %+v", tasks)
	}
}

func TestOutcomeForMissingTaskVersionFails(t *testing.T) {
	s := newAttachedStore(t)
	outcome := types.NewOutcome(uuid.New(), 0, nil)
	_, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOutcomeBeyondScheduleEndFails(t *testing.T) {
	s := newAttachedStore(t)
	end := day(3)
	task := types.NewTask("meds", "", nil, schedule.DailyAtTime(8, 0, day(0), &end, "", schedule.Duration{}))
	stored := addTask(t, s, task)

	outcome := types.NewOutcome(stored.UUID, 10, nil)
	_, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)})
	if !errors.Is(err, types.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestDuplicateOutcomeForSameOccurrenceFails(t *testing.T) {
	s := newAttachedStore(t)
	stored := addTask(t, s, dailyTask("meds", 0))

	outcome := types.NewOutcome(stored.UUID, 0, nil)
	if _, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Add([]types.Entity{types.OutcomeEntity(types.NewOutcome(stored.UUID, 0, nil))})
	if !errors.Is(err, types.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestFetchOutcomesByTask(t *testing.T) {
	s := newAttachedStore(t)
	stored := addTask(t, s, dailyTask("meds", 0))
	other := addTask(t, s, dailyTask("walk", 0))

	for idx, target := range []uuid.UUID{stored.UUID, stored.UUID, other.UUID} {
		outcome := types.NewOutcome(target, idx, nil)
		if _, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)}); err != nil {
			t.Fatal(err)
		}
	}

	outcomes, err := s.FetchOutcomes(types.Query{TaskUUIDs: []uuid.UUID{stored.UUID}})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	outcomes, err = s.FetchOutcomes(types.Query{TaskIDs: []string{"walk"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || outcomes[0].TaskUUID != other.UUID {
		t.Fatal("task id filter must resolve through the task version")
	}
}

func TestFetchEventsRequiresInterval(t *testing.T) {
	s := newAttachedStore(t)
	_, err := s.FetchEvents(types.EventQuery{})
	if !errors.Is(err, types.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestFetchEventsAttachesOutcomes(t *testing.T) {
	s := newAttachedStore(t)
	stored := addTask(t, s, dailyTask("meds", 0))

	outcome := types.NewOutcome(stored.UUID, 0, []types.OutcomeValue{types.NewOutcomeValue(true)})
	if _, err := s.Add([]types.Entity{types.OutcomeEntity(outcome)}); err != nil {
		t.Fatal(err)
	}

	events, err := s.FetchEvents(types.EventQueryForDate(day(0)))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Occurrence.Index != 0 || events[0].Outcome == nil {
		t.Fatal("the day-0 event must carry its recorded outcome")
	}

	events, err = s.FetchEvents(types.EventQueryForDate(day(5)))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Occurrence.Index != 5 || events[0].Outcome != nil {
		t.Fatal("the day-5 event must have index 5 and no outcome")
	}
}

func TestFetchEventsAcrossVersionBoundary(t *testing.T) {
	s := newAttachedStore(t)
	v1 := addTask(t, s, dailyTask("meds", 0))

	updated := types.NewTask("meds", "", nil, schedule.DailyAtTime(20, 0, day(3), nil, "", schedule.Duration{}))
	updated.EffectiveDate = day(3)
	out, err := s.Update([]types.Entity{types.TaskEntity(updated)})
	if err != nil {
		t.Fatal(err)
	}
	v2 := *out[0].Task

	iv := types.DateInterval{Start: day(0), End: day(6)}
	events, err := s.FetchEvents(types.EventQuery{Interval: iv})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(events))
	}
	for i := 0; i < 3; i++ {
		if events[i].Task.UUID != v1.UUID || events[i].Occurrence.Index != i {
			t.Fatalf("event %d must come from the old version with index %d", i, i)
		}
	}
	for i := 3; i < 6; i++ {
		if events[i].Task.UUID != v2.UUID || events[i].Occurrence.Index != i-3 {
			t.Fatalf("event %d must come from the new version with index %d", i, i-3)
		}
	}
}

func TestFetchEventsStopAtDeletion(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 0))
	if _, err := s.Delete([]types.Entity{types.TaskEntity(dailyTask("meds", 0))}); err != nil {
		t.Fatal(err)
	}

	iv := types.DateInterval{Start: day(0), End: day(3)}
	events, err := s.FetchEvents(types.EventQuery{Interval: iv})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("occurrences before the deletion instant remain visible, got %d", len(events))
	}
}

func TestHolds(t *testing.T) {
	s := newAttachedStore(t)
	addTask(t, s, dailyTask("meds", 0))

	if !s.Holds(types.KindTask, "meds") {
		t.Fatal("store must hold an added task")
	}
	if s.Holds(types.KindTask, "other") || s.Holds(types.KindCarePlan, "meds") {
		t.Fatal("holds must be scoped to kind and id")
	}
}

func TestPersistenceAcrossReattach(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{DataDir: dir, StoreName: "clinic"}

	s := New()
	if err := s.Attach(cfg); err != nil {
		t.Fatal(err)
	}
	stored := addTask(t, s, dailyTask("meds", 0))
	updated := dailyTask("meds", 0)
	updated.EffectiveDate = day(1)
	if _, err := s.Update([]types.Entity{types.TaskEntity(updated)}); err != nil {
		t.Fatal(err)
	}
	process := s.ProcessID()
	vector := s.KnowledgeVector()
	if err := s.Detach(); err != nil {
		t.Fatal(err)
	}

	reopened := New()
	if err := reopened.Attach(cfg); err != nil {
		t.Fatal(err)
	}
	defer reopened.Detach()

	if reopened.ProcessID() != process {
		t.Fatal("process identity must survive reattach")
	}
	if !reopened.KnowledgeVector().Equal(vector) {
		t.Fatal("knowledge vector must survive reattach")
	}

	iv := types.DateInterval{Start: day(0), End: day(2)}
	tasks, err := reopened.FetchTasks(types.Query{Interval: &iv})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected both versions after reattach, got %d", len(tasks))
	}
	if tasks[0].UUID != stored.UUID {
		t.Fatal("version chain order must survive reattach")
	}
}
