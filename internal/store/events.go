package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/mesh-health/careledger/pkg/types"
)

// FetchEvents materializes schedule occurrences for tasks matching the query
// and attaches recorded outcomes. Each version of a task chain governs the
// window from its effective date to the next version's, so occurrences around
// a version boundary come from the version that was active at their start.
func (s *Store) FetchEvents(q types.EventQuery) ([]types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	if q.Interval.IsZero() || !q.Interval.End.After(q.Interval.Start) {
		return nil, fmt.Errorf("fetch events: a date interval is required: %w", types.ErrConstraintViolation)
	}

	events := []types.Event{}
	for _, c := range s.orderedChains(types.KindTask, q.TaskIDs) {
		events = append(events, s.chainEvents(c, q.Interval)...)
	}
	sort.SliceStable(events, func(a, b int) bool {
		if !events[a].Occurrence.Start.Equal(events[b].Occurrence.Start) {
			return events[a].Occurrence.Start.Before(events[b].Occurrence.Start)
		}
		return events[a].Task.ID < events[b].Task.ID
	})
	return events, nil
}

// chainEvents computes the events one task chain contributes to an interval.
// Occurrence indices are counted against the governing version's own
// schedule.
func (s *Store) chainEvents(c *chain, iv types.DateInterval) []types.Event {
	var out []types.Event
	for i, rec := range c.versions {
		task := rec.entity.Task
		if task == nil {
			continue
		}

		var winEnd time.Time
		bounded := false
		if i+1 < len(c.versions) {
			winEnd = c.versions[i+1].entity.Versioned().EffectiveAt()
			bounded = true
		}
		if task.DeletedDate != nil && (!bounded || task.DeletedDate.Before(winEnd)) {
			winEnd = *task.DeletedDate
			bounded = true
		}

		start := task.EffectiveDate
		if iv.Start.After(start) {
			start = iv.Start
		}
		end := iv.End
		if bounded && winEnd.Before(end) {
			end = winEnd
		}
		if !end.After(start) {
			continue
		}

		for _, occ := range task.Schedule.Occurrences(start, end) {
			out = append(out, types.Event{
				Task:       *rec.entity.Clone().Task,
				Occurrence: occ,
				Outcome:    s.outcomeFor(c, occ.Index),
			})
		}
	}
	return out
}

// outcomeFor finds the recorded outcome for an occurrence index, accepting an
// attachment to any version in the chain and preferring the newest.
func (s *Store) outcomeFor(c *chain, index int) *types.Outcome {
	for i := len(c.versions) - 1; i >= 0; i-- {
		u := c.versions[i].entity.Versioned().VersionUUID()
		oc, ok := s.chains[types.KindOutcome][types.OutcomeID(u, index)]
		if !ok {
			continue
		}
		if rec := latestLive(oc); rec != nil {
			return rec.entity.Clone().Outcome
		}
	}
	return nil
}

// FetchTask returns the single now-current version of the task with the
// given id.
func (s *Store) FetchTask(id string) (types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return types.Task{}, types.ErrStoreDetached
	}
	rec := latestLive(s.chains[types.KindTask][id])
	if rec == nil {
		return types.Task{}, fmt.Errorf("fetch task %q: %w", id, types.ErrNotFound)
	}
	return *rec.entity.Clone().Task, nil
}
