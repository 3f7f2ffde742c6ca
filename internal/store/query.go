package store

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-health/careledger/pkg/types"
)

// splitByDay cuts an interval at calendar-day boundaries. Version selection
// runs once per piece, which gives interval queries their day granularity.
func splitByDay(iv types.DateInterval) []types.DateInterval {
	var out []types.DateInterval
	for cur := iv.Start; cur.Before(iv.End); {
		next := types.Day(cur).End
		if next.After(iv.End) {
			next = iv.End
		}
		out = append(out, types.DateInterval{Start: cur, End: next})
		cur = next
	}
	return out
}

// selectChain picks the versions of one chain a query's interval exposes.
// With no interval the single now-current version is returned. With an
// interval, each covered day contributes the version effective at that day's
// end; distinct versions are reported once, oldest first.
func selectChain(c *chain, interval *types.DateInterval) []*versionRecord {
	if interval == nil {
		if rec := currentAt(c, time.Now()); rec != nil {
			return []*versionRecord{rec}
		}
		return nil
	}
	var out []*versionRecord
	seen := make(map[uuid.UUID]bool)
	for _, day := range splitByDay(*interval) {
		rec := currentAt(c, day.End.Add(-time.Nanosecond))
		if rec == nil {
			continue
		}
		u := rec.entity.Versioned().VersionUUID()
		if !seen[u] {
			seen[u] = true
			out = append(out, rec)
		}
	}
	return out
}

// matchesMeta applies the filters every versioned entity shares.
func matchesMeta(rec *versionRecord, q types.Query) bool {
	meta := rec.entity.Meta()
	if len(q.UUIDs) > 0 && !slices.Contains(q.UUIDs, meta.UUID) {
		return false
	}
	if len(q.RemoteIDs) > 0 {
		if meta.RemoteID == nil || !slices.Contains(q.RemoteIDs, *meta.RemoteID) {
			return false
		}
	}
	for _, tag := range q.Tags {
		if !slices.Contains(meta.Tags, tag) {
			return false
		}
	}
	if len(q.GroupIdentifiers) > 0 && !matchesGroup(q.GroupIdentifiers, meta.GroupIdentifier) {
		return false
	}
	return true
}

// matchesGroup matches a group identifier against the queried set. A nil
// entry in the set explicitly selects entities with no group.
func matchesGroup(wanted []*string, group *string) bool {
	for _, w := range wanted {
		if w == nil && group == nil {
			return true
		}
		if w != nil && group != nil && *w == *group {
			return true
		}
	}
	return false
}

// matchVersions collects the query-visible versions of one kind, applying the
// shared metadata filters. Kind-specific filters and sorting happen in the
// Fetch methods.
func (s *Store) matchVersions(kind types.EntityKind, q types.Query) []*versionRecord {
	var out []*versionRecord
	for _, c := range s.orderedChains(kind, q.IDs) {
		for _, rec := range selectChain(c, q.Interval) {
			if matchesMeta(rec, q) {
				out = append(out, rec)
			}
		}
	}
	return out
}

// matchesCarePlan resolves the care-plan filters against a membership
// reference. The id, UUID, and remote-id filters are alternative handles for
// the same plans, so any of them matching selects the entity.
func (s *Store) matchesCarePlan(ref *uuid.UUID, q types.Query) bool {
	if len(q.CarePlanIDs) == 0 && len(q.CarePlanUUIDs) == 0 && len(q.CarePlanRemoteIDs) == 0 {
		return true
	}
	if ref == nil {
		return false
	}
	if slices.Contains(q.CarePlanUUIDs, *ref) {
		return true
	}
	rec := s.byUUID[*ref]
	if rec == nil || rec.entity.CarePlan == nil {
		return false
	}
	plan := rec.entity.CarePlan
	if slices.Contains(q.CarePlanIDs, plan.ID) {
		return true
	}
	return plan.RemoteID != nil && slices.Contains(q.CarePlanRemoteIDs, *plan.RemoteID)
}

// FetchTasks returns task versions matching the query.
func (s *Store) FetchTasks(q types.Query) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	tasks := []types.Task{}
	for _, rec := range s.matchVersions(types.KindTask, q) {
		if !s.matchesCarePlan(rec.entity.Task.CarePlanUUID, q) {
			continue
		}
		tasks = append(tasks, *rec.entity.Clone().Task)
	}
	return types.SortAndPageTasks(q, tasks), nil
}

// FetchCarePlans returns care-plan versions matching the query.
func (s *Store) FetchCarePlans(q types.Query) ([]types.CarePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	plans := []types.CarePlan{}
	for _, rec := range s.matchVersions(types.KindCarePlan, q) {
		plan := rec.entity.CarePlan
		if len(q.PatientUUIDs) > 0 &&
			(plan.PatientUUID == nil || !slices.Contains(q.PatientUUIDs, *plan.PatientUUID)) {
			continue
		}
		plans = append(plans, *rec.entity.Clone().CarePlan)
	}
	return types.SortAndPageCarePlans(q, plans), nil
}

// FetchPatients returns patient versions matching the query.
func (s *Store) FetchPatients(q types.Query) ([]types.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	patients := []types.Patient{}
	for _, rec := range s.matchVersions(types.KindPatient, q) {
		patients = append(patients, *rec.entity.Clone().Patient)
	}
	return types.SortAndPagePatients(q, patients), nil
}

// FetchContacts returns contact versions matching the query.
func (s *Store) FetchContacts(q types.Query) ([]types.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	contacts := []types.Contact{}
	for _, rec := range s.matchVersions(types.KindContact, q) {
		if !s.matchesCarePlan(rec.entity.Contact.CarePlanUUID, q) {
			continue
		}
		contacts = append(contacts, *rec.entity.Clone().Contact)
	}
	return types.SortAndPageContacts(q, contacts), nil
}

// FetchOutcomes returns outcomes matching the query. Outcomes are not
// day-split: the interval filter selects outcomes whose occurrence start
// falls inside the interval.
func (s *Store) FetchOutcomes(q types.Query) ([]types.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	outcomes := []types.Outcome{}
	for _, c := range s.orderedChains(types.KindOutcome, q.IDs) {
		rec := latestLive(c)
		if rec == nil || !matchesMeta(rec, q) {
			continue
		}
		o := rec.entity.Outcome
		if !s.matchesTask(o, q) {
			continue
		}
		if q.Interval != nil && !s.outcomeInInterval(o, *q.Interval) {
			continue
		}
		outcomes = append(outcomes, *rec.entity.Clone().Outcome)
	}
	return types.SortAndPageOutcomes(q, outcomes), nil
}

// matchesTask resolves the task filters against an outcome's task reference.
func (s *Store) matchesTask(o *types.Outcome, q types.Query) bool {
	if len(q.TaskUUIDs) > 0 && !slices.Contains(q.TaskUUIDs, o.TaskUUID) {
		return false
	}
	if len(q.TaskIDs) > 0 {
		rec := s.byUUID[o.TaskUUID]
		if rec == nil || rec.entity.Task == nil || !slices.Contains(q.TaskIDs, rec.entity.Task.ID) {
			return false
		}
	}
	return true
}

// outcomeInInterval reports whether the outcome's occurrence, computed from
// the schedule of the task version it references, starts inside the interval.
func (s *Store) outcomeInInterval(o *types.Outcome, iv types.DateInterval) bool {
	rec := s.byUUID[o.TaskUUID]
	if rec == nil || rec.entity.Task == nil {
		return false
	}
	occ, ok := rec.entity.Task.Schedule.OccurrenceAt(o.TaskOccurrenceIndex)
	return ok && iv.Contains(occ.Start)
}
