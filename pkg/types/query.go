package types

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DateInterval is a half-open time range [Start, End).
type DateInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day returns the whole calendar day containing t, in t's location.
func Day(t time.Time) DateInterval {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return DateInterval{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside the interval.
func (i DateInterval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// IsZero reports whether the interval is unset.
func (i DateInterval) IsZero() bool { return i.Start.IsZero() && i.End.IsZero() }

// SortField names an entity attribute queries can sort on.
type SortField string

const (
	SortByTitle           SortField = "title"
	SortByEffectiveDate   SortField = "effectiveDate"
	SortByGroupIdentifier SortField = "groupIdentifier"
)

// SortDescriptor orders query results by one field. Descriptors apply in
// declaration order; ties preserve insertion order (the sort is stable).
type SortDescriptor struct {
	Field     SortField `json:"field"`
	Ascending bool      `json:"ascending"`
}

// Query filters versioned entities. All populated filters must match.
// A nil Interval selects the single now-current version per logical id;
// a populated Interval selects, for every day it covers, the version that
// was effective, returning each distinct version once.
type Query struct {
	IDs               []string
	UUIDs             []uuid.UUID
	RemoteIDs         []string
	Tags              []string
	GroupIdentifiers  []*string
	CarePlanIDs       []string
	CarePlanUUIDs     []uuid.UUID
	CarePlanRemoteIDs []string
	PatientUUIDs      []uuid.UUID
	TaskIDs           []string
	TaskUUIDs         []uuid.UUID
	Interval          *DateInterval
	SortDescriptors   []SortDescriptor
	Limit             int
	Offset            int
}

// QueryForDate returns a query covering the whole calendar day of t.
func QueryForDate(t time.Time) Query {
	day := Day(t)
	return Query{Interval: &day}
}

// EventQuery selects materialized occurrences for tasks over a date
// interval. The interval is required; an empty TaskIDs list matches all
// tasks.
type EventQuery struct {
	TaskIDs  []string
	Interval DateInterval
}

// EventQueryForDate returns an event query covering the whole calendar day
// of t.
func EventQueryForDate(t time.Time) EventQuery {
	return EventQuery{Interval: Day(t)}
}

// sortKeys extracts the comparable sort values for one entity.
func sortKeys(v VersionedObject, title string, group *string, f SortField) (string, time.Time) {
	switch f {
	case SortByTitle:
		return title, time.Time{}
	case SortByGroupIdentifier:
		if group == nil {
			return "", time.Time{}
		}
		return *group, time.Time{}
	case SortByEffectiveDate:
		return "", v.EffectiveAt()
	default:
		return "", time.Time{}
	}
}

// sortAndPage stable-sorts items by the query's descriptors and applies
// offset and limit. title and group expose the sortable attributes of each
// item; insertion order is preserved for ties, which keeps pagination
// deterministic.
func sortAndPage[T any](q Query, items []T, versioned func(*T) VersionedObject, title func(*T) string, group func(*T) *string) []T {
	for i := len(q.SortDescriptors) - 1; i >= 0; i-- {
		d := q.SortDescriptors[i]
		sort.SliceStable(items, func(a, b int) bool {
			sa, ta := sortKeys(versioned(&items[a]), title(&items[a]), group(&items[a]), d.Field)
			sb, tb := sortKeys(versioned(&items[b]), title(&items[b]), group(&items[b]), d.Field)
			var cmp int
			if d.Field == SortByEffectiveDate {
				cmp = ta.Compare(tb)
			} else {
				switch {
				case sa < sb:
					cmp = -1
				case sa > sb:
					cmp = 1
				}
			}
			if d.Ascending {
				return cmp < 0
			}
			return cmp > 0
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(items) {
			return items[:0]
		}
		items = items[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(items) {
		items = items[:q.Limit]
	}
	return items
}

// SortAndPageTasks applies the query's sort descriptors, offset, and limit
// to tasks. Exported so the coordinator can re-apply ordering after merging
// results from several stores.
func SortAndPageTasks(q Query, tasks []Task) []Task {
	return sortAndPage(q, tasks,
		func(t *Task) VersionedObject { return t },
		func(t *Task) string { return t.Title },
		func(t *Task) *string { return t.GroupIdentifier })
}

// SortAndPageCarePlans applies the query's sort descriptors, offset, and
// limit to care plans.
func SortAndPageCarePlans(q Query, plans []CarePlan) []CarePlan {
	return sortAndPage(q, plans,
		func(p *CarePlan) VersionedObject { return p },
		func(p *CarePlan) string { return p.Title },
		func(p *CarePlan) *string { return p.GroupIdentifier })
}

// SortAndPagePatients applies the query's sort descriptors, offset, and
// limit to patients. Title sorts use the family name.
func SortAndPagePatients(q Query, patients []Patient) []Patient {
	return sortAndPage(q, patients,
		func(p *Patient) VersionedObject { return p },
		func(p *Patient) string { return p.FamilyName },
		func(p *Patient) *string { return p.GroupIdentifier })
}

// SortAndPageContacts applies the query's sort descriptors, offset, and
// limit to contacts. Title sorts use the family name.
func SortAndPageContacts(q Query, contacts []Contact) []Contact {
	return sortAndPage(q, contacts,
		func(c *Contact) VersionedObject { return c },
		func(c *Contact) string { return c.FamilyName },
		func(c *Contact) *string { return c.GroupIdentifier })
}

// SortAndPageOutcomes applies the query's offset and limit to outcomes.
// Outcomes have no title; only effective-date sorts apply.
func SortAndPageOutcomes(q Query, outcomes []Outcome) []Outcome {
	return sortAndPage(q, outcomes,
		func(o *Outcome) VersionedObject { return o },
		func(o *Outcome) string { return "" },
		func(o *Outcome) *string { return o.GroupIdentifier })
}
