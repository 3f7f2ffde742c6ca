// Package revision defines the knowledge vector and revision record used to
// synchronize store instances. Each store instance owns one process
// identifier; the vector maps process identifiers to logical clocks counting
// how many changes from each process the store has incorporated. Revision
// records bundle a vector snapshot with an ordered list of entity changes.
package revision

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// KnowledgeVector maps process identifiers to monotonically increasing
// logical clocks. Absent processes implicitly have clock zero, so the zero
// value is a usable empty vector.
type KnowledgeVector struct {
	processes map[uuid.UUID]uint64
}

// NewKnowledgeVector returns an empty vector.
func NewKnowledgeVector() KnowledgeVector {
	return KnowledgeVector{processes: make(map[uuid.UUID]uint64)}
}

// VectorOf builds a vector from explicit clock values.
func VectorOf(clocks map[uuid.UUID]uint64) KnowledgeVector {
	v := NewKnowledgeVector()
	for id, c := range clocks {
		v.processes[id] = c
	}
	return v
}

// Clock returns the logical clock for the given process, or zero if the
// process is absent.
func (v KnowledgeVector) Clock(process uuid.UUID) uint64 {
	return v.processes[process]
}

// Increment advances the clock for the given process by one, inserting the
// process if absent.
func (v *KnowledgeVector) Increment(process uuid.UUID) {
	if v.processes == nil {
		v.processes = make(map[uuid.UUID]uint64)
	}
	v.processes[process]++
}

// Merge folds other into v: for every process present in either vector the
// resulting clock is the maximum of both. Merge is commutative and
// idempotent.
func (v *KnowledgeVector) Merge(other KnowledgeVector) {
	if v.processes == nil {
		v.processes = make(map[uuid.UUID]uint64)
	}
	for id, c := range other.processes {
		if c > v.processes[id] {
			v.processes[id] = c
		}
	}
}

// Less reports whether v precedes other in the partial order: every clock in
// v is ≤ the corresponding clock in other, and at least one is strictly
// less. Equal vectors are not Less in either direction, and vectors that are
// each ahead on a different process are incomparable — neither is Less,
// which signals a genuine conflict requiring the merge path rather than a
// fast-forward.
func (v KnowledgeVector) Less(other KnowledgeVector) bool {
	strict := false
	for id, c := range v.processes {
		oc := other.processes[id]
		if c > oc {
			return false
		}
		if c < oc {
			strict = true
		}
	}
	for id, oc := range other.processes {
		if oc > v.processes[id] {
			strict = true
		}
	}
	return strict
}

// Equal reports whether both vectors assign the same clock to every process,
// treating absent processes as zero.
func (v KnowledgeVector) Equal(other KnowledgeVector) bool {
	for id, c := range v.processes {
		if other.processes[id] != c {
			return false
		}
	}
	for id, oc := range other.processes {
		if v.processes[id] != oc {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (v KnowledgeVector) Clone() KnowledgeVector {
	out := NewKnowledgeVector()
	for id, c := range v.processes {
		out.processes[id] = c
	}
	return out
}

// processClock is the wire form of one vector entry.
type processClock struct {
	ID    uuid.UUID `json:"id"`
	Clock uint64    `json:"clock"`
}

// vectorEnvelope is the wire form of the vector: an entry list rather than a
// map, so the format survives in languages without string-keyed UUID maps.
// Comparisons never depend on on-wire order; entries are sorted here only to
// keep the output deterministic.
type vectorEnvelope struct {
	Processes []processClock `json:"processes"`
}

// MarshalJSON encodes the vector as {"processes":[{"id":...,"clock":...}]}
// with entries sorted by process id.
func (v KnowledgeVector) MarshalJSON() ([]byte, error) {
	entries := make([]processClock, 0, len(v.processes))
	for id, c := range v.processes {
		entries = append(entries, processClock{ID: id, Clock: c})
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].ID.String() < entries[b].ID.String()
	})
	return json.Marshal(vectorEnvelope{Processes: entries})
}

// UnmarshalJSON decodes the wire form regardless of entry order.
func (v *KnowledgeVector) UnmarshalJSON(data []byte) error {
	var env vectorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	v.processes = make(map[uuid.UUID]uint64, len(env.Processes))
	for _, e := range env.Processes {
		v.processes[e.ID] = e.Clock
	}
	return nil
}
