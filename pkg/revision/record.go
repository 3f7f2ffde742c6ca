package revision

import (
	"github.com/google/uuid"

	"github.com/mesh-health/careledger/pkg/types"
)

// Stamp marks one change with the process that produced it and that
// process's clock value at the time. A receiving store skips a change when
// its own vector already covers the stamp, which makes applying a revision
// record idempotent.
type Stamp struct {
	Process uuid.UUID `json:"process"`
	Clock   uint64    `json:"clock"`
}

// Covers reports whether the vector has already incorporated the stamped
// change.
func (v KnowledgeVector) Covers(s Stamp) bool {
	return v.Clock(s.Process) >= s.Clock
}

// Observe raises the clock for the stamp's process to at least the stamp's
// clock. Unlike Increment it never skips values, so it is safe to fold in
// stamps received out of order.
func (v *KnowledgeVector) Observe(s Stamp) {
	if v.processes == nil {
		v.processes = make(map[uuid.UUID]uint64)
	}
	if s.Clock > v.processes[s.Process] {
		v.processes[s.Process] = s.Clock
	}
}

// Change is one stamped entity version inside a revision record.
type Change struct {
	Stamp  Stamp        `json:"stamp"`
	Entity types.Entity `json:"entity"`
}

// Record bundles a knowledge-vector snapshot with an ordered list of entity
// changes. A store produces a record holding every local change a peer's
// vector does not cover; the peer applies the changes in recorded order and
// then merges the vector into its own.
type Record struct {
	Changes         []Change        `json:"changes"`
	KnowledgeVector KnowledgeVector `json:"knowledgeVector"`
}

// IsEmpty reports whether the record carries no changes.
func (r Record) IsEmpty() bool { return len(r.Changes) == 0 }
