package types

import (
	"errors"

	"github.com/mesh-health/careledger/pkg/schedule"
)

// Store is the contract implemented by every attached store instance.
// Callers attach to a backing file, mutate and query versioned entities, and
// detach when done. Batch mutations are all-or-nothing: either every entity
// in the batch persists or none does, and the first violating entity's error
// is reported.
type Store interface {
	// Attach connects the store to the backing described by config,
	// creating the data directory if needed. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backing resources. Idempotent: multiple calls
	// succeed. After Detach, operations return ErrStoreDetached.
	Detach() error

	// Add inserts new logical entities. Fails with
	// ErrDuplicateIdentifier when a live current version already exists
	// for an entity's id. Returns the stored entities with uuid,
	// createdDate, updatedDate, and schemaVersion assigned.
	Add(entities []Entity) ([]Entity, error)

	// Update appends a new version to each entity's chain. Fails with
	// ErrNotFound when no live version exists, ErrInvalidEffectiveDate
	// when the new effective date precedes the current version's, and
	// ErrDataLossRisk when recorded outcomes would be stranded.
	Update(entities []Entity) ([]Entity, error)

	// Delete tombstones the current version of each entity's chain.
	// History is retained. Fails with ErrNotFound when no live version
	// exists.
	Delete(entities []Entity) ([]Entity, error)

	// FetchTasks returns task versions matching the query. Queries never
	// fail on no matches; they return an empty slice.
	FetchTasks(q Query) ([]Task, error)

	// FetchCarePlans returns care-plan versions matching the query.
	FetchCarePlans(q Query) ([]CarePlan, error)

	// FetchPatients returns patient versions matching the query.
	FetchPatients(q Query) ([]Patient, error)

	// FetchContacts returns contact versions matching the query.
	FetchContacts(q Query) ([]Contact, error)

	// FetchOutcomes returns outcomes matching the query.
	FetchOutcomes(q Query) ([]Outcome, error)

	// FetchEvents materializes schedule occurrences for tasks matching
	// the event query, attaching any recorded outcomes. The query's date
	// interval is required; its absence fails with
	// ErrConstraintViolation.
	FetchEvents(q EventQuery) ([]Event, error)

	// Holds reports whether this store carries version history for the
	// given logical id. Used by the coordinator to route writes.
	Holds(kind EntityKind, id string) bool
}

// Event is one materialized occurrence of a task: the task version governing
// the occurrence, the computed occurrence, and the recorded outcome if any.
type Event struct {
	Task       Task                `json:"task"`
	Occurrence schedule.Occurrence `json:"occurrence"`
	Outcome    *Outcome            `json:"outcome,omitempty"`
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Store operation errors.
var (
	ErrDuplicateIdentifier  = errors.New("an entity with this id already exists")
	ErrNotFound             = errors.New("entity not found")
	ErrInvalidEffectiveDate = errors.New("effective date precedes the current version")
	ErrDataLossRisk         = errors.New("update would strand recorded outcomes")
	ErrConstraintViolation  = errors.New("malformed query")
	ErrAmbiguousRoute       = errors.New("entity routes to more than one store")
	ErrSyncConflict         = errors.New("revision conflicts with local history")
)
