package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entity validation errors.
var (
	ErrInvalidID       = errors.New("invalid entity id")
	ErrInvalidSchedule = errors.New("task schedule must contain at least one element")
	ErrInvalidData     = errors.New("invalid entity data")
)

// VersionedObject is the capability shared by every versioned entity. The
// store engine operates on this contract; concrete entities provide it by
// embedding VersionMeta.
type VersionedObject interface {
	// LogicalID returns the user-chosen stable identifier shared by all
	// versions of a logical entity.
	LogicalID() string

	// VersionUUID returns the globally unique identifier of this specific
	// version.
	VersionUUID() uuid.UUID

	// EffectiveAt returns the instant from which this version is active.
	EffectiveAt() time.Time

	// DeletedAt returns the tombstone timestamp, or nil if the version is
	// not deleted.
	DeletedAt() *time.Time
}

// VersionMeta carries the version-chain linkage and bookkeeping fields shared
// by all versioned entities. ID is chosen by the caller and stable across
// versions; UUID identifies one version and is immutable once assigned.
// CreatedDate, UpdatedDate, and SchemaVersion are store-assigned.
type VersionMeta struct {
	ID                   string            `json:"id"`
	UUID                 uuid.UUID         `json:"uuid"`
	EffectiveDate        time.Time         `json:"effectiveDate"`
	DeletedDate          *time.Time        `json:"deletedDate,omitempty"`
	PreviousVersionUUIDs []uuid.UUID       `json:"previousVersionUUIDs,omitempty"`
	NextVersionUUIDs     []uuid.UUID       `json:"nextVersionUUIDs,omitempty"`
	CreatedDate          *time.Time        `json:"createdDate,omitempty"`
	UpdatedDate          *time.Time        `json:"updatedDate,omitempty"`
	SchemaVersion        string            `json:"schemaVersion,omitempty"`
	GroupIdentifier      *string           `json:"groupIdentifier,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
	RemoteID             *string           `json:"remoteID,omitempty"`
	Source               *string           `json:"source,omitempty"`
	Asset                *string           `json:"asset,omitempty"`
	Notes                []string          `json:"notes,omitempty"`
	UserInfo             map[string]string `json:"userInfo,omitempty"`
	Timezone             string            `json:"timezone,omitempty"`
}

func (m *VersionMeta) LogicalID() string       { return m.ID }
func (m *VersionMeta) VersionUUID() uuid.UUID  { return m.UUID }
func (m *VersionMeta) EffectiveAt() time.Time  { return m.EffectiveDate }
func (m *VersionMeta) DeletedAt() *time.Time   { return m.DeletedDate }

// validateMeta checks the caller-settable parts of the version metadata.
func (m *VersionMeta) validateMeta() error {
	if m.ID == "" {
		return ErrInvalidID
	}
	return nil
}
