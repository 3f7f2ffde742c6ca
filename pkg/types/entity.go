package types

import (
	"encoding/json"
	"fmt"
)

// EntityKind discriminates the closed set of versioned entity kinds.
type EntityKind string

const (
	KindPatient  EntityKind = "patient"
	KindCarePlan EntityKind = "carePlan"
	KindContact  EntityKind = "contact"
	KindTask     EntityKind = "task"
	KindOutcome  EntityKind = "outcome"
)

// EntityKinds lists every kind in a fixed order, used when iterating the
// whole store deterministically.
var EntityKinds = []EntityKind{KindPatient, KindCarePlan, KindContact, KindTask, KindOutcome}

// Entity is a tagged union over the fixed entity kinds. Exactly one field is
// non-nil. The store boundary dispatches on Kind with a closed switch rather
// than open dynamic dispatch.
type Entity struct {
	Patient  *Patient
	CarePlan *CarePlan
	Contact  *Contact
	Task     *Task
	Outcome  *Outcome
}

// TaskEntity wraps a task.
func TaskEntity(t Task) Entity { return Entity{Task: &t} }

// CarePlanEntity wraps a care plan.
func CarePlanEntity(p CarePlan) Entity { return Entity{CarePlan: &p} }

// PatientEntity wraps a patient.
func PatientEntity(p Patient) Entity { return Entity{Patient: &p} }

// ContactEntity wraps a contact.
func ContactEntity(c Contact) Entity { return Entity{Contact: &c} }

// OutcomeEntity wraps an outcome.
func OutcomeEntity(o Outcome) Entity { return Entity{Outcome: &o} }

// Kind returns the discriminator for the wrapped entity, or "" for the zero
// union.
func (e Entity) Kind() EntityKind {
	switch {
	case e.Patient != nil:
		return KindPatient
	case e.CarePlan != nil:
		return KindCarePlan
	case e.Contact != nil:
		return KindContact
	case e.Task != nil:
		return KindTask
	case e.Outcome != nil:
		return KindOutcome
	default:
		return ""
	}
}

// Versioned returns the wrapped entity through the VersionedObject
// capability, or nil for the zero union.
func (e Entity) Versioned() VersionedObject {
	switch {
	case e.Patient != nil:
		return e.Patient
	case e.CarePlan != nil:
		return e.CarePlan
	case e.Contact != nil:
		return e.Contact
	case e.Task != nil:
		return e.Task
	case e.Outcome != nil:
		return e.Outcome
	default:
		return nil
	}
}

// Meta returns a pointer to the wrapped entity's version metadata, or nil
// for the zero union. The store engine mutates store-assigned fields through
// it.
func (e Entity) Meta() *VersionMeta {
	switch {
	case e.Patient != nil:
		return &e.Patient.VersionMeta
	case e.CarePlan != nil:
		return &e.CarePlan.VersionMeta
	case e.Contact != nil:
		return &e.Contact.VersionMeta
	case e.Task != nil:
		return &e.Task.VersionMeta
	case e.Outcome != nil:
		return &e.Outcome.VersionMeta
	default:
		return nil
	}
}

// Validate dispatches to the wrapped entity's structural validation.
func (e Entity) Validate() error {
	switch {
	case e.Patient != nil:
		return e.Patient.Validate()
	case e.CarePlan != nil:
		return e.CarePlan.Validate()
	case e.Contact != nil:
		return e.Contact.Validate()
	case e.Task != nil:
		return e.Task.Validate()
	case e.Outcome != nil:
		return e.Outcome.Validate()
	default:
		return ErrInvalidData
	}
}

// Clone returns a deep-enough copy: the wrapped struct is copied by value so
// mutating the clone's metadata never aliases the original.
func (e Entity) Clone() Entity {
	switch {
	case e.Patient != nil:
		p := *e.Patient
		return Entity{Patient: &p}
	case e.CarePlan != nil:
		p := *e.CarePlan
		return Entity{CarePlan: &p}
	case e.Contact != nil:
		c := *e.Contact
		return Entity{Contact: &c}
	case e.Task != nil:
		t := *e.Task
		return Entity{Task: &t}
	case e.Outcome != nil:
		o := *e.Outcome
		return Entity{Outcome: &o}
	default:
		return Entity{}
	}
}

// entityEnvelope is the wire form of the union: a kind tag plus the payload.
type entityEnvelope struct {
	Type   EntityKind      `json:"type"`
	Object json.RawMessage `json:"object"`
}

// MarshalJSON encodes the union as {"type": ..., "object": {...}}.
func (e Entity) MarshalJSON() ([]byte, error) {
	var obj any
	switch {
	case e.Patient != nil:
		obj = e.Patient
	case e.CarePlan != nil:
		obj = e.CarePlan
	case e.Contact != nil:
		obj = e.Contact
	case e.Task != nil:
		obj = e.Task
	case e.Outcome != nil:
		obj = e.Outcome
	default:
		return nil, fmt.Errorf("marshal entity: %w", ErrInvalidData)
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entityEnvelope{Type: e.Kind(), Object: payload})
}

// UnmarshalJSON decodes the tagged wire form with a closed switch over the
// known kinds.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var env entityEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*e = Entity{}
	switch env.Type {
	case KindPatient:
		e.Patient = &Patient{}
		return json.Unmarshal(env.Object, e.Patient)
	case KindCarePlan:
		e.CarePlan = &CarePlan{}
		return json.Unmarshal(env.Object, e.CarePlan)
	case KindContact:
		e.Contact = &Contact{}
		return json.Unmarshal(env.Object, e.Contact)
	case KindTask:
		e.Task = &Task{}
		return json.Unmarshal(env.Object, e.Task)
	case KindOutcome:
		e.Outcome = &Outcome{}
		return json.Unmarshal(env.Object, e.Outcome)
	default:
		return fmt.Errorf("unmarshal entity: unknown kind %q", env.Type)
	}
}
