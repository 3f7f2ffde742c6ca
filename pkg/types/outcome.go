package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutcomeValue is a single recorded measurement or answer, such as a pain
// rating or a number of repetitions. Value round-trips through JSON, so
// numeric values decode as float64.
type OutcomeValue struct {
	Label string `json:"label,omitempty"`
	Units string `json:"units,omitempty"`
	Value any    `json:"value"`
}

// NewOutcomeValue wraps a raw value.
func NewOutcomeValue(v any) OutcomeValue { return OutcomeValue{Value: v} }

// Outcome records the result of completing one scheduled occurrence of a
// task. It is attached to a specific task version UUID and a zero-based
// occurrence index within that version's schedule; superseding the task
// version does not invalidate outcomes whose occurrence indices remain
// stable across the version boundary.
type Outcome struct {
	VersionMeta

	TaskUUID            uuid.UUID      `json:"taskUUID"`
	TaskOccurrenceIndex int            `json:"taskOccurrenceIndex"`
	Values              []OutcomeValue `json:"values,omitempty"`
}

// NewOutcome builds an outcome for the given task version and occurrence
// index. The logical id is derived from the pair, so one logical outcome
// exists per completed occurrence.
func NewOutcome(taskUUID uuid.UUID, occurrenceIndex int, values []OutcomeValue) Outcome {
	return Outcome{
		VersionMeta: VersionMeta{
			ID:            OutcomeID(taskUUID, occurrenceIndex),
			EffectiveDate: time.Now(),
			Timezone:      time.Now().Location().String(),
		},
		TaskUUID:            taskUUID,
		TaskOccurrenceIndex: occurrenceIndex,
		Values:              values,
	}
}

// OutcomeID derives the logical outcome id for a task version and occurrence
// index.
func OutcomeID(taskUUID uuid.UUID, occurrenceIndex int) string {
	return fmt.Sprintf("%s@%d", taskUUID, occurrenceIndex)
}

// Validate checks structural requirements at construction time.
func (o *Outcome) Validate() error {
	if err := o.validateMeta(); err != nil {
		return err
	}
	if o.TaskUUID == uuid.Nil {
		return ErrInvalidData
	}
	if o.TaskOccurrenceIndex < 0 {
		return ErrInvalidData
	}
	return nil
}

// BelongsTo reports whether the outcome belongs to the given task version.
// Membership resolves by version UUID equality, not logical id.
func (o *Outcome) BelongsTo(task *Task) bool {
	return task != nil && o.TaskUUID == task.UUID
}
