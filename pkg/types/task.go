package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesh-health/careledger/pkg/schedule"
)

// Task represents an action a patient is supposed to perform, such as taking
// a medication. A task optionally belongs to a care plan and must have a
// unique id and a schedule. The schedule determines when and how often the
// task occurs.
type Task struct {
	VersionMeta

	// CarePlanUUID references the specific care-plan version this task
	// belongs to, not the plan's logical id.
	CarePlanUUID *uuid.UUID `json:"carePlanUUID,omitempty"`

	Title        string `json:"title,omitempty"`
	Instructions string `json:"instructions,omitempty"`

	// ImpactsAdherence controls whether completion of this task counts
	// toward the patient's adherence.
	ImpactsAdherence bool `json:"impactsAdherence"`

	Schedule schedule.Schedule `json:"schedule"`
}

// NewTask builds a task with its effective date defaulted to the schedule's
// start date and adherence tracking enabled.
func NewTask(id, title string, carePlanUUID *uuid.UUID, sched schedule.Schedule) Task {
	var effective time.Time
	if len(sched.Elements) > 0 {
		effective = sched.StartDate()
	}
	return Task{
		VersionMeta: VersionMeta{
			ID:            id,
			EffectiveDate: effective,
			Timezone:      time.Now().Location().String(),
		},
		Title:            title,
		CarePlanUUID:     carePlanUUID,
		ImpactsAdherence: true,
		Schedule:         sched,
	}
}

// Validate checks structural requirements at construction time.
func (t *Task) Validate() error {
	if err := t.validateMeta(); err != nil {
		return err
	}
	if len(t.Schedule.Elements) == 0 {
		return ErrInvalidSchedule
	}
	return nil
}

// BelongsTo reports whether the task belongs to the given care-plan version.
// Membership resolves by version UUID equality, not logical id.
func (t *Task) BelongsTo(plan *CarePlan) bool {
	return t.CarePlanUUID != nil && plan != nil && *t.CarePlanUUID == plan.UUID
}
