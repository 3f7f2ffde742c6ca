package types

import (
	"time"

	"github.com/google/uuid"
)

// CarePlan groups a set of tasks around one treatment, such as
// "post-surgery recovery". A plan optionally belongs to a patient.
type CarePlan struct {
	VersionMeta

	Title string `json:"title,omitempty"`

	// PatientUUID references the specific patient version this plan
	// belongs to.
	PatientUUID *uuid.UUID `json:"patientUUID,omitempty"`
}

// NewCarePlan builds a care plan effective immediately.
func NewCarePlan(id, title string, patientUUID *uuid.UUID) CarePlan {
	return CarePlan{
		VersionMeta: VersionMeta{
			ID:            id,
			EffectiveDate: time.Now(),
			Timezone:      time.Now().Location().String(),
		},
		Title:       title,
		PatientUUID: patientUUID,
	}
}

// Validate checks structural requirements at construction time.
func (p *CarePlan) Validate() error {
	return p.validateMeta()
}

// BelongsTo reports whether the plan belongs to the given patient version.
func (p *CarePlan) BelongsTo(patient *Patient) bool {
	return p.PatientUUID != nil && patient != nil && *p.PatientUUID == patient.UUID
}
