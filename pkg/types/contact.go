package types

import (
	"time"

	"github.com/google/uuid"
)

// LabeledValue is a display label paired with a value, used for contact
// points such as ("work", "jane@example.com").
type LabeledValue struct {
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// Contact is a person relevant to a patient's care, such as a physician or
// family member. A contact optionally belongs to a care plan.
type Contact struct {
	VersionMeta

	GivenName      string         `json:"givenName,omitempty"`
	FamilyName     string         `json:"familyName,omitempty"`
	Role           string         `json:"role,omitempty"`
	EmailAddresses []LabeledValue `json:"emailAddresses,omitempty"`
	PhoneNumbers   []LabeledValue `json:"phoneNumbers,omitempty"`

	// CarePlanUUID references the specific care-plan version this contact
	// belongs to.
	CarePlanUUID *uuid.UUID `json:"carePlanUUID,omitempty"`
}

// NewContact builds a contact effective immediately.
func NewContact(id, givenName, familyName string, carePlanUUID *uuid.UUID) Contact {
	return Contact{
		VersionMeta: VersionMeta{
			ID:            id,
			EffectiveDate: time.Now(),
			Timezone:      time.Now().Location().String(),
		},
		GivenName:    givenName,
		FamilyName:   familyName,
		CarePlanUUID: carePlanUUID,
	}
}

// Validate checks structural requirements at construction time.
func (c *Contact) Validate() error {
	return c.validateMeta()
}

// BelongsTo reports whether the contact belongs to the given care-plan
// version.
func (c *Contact) BelongsTo(plan *CarePlan) bool {
	return c.CarePlanUUID != nil && plan != nil && *c.CarePlanUUID == plan.UUID
}
