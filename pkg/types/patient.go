package types

import "time"

// Patient is the person care is tracked for.
type Patient struct {
	VersionMeta

	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
}

// NewPatient builds a patient effective immediately.
func NewPatient(id, givenName, familyName string) Patient {
	return Patient{
		VersionMeta: VersionMeta{
			ID:            id,
			EffectiveDate: time.Now(),
			Timezone:      time.Now().Location().String(),
		},
		GivenName:  givenName,
		FamilyName: familyName,
	}
}

// Validate checks structural requirements at construction time.
func (p *Patient) Validate() error {
	return p.validateMeta()
}
