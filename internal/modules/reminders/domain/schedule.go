package domain

// Schedule is the reminder input of one identity.
type Schedule struct {
	User         string        `json:"user" mapstructure:"user"`
	Appointments []Appointment `json:"appointments" mapstructure:"appointments"`
	Medications  []Medication  `json:"medications" mapstructure:"medications"`
}
