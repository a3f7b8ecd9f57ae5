package domain

import "time"

// DefaultCategory is the category every patient falls into unless told
// otherwise. It always exists and cannot be removed.
const DefaultCategory = "Patient"

// Patient is a contact record in the office directory. ID is immutable;
// Name is unique (case-insensitively) but may be changed.
type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`

	BirthDate            string `json:"birth_date,omitempty"` // YYYY-MM-DD
	BloodGroup           string `json:"blood_group,omitempty"`
	Allergies            string `json:"allergies,omitempty"`
	Notes                string `json:"notes,omitempty"`
	SocialSecurityNumber string `json:"social_security_number,omitempty"`

	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`

	JobTitle string `json:"job_title,omitempty"`
	Company  string `json:"company,omitempty"`

	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BloodGroups are the accepted ABO/Rh values.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// Category groups patients in the directory.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryCount is one row of the per-category statistics.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Statistics summarises the directory and the ledger.
type Statistics struct {
	TotalPatients        int                       `json:"total_patients"`
	ByCategory           []CategoryCount           `json:"by_category"`
	AppointmentsByStatus map[AppointmentStatus]int `json:"appointments_by_status"`
}
