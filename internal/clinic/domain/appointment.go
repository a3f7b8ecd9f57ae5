package domain

import "time"

// AppointmentStatus is the lifecycle state of an appointment. Scheduled is the
// only non-terminal state.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Wire formats for appointment dates and times.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Appointment struct {
	ID string `json:"id"`

	// PatientID is empty once the patient has been deleted; PatientName keeps
	// the display name the appointment was last known under.
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name"`

	Date    string            `json:"date"`     // YYYY-MM-DD
	Time    string            `json:"time"`     // HH:MM
	EndTime string            `json:"end_time"` // HH:MM
	Reason  string            `json:"reason,omitempty"`
	Notes   string            `json:"notes,omitempty"`
	Status  AppointmentStatus `json:"status"`

	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledBy string     `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// StartsAt resolves Date and Time in loc.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+a.Time, loc)
}

// Slot is one bookable interval of the office calendar.
type Slot struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	EndTime string `json:"end_time"`
}
