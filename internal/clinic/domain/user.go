package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id PHC string
	Role         Role
	Active       bool

	// PatientID links a user account to the patient record it belongs to.
	// Empty for staff accounts that are not themselves patients.
	PatientID string

	MFASecret    *string    // TOTP secret (base32), set once enrolment starts
	MFAEnabledAt *time.Time // set once the first code is confirmed

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// MFAEnabled reports whether logins require a TOTP code.
func (u User) MFAEnabled() bool {
	return u.MFAEnabledAt != nil && u.MFASecret != nil && *u.MFASecret != ""
}

// MFAEnrollment is handed back once when a user starts TOTP enrolment.
type MFAEnrollment struct {
	Secret  string `json:"secret"`
	URL     string `json:"otpauth_url"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
