package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrMFARequired        = errors.New("mfa_required")
	ErrInvalidTOTPCode    = errors.New("invalid TOTP code")
	ErrMFANotEnrolled     = errors.New("MFA not enrolled")
	ErrMFAAlreadyEnabled  = errors.New("MFA already enabled for this user")

	ErrDuplicateIdentity = errors.New("username or email already in use")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidUser       = errors.New("invalid user")
	ErrLastSuperAdmin    = errors.New("cannot remove the last super_admin")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrNoMatchingPatient = errors.New("no patient matches these details")

	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")

	ErrPatientNotFound   = errors.New("patient not found")
	ErrInvalidPatient    = errors.New("invalid patient")
	ErrDuplicatePatient  = errors.New("a patient with this name already exists")
	ErrDuplicateCategory = errors.New("a category with this name already exists")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrCategoryInUse     = errors.New("category still has patients")
	ErrDefaultCategory   = errors.New("the default category cannot be changed")

	ErrInvalidSchedule        = errors.New("invalid schedule")
	ErrConflictingAppointment = errors.New("slot already booked")
	ErrAlreadyCancelled       = errors.New("appointment already cancelled")
	ErrAppointmentClosed      = errors.New("appointment already completed")

	ErrBackupUnsupported = errors.New("backups are not supported by this database")
)
