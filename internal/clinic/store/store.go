package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrReferenced is returned when a delete would orphan rows that point at
	// the record through a restricting foreign key.
	ErrReferenced = errors.New("store: still referenced")
	// ErrUnsupported is returned by operations a driver cannot perform.
	ErrUnsupported = errors.New("store: not supported by this driver")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories hang off it so that a Tx exposes exactly
// the same surface as the root store.
type Store interface {
	Users() Users
	Patients() Patients
	Categories() Categories
	Appointments() Appointments

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Inside fn only
	// the tx argument may be used; the sqlite driver runs on a single
	// connection and touching the outer store would block.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Backup writes a consistent copy of the database to the file dest,
	// which must not exist yet. ErrUnsupported when the driver has no
	// in-process way to do so.
	Backup(ctx context.Context, dest string) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername matches case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user. ErrAlreadyExists when the username or
	// email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser rewrites the mutable fields (username, email, password hash,
	// role, active, patient link) and bumps updated_at.
	UpdateUser(ctx context.Context, u domain.User) error

	DeleteUser(ctx context.Context, id string) error

	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]domain.User, error)

	// CountByRole counts users holding role.
	CountByRole(ctx context.Context, role domain.Role) (int, error)

	// CountActiveByRole counts users holding role who may still log in.
	CountActiveByRole(ctx context.Context, role domain.Role) (int, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// SetMFASecret stores a pending TOTP secret without enabling it.
	SetMFASecret(ctx context.Context, id string, secret string) error
	EnableMFA(ctx context.Context, id string, at time.Time) error
	// DisableMFA clears both the secret and the enabled timestamp.
	DisableMFA(ctx context.Context, id string) error
}

type Patients interface {
	// CreatePatient inserts a patient. ErrAlreadyExists on a name clash.
	CreatePatient(ctx context.Context, p domain.Patient) error

	GetPatientByID(ctx context.Context, id string) (domain.Patient, error)

	// GetPatientByName matches case-insensitively.
	GetPatientByName(ctx context.Context, name string) (domain.Patient, error)

	// UpdatePatient rewrites every field except id and created_at.
	UpdatePatient(ctx context.Context, p domain.Patient) error

	DeletePatient(ctx context.Context, id string) error

	// SearchPatients does a case-insensitive substring match over name,
	// email, phone and category, ordered by name.
	SearchPatients(ctx context.Context, query string) ([]domain.Patient, error)

	// ListPatients returns every patient ordered by name.
	ListPatients(ctx context.Context) ([]domain.Patient, error)

	CountPatients(ctx context.Context) (int, error)
}

type Categories interface {
	// CreateCategory inserts a category. ErrAlreadyExists on a name clash.
	CreateCategory(ctx context.Context, c domain.Category) error

	// GetCategoryByName matches case-insensitively.
	GetCategoryByName(ctx context.Context, name string) (domain.Category, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)

	// UpdateCategory renames and re-describes a category. Patients follow the
	// rename through the foreign key.
	UpdateCategory(ctx context.Context, c domain.Category) error

	// DeleteCategory removes an empty category. ErrReferenced when patients
	// still belong to it.
	DeleteCategory(ctx context.Context, id string) error

	// CountMembers returns how many patients belong to each category,
	// including empty ones, ordered by category name.
	CountMembers(ctx context.Context) ([]domain.CategoryCount, error)
}

type Appointments interface {
	// CreateAppointment inserts a scheduled appointment. ErrAlreadyExists when
	// the slot already holds a scheduled appointment.
	CreateAppointment(ctx context.Context, a domain.Appointment) error

	GetAppointmentByID(ctx context.Context, id string) (domain.Appointment, error)

	// ListAppointments returns all appointments ordered by date and time.
	ListAppointments(ctx context.Context) ([]domain.Appointment, error)

	// ListByPatientID returns one patient's appointments ordered by date and time.
	ListByPatientID(ctx context.Context, patientID string) ([]domain.Appointment, error)

	// ListDetachedByName returns appointments whose patient was deleted and
	// whose snapshot name matches case-insensitively. Histories of deleted
	// patients that shared a name come back merged.
	ListDetachedByName(ctx context.Context, name string) ([]domain.Appointment, error)

	// ListScheduledOn returns the scheduled appointments of one day.
	ListScheduledOn(ctx context.Context, date string) ([]domain.Appointment, error)

	// Cancel moves a scheduled appointment to cancelled. It returns false
	// when the appointment was not scheduled any more.
	Cancel(ctx context.Context, id, by string, at time.Time) (bool, error)

	// CancelScheduledForPatient cancels every scheduled appointment of a
	// patient and returns how many changed.
	CancelScheduledForPatient(ctx context.Context, patientID, by string, at time.Time) (int, error)

	// RenamePatient refreshes the patient_name snapshot of every appointment
	// linked to patientID.
	RenamePatient(ctx context.Context, patientID, name string) error

	// CompleteEnded marks scheduled appointments completed when they ended
	// on or before the given date and HH:MM time.
	CompleteEnded(ctx context.Context, date, hhmm string, at time.Time) (int, error)

	// CountByStatus returns how many appointments sit in each status.
	CountByStatus(ctx context.Context) (map[domain.AppointmentStatus]int, error)
}
