package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/metrics"
	"github.com/aussiebroadwan/clinic/internal/clinic/policy"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

// Principal is the authenticated identity every Session call acts as.
type Principal struct {
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	PatientID string      `json:"patient_id,omitempty"`
}

// PrincipalOf is the principal a logged-in user acts as.
func PrincipalOf(u domain.User) Principal {
	return Principal{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		PatientID: u.PatientID,
	}
}

// Core bundles the services behind the access layer.
type Core struct {
	Credentials *CredentialService
	Directory   *DirectoryService
	Ledger      *LedgerService
	Backups     *BackupService // optional
}

// Authenticate logs a user in and returns the principal to open a Session with.
func (c *Core) Authenticate(ctx context.Context, username, password, otp string) (Principal, error) {
	u, err := c.Credentials.Authenticate(ctx, username, password, otp)
	if err != nil {
		return Principal{}, err
	}
	return PrincipalOf(u), nil
}

// Register signs up a new account; see CredentialService.Register. There is
// no caller yet, so no policy check applies.
func (c *Core) Register(ctx context.Context, r Registration) (domain.User, error) {
	return c.Credentials.Register(ctx, r)
}

// Principal reloads the principal for userID from storage so role changes
// and deactivation take effect on the next request. A missing or inactive
// account yields ErrInvalidCredentials.
func (c *Core) Principal(ctx context.Context, userID string) (Principal, error) {
	u, err := c.Credentials.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if !u.Active {
		return Principal{}, ErrInvalidCredentials
	}
	return PrincipalOf(u), nil
}

// Session returns the access layer for p.
func (c *Core) Session(p Principal) *Session {
	return &Session{core: c, p: p}
}

// Session runs every operation as one principal, checking the role policy
// before delegating to the owning service.
type Session struct {
	core *Core
	p    Principal
}

func (s *Session) Principal() Principal { return s.p }

func (s *Session) authorize(ctx context.Context, action policy.Action, own policy.Ownership) error {
	own.ActorPatientID = s.p.PatientID
	if policy.Authorize(s.p.Role, action, own).Allowed() {
		return nil
	}
	metrics.ObserveDenied(s.p.Role.String(), string(action))
	slogx.FromContext(ctx).Warn("access denied",
		slog.String("user_id", s.p.UserID),
		slog.String("role", s.p.Role.String()),
		slog.String("action", string(action)),
	)
	return ErrForbidden
}

// ownedPatient loads a patient for a self-scoped action. Callers who may not
// see every patient get ErrForbidden for unknown names, so existence is not
// disclosed to them.
func (s *Session) ownedPatient(ctx context.Context, name string, action policy.Action) (domain.Patient, error) {
	p, err := s.core.Directory.GetContact(ctx, name)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) && !s.seesAllPatients() {
			return domain.Patient{}, s.authorize(ctx, action, policy.Ownership{})
		}
		return domain.Patient{}, err
	}
	if err := s.authorize(ctx, action, policy.Ownership{OwnerPatientID: p.ID}); err != nil {
		return domain.Patient{}, err
	}
	return p, nil
}

func (s *Session) seesAllPatients() bool {
	return policy.Authorize(s.p.Role, policy.ViewAllPatients, policy.Ownership{}).Allowed()
}

// Profile is what a principal sees about themself.
type Profile struct {
	User    domain.User
	Patient *domain.Patient
}

// Profile returns the caller's account and, when linked, patient record.
func (s *Session) Profile(ctx context.Context) (Profile, error) {
	u, err := s.core.Credentials.GetUserByID(ctx, s.p.UserID)
	if err != nil {
		return Profile{}, err
	}
	out := Profile{User: u}
	if u.PatientID == "" {
		return out, nil
	}
	if err := s.authorize(ctx, policy.ViewOwn, policy.Ownership{OwnerPatientID: u.PatientID}); err != nil {
		return Profile{}, err
	}
	p, err := s.core.Directory.GetContactByID(ctx, u.PatientID)
	if err != nil {
		return Profile{}, err
	}
	out.Patient = &p
	return out, nil
}

// Directory

func (s *Session) AddContact(ctx context.Context, in PatientInput) (domain.Patient, error) {
	if err := s.authorize(ctx, policy.EditPatient, policy.Ownership{}); err != nil {
		return domain.Patient{}, err
	}
	return s.core.Directory.AddContact(ctx, in)
}

// GetContact is open to staff and to a patient reading their own record.
func (s *Session) GetContact(ctx context.Context, name string) (domain.Patient, error) {
	return s.ownedPatient(ctx, name, policy.ViewOwn)
}

func (s *Session) UpdateContact(ctx context.Context, oldName string, in PatientInput) (domain.Patient, error) {
	if err := s.authorize(ctx, policy.EditPatient, policy.Ownership{}); err != nil {
		return domain.Patient{}, err
	}
	return s.core.Directory.UpdateContact(ctx, oldName, in)
}

func (s *Session) DeleteContact(ctx context.Context, name string) (int, error) {
	if err := s.authorize(ctx, policy.DeletePatient, policy.Ownership{}); err != nil {
		return 0, err
	}
	return s.core.Directory.DeleteContact(ctx, name, s.p.UserID)
}

func (s *Session) SearchContacts(ctx context.Context, query string) ([]domain.Patient, error) {
	if err := s.authorize(ctx, policy.ViewAllPatients, policy.Ownership{}); err != nil {
		return nil, err
	}
	return s.core.Directory.SearchContacts(ctx, query)
}

func (s *Session) ListAll(ctx context.Context) ([]domain.Patient, error) {
	if err := s.authorize(ctx, policy.ViewAllPatients, policy.Ownership{}); err != nil {
		return nil, err
	}
	return s.core.Directory.ListAll(ctx)
}

func (s *Session) CreateCategory(ctx context.Context, name, description string) (domain.Category, error) {
	if err := s.authorize(ctx, policy.ManageCategories, policy.Ownership{}); err != nil {
		return domain.Category{}, err
	}
	return s.core.Directory.CreateCategory(ctx, name, description)
}

func (s *Session) GetCategory(ctx context.Context, name string) (domain.Category, error) {
	if err := s.authorize(ctx, policy.ViewAllPatients, policy.Ownership{}); err != nil {
		return domain.Category{}, err
	}
	return s.core.Directory.GetCategory(ctx, name)
}

func (s *Session) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if err := s.authorize(ctx, policy.ViewAllPatients, policy.Ownership{}); err != nil {
		return nil, err
	}
	return s.core.Directory.ListCategories(ctx)
}

func (s *Session) UpdateCategory(ctx context.Context, name, newName, description string) (domain.Category, error) {
	if err := s.authorize(ctx, policy.ManageCategories, policy.Ownership{}); err != nil {
		return domain.Category{}, err
	}
	return s.core.Directory.UpdateCategory(ctx, name, newName, description)
}

func (s *Session) DeleteCategory(ctx context.Context, name string) error {
	if err := s.authorize(ctx, policy.ManageCategories, policy.Ownership{}); err != nil {
		return err
	}
	return s.core.Directory.DeleteCategory(ctx, name)
}

func (s *Session) GetStatistics(ctx context.Context) (domain.Statistics, error) {
	if err := s.authorize(ctx, policy.ViewAllPatients, policy.Ownership{}); err != nil {
		return domain.Statistics{}, err
	}
	return s.core.Directory.GetStatistics(ctx)
}

// Ledger

// CreateAppointment books for the named patient. Patients may only book for
// themselves; the booking is recorded as created by the principal.
func (s *Session) CreateAppointment(ctx context.Context, req AppointmentRequest) (domain.Appointment, error) {
	p, err := s.ownedPatient(ctx, req.PatientName, policy.BookAppointment)
	if err != nil {
		return domain.Appointment{}, err
	}
	req.PatientName = p.Name
	req.CreatedBy = s.p.UserID
	return s.core.Ledger.CreateAppointment(ctx, req)
}

// GetAppointments lists all appointments for staff, the caller's own for patients.
func (s *Session) GetAppointments(ctx context.Context) ([]domain.Appointment, error) {
	if !s.seesAllPatients() {
		if s.p.PatientID == "" {
			return []domain.Appointment{}, nil
		}
		if err := s.authorize(ctx, policy.ViewOwn, policy.Ownership{OwnerPatientID: s.p.PatientID}); err != nil {
			return nil, err
		}
	}
	return s.core.Ledger.GetAppointments(ctx, s.p)
}

func (s *Session) CancelAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return s.core.Ledger.CancelAppointment(ctx, id, s.p)
}

// GetPatientAppointments returns a patient's history. Detached history of
// deleted patients is staff only.
func (s *Session) GetPatientAppointments(ctx context.Context, patientName string) ([]domain.Appointment, error) {
	if _, err := s.ownedPatient(ctx, patientName, policy.ViewOwn); err != nil {
		if !errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		if err := s.authorize(ctx, policy.ViewAllAppointments, policy.Ownership{}); err != nil {
			return nil, err
		}
	}
	return s.core.Ledger.GetPatientAppointments(ctx, patientName)
}

// AvailableSlots is open to anyone allowed to book for themselves.
func (s *Session) AvailableSlots(ctx context.Context, date string) ([]domain.Slot, error) {
	own := policy.Ownership{OwnerPatientID: s.p.PatientID}
	if err := s.authorize(ctx, policy.BookAppointment, own); err != nil {
		return nil, err
	}
	return s.core.Ledger.AvailableSlots(ctx, date)
}

// Users

// CreateUser is open to admins for user accounts and to super_admins for any role.
func (s *Session) CreateUser(ctx context.Context, in NewUser) (domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if err := s.authorize(ctx, policy.ManageUsers, policy.Ownership{TargetRole: role}); err != nil {
		return domain.User{}, err
	}
	return s.core.Credentials.CreateUser(ctx, in)
}

func (s *Session) UpdateUser(ctx context.Context, username string, upd UserUpdate) (domain.User, error) {
	if err := s.authorize(ctx, policy.ManageUsers, policy.Ownership{}); err != nil {
		return domain.User{}, err
	}
	target, err := s.core.Credentials.GetUser(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.authorize(ctx, policy.ManageUsers, policy.Ownership{TargetRole: target.Role}); err != nil {
		return domain.User{}, err
	}
	return s.core.Credentials.UpdateUser(ctx, target.Username, upd)
}

// DeleteUser is super_admin only, and never on one's own account.
func (s *Session) DeleteUser(ctx context.Context, username string) error {
	if err := s.authorize(ctx, policy.DeleteUser, policy.Ownership{}); err != nil {
		return err
	}
	target, err := s.core.Credentials.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if target.ID == s.p.UserID {
		return ErrForbidden
	}
	return s.core.Credentials.DeleteUser(ctx, target.Username)
}

func (s *Session) ChangeRole(ctx context.Context, username string, role domain.Role) (domain.User, error) {
	if err := s.authorize(ctx, policy.ChangeRole, policy.Ownership{TargetRole: role}); err != nil {
		return domain.User{}, err
	}
	return s.core.Credentials.ChangeRole(ctx, username, role)
}

func (s *Session) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := s.authorize(ctx, policy.ManageUsers, policy.Ownership{}); err != nil {
		return nil, err
	}
	return s.core.Credentials.ListUsers(ctx)
}

// MFA management acts on the caller's own account only.

func (s *Session) EnrollTOTP(ctx context.Context) (domain.MFAEnrollment, error) {
	return s.core.Credentials.EnrollTOTP(ctx, s.p.UserID)
}

func (s *Session) ConfirmTOTP(ctx context.Context, code string) error {
	return s.core.Credentials.ConfirmTOTP(ctx, s.p.UserID, code)
}

func (s *Session) DisableTOTP(ctx context.Context, code string) error {
	return s.core.Credentials.DisableTOTP(ctx, s.p.UserID, code)
}

// Overview is the super-admin panel.
type Overview struct {
	Statistics  domain.Statistics   `json:"statistics"`
	UsersByRole map[domain.Role]int `json:"users_by_role"`
}

func (s *Session) Overview(ctx context.Context) (Overview, error) {
	if err := s.authorize(ctx, policy.ViewSuperAdminPanel, policy.Ownership{}); err != nil {
		return Overview{}, err
	}
	stats, err := s.core.Directory.GetStatistics(ctx)
	if err != nil {
		return Overview{}, err
	}
	byRole, err := s.core.Credentials.CountByRole(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Statistics: stats, UsersByRole: byRole}, nil
}

// Backup snapshots the database from the super-admin panel.
func (s *Session) Backup(ctx context.Context) (Backup, error) {
	if err := s.authorize(ctx, policy.ViewSuperAdminPanel, policy.Ownership{}); err != nil {
		return Backup{}, err
	}
	if s.core.Backups == nil {
		return Backup{}, ErrBackupUnsupported
	}
	b, err := s.core.Backups.Backup(ctx)
	if err != nil {
		return Backup{}, err
	}
	slogx.FromContext(ctx).Info("backup requested", slog.String("user_id", s.p.UserID))
	return b, nil
}
