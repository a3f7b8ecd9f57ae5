package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/metrics"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/pkg/cryptox"
	"github.com/aussiebroadwan/clinic/pkg/idx"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	MinPasswordLength = 8
	MaxUsernameLength = 64
)

// CredentialService owns user accounts: password hashing, login, role changes
// and the optional TOTP second factor.
type CredentialService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Issuer string // TOTP issuer shown in authenticator apps
	Now    func() time.Time
}

// NewUser is the input of CreateUser. Role defaults to user.
type NewUser struct {
	Username    string
	Password    string
	Email       string
	Role        domain.Role
	PatientName string // optional link to an existing patient record
}

// UserUpdate is a partial update; nil fields are left alone. An empty
// PatientName unlinks the account from its patient.
type UserUpdate struct {
	Username    *string
	Email       *string
	Password    *string
	Active      *bool
	PatientName *string
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validateUsername(username string) error {
	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidUser, MaxUsernameLength)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: username must not contain spaces", ErrInvalidUser)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// mapUserWriteErr translates storage errors of user writes.
func mapUserWriteErr(err error) error {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrDuplicateIdentity
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	}
	return err
}

// linkPatient resolves the patient an account should point at.
func linkPatient(ctx context.Context, tx store.Tx, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	p, err := tx.Patients().GetPatientByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrPatientNotFound
		}
		return "", err
	}
	return p.ID, nil
}

// newAccount validates in and returns the user to insert, password hashed.
func (s *CredentialService) newAccount(in NewUser) (domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, ErrInvalidRole
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}
	if !validEmail(email) {
		return domain.User{}, fmt.Errorf("%w: invalid email", ErrInvalidUser)
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	return domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    s.now(),
	}, nil
}

// insertUser stores u and reads it back.
func insertUser(ctx context.Context, tx store.Tx, u domain.User) (domain.User, error) {
	if err := tx.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, mapUserWriteErr(err)
	}
	return tx.Users().GetUserByID(ctx, u.ID)
}

func logUserCreated(ctx context.Context, msg string, u domain.User) {
	slogx.FromContext(ctx).Info(msg,
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("role", u.Role.String()),
	)
}

// CreateUser validates and stores a new account.
func (s *CredentialService) CreateUser(ctx context.Context, in NewUser) (domain.User, error) {
	u, err := s.newAccount(in)
	if err != nil {
		return domain.User{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		patientID, err := linkPatient(ctx, tx, in.PatientName)
		if err != nil {
			return err
		}
		u.PatientID = patientID
		u, err = insertUser(ctx, tx, u)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	logUserCreated(ctx, "user created", u)
	return u, nil
}

// Authenticate checks a username/password pair, plus a TOTP code when the
// account has one enabled. Unknown users, wrong passwords and inactive
// accounts are indistinguishable to the caller.
func (s *CredentialService) Authenticate(ctx context.Context, username, password, code string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.User{}, err
		}
		// Pay for one verification anyway.
		_ = s.Hasher.Verify(password, s.Hasher.DummyHash())
		metrics.ObserveLogin("failure")
		l.Info("login failed", slog.String("reason", "unknown_user"))
		return domain.User{}, ErrInvalidCredentials
	}

	if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
		metrics.ObserveLogin("failure")
		l.Info("login failed", slog.String("user_id", u.ID), slog.String("reason", "password"))
		return domain.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		metrics.ObserveLogin("failure")
		l.Info("login failed", slog.String("user_id", u.ID), slog.String("reason", "inactive"))
		return domain.User{}, ErrInvalidCredentials
	}

	if u.MFAEnabled() {
		if strings.TrimSpace(code) == "" {
			metrics.ObserveLogin("mfa_required")
			return domain.User{}, ErrMFARequired
		}
		if !totp.Validate(strings.TrimSpace(code), *u.MFASecret) {
			metrics.ObserveLogin("failure")
			l.Info("login failed", slog.String("user_id", u.ID), slog.String("reason", "totp"))
			return domain.User{}, ErrInvalidCredentials
		}
	}

	at := s.now()
	if err := s.Store.Users().TouchLastLogin(ctx, u.ID, at); err != nil {
		return domain.User{}, fmt.Errorf("record login: %w", err)
	}
	u.LastLoginAt = &at

	metrics.ObserveLogin("success")
	l.Info("login succeeded", slog.String("user_id", u.ID))
	return u, nil
}

// UpdateUser applies a partial update to the account named username.
func (s *CredentialService) UpdateUser(ctx context.Context, username string, upd UserUpdate) (domain.User, error) {
	var newHash string
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return domain.User{}, err
		}
		hash, err := s.Hasher.Hash(*upd.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		newHash = hash
	}

	var u domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.Users().GetUserByUsername(ctx, username)
		if err != nil {
			return mapUserWriteErr(err)
		}

		if upd.Username != nil {
			name := strings.TrimSpace(*upd.Username)
			if err := validateUsername(name); err != nil {
				return err
			}
			u.Username = name
		}
		if upd.Email != nil {
			email := strings.TrimSpace(*upd.Email)
			if !validEmail(email) {
				return fmt.Errorf("%w: invalid email", ErrInvalidUser)
			}
			u.Email = email
		}
		if newHash != "" {
			u.PasswordHash = newHash
		}
		if upd.Active != nil {
			if !*upd.Active && u.Role == domain.RoleSuperAdmin {
				if err := ensureAnotherSuperAdmin(ctx, tx, u); err != nil {
					return err
				}
			}
			u.Active = *upd.Active
		}
		if upd.PatientName != nil {
			patientID, err := linkPatient(ctx, tx, *upd.PatientName)
			if err != nil {
				return err
			}
			u.PatientID = patientID
		}

		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return mapUserWriteErr(err)
		}
		u, err = tx.Users().GetUserByID(ctx, u.ID)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user updated", slog.String("user_id", u.ID))
	return u, nil
}

// ensureAnotherSuperAdmin fails when taking target out of the super_admin
// role (deleting, demoting or deactivating it) would leave no active
// super_admin. Inactive accounts cannot log in, so they never count.
func ensureAnotherSuperAdmin(ctx context.Context, tx store.Tx, target domain.User) error {
	if !target.Active {
		return nil
	}
	n, err := tx.Users().CountActiveByRole(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastSuperAdmin
	}
	return nil
}

// DeleteUser removes the account named username. The last super_admin
// cannot be deleted.
func (s *CredentialService) DeleteUser(ctx context.Context, username string) error {
	var deleted domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByUsername(ctx, username)
		if err != nil {
			return mapUserWriteErr(err)
		}
		if u.Role == domain.RoleSuperAdmin {
			if err := ensureAnotherSuperAdmin(ctx, tx, u); err != nil {
				return err
			}
		}
		deleted = u
		return mapUserWriteErr(tx.Users().DeleteUser(ctx, u.ID))
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user deleted",
		slog.String("user_id", deleted.ID),
		slog.String("username", deleted.Username),
	)
	return nil
}

// ChangeRole moves username to role. Demoting the last super_admin fails.
func (s *CredentialService) ChangeRole(ctx context.Context, username string, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, ErrInvalidRole
	}

	var (
		u    domain.User
		from domain.Role
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.Users().GetUserByUsername(ctx, username)
		if err != nil {
			return mapUserWriteErr(err)
		}
		from = u.Role
		if from == role {
			return nil
		}
		if from == domain.RoleSuperAdmin {
			if err := ensureAnotherSuperAdmin(ctx, tx, u); err != nil {
				return err
			}
		}
		u.Role = role
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return mapUserWriteErr(err)
		}
		u, err = tx.Users().GetUserByID(ctx, u.ID)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("role changed",
		slog.String("user_id", u.ID),
		slog.String("from", from.String()),
		slog.String("to", role.String()),
	)
	return u, nil
}

// ListUsers returns every account ordered by username.
func (s *CredentialService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}

// GetUser fetches an account by username.
func (s *CredentialService) GetUser(ctx context.Context, username string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, mapUserWriteErr(err)
	}
	return u, nil
}

// GetUserByID fetches an account by id.
func (s *CredentialService) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, mapUserWriteErr(err)
	}
	return u, nil
}

// CountByRole returns the number of accounts per role.
func (s *CredentialService) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	out := make(map[domain.Role]int, len(domain.Roles))
	for _, role := range domain.Roles {
		n, err := s.Store.Users().CountByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, nil
}

// EnrollTOTP generates a TOTP secret for the user. MFA is not enforced until
// the first code is confirmed with ConfirmTOTP.
func (s *CredentialService) EnrollTOTP(ctx context.Context, userID string) (domain.MFAEnrollment, error) {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	if u.MFAEnabled() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	if err := s.Store.Users().SetMFASecret(ctx, u.ID, key.Secret()); err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("failed to store MFA secret: %w", err)
	}

	return domain.MFAEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: u.Username,
	}, nil
}

// ConfirmTOTP enables MFA once the user proves they hold the secret.
func (s *CredentialService) ConfirmTOTP(ctx context.Context, userID, code string) error {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.MFASecret == nil || *u.MFASecret == "" {
		return ErrMFANotEnrolled
	}
	if u.MFAEnabled() {
		return ErrMFAAlreadyEnabled
	}
	if !totp.Validate(strings.TrimSpace(code), *u.MFASecret) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().EnableMFA(ctx, u.ID, s.now()); err != nil {
		return fmt.Errorf("failed to enable MFA: %w", err)
	}
	slogx.FromContext(ctx).Info("mfa enabled", slog.String("user_id", u.ID))
	return nil
}

// DisableTOTP turns MFA off after checking a current code.
func (s *CredentialService) DisableTOTP(ctx context.Context, userID, code string) error {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.MFAEnabled() {
		return ErrMFANotEnrolled
	}
	if !totp.Validate(strings.TrimSpace(code), *u.MFASecret) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().DisableMFA(ctx, u.ID); err != nil {
		return fmt.Errorf("failed to disable MFA: %w", err)
	}
	slogx.FromContext(ctx).Info("mfa disabled", slog.String("user_id", u.ID))
	return nil
}
