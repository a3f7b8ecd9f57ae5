package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/pkg/cryptox"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

const DefaultBootstrapUsername = "superadmin"

// BootstrapService makes sure a fresh installation can be administered.
type BootstrapService struct {
	Credentials *CredentialService
	Username    string
	Password    string // generated when empty
	Email       string
}

// EnsureSuperAdmin creates the initial super_admin when no active one exists.
// If an account with the bootstrap username is already there (disabled or
// demoted) it is reactivated, promoted and given the bootstrap password
// instead. It reports whether an account was created or restored.
func (s *BootstrapService) EnsureSuperAdmin(ctx context.Context) (bool, error) {
	l := slogx.FromContext(ctx)

	n, err := s.Credentials.Store.Users().CountActiveByRole(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return false, fmt.Errorf("count super admins: %w", err)
	}
	if n > 0 {
		l.Debug("super admin present, skipping bootstrap")
		return false, nil
	}

	username := s.Username
	if username == "" {
		username = DefaultBootstrapUsername
	}
	email := s.Email
	if email == "" {
		email = username + "@localhost"
	}

	password := s.Password
	generated := password == ""
	if generated {
		password, err = cryptox.GeneratePassword()
		if err != nil {
			return false, err
		}
	}

	var (
		u   domain.User
		msg = "created initial super admin, change its password after first login"
	)
	existing, err := s.Credentials.GetUser(ctx, username)
	switch {
	case err == nil:
		u, err = s.restore(ctx, existing, password)
		if err != nil {
			return false, fmt.Errorf("restore super admin: %w", err)
		}
		msg = "no active super admin, restored bootstrap account, change its password after first login"
	case errors.Is(err, ErrNotFound):
		u, err = s.Credentials.CreateUser(ctx, NewUser{
			Username: username,
			Password: password,
			Email:    email,
			Role:     domain.RoleSuperAdmin,
		})
		if err != nil {
			return false, fmt.Errorf("create super admin: %w", err)
		}
	default:
		return false, err
	}

	attrs := []any{
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	}
	if generated {
		// The only credential ever written to the log; it exists nowhere else.
		attrs = append(attrs, slog.String("bootstrap_password", password))
	}
	l.Warn(msg, attrs...)
	return true, nil
}

func (s *BootstrapService) restore(ctx context.Context, u domain.User, password string) (domain.User, error) {
	active := true
	if _, err := s.Credentials.UpdateUser(ctx, u.Username, UserUpdate{Active: &active, Password: &password}); err != nil {
		return domain.User{}, err
	}
	return s.Credentials.ChangeRole(ctx, u.Username, domain.RoleSuperAdmin)
}
