package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := f.core.Credentials

	u := f.addUser(t, "dr.smith", domain.RoleAdmin, "")
	require.Equal(t, domain.RoleAdmin, u.Role)
	require.True(t, u.Active)
	require.NotEqual(t, testPassword, u.PasswordHash)
	require.Contains(t, u.PasswordHash, "$argon2id$")

	t.Run("defaults to user role", func(t *testing.T) {
		u, err := creds.CreateUser(ctx, NewUser{Username: "plain", Password: testPassword, Email: "plain@clinic.test"})
		require.NoError(t, err)
		require.Equal(t, domain.RoleUser, u.Role)
	})

	t.Run("duplicate username or email", func(t *testing.T) {
		_, err := creds.CreateUser(ctx, NewUser{Username: "DR.SMITH", Password: testPassword, Email: "x@clinic.test"})
		require.ErrorIs(t, err, ErrDuplicateIdentity)

		_, err = creds.CreateUser(ctx, NewUser{Username: "other", Password: testPassword, Email: "dr.smith@clinic.test"})
		require.ErrorIs(t, err, ErrDuplicateIdentity)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := creds.CreateUser(ctx, NewUser{Username: "weak", Password: "short", Email: "weak@clinic.test"})
		require.ErrorIs(t, err, ErrWeakPassword)

		_, err = creds.CreateUser(ctx, NewUser{Username: "role", Password: testPassword, Email: "r@clinic.test", Role: "doctor"})
		require.ErrorIs(t, err, ErrInvalidRole)

		_, err = creds.CreateUser(ctx, NewUser{Username: "bad", Password: testPassword, Email: "not-an-email"})
		require.ErrorIs(t, err, ErrInvalidUser)

		_, err = creds.CreateUser(ctx, NewUser{Username: "two words", Password: testPassword, Email: "tw@clinic.test"})
		require.ErrorIs(t, err, ErrInvalidUser)
	})

	t.Run("links patient", func(t *testing.T) {
		p := f.addPatient(t, "Jane Doe")
		u := f.addUser(t, "jane", domain.RoleUser, "jane doe")
		require.Equal(t, p.ID, u.PatientID)

		_, err := creds.CreateUser(ctx, NewUser{Username: "ghost", Password: testPassword, Email: "g@clinic.test", PatientName: "Nobody"})
		require.ErrorIs(t, err, ErrPatientNotFound)
	})
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := f.core.Credentials

	u := f.addUser(t, "dr.smith", domain.RoleAdmin, "")

	t.Run("success records last login", func(t *testing.T) {
		got, err := creds.Authenticate(ctx, "dr.smith", testPassword, "")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.NotNil(t, got.LastLoginAt)

		stored, err := creds.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.LastLoginAt)
		require.True(t, stored.LastLoginAt.Equal(testNow))
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		_, unknown := creds.Authenticate(ctx, "nobody", testPassword, "")
		_, wrong := creds.Authenticate(ctx, "dr.smith", "wrong-password", "")

		inactive := false
		_, err := creds.UpdateUser(ctx, "dr.smith", UserUpdate{Active: &inactive})
		require.NoError(t, err)
		_, disabled := creds.Authenticate(ctx, "dr.smith", testPassword, "")

		for _, err := range []error{unknown, wrong, disabled} {
			require.ErrorIs(t, err, ErrInvalidCredentials)
			require.Equal(t, ErrInvalidCredentials.Error(), err.Error())
		}
	})
}

func TestAuthenticateWithTOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := f.core.Credentials

	u := f.addUser(t, "alice", domain.RoleUser, "")

	enrollment, err := creds.EnrollTOTP(ctx, u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.URL, "otpauth://totp/")
	require.Equal(t, "alice", enrollment.Account)

	// Not enforced until confirmed.
	_, err = creds.Authenticate(ctx, "alice", testPassword, "")
	require.NoError(t, err)

	require.ErrorIs(t, creds.ConfirmTOTP(ctx, u.ID, "000000"), ErrInvalidTOTPCode)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, creds.ConfirmTOTP(ctx, u.ID, code))
	require.ErrorIs(t, creds.ConfirmTOTP(ctx, u.ID, code), ErrMFAAlreadyEnabled)

	_, err = creds.EnrollTOTP(ctx, u.ID)
	require.ErrorIs(t, err, ErrMFAAlreadyEnabled)

	_, err = creds.Authenticate(ctx, "alice", testPassword, "")
	require.ErrorIs(t, err, ErrMFARequired)

	_, err = creds.Authenticate(ctx, "alice", testPassword, "000000")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = creds.Authenticate(ctx, "alice", testPassword, code)
	require.NoError(t, err)

	require.NoError(t, creds.DisableTOTP(ctx, u.ID, code))
	_, err = creds.Authenticate(ctx, "alice", testPassword, "")
	require.NoError(t, err)
	require.ErrorIs(t, creds.DisableTOTP(ctx, u.ID, code), ErrMFANotEnrolled)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := f.core.Credentials

	f.addUser(t, "alice", domain.RoleUser, "")
	f.addUser(t, "bob", domain.RoleUser, "")

	newName := "alicia"
	newPassword := "another-secret"
	u, err := creds.UpdateUser(ctx, "alice", UserUpdate{Username: &newName, Password: &newPassword})
	require.NoError(t, err)
	require.Equal(t, "alicia", u.Username)

	_, err = creds.Authenticate(ctx, "alicia", newPassword, "")
	require.NoError(t, err)
	_, err = creds.Authenticate(ctx, "alicia", testPassword, "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	taken := "bob@clinic.test"
	_, err = creds.UpdateUser(ctx, "alicia", UserUpdate{Email: &taken})
	require.ErrorIs(t, err, ErrDuplicateIdentity)

	short := "short"
	_, err = creds.UpdateUser(ctx, "alicia", UserUpdate{Password: &short})
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = creds.UpdateUser(ctx, "nobody", UserUpdate{Username: &newName})
	require.ErrorIs(t, err, ErrNotFound)

	p := f.addPatient(t, "Alicia Keys")
	link := "Alicia Keys"
	u, err = creds.UpdateUser(ctx, "alicia", UserUpdate{PatientName: &link})
	require.NoError(t, err)
	require.Equal(t, p.ID, u.PatientID)

	unlink := ""
	u, err = creds.UpdateUser(ctx, "alicia", UserUpdate{PatientName: &unlink})
	require.NoError(t, err)
	require.Empty(t, u.PatientID)
}

func TestLastSuperAdminProtection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := f.core.Credentials

	f.addUser(t, "root", domain.RoleSuperAdmin, "")

	require.ErrorIs(t, creds.DeleteUser(ctx, "root"), ErrLastSuperAdmin)

	_, err := creds.ChangeRole(ctx, "root", domain.RoleAdmin)
	require.ErrorIs(t, err, ErrLastSuperAdmin)

	inactive := false
	_, err = creds.UpdateUser(ctx, "root", UserUpdate{Active: &inactive})
	require.ErrorIs(t, err, ErrLastSuperAdmin)

	got, err := creds.GetUser(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, domain.RoleSuperAdmin, got.Role, "failed change leaves state untouched")
	require.True(t, got.Active)

	// With a second super_admin both operations go through.
	f.addUser(t, "root2", domain.RoleSuperAdmin, "")
	u, err := creds.ChangeRole(ctx, "root", domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, u.Role)
	require.ErrorIs(t, creds.DeleteUser(ctx, "root2"), ErrLastSuperAdmin)

	require.NoError(t, creds.DeleteUser(ctx, "root"))
	_, err = creds.GetUser(ctx, "root")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, creds.DeleteUser(ctx, "root"), ErrNotFound)

	_, err = creds.ChangeRole(ctx, "root2", "owner")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestLastSuperAdminIgnoresInactiveAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := f.core.Credentials

	f.addUser(t, "root", domain.RoleSuperAdmin, "")
	f.addUser(t, "root2", domain.RoleSuperAdmin, "")

	inactive := false
	_, err := creds.UpdateUser(ctx, "root2", UserUpdate{Active: &inactive})
	require.NoError(t, err)

	t.Run("demote", func(t *testing.T) {
		_, err := creds.ChangeRole(ctx, "root", domain.RoleAdmin)
		require.ErrorIs(t, err, ErrLastSuperAdmin)
	})

	t.Run("delete", func(t *testing.T) {
		require.ErrorIs(t, creds.DeleteUser(ctx, "root"), ErrLastSuperAdmin)
	})

	t.Run("deactivate", func(t *testing.T) {
		_, err := creds.UpdateUser(ctx, "root", UserUpdate{Active: &inactive})
		require.ErrorIs(t, err, ErrLastSuperAdmin)
	})

	n, err := f.store.Users().CountActiveByRole(ctx, domain.RoleSuperAdmin)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// The disabled account can go without touching the active one.
	_, err = creds.ChangeRole(ctx, "root2", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = creds.ChangeRole(ctx, "root2", domain.RoleSuperAdmin)
	require.NoError(t, err)
	require.NoError(t, creds.DeleteUser(ctx, "root2"))

	got, err := creds.GetUser(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, domain.RoleSuperAdmin, got.Role)
	require.True(t, got.Active)
}

func TestListUsersAndCountByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addUser(t, "zed", domain.RoleUser, "")
	f.addUser(t, "amy", domain.RoleAdmin, "")
	f.addUser(t, "Mia", domain.RoleSuperAdmin, "")

	users, err := f.core.Credentials.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, []string{"amy", "Mia", "zed"}, []string{users[0].Username, users[1].Username, users[2].Username})

	counts, err := f.core.Credentials.CountByRole(ctx)
	require.NoError(t, err)
	require.Equal(t, map[domain.Role]int{
		domain.RoleUser:       1,
		domain.RoleAdmin:      1,
		domain.RoleSuperAdmin: 1,
	}, counts)
}
