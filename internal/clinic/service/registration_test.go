package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/stretchr/testify/require"
)

func TestRegisterFirstAccountIsSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.core.Register(ctx, Registration{
		Username: "owner", Password: testPassword, Confirm: "correct-horse!", Email: "owner@clinic.test",
	})
	require.ErrorIs(t, err, ErrPasswordMismatch)

	u, err := f.core.Register(ctx, Registration{
		Username: "owner", Password: testPassword, Confirm: testPassword, Email: "owner@clinic.test",
	})
	require.NoError(t, err)
	require.Equal(t, domain.RoleSuperAdmin, u.Role)
	require.Empty(t, u.PatientID)

	p, err := f.core.Authenticate(ctx, "owner", testPassword, "")
	require.NoError(t, err)
	require.Equal(t, domain.RoleSuperAdmin, p.Role)

	// The second registrant gets no such luck.
	_, err = f.core.Register(ctx, Registration{
		Username: "second", Password: testPassword, Confirm: testPassword, Email: "second@clinic.test",
	})
	require.ErrorIs(t, err, ErrInvalidUser)
}

func TestRegisterExistingPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addUser(t, "root", domain.RoleSuperAdmin, "")
	jane, err := f.core.Directory.AddContact(ctx, PatientInput{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "555-0101",
	})
	require.NoError(t, err)

	reg := func(name, email, phone string) Registration {
		return Registration{
			Username:     "jane",
			Password:     testPassword,
			Confirm:      testPassword,
			PatientName:  name,
			PatientEmail: email,
			PatientPhone: phone,
		}
	}

	tests := []struct {
		name string
		in   Registration
		want error
	}{
		{"unknown patient", reg("John Roe", "jane@example.com", "555-0101"), ErrNoMatchingPatient},
		{"wrong email", reg("Jane Doe", "other@example.com", "555-0101"), ErrNoMatchingPatient},
		{"wrong phone", reg("Jane Doe", "jane@example.com", "555-0199"), ErrNoMatchingPatient},
		{"missing phone", reg("Jane Doe", "jane@example.com", ""), ErrInvalidUser},
		{"weak password", Registration{
			Username: "jane", Password: "short", Confirm: "short",
			PatientName: "Jane Doe", PatientEmail: "jane@example.com", PatientPhone: "555-0101",
		}, ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.Register(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	u, err := f.core.Register(ctx, reg("jane doe", "JANE@example.com", "555-0101"))
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, u.Role)
	require.Equal(t, jane.ID, u.PatientID)
	require.Equal(t, "JANE@example.com", u.Email, "account email defaults to the patient email given")

	_, err = f.core.Register(ctx, reg("Jane Doe", "jane@example.com", "555-0101"))
	require.ErrorIs(t, err, ErrDuplicateIdentity)

	p, err := f.core.Authenticate(ctx, "jane", testPassword, "")
	require.NoError(t, err)
	prof, err := f.core.Session(p).Profile(ctx)
	require.NoError(t, err)
	require.NotNil(t, prof.Patient)
	require.Equal(t, "Jane Doe", prof.Patient.Name)
}
