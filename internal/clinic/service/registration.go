package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
)

// Registration is a self-service sign-up. Patient details are only required
// once the installation has its first account.
type Registration struct {
	Username string
	Password string
	Confirm  string
	Email    string // defaults to PatientEmail

	PatientName  string
	PatientEmail string
	PatientPhone string
}

// Register creates an account without an authenticated caller. On an empty
// installation the registrant becomes the super_admin. Afterwards only
// patients already on file may register: name, email and phone must all
// match one patient record, and the new user account is linked to it.
func (s *CredentialService) Register(ctx context.Context, r Registration) (domain.User, error) {
	if r.Password != r.Confirm {
		return domain.User{}, ErrPasswordMismatch
	}

	email := strings.TrimSpace(r.Email)
	if email == "" {
		email = strings.TrimSpace(r.PatientEmail)
	}
	u, err := s.newAccount(NewUser{Username: r.Username, Password: r.Password, Email: email})
	if err != nil {
		return domain.User{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		total := 0
		for _, role := range domain.Roles {
			n, err := tx.Users().CountByRole(ctx, role)
			if err != nil {
				return err
			}
			total += n
		}

		if total == 0 {
			u.Role = domain.RoleSuperAdmin
		} else {
			p, err := matchPatient(ctx, tx, r)
			if err != nil {
				return err
			}
			u.PatientID = p.ID
		}

		u, err = insertUser(ctx, tx, u)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	logUserCreated(ctx, "user registered", u)
	return u, nil
}

// matchPatient finds the patient r claims to be. Any mismatch reports
// ErrNoMatchingPatient without saying which detail was wrong.
func matchPatient(ctx context.Context, tx store.Tx, r Registration) (domain.Patient, error) {
	name := strings.TrimSpace(r.PatientName)
	email := strings.TrimSpace(r.PatientEmail)
	phone := strings.TrimSpace(r.PatientPhone)
	if name == "" || email == "" || phone == "" {
		return domain.Patient{}, fmt.Errorf("%w: patient name, email and phone are required", ErrInvalidUser)
	}

	p, err := tx.Patients().GetPatientByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Patient{}, ErrNoMatchingPatient
		}
		return domain.Patient{}, err
	}
	if !strings.EqualFold(p.Email, email) || p.Phone != phone {
		return domain.Patient{}, ErrNoMatchingPatient
	}
	return p, nil
}
