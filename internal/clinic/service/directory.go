package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/pkg/idx"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

// DirectoryService owns patients and categories. Renaming or deleting a
// patient also rewrites the appointments that point at it, inside the same
// transaction.
type DirectoryService struct {
	Store store.Store
	Now   func() time.Time
}

// PatientInput carries every editable patient field. An empty Category
// means the default category.
type PatientInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	BirthDate            string `json:"birth_date"`
	BloodGroup           string `json:"blood_group"`
	Allergies            string `json:"allergies"`
	Notes                string `json:"notes"`
	SocialSecurityNumber string `json:"social_security_number"`
	Address              string `json:"address"`
	City                 string `json:"city"`
	PostalCode           string `json:"postal_code"`
	Country              string `json:"country"`
	JobTitle             string `json:"job_title"`
	Company              string `json:"company"`
	Category             string `json:"category"`
}

func (s *DirectoryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (in PatientInput) normalize() PatientInput {
	out := PatientInput{
		Name:                 strings.Join(strings.Fields(in.Name), " "),
		Email:                strings.TrimSpace(in.Email),
		Phone:                strings.TrimSpace(in.Phone),
		BirthDate:            strings.TrimSpace(in.BirthDate),
		BloodGroup:           strings.ToUpper(strings.TrimSpace(in.BloodGroup)),
		Allergies:            strings.TrimSpace(in.Allergies),
		Notes:                strings.TrimSpace(in.Notes),
		SocialSecurityNumber: strings.TrimSpace(in.SocialSecurityNumber),
		Address:              strings.TrimSpace(in.Address),
		City:                 strings.TrimSpace(in.City),
		PostalCode:           strings.TrimSpace(in.PostalCode),
		Country:              strings.TrimSpace(in.Country),
		JobTitle:             strings.TrimSpace(in.JobTitle),
		Company:              strings.TrimSpace(in.Company),
		Category:             strings.TrimSpace(in.Category),
	}
	if out.Category == "" {
		out.Category = domain.DefaultCategory
	}
	return out
}

func (in PatientInput) validate(today time.Time) error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPatient)
	}
	if in.Email != "" && !validEmail(in.Email) {
		return fmt.Errorf("%w: invalid email", ErrInvalidPatient)
	}
	if in.BloodGroup != "" && !slices.Contains(domain.BloodGroups, in.BloodGroup) {
		return fmt.Errorf("%w: unknown blood group %q", ErrInvalidPatient, in.BloodGroup)
	}
	if in.BirthDate != "" {
		born, err := time.Parse(domain.DateLayout, in.BirthDate)
		if err != nil {
			return fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrInvalidPatient)
		}
		if born.After(today) {
			return fmt.Errorf("%w: birth date is in the future", ErrInvalidPatient)
		}
	}
	return nil
}

func (in PatientInput) apply(p domain.Patient) domain.Patient {
	p.Name = in.Name
	p.Email = in.Email
	p.Phone = in.Phone
	p.BirthDate = in.BirthDate
	p.BloodGroup = in.BloodGroup
	p.Allergies = in.Allergies
	p.Notes = in.Notes
	p.SocialSecurityNumber = in.SocialSecurityNumber
	p.Address = in.Address
	p.City = in.City
	p.PostalCode = in.PostalCode
	p.Country = in.Country
	p.JobTitle = in.JobTitle
	p.Company = in.Company
	p.Category = in.Category
	return p
}

// resolveCategory returns the stored spelling of a category name.
func resolveCategory(ctx context.Context, tx store.Tx, name string) (string, error) {
	c, err := tx.Categories().GetCategoryByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("category %q: %w", name, ErrNotFound)
		}
		return "", err
	}
	return c.Name, nil
}

func mapPatientErr(err error) error {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrDuplicatePatient
	case errors.Is(err, store.ErrNotFound):
		return ErrPatientNotFound
	}
	return err
}

// AddContact creates a patient record.
func (s *DirectoryService) AddContact(ctx context.Context, in PatientInput) (domain.Patient, error) {
	in = in.normalize()
	if err := in.validate(s.now()); err != nil {
		return domain.Patient{}, err
	}

	var p domain.Patient
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		category, err := resolveCategory(ctx, tx, in.Category)
		if err != nil {
			return err
		}
		in.Category = category

		p = in.apply(domain.Patient{ID: idx.New().String()})
		if err := tx.Patients().CreatePatient(ctx, p); err != nil {
			return mapPatientErr(err)
		}
		p, err = tx.Patients().GetPatientByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return domain.Patient{}, err
	}

	slogx.FromContext(ctx).Info("patient added", slog.String("patient_id", p.ID))
	return p, nil
}

// GetContact looks a patient up by name, ignoring case.
func (s *DirectoryService) GetContact(ctx context.Context, name string) (domain.Patient, error) {
	p, err := s.Store.Patients().GetPatientByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return domain.Patient{}, mapPatientErr(err)
	}
	return p, nil
}

// GetContactByID looks a patient up by id.
func (s *DirectoryService) GetContactByID(ctx context.Context, id string) (domain.Patient, error) {
	p, err := s.Store.Patients().GetPatientByID(ctx, id)
	if err != nil {
		return domain.Patient{}, mapPatientErr(err)
	}
	return p, nil
}

// UpdateContact replaces the fields of the patient currently named oldName.
// A rename is propagated to the appointment snapshots.
func (s *DirectoryService) UpdateContact(ctx context.Context, oldName string, in PatientInput) (domain.Patient, error) {
	in = in.normalize()
	if err := in.validate(s.now()); err != nil {
		return domain.Patient{}, err
	}

	var p domain.Patient
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.Patients().GetPatientByName(ctx, strings.TrimSpace(oldName))
		if err != nil {
			return mapPatientErr(err)
		}

		category, err := resolveCategory(ctx, tx, in.Category)
		if err != nil {
			return err
		}
		in.Category = category

		p = in.apply(current)
		if err := tx.Patients().UpdatePatient(ctx, p); err != nil {
			return mapPatientErr(err)
		}
		if p.Name != current.Name {
			if err := tx.Appointments().RenamePatient(ctx, p.ID, p.Name); err != nil {
				return fmt.Errorf("rename appointments: %w", err)
			}
		}
		p, err = tx.Patients().GetPatientByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return domain.Patient{}, err
	}

	slogx.FromContext(ctx).Info("patient updated", slog.String("patient_id", p.ID))
	return p, nil
}

// DeleteContact removes a patient. Its scheduled appointments are cancelled
// on behalf of actorID and all of its appointments are detached, keeping the
// name snapshot as history. It returns how many appointments were cancelled.
func (s *DirectoryService) DeleteContact(ctx context.Context, name, actorID string) (int, error) {
	var (
		p         domain.Patient
		cancelled int
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.Patients().GetPatientByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return mapPatientErr(err)
		}

		cancelled, err = tx.Appointments().CancelScheduledForPatient(ctx, p.ID, actorID, s.now())
		if err != nil {
			return fmt.Errorf("cancel appointments: %w", err)
		}

		// appointments.patient_id and users.patient_id are cleared by ON DELETE SET NULL.
		return mapPatientErr(tx.Patients().DeletePatient(ctx, p.ID))
	})
	if err != nil {
		return 0, err
	}

	slogx.FromContext(ctx).Info("patient deleted",
		slog.String("patient_id", p.ID),
		slog.Int("appointments_cancelled", cancelled),
	)
	return cancelled, nil
}

// SearchContacts matches query against name, email, phone and category.
// An empty query lists everyone.
func (s *DirectoryService) SearchContacts(ctx context.Context, query string) ([]domain.Patient, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListAll(ctx)
	}
	return s.Store.Patients().SearchPatients(ctx, query)
}

// ListAll returns every patient ordered by name.
func (s *DirectoryService) ListAll(ctx context.Context) ([]domain.Patient, error) {
	return s.Store.Patients().ListPatients(ctx)
}

func mapCategoryErr(err error) error {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrDuplicateCategory
	case errors.Is(err, store.ErrReferenced):
		return ErrCategoryInUse
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	}
	return err
}

func validateCategoryName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	return nil
}

// CreateCategory adds a category.
func (s *DirectoryService) CreateCategory(ctx context.Context, name, description string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if err := validateCategoryName(name); err != nil {
		return domain.Category{}, err
	}

	var c domain.Category
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		id := idx.New().String()
		err := tx.Categories().CreateCategory(ctx, domain.Category{
			ID:          id,
			Name:        name,
			Description: strings.TrimSpace(description),
		})
		if err != nil {
			return mapCategoryErr(err)
		}
		c, err = tx.Categories().GetCategoryByName(ctx, name)
		return err
	})
	if err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// GetCategory looks a category up by name, ignoring case.
func (s *DirectoryService) GetCategory(ctx context.Context, name string) (domain.Category, error) {
	c, err := s.Store.Categories().GetCategoryByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return domain.Category{}, mapCategoryErr(err)
	}
	return c, nil
}

// ListCategories returns every category ordered by name.
func (s *DirectoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Store.Categories().ListCategories(ctx)
}

// UpdateCategory renames and re-describes a category; member patients follow
// the rename. The default category keeps its name.
func (s *DirectoryService) UpdateCategory(ctx context.Context, name, newName, description string) (domain.Category, error) {
	newName = strings.TrimSpace(newName)
	if err := validateCategoryName(newName); err != nil {
		return domain.Category{}, err
	}

	var c domain.Category
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.Categories().GetCategoryByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return mapCategoryErr(err)
		}
		if c.Name == domain.DefaultCategory && newName != domain.DefaultCategory {
			return ErrDefaultCategory
		}

		c.Name = newName
		c.Description = strings.TrimSpace(description)
		return mapCategoryErr(tx.Categories().UpdateCategory(ctx, c))
	})
	if err != nil {
		return domain.Category{}, err
	}

	slogx.FromContext(ctx).Info("category updated", slog.String("category_id", c.ID), slog.String("name", c.Name))
	return c, nil
}

// DeleteCategory removes an empty category.
func (s *DirectoryService) DeleteCategory(ctx context.Context, name string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.Categories().GetCategoryByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return mapCategoryErr(err)
		}
		if c.Name == domain.DefaultCategory {
			return ErrDefaultCategory
		}
		return mapCategoryErr(tx.Categories().DeleteCategory(ctx, c.ID))
	})
}

// GetStatistics summarises the directory and the ledger from one snapshot.
func (s *DirectoryService) GetStatistics(ctx context.Context) (domain.Statistics, error) {
	var stats domain.Statistics
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if stats.TotalPatients, err = tx.Patients().CountPatients(ctx); err != nil {
			return err
		}
		if stats.ByCategory, err = tx.Categories().CountMembers(ctx); err != nil {
			return err
		}
		stats.AppointmentsByStatus, err = tx.Appointments().CountByStatus(ctx)
		return err
	})
	return stats, err
}
