// Package storetest is a conformance suite run against every store driver.
package storetest

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Opener returns a freshly migrated, empty store. It should register its own
// cleanup on t.
type Opener func(t *testing.T) store.Store

// Run exercises every repository of the store returned by open.
func Run(t *testing.T, open Opener) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("Patients", func(t *testing.T) { testPatients(t, open(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, open(t)) })
	t.Run("Appointments", func(t *testing.T) { testAppointments(t, open(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, open(t)) })
}

func newUser(username string, role domain.Role) domain.User {
	return domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@clinic.test",
		PasswordHash: "$argon2id$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA",
		Role:         role,
		Active:       true,
	}
}

func newPatient(name string) domain.Patient {
	return domain.Patient{
		ID:       idx.New().String(),
		Name:     name,
		Email:    "contact@example.com",
		Phone:    "555-0100",
		Category: domain.DefaultCategory,
	}
}

func newAppointment(p domain.Patient, date, hhmm, end string) domain.Appointment {
	return domain.Appointment{
		ID:          idx.New().String(),
		PatientID:   p.ID,
		PatientName: p.Name,
		Date:        date,
		Time:        hhmm,
		EndTime:     end,
		Reason:      "checkup",
		Status:      domain.StatusScheduled,
		CreatedBy:   "staff",
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	users := s.Users()

	alice := newUser("Alice", domain.RoleSuperAdmin)
	require.NoError(t, users.CreateUser(ctx, alice))
	require.NoError(t, users.CreateUser(ctx, newUser("bob", domain.RoleAdmin)))

	dup := newUser("alice", domain.RoleUser)
	dup.Email = "other@clinic.test"
	require.ErrorIs(t, users.CreateUser(ctx, dup), store.ErrAlreadyExists)

	dupEmail := newUser("carol", domain.RoleUser)
	dupEmail.Email = "ALICE@clinic.test"
	require.ErrorIs(t, users.CreateUser(ctx, dupEmail), store.ErrAlreadyExists)

	got, err := users.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)
	require.Equal(t, domain.RoleSuperAdmin, got.Role)
	require.True(t, got.Active)
	require.Empty(t, got.PatientID)
	require.Nil(t, got.LastLoginAt)
	require.False(t, got.CreatedAt.IsZero())

	_, err = users.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := users.CountByRole(ctx, domain.RoleSuperAdmin)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got.Role = domain.RoleAdmin
	got.Active = false
	require.NoError(t, users.UpdateUser(ctx, got))
	got, err = users.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, got.Role)
	require.False(t, got.Active)

	n, err = users.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = users.CountActiveByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 1, n, "inactive accounts are not counted")

	ghost := newUser("ghost", domain.RoleUser)
	require.ErrorIs(t, users.UpdateUser(ctx, ghost), store.ErrNotFound)

	login := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, users.TouchLastLogin(ctx, alice.ID, login))
	got, err = users.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	require.True(t, got.LastLoginAt.Equal(login))

	require.ErrorIs(t, users.EnableMFA(ctx, alice.ID, login), store.ErrNotFound, "no secret yet")
	require.NoError(t, users.SetMFASecret(ctx, alice.ID, "JBSWY3DPEHPK3PXP"))
	require.NoError(t, users.EnableMFA(ctx, alice.ID, login))
	got, err = users.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, got.MFAEnabled())
	require.NoError(t, users.DisableMFA(ctx, alice.ID))
	got, err = users.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, got.MFAEnabled())
	require.Nil(t, got.MFASecret)

	list, err := users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Alice", list[0].Username)
	require.Equal(t, "bob", list[1].Username)

	require.NoError(t, users.DeleteUser(ctx, alice.ID))
	require.ErrorIs(t, users.DeleteUser(ctx, alice.ID), store.ErrNotFound)
}

func testPatients(t *testing.T, s store.Store) {
	ctx := context.Background()
	patients := s.Patients()

	jane := newPatient("Jane Doe")
	jane.BloodGroup = "O+"
	require.NoError(t, patients.CreatePatient(ctx, jane))
	require.NoError(t, patients.CreatePatient(ctx, newPatient("John 100% Smith")))
	require.NoError(t, patients.CreatePatient(ctx, newPatient("Anna_Lee")))

	require.ErrorIs(t, patients.CreatePatient(ctx, newPatient("JANE DOE")), store.ErrAlreadyExists)

	orphan := newPatient("Nobody")
	orphan.Category = "Unknown"
	require.ErrorIs(t, patients.CreatePatient(ctx, orphan), store.ErrReferenced)

	got, err := patients.GetPatientByName(ctx, "jane doe")
	require.NoError(t, err)
	require.Equal(t, jane.ID, got.ID)
	require.Equal(t, "O+", got.BloodGroup)
	require.Equal(t, domain.DefaultCategory, got.Category)

	t.Run("search escapes wildcards", func(t *testing.T) {
		found, err := patients.SearchPatients(ctx, "100%")
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "John 100% Smith", found[0].Name)

		found, err = patients.SearchPatients(ctx, "_")
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "Anna_Lee", found[0].Name)

		found, err = patients.SearchPatients(ctx, "PATIENT")
		require.NoError(t, err)
		require.Len(t, found, 3, "category matches")
	})

	list, err := patients.ListPatients(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Anna_Lee", "Jane Doe", "John 100% Smith"}, names(list))

	got.Name = "Jane Smith"
	got.Allergies = "penicillin"
	require.NoError(t, patients.UpdatePatient(ctx, got))
	got, err = patients.GetPatientByID(ctx, jane.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane Smith", got.Name)
	require.Equal(t, "penicillin", got.Allergies)

	got.Name = "anna_lee"
	require.ErrorIs(t, patients.UpdatePatient(ctx, got), store.ErrAlreadyExists)

	n, err := patients.CountPatients(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, patients.DeletePatient(ctx, jane.ID))
	_, err = patients.GetPatientByID(ctx, jane.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, patients.DeletePatient(ctx, jane.ID), store.ErrNotFound)
}

func names(ps []domain.Patient) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func testCategories(t *testing.T, s store.Store) {
	ctx := context.Background()
	cats := s.Categories()

	def, err := cats.GetCategoryByName(ctx, "patient")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultCategory, def.Name)

	vip := domain.Category{ID: idx.New().String(), Name: "VIP", Description: "priority"}
	require.NoError(t, cats.CreateCategory(ctx, vip))
	require.ErrorIs(t, cats.CreateCategory(ctx, domain.Category{ID: idx.New().String(), Name: "vip"}), store.ErrAlreadyExists)
	require.NoError(t, cats.CreateCategory(ctx, domain.Category{ID: idx.New().String(), Name: "Empty"}))

	p := newPatient("Jane Doe")
	p.Category = "VIP"
	require.NoError(t, s.Patients().CreatePatient(ctx, p))

	counts, err := cats.CountMembers(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.CategoryCount{
		{Category: "Empty", Count: 0},
		{Category: "Patient", Count: 0},
		{Category: "VIP", Count: 1},
	}, counts)

	// Renames cascade to members.
	vip.Name = "Priority"
	require.NoError(t, cats.UpdateCategory(ctx, vip))
	got, err := s.Patients().GetPatientByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Priority", got.Category)

	require.ErrorIs(t, cats.DeleteCategory(ctx, vip.ID), store.ErrReferenced)

	list, err := cats.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.NoError(t, s.Patients().DeletePatient(ctx, p.ID))
	require.NoError(t, cats.DeleteCategory(ctx, vip.ID))
	require.ErrorIs(t, cats.DeleteCategory(ctx, vip.ID), store.ErrNotFound)
}

func testAppointments(t *testing.T, s store.Store) {
	ctx := context.Background()
	appts := s.Appointments()

	jane := newPatient("Jane Doe")
	john := newPatient("John Roe")
	require.NoError(t, s.Patients().CreatePatient(ctx, jane))
	require.NoError(t, s.Patients().CreatePatient(ctx, john))

	first := newAppointment(jane, "2025-12-02", "10:00", "10:30")
	require.NoError(t, appts.CreateAppointment(ctx, first))
	require.NoError(t, appts.CreateAppointment(ctx, newAppointment(jane, "2025-12-01", "09:00", "09:30")))

	t.Run("slot is exclusive while scheduled", func(t *testing.T) {
		err := appts.CreateAppointment(ctx, newAppointment(john, "2025-12-02", "10:00", "10:30"))
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	got, err := appts.GetAppointmentByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusScheduled, got.Status)
	require.Equal(t, "Jane Doe", got.PatientName)
	require.Nil(t, got.CancelledAt)

	list, err := appts.ListByPatientID(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "2025-12-01", list[0].Date, "ordered by date")

	at := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	ok, err := appts.Cancel(ctx, first.ID, "staff", at)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = appts.Cancel(ctx, first.ID, "staff", at)
	require.NoError(t, err)
	require.False(t, ok, "second cancel must not apply")

	got, err = appts.GetAppointmentByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, got.Status)
	require.Equal(t, "staff", got.CancelledBy)
	require.NotNil(t, got.CancelledAt)

	// Cancelling frees the slot.
	require.NoError(t, appts.CreateAppointment(ctx, newAppointment(john, "2025-12-02", "10:00", "10:30")))

	day, err := appts.ListScheduledOn(ctx, "2025-12-02")
	require.NoError(t, err)
	require.Len(t, day, 1)
	require.Equal(t, john.ID, day[0].PatientID)

	require.NoError(t, appts.RenamePatient(ctx, john.ID, "Johnny Roe"))
	day, err = appts.ListScheduledOn(ctx, "2025-12-02")
	require.NoError(t, err)
	require.Equal(t, "Johnny Roe", day[0].PatientName)

	t.Run("patient delete detaches history", func(t *testing.T) {
		n, err := appts.CancelScheduledForPatient(ctx, jane.ID, "staff", at)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.NoError(t, s.Patients().DeletePatient(ctx, jane.ID))

		detached, err := appts.ListDetachedByName(ctx, "JANE DOE")
		require.NoError(t, err)
		require.Len(t, detached, 2)
		for _, a := range detached {
			require.Empty(t, a.PatientID)
			require.Equal(t, domain.StatusCancelled, a.Status)
		}
	})

	t.Run("complete ended", func(t *testing.T) {
		early := newAppointment(john, "2025-12-02", "08:00", "08:30")
		require.NoError(t, appts.CreateAppointment(ctx, early))

		n, err := appts.CompleteEnded(ctx, "2025-12-02", "09:00", at)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		got, err := appts.GetAppointmentByID(ctx, early.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusCompleted, got.Status)

		n, err = appts.CompleteEnded(ctx, "2025-12-02", "09:00", at)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	counts, err := appts.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, map[domain.AppointmentStatus]int{
		domain.StatusScheduled: 1,
		domain.StatusCancelled: 2,
		domain.StatusCompleted: 1,
	}, counts)

	all, err := appts.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Patients().CreatePatient(ctx, newPatient("Rolled Back")))
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = s.Patients().GetPatientByName(ctx, "Rolled Back")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.ErrorIs(t, tx.WithTx(ctx, func(store.Tx) error { return nil }), sql.ErrTxDone)
		return tx.Patients().CreatePatient(ctx, newPatient("Committed"))
	}))
	_, err = s.Patients().GetPatientByName(ctx, "committed")
	require.NoError(t, err)

	require.NoError(t, s.Ping(ctx))
}
