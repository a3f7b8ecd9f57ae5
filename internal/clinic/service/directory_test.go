package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/stretchr/testify/require"
)

func TestAddContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.core.Directory

	p, err := dir.AddContact(ctx, PatientInput{
		Name:       "  Jane   Doe ",
		Email:      "jane@example.com",
		BloodGroup: "o+",
		BirthDate:  "1990-04-12",
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "Jane Doe", p.Name)
	require.Equal(t, "O+", p.BloodGroup)
	require.Equal(t, domain.DefaultCategory, p.Category)

	_, err = dir.AddContact(ctx, PatientInput{Name: "jane doe"})
	require.ErrorIs(t, err, ErrDuplicatePatient)

	cases := map[string]PatientInput{
		"missing name":       {Name: "   "},
		"bad email":          {Name: "A", Email: "nope"},
		"bad blood group":    {Name: "B", BloodGroup: "C+"},
		"malformed birthday": {Name: "C", BirthDate: "12/04/1990"},
		"future birthday":    {Name: "D", BirthDate: "2030-01-01"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := dir.AddContact(ctx, in)
			require.ErrorIs(t, err, ErrInvalidPatient)
		})
	}

	_, err = dir.AddContact(ctx, PatientInput{Name: "E", Category: "Nope"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = dir.CreateCategory(ctx, "VIP", "")
	require.NoError(t, err)
	p, err = dir.AddContact(ctx, PatientInput{Name: "F", Category: "vip"})
	require.NoError(t, err)
	require.Equal(t, "VIP", p.Category, "stored spelling")
}

func TestGetContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.core.Directory

	p := f.addPatient(t, "Jane Doe")

	got, err := dir.GetContact(ctx, "JANE DOE")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	got, err = dir.GetContactByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", got.Name)

	_, err = dir.GetContact(ctx, "John")
	require.ErrorIs(t, err, ErrPatientNotFound)
	_, err = dir.GetContactByID(ctx, "missing")
	require.ErrorIs(t, err, ErrPatientNotFound)
}

func TestUpdateContactRenamesAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.core.Directory

	p := f.addPatient(t, "Jane Doe")
	f.addPatient(t, "John Roe")
	a := f.book(t, "Jane Doe", "2025-12-02", "10:00")

	updated, err := dir.UpdateContact(ctx, "jane doe", PatientInput{Name: "Jane Smith", Allergies: "penicillin"})
	require.NoError(t, err)
	require.Equal(t, p.ID, updated.ID, "id survives rename")
	require.Equal(t, "penicillin", updated.Allergies)

	got, err := f.core.Ledger.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane Smith", got.PatientName)

	_, err = dir.UpdateContact(ctx, "Jane Smith", PatientInput{Name: "john roe"})
	require.ErrorIs(t, err, ErrDuplicatePatient)

	_, err = dir.UpdateContact(ctx, "Jane Doe", PatientInput{Name: "X"})
	require.ErrorIs(t, err, ErrPatientNotFound)

	_, err = dir.UpdateContact(ctx, "Jane Smith", PatientInput{Name: ""})
	require.ErrorIs(t, err, ErrInvalidPatient)
}

func TestDeleteContactKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.core.Directory

	p := f.addPatient(t, "Jane Doe")
	u := f.addUser(t, "jane", domain.RoleUser, "Jane Doe")
	f.book(t, "Jane Doe", "2025-12-02", "10:00")
	f.book(t, "Jane Doe", "2025-12-03", "11:00")

	cancelled, err := dir.DeleteContact(ctx, "jane doe", "staff-id")
	require.NoError(t, err)
	require.Equal(t, 2, cancelled)

	_, err = dir.GetContact(ctx, "Jane Doe")
	require.ErrorIs(t, err, ErrPatientNotFound)

	history, err := f.core.Ledger.GetPatientAppointments(ctx, "Jane Doe")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, a := range history {
		require.Empty(t, a.PatientID)
		require.Equal(t, "Jane Doe", a.PatientName)
		require.Equal(t, domain.StatusCancelled, a.Status)
		require.Equal(t, "staff-id", a.CancelledBy)
	}

	// The freed slot can be booked again.
	f.addPatient(t, "John Roe")
	f.book(t, "John Roe", "2025-12-02", "10:00")

	acct, err := f.core.Credentials.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, acct.PatientID, "account is unlinked from %s", p.ID)

	_, err = dir.DeleteContact(ctx, "Jane Doe", "staff-id")
	require.ErrorIs(t, err, ErrPatientNotFound)
}

func TestSearchContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.core.Directory

	_, err := dir.CreateCategory(ctx, "Family", "")
	require.NoError(t, err)
	_, err = dir.AddContact(ctx, PatientInput{Name: "Jane Doe", Phone: "555-0101"})
	require.NoError(t, err)
	_, err = dir.AddContact(ctx, PatientInput{Name: "John Roe", Email: "john@roe.test", Category: "Family"})
	require.NoError(t, err)

	found, err := dir.SearchContacts(ctx, "doe")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Jane Doe", found[0].Name)

	found, err = dir.SearchContacts(ctx, "0101")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = dir.SearchContacts(ctx, "family")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "John Roe", found[0].Name)

	found, err = dir.SearchContacts(ctx, "  ")
	require.NoError(t, err)
	require.Len(t, found, 2)

	found, err = dir.SearchContacts(ctx, "zzz")
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.core.Directory

	c, err := dir.CreateCategory(ctx, " VIP ", "priority")
	require.NoError(t, err)
	require.Equal(t, "VIP", c.Name)

	_, err = dir.CreateCategory(ctx, "vip", "")
	require.ErrorIs(t, err, ErrDuplicateCategory)
	_, err = dir.CreateCategory(ctx, "", "")
	require.ErrorIs(t, err, ErrInvalidCategory)

	_, err = dir.AddContact(ctx, PatientInput{Name: "Jane Doe", Category: "VIP"})
	require.NoError(t, err)

	c, err = dir.UpdateCategory(ctx, "vip", "Priority", "first in line")
	require.NoError(t, err)
	require.Equal(t, "Priority", c.Name)

	p, err := dir.GetContact(ctx, "Jane Doe")
	require.NoError(t, err)
	require.Equal(t, "Priority", p.Category)

	require.ErrorIs(t, dir.DeleteCategory(ctx, "Priority"), ErrCategoryInUse)
	require.ErrorIs(t, dir.DeleteCategory(ctx, domain.DefaultCategory), ErrDefaultCategory)
	require.ErrorIs(t, dir.DeleteCategory(ctx, "missing"), ErrNotFound)

	_, err = dir.UpdateCategory(ctx, "patient", "People", "")
	require.ErrorIs(t, err, ErrDefaultCategory)
	c, err = dir.UpdateCategory(ctx, "patient", domain.DefaultCategory, "everyone")
	require.NoError(t, err)
	require.Equal(t, "everyone", c.Description)

	_, err = dir.UpdateContact(ctx, "Jane Doe", PatientInput{Name: "Jane Doe"})
	require.NoError(t, err)
	require.NoError(t, dir.DeleteCategory(ctx, "priority"))

	cats, err := dir.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, domain.DefaultCategory, cats[0].Name)
}

func TestGetStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.core.Directory

	_, err := dir.CreateCategory(ctx, "VIP", "")
	require.NoError(t, err)
	f.addPatient(t, "Jane Doe")
	_, err = dir.AddContact(ctx, PatientInput{Name: "John Roe", Category: "VIP"})
	require.NoError(t, err)

	f.book(t, "Jane Doe", "2025-12-02", "10:00")
	a := f.book(t, "John Roe", "2025-12-02", "10:30")
	_, err = f.core.Ledger.CancelAppointment(ctx, a.ID, Principal{UserID: "staff", Role: domain.RoleAdmin})
	require.NoError(t, err)

	stats, err := dir.GetStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalPatients)
	require.Equal(t, []domain.CategoryCount{
		{Category: domain.DefaultCategory, Count: 1},
		{Category: "VIP", Count: 1},
	}, stats.ByCategory)
	require.Equal(t, map[domain.AppointmentStatus]int{
		domain.StatusScheduled: 1,
		domain.StatusCancelled: 1,
		domain.StatusCompleted: 0,
	}, stats.AppointmentsByStatus)
}
