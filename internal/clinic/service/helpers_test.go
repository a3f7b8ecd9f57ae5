package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/internal/clinic/store/drivers/sqlite"
	"github.com/aussiebroadwan/clinic/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse"

// testNow is a Monday morning; tests book on the following days.
var testNow = time.Date(2025, 12, 1, 9, 10, 0, 0, time.UTC)

// fastParams keep argon2 cheap in tests.
var fastParams = cryptox.Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

type fixture struct {
	store store.Store
	core  *Core
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	clock := testNow
	now := func() time.Time { return clock }

	hasher := cryptox.NewPasswordHasher("test-pepper")
	hasher.Params = fastParams

	return &fixture{
		store: s,
		clock: &clock,
		core: &Core{
			Credentials: &CredentialService{Store: s, Hasher: hasher, Issuer: "Clinic", Now: now},
			Directory:   &DirectoryService{Store: s, Now: now},
			Ledger:      &LedgerService{Store: s, Now: now, Location: time.UTC},
		},
	}
}

// advance moves the fixture clock forward.
func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) addPatient(t *testing.T, name string) domain.Patient {
	t.Helper()
	p, err := f.core.Directory.AddContact(context.Background(), PatientInput{Name: name, Email: "patient@example.com"})
	require.NoError(t, err)
	return p
}

func (f *fixture) addUser(t *testing.T, username string, role domain.Role, patientName string) domain.User {
	t.Helper()
	u, err := f.core.Credentials.CreateUser(context.Background(), NewUser{
		Username:    username,
		Password:    testPassword,
		Email:       username + "@clinic.test",
		Role:        role,
		PatientName: patientName,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) session(u domain.User) *Session {
	return f.core.Session(PrincipalOf(u))
}

func (f *fixture) book(t *testing.T, patient, date, hhmm string) domain.Appointment {
	t.Helper()
	a, err := f.core.Ledger.CreateAppointment(context.Background(), AppointmentRequest{
		PatientName: patient,
		Date:        date,
		Time:        hhmm,
		CreatedBy:   "test",
	})
	require.NoError(t, err)
	return a
}
