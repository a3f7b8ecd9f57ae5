package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestNewSweeperService(t *testing.T) {
	f := newFixture(t)

	s, err := NewSweeperService(f.core.Ledger, slogx.Discard(), "")
	require.NoError(t, err)
	require.Equal(t, DefaultSweepSchedule, s.Schedule)

	_, err = NewSweeperService(f.core.Ledger, slogx.Discard(), "every now and then")
	require.Error(t, err)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addPatient(t, "Jane Doe")
	a := f.book(t, "Jane Doe", "2025-12-01", "09:30")

	s, err := NewSweeperService(f.core.Ledger, slogx.Discard(), "@every 1h")
	require.NoError(t, err)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	f.advance(time.Hour)
	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := f.core.Ledger.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
}

func TestSweeperStartStop(t *testing.T) {
	f := newFixture(t)

	f.addPatient(t, "Jane Doe")
	a := f.book(t, "Jane Doe", "2025-12-01", "09:30")
	f.advance(time.Hour)

	s, err := NewSweeperService(f.core.Ledger, slogx.Discard(), "@every 1h")
	require.NoError(t, err)
	s.Start()
	s.Stop()

	// Stop waits for the initial sweep.
	got, err := f.core.Ledger.GetAppointment(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
}
