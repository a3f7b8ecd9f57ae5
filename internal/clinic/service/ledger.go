package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/metrics"
	"github.com/aussiebroadwan/clinic/internal/clinic/policy"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/pkg/idx"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

// Office hours. Appointments start on the half hour between OpeningHour and
// ClosingHour and last SlotLength.
const (
	OpeningHour = 8
	ClosingHour = 18
	SlotLength  = 30 * time.Minute
)

// LedgerService owns appointments. The office has a single practitioner, so
// a slot holds at most one scheduled appointment.
type LedgerService struct {
	Store    store.Store
	Now      func() time.Time
	Location *time.Location // office time zone, defaults to time.Local
}

// AppointmentRequest is the input of CreateAppointment.
type AppointmentRequest struct {
	PatientName string `json:"patient_name"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM
	Reason      string `json:"reason"`
	Notes       string `json:"notes"`
	CreatedBy   string `json:"-"`
}

func (s *LedgerService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func (s *LedgerService) now() time.Time {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return now.In(s.loc())
}

// parseSlot validates a date and start time against the office grid and
// returns the start instant.
func (s *LedgerService) parseSlot(date, hhmm string) (time.Time, error) {
	start, err := time.ParseInLocation(domain.DateLayout+" "+domain.TimeLayout,
		strings.TrimSpace(date)+" "+strings.TrimSpace(hhmm), s.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD and time HH:MM", ErrInvalidSchedule)
	}
	if start.Hour() < OpeningHour || start.Hour() >= ClosingHour {
		return time.Time{}, fmt.Errorf("%w: the office is open %02d:00-%02d:00", ErrInvalidSchedule, OpeningHour, ClosingHour)
	}
	if start.Minute()%int(SlotLength/time.Minute) != 0 {
		return time.Time{}, fmt.Errorf("%w: appointments start on the half hour", ErrInvalidSchedule)
	}
	return start, nil
}

// daySlots returns every bookable start of the day containing day.
func (s *LedgerService) daySlots(day time.Time) []domain.Slot {
	y, m, d := day.Date()
	open := time.Date(y, m, d, OpeningHour, 0, 0, 0, s.loc())
	closing := time.Date(y, m, d, ClosingHour, 0, 0, 0, s.loc())

	var out []domain.Slot
	for t := open; t.Before(closing); t = t.Add(SlotLength) {
		out = append(out, domain.Slot{
			Date:    t.Format(domain.DateLayout),
			Time:    t.Format(domain.TimeLayout),
			EndTime: t.Add(SlotLength).Format(domain.TimeLayout),
		})
	}
	return out
}

// CreateAppointment books the requested slot for an existing patient.
func (s *LedgerService) CreateAppointment(ctx context.Context, req AppointmentRequest) (domain.Appointment, error) {
	l := slogx.FromContext(ctx)

	start, err := s.parseSlot(req.Date, req.Time)
	if err != nil {
		metrics.ObserveAppointment("book", "invalid")
		return domain.Appointment{}, err
	}
	if !start.After(s.now()) {
		metrics.ObserveAppointment("book", "invalid")
		return domain.Appointment{}, fmt.Errorf("%w: the slot is in the past", ErrInvalidSchedule)
	}

	a := domain.Appointment{
		ID:        idx.New().String(),
		Date:      start.Format(domain.DateLayout),
		Time:      start.Format(domain.TimeLayout),
		EndTime:   start.Add(SlotLength).Format(domain.TimeLayout),
		Reason:    strings.TrimSpace(req.Reason),
		Notes:     strings.TrimSpace(req.Notes),
		Status:    domain.StatusScheduled,
		CreatedBy: req.CreatedBy,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Patients().GetPatientByName(ctx, strings.TrimSpace(req.PatientName))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPatientNotFound
			}
			return err
		}
		a.PatientID = p.ID
		a.PatientName = p.Name

		if err := tx.Appointments().CreateAppointment(ctx, a); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrConflictingAppointment
			}
			return err
		}
		a, err = tx.Appointments().GetAppointmentByID(ctx, a.ID)
		return err
	})
	if err != nil {
		metrics.ObserveAppointment("book", resultLabel(err))
		return domain.Appointment{}, err
	}

	metrics.ObserveAppointment("book", "ok")
	l.Info("appointment booked",
		slog.String("appointment_id", a.ID),
		slog.String("patient_id", a.PatientID),
		slog.String("date", a.Date),
		slog.String("time", a.Time),
	)
	return a, nil
}

// GetAppointments lists everything for staff and only the principal's own
// appointments for patients.
func (s *LedgerService) GetAppointments(ctx context.Context, p Principal) ([]domain.Appointment, error) {
	if policy.Authorize(p.Role, policy.ViewAllAppointments, policy.Ownership{}).Allowed() {
		return s.Store.Appointments().ListAppointments(ctx)
	}
	if p.PatientID == "" {
		return []domain.Appointment{}, nil
	}
	return s.Store.Appointments().ListByPatientID(ctx, p.PatientID)
}

// GetAppointment fetches a single appointment.
func (s *LedgerService) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	a, err := s.Store.Appointments().GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

// CancelAppointment cancels a scheduled appointment that has not started
// yet. Patients may only cancel their own.
func (s *LedgerService) CancelAppointment(ctx context.Context, id string, p Principal) (domain.Appointment, error) {
	var a domain.Appointment
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		a, err = tx.Appointments().GetAppointmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		own := policy.Ownership{ActorPatientID: p.PatientID, OwnerPatientID: a.PatientID}
		if !policy.Authorize(p.Role, policy.CancelAppointment, own).Allowed() {
			return ErrForbidden
		}

		switch a.Status {
		case domain.StatusCancelled:
			return ErrAlreadyCancelled
		case domain.StatusCompleted:
			return ErrAppointmentClosed
		}

		start, err := a.StartsAt(s.loc())
		if err != nil {
			return fmt.Errorf("stored appointment %s: %w", a.ID, err)
		}
		now := s.now()
		if !start.After(now) {
			return fmt.Errorf("%w: the appointment has already started", ErrInvalidSchedule)
		}

		ok, err := tx.Appointments().Cancel(ctx, a.ID, p.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyCancelled
		}
		a, err = tx.Appointments().GetAppointmentByID(ctx, a.ID)
		return err
	})
	if err != nil {
		metrics.ObserveAppointment("cancel", resultLabel(err))
		return domain.Appointment{}, err
	}

	metrics.ObserveAppointment("cancel", "ok")
	slogx.FromContext(ctx).Info("appointment cancelled",
		slog.String("appointment_id", a.ID),
		slog.String("cancelled_by", p.UserID),
	)
	return a, nil
}

// GetPatientAppointments returns the full history of a patient. For a
// deleted patient the detached history recorded under that name is
// returned instead.
func (s *LedgerService) GetPatientAppointments(ctx context.Context, patientName string) ([]domain.Appointment, error) {
	name := strings.TrimSpace(patientName)

	var out []domain.Appointment
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Patients().GetPatientByName(ctx, name)
		switch {
		case err == nil:
			out, err = tx.Appointments().ListByPatientID(ctx, p.ID)
			return err
		case errors.Is(err, store.ErrNotFound):
			out, err = tx.Appointments().ListDetachedByName(ctx, name)
			if err != nil {
				return err
			}
			if len(out) == 0 {
				return ErrPatientNotFound
			}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Appointment{}
	}
	return out, nil
}

// AvailableSlots lists the free slots of a day. Slots already started today
// are not offered.
func (s *LedgerService) AvailableSlots(ctx context.Context, date string) ([]domain.Slot, error) {
	day, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(date), s.loc())
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidSchedule)
	}
	now := s.now()
	if day.Format(domain.DateLayout) < now.Format(domain.DateLayout) {
		return nil, fmt.Errorf("%w: the day is in the past", ErrInvalidSchedule)
	}

	booked, err := s.Store.Appointments().ListScheduledOn(ctx, day.Format(domain.DateLayout))
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(booked))
	for _, a := range booked {
		taken[a.Time] = true
	}

	free := []domain.Slot{}
	for _, slot := range s.daySlots(day) {
		if taken[slot.Time] {
			continue
		}
		start, err := s.parseSlot(slot.Date, slot.Time)
		if err != nil || !start.After(now) {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}

// CompletePast marks every scheduled appointment whose end has passed as
// completed and reports how many changed.
func (s *LedgerService) CompletePast(ctx context.Context) (int, error) {
	now := s.now()
	n, err := s.Store.Appointments().CompleteEnded(ctx,
		now.Format(domain.DateLayout),
		now.Format(domain.TimeLayout),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("complete past appointments: %w", err)
	}
	return n, nil
}

// resultLabel turns an error into a low-cardinality metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflictingAppointment):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrAppointmentClosed):
		return "closed"
	case errors.Is(err, ErrInvalidSchedule):
		return "invalid"
	}
	return "error"
}
