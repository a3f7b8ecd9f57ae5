package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
)

const appointmentColumns = `id, patient_id, patient_name, appt_date, start_time, end_time, reason, notes,
	status, created_by, created_at, updated_at, cancelled_by, cancelled_at`

type appointmentsRepo struct {
	q querier
}

func scanAppointment(row scanner) (domain.Appointment, error) {
	var (
		a           domain.Appointment
		patientID   sql.NullString
		status      string
		cancelledBy sql.NullString
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&a.ID, &patientID, &a.PatientName, &a.Date, &a.Time, &a.EndTime, &a.Reason, &a.Notes,
		&status, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &cancelledBy, &cancelledAt,
	)
	if err != nil {
		return domain.Appointment{}, err
	}
	a.PatientID = mapNullString(patientID)
	a.Status = domain.AppointmentStatus(status)
	a.CancelledBy = mapNullString(cancelledBy)
	a.CancelledAt = mapNullTimePtr(cancelledAt)
	return a, nil
}

func (r *appointmentsRepo) list(ctx context.Context, query string, args ...any) ([]domain.Appointment, error) {
	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *appointmentsRepo) CreateAppointment(ctx context.Context, a domain.Appointment) error {
	now := utc(time.Now())
	status := a.Status
	if status == "" {
		status = domain.StatusScheduled
	}
	_, err := r.q.exec(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, appt_date, start_time, end_time, reason, notes,
			status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, mapStringNull(a.PatientID), a.PatientName, a.Date, a.Time, a.EndTime, a.Reason, a.Notes,
		string(status), a.CreatedBy, now, now,
	)
	return err
}

func (r *appointmentsRepo) GetAppointmentByID(ctx context.Context, id string) (domain.Appointment, error) {
	a, err := scanAppointment(r.q.queryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if err != nil {
		return domain.Appointment{}, r.q.d.mapErr(err)
	}
	return a, nil
}

func (r *appointmentsRepo) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return r.list(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY appt_date, start_time, created_at`)
}

func (r *appointmentsRepo) ListByPatientID(ctx context.Context, patientID string) ([]domain.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = ?
		ORDER BY appt_date, start_time, created_at`, patientID)
}

func (r *appointmentsRepo) ListDetachedByName(ctx context.Context, name string) ([]domain.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id IS NULL AND lower(patient_name) = lower(?)
		ORDER BY appt_date, start_time, created_at`, name)
}

func (r *appointmentsRepo) ListScheduledOn(ctx context.Context, date string) ([]domain.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE appt_date = ? AND status = 'scheduled'
		ORDER BY start_time`, date)
}

func (r *appointmentsRepo) Cancel(ctx context.Context, id, by string, at time.Time) (bool, error) {
	n, err := r.q.execCount(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancelled_by = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND status = 'scheduled'`,
		mapStringNull(by), utc(at), utc(at), id,
	)
	return n == 1, err
}

func (r *appointmentsRepo) CancelScheduledForPatient(ctx context.Context, patientID, by string, at time.Time) (int, error) {
	return r.q.execCount(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancelled_by = ?, cancelled_at = ?, updated_at = ?
		WHERE patient_id = ? AND status = 'scheduled'`,
		mapStringNull(by), utc(at), utc(at), patientID,
	)
}

func (r *appointmentsRepo) RenamePatient(ctx context.Context, patientID, name string) error {
	_, err := r.q.exec(ctx,
		`UPDATE appointments SET patient_name = ?, updated_at = ? WHERE patient_id = ?`,
		name, utc(time.Now()), patientID,
	)
	return err
}

func (r *appointmentsRepo) CompleteEnded(ctx context.Context, date, hhmm string, at time.Time) (int, error) {
	return r.q.execCount(ctx, `
		UPDATE appointments
		SET status = 'completed', updated_at = ?
		WHERE status = 'scheduled'
		  AND (appt_date < ? OR (appt_date = ? AND end_time <= ?))`,
		utc(at), date, date, hhmm,
	)
}

func (r *appointmentsRepo) CountByStatus(ctx context.Context) (map[domain.AppointmentStatus]int, error) {
	rows, err := r.q.query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.AppointmentStatus]int{
		domain.StatusScheduled: 0,
		domain.StatusCancelled: 0,
		domain.StatusCompleted: 0,
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[domain.AppointmentStatus(status)] = n
	}
	return out, rows.Err()
}
