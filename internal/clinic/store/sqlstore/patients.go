package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
)

const patientColumns = `id, name, email, phone, birth_date, blood_group, allergies, notes,
	social_security_number, address, city, postal_code, country, job_title, company,
	category, created_at, updated_at`

type patientsRepo struct {
	q querier
}

func scanPatient(row scanner) (domain.Patient, error) {
	var p domain.Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.BirthDate, &p.BloodGroup, &p.Allergies, &p.Notes,
		&p.SocialSecurityNumber, &p.Address, &p.City, &p.PostalCode, &p.Country, &p.JobTitle, &p.Company,
		&p.Category, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *patientsRepo) getOne(ctx context.Context, query string, args ...any) (domain.Patient, error) {
	p, err := scanPatient(r.q.queryRow(ctx, query, args...))
	if err != nil {
		return domain.Patient{}, r.q.d.mapErr(err)
	}
	return p, nil
}

func (r *patientsRepo) list(ctx context.Context, query string, args ...any) ([]domain.Patient, error) {
	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *patientsRepo) CreatePatient(ctx context.Context, p domain.Patient) error {
	now := utc(time.Now())
	_, err := r.q.exec(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, p.Phone, p.BirthDate, p.BloodGroup, p.Allergies, p.Notes,
		p.SocialSecurityNumber, p.Address, p.City, p.PostalCode, p.Country, p.JobTitle, p.Company,
		p.Category, now, now,
	)
	return err
}

func (r *patientsRepo) GetPatientByID(ctx context.Context, id string) (domain.Patient, error) {
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
}

func (r *patientsRepo) GetPatientByName(ctx context.Context, name string) (domain.Patient, error) {
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE lower(name) = lower(?)`, name)
}

func (r *patientsRepo) UpdatePatient(ctx context.Context, p domain.Patient) error {
	return r.q.execOne(ctx, `
		UPDATE patients
		SET name = ?, email = ?, phone = ?, birth_date = ?, blood_group = ?, allergies = ?, notes = ?,
			social_security_number = ?, address = ?, city = ?, postal_code = ?, country = ?,
			job_title = ?, company = ?, category = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Email, p.Phone, p.BirthDate, p.BloodGroup, p.Allergies, p.Notes,
		p.SocialSecurityNumber, p.Address, p.City, p.PostalCode, p.Country,
		p.JobTitle, p.Company, p.Category, utc(time.Now()),
		p.ID,
	)
}

func (r *patientsRepo) DeletePatient(ctx context.Context, id string) error {
	return r.q.execOne(ctx, `DELETE FROM patients WHERE id = ?`, id)
}

func (r *patientsRepo) SearchPatients(ctx context.Context, query string) ([]domain.Patient, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.list(ctx, `
		SELECT `+patientColumns+` FROM patients
		WHERE lower(name) LIKE lower(?) ESCAPE '\'
		   OR lower(email) LIKE lower(?) ESCAPE '\'
		   OR lower(phone) LIKE lower(?) ESCAPE '\'
		   OR lower(category) LIKE lower(?) ESCAPE '\'
		ORDER BY lower(name)`,
		pattern, pattern, pattern, pattern,
	)
}

func (r *patientsRepo) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	return r.list(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY lower(name)`)
}

func (r *patientsRepo) CountPatients(ctx context.Context) (int, error) {
	return r.q.count(ctx, `SELECT COUNT(*) FROM patients`)
}
