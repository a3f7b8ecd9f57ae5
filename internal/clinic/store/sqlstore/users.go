package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
)

const userColumns = `id, username, email, password_hash, role, active, patient_id,
	mfa_secret, mfa_enabled_at, created_at, updated_at, last_login_at`

type usersRepo struct {
	q querier
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u            domain.User
		role         string
		patientID    sql.NullString
		mfaSecret    sql.NullString
		mfaEnabledAt sql.NullTime
		lastLoginAt  sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.Active, &patientID,
		&mfaSecret, &mfaEnabledAt, &u.CreatedAt, &u.UpdatedAt, &lastLoginAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.PatientID = mapNullString(patientID)
	u.MFASecret = mapNullStringPtr(mfaSecret)
	u.MFAEnabledAt = mapNullTimePtr(mfaEnabledAt)
	u.LastLoginAt = mapNullTimePtr(lastLoginAt)
	return u, nil
}

func (r *usersRepo) getOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	u, err := scanUser(r.q.queryRow(ctx, query, args...))
	if err != nil {
		return domain.User{}, r.q.d.mapErr(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower(?)`, username)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := utc(time.Now())
	if !u.CreatedAt.IsZero() {
		now = utc(u.CreatedAt)
	}
	_, err := r.q.exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, active, patient_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.Active,
		mapStringNull(u.PatientID), now, now,
	)
	return err
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	return r.q.execOne(ctx, `
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, role = ?, active = ?, patient_id = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.Active,
		mapStringNull(u.PatientID), utc(time.Now()), u.ID,
	)
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	return r.q.execOne(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY lower(username)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	return r.q.count(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role))
}

func (r *usersRepo) CountActiveByRole(ctx context.Context, role domain.Role) (int, error) {
	return r.q.count(ctx, `SELECT COUNT(*) FROM users WHERE role = ? AND active = ?`, string(role), true)
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.q.execOne(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, utc(at), id)
}

func (r *usersRepo) SetMFASecret(ctx context.Context, id string, secret string) error {
	return r.q.execOne(ctx,
		`UPDATE users SET mfa_secret = ?, mfa_enabled_at = NULL, updated_at = ? WHERE id = ?`,
		mapStringNull(secret), utc(time.Now()), id,
	)
}

func (r *usersRepo) EnableMFA(ctx context.Context, id string, at time.Time) error {
	return r.q.execOne(ctx,
		`UPDATE users SET mfa_enabled_at = ?, updated_at = ? WHERE id = ? AND mfa_secret IS NOT NULL`,
		utc(at), utc(time.Now()), id,
	)
}

func (r *usersRepo) DisableMFA(ctx context.Context, id string) error {
	return r.q.execOne(ctx,
		`UPDATE users SET mfa_secret = NULL, mfa_enabled_at = NULL, updated_at = ? WHERE id = ?`,
		utc(time.Now()), id,
	)
}
