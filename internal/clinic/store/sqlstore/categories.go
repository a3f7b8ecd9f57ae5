package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/domain"
	"github.com/aussiebroadwan/clinic/internal/clinic/store"
)

type categoriesRepo struct {
	q querier
}

func scanCategory(row scanner) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	return c, err
}

func (r *categoriesRepo) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO categories (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, utc(time.Now()),
	)
	return err
}

func (r *categoriesRepo) GetCategoryByName(ctx context.Context, name string) (domain.Category, error) {
	c, err := scanCategory(r.q.queryRow(ctx,
		`SELECT id, name, description, created_at FROM categories WHERE lower(name) = lower(?)`, name))
	if err != nil {
		return domain.Category{}, r.q.d.mapErr(err)
	}
	return c, nil
}

func (r *categoriesRepo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.q.query(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY lower(name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *categoriesRepo) UpdateCategory(ctx context.Context, c domain.Category) error {
	return r.q.execOne(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ?`,
		c.Name, c.Description, c.ID,
	)
}

func (r *categoriesRepo) DeleteCategory(ctx context.Context, id string) error {
	n, err := r.q.execCount(ctx, `
		DELETE FROM categories
		WHERE id = ?
		  AND NOT EXISTS (SELECT 1 FROM patients p WHERE p.category = categories.name)`, id)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing deleted: either the category is gone or patients still use it.
	exists, err := r.q.count(ctx, `SELECT COUNT(*) FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrReferenced
}

func (r *categoriesRepo) CountMembers(ctx context.Context) ([]domain.CategoryCount, error) {
	rows, err := r.q.query(ctx, `
		SELECT c.name, COUNT(p.id)
		FROM categories c
		LEFT JOIN patients p ON p.category = c.name
		GROUP BY c.name
		ORDER BY lower(c.name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CategoryCount
	for rows.Next() {
		var cc domain.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}
