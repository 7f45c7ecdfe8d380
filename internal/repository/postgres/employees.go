package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/google/uuid"
)

const employeeColumns = `id, name, role, email, created_at, updated_at, version`

func scanEmployee(row interface{ Scan(...any) error }) (*domain.Employee, error) {
	e := &domain.Employee{}
	dst := []any{&e.ID, &e.Name, &e.Role, &e.Email, &e.CreatedAt, &e.UpdatedAt, &e.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

func (r *Repository) GetAllEmployees(search string) ([]*domain.Employee, error) {
	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE $1 = '' OR name ILIKE $2 OR email ILIKE $2 OR role ILIKE $2
		ORDER BY name
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, search, likePattern(search))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]*domain.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) GetEmployeeByID(id string) (*domain.Employee, error) {
	if !validID(id) {
		return nil, repository.ErrRecordNotFound
	}

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanEmployee(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetEmployeeByEmail(email string) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE email = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanEmployee(r.dbpool.QueryRowContext(ctx, query, email))
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertEmployee(ctx context.Context, db execer, e *domain.Employee) error {
	query := `
		INSERT INTO employees (id, name, role, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at, version
	`

	id := uuid.NewString()
	if err := db.QueryRowContext(ctx, query, id, e.Name, e.Role, e.Email).Scan(&e.CreatedAt, &e.UpdatedAt, &e.Version); err != nil {
		return mapError(err)
	}
	e.ID = id

	return nil
}

func (r *Repository) CreateEmployee(e *domain.Employee) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return insertEmployee(ctx, r.dbpool, e)
}

func (r *Repository) UpdateEmployee(e *domain.Employee) error {
	query := `
		UPDATE employees
		SET
			name = $1,
			role = $2,
			email = $3,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING updated_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{e.Name, e.Role, e.Email, e.ID, e.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&e.UpdatedAt, &e.Version); err != nil {
		err = mapError(err)
		if errors.Is(err, repository.ErrRecordNotFound) {
			// 记录存在但版本号对不上，说明被并发修改过
			return repository.ErrEditConflict
		}
		return err
	}

	return nil
}

func (r *Repository) DeleteEmployee(id string) (int64, error) {
	if !validID(id) {
		return 0, repository.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE employee_id = $1`, id)
	if err != nil {
		return 0, err
	}
	deletedTasks, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, repository.ErrRecordNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return deletedTasks, nil
}
