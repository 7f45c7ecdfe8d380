package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/google/uuid"
)

const userColumns = `id, username, email, password_hash, role, employee_id, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	user := &domain.User{}
	var employeeID sql.NullString

	dst := []any{&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &employeeID, &user.CreatedAt, &user.UpdatedAt}
	if err := row.Scan(dst...); err != nil {
		return nil, mapError(err)
	}

	if employeeID.Valid {
		user.EmployeeID = &employeeID.String
	}

	return user, nil
}

func (r *Repository) GetUserByID(id string) (*domain.User, error) {
	if !validID(id) {
		return nil, repository.ErrRecordNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetUserByEmail(email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, email))
}

func (r *Repository) GetUserByUsername(username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, username))
}

func (r *Repository) CreateUser(user *domain.User, employee *domain.Employee) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if employee != nil {
		if err := insertEmployee(ctx, tx, employee); err != nil {
			return err
		}
		user.EmployeeID = &employee.ID
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, role, employee_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	id := uuid.NewString()
	args := []any{id, user.Username, user.Email, user.PasswordHash, user.Role, user.EmployeeID}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return mapError(err)
	}
	user.ID = id

	return tx.Commit()
}
