package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/google/uuid"
)

func dueDateArg(d *domain.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func (r *Repository) GetTasks(filter repository.TaskFilter) ([]*domain.TaskWithEmployee, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if filter.EmployeeID != "" {
		if !validID(filter.EmployeeID) {
			// 不合法的 ID 不可能匹配任何任务
			return make([]*domain.TaskWithEmployee, 0), nil
		}
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("t.employee_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		conditions = append(conditions, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", len(args), len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT
			t.id,
			t.title,
			t.description,
			t.status,
			t.employee_id,
			t.due_date,
			t.created_at,
			t.updated_at,
			t.version,
			e.name,
			e.email,
			e.role
		FROM tasks t
		LEFT JOIN employees e ON e.id = t.employee_id
	`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	if filter.Ascending {
		sb.WriteString(" ORDER BY t.created_at ASC")
	} else {
		sb.WriteString(" ORDER BY t.created_at DESC")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*domain.TaskWithEmployee, 0)
	for rows.Next() {
		var row struct {
			DueDate       sql.NullTime
			EmployeeName  sql.NullString
			EmployeeEmail sql.NullString
			EmployeeRole  sql.NullString
		}
		t := &domain.TaskWithEmployee{}

		dst := []any{
			&t.ID,
			&t.Title,
			&t.Description,
			&t.Status,
			&t.EmployeeID,
			&row.DueDate,
			&t.CreatedAt,
			&t.UpdatedAt,
			&t.Version,
			&row.EmployeeName,
			&row.EmployeeEmail,
			&row.EmployeeRole,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if row.DueDate.Valid {
			t.DueDate = domain.NewDate(row.DueDate.Time)
		}
		if row.EmployeeName.Valid {
			t.Employee = &domain.EmployeeSummary{
				ID:    t.EmployeeID,
				Name:  row.EmployeeName.String,
				Email: row.EmployeeEmail.String,
				Role:  row.EmployeeRole.String,
			}
		}

		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *Repository) GetTaskByID(id string) (*domain.Task, error) {
	if !validID(id) {
		return nil, repository.ErrRecordNotFound
	}

	query := `
		SELECT title, description, status, employee_id, due_date, created_at, updated_at, version
		FROM tasks WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	task := &domain.Task{
		ID: id,
	}
	var dueDate sql.NullTime

	dst := []any{&task.Title, &task.Description, &task.Status, &task.EmployeeID, &dueDate, &task.CreatedAt, &task.UpdatedAt, &task.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, mapError(err)
	}

	if dueDate.Valid {
		task.DueDate = domain.NewDate(dueDate.Time)
	}

	return task, nil
}

func (r *Repository) CreateTask(task *domain.Task) error {
	if !validID(task.EmployeeID) {
		return repository.ErrRecordNotFound
	}

	query := `
		INSERT INTO tasks (id, title, description, status, employee_id, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	id := uuid.NewString()
	args := []any{id, task.Title, task.Description, task.Status, task.EmployeeID, dueDateArg(task.DueDate)}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&task.CreatedAt, &task.UpdatedAt, &task.Version); err != nil {
		return mapError(err)
	}
	task.ID = id

	return nil
}

func (r *Repository) UpdateTask(task *domain.Task) error {
	if !validID(task.EmployeeID) {
		return repository.ErrRecordNotFound
	}

	query := `
		UPDATE tasks
		SET
			title = $1,
			description = $2,
			status = $3,
			employee_id = $4,
			due_date = $5,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING updated_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{task.Title, task.Description, task.Status, task.EmployeeID, dueDateArg(task.DueDate), task.ID, task.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&task.UpdatedAt, &task.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrEditConflict
		}
		return mapError(err)
	}

	return nil
}

func (r *Repository) DeleteTask(id string) error {
	if !validID(id) {
		return repository.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrRecordNotFound
	}

	return nil
}
