package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"strings"

	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) Close() error {
	return r.dbpool.Close()
}

// Migrate 将内嵌的迁移脚本应用到数据库
func (r *Repository) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(r.dbpool, &migratepg.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return err
	}

	// 不调用 m.Close()，否则会把共享的连接池一起关闭
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// mapError 把驱动层的错误转换为 repository 中定义的错误
func mapError(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrRecordNotFound
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "users_email_key", "employees_email_key":
			return repository.ErrDuplicateEmail
		case "users_username_key":
			return repository.ErrDuplicateUsername
		case "tasks_employee_id_fkey":
			return repository.ErrRecordNotFound
		}
	}
	return err
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
