package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository/mongodb"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository/postgres"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open 根据配置连接数据库并完成迁移，调用方负责 Close
func Open(cfg *config.Config) (repository.Repository, error) {
	switch cfg.Database.Driver {
	case config.DriverMongoDB:
		return openMongoDB(cfg)
	default:
		return openPostgres(cfg)
	}
}

func openPostgres(cfg *config.Config) (repository.Repository, error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	repo := postgres.NewRepository(cfg, dbpool)
	if err := repo.Migrate(); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return repo, nil
}

func openMongoDB(cfg *config.Config) (repository.Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.Database.DSN).
		SetMaxPoolSize(uint64(cfg.Database.MaxOpenConns)).
		SetMaxConnIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	repo := mongodb.NewRepository(cfg, client)
	if err := repo.EnsureIndexes(); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("create mongodb indexes: %w", err)
	}

	return repo, nil
}
