package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	employeesCollection = "employees"
	tasksCollection     = "tasks"
)

type Repository struct {
	cfg    *config.Config
	client *mongo.Client
	db     *mongo.Database
}

var _ repository.Repository = (*Repository)(nil)

func NewRepository(cfg *config.Config, client *mongo.Client) *Repository {
	return &Repository{
		cfg:    cfg,
		client: client,
		db:     client.Database(cfg.Database.Name),
	}
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	return r.client.Disconnect(ctx)
}

// EnsureIndexes 创建唯一索引，唯一性约束依赖这些索引
func (r *Repository) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		employeesCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		tasksCollection: {
			{Keys: bson.D{{Key: "employeeId", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}

	return nil
}

func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// versionFilter 兼容没有 version 字段的旧文档
func versionFilter(version int32) any {
	if version == 0 {
		return bson.M{"$in": bson.A{0, nil}}
	}
	return version
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrRecordNotFound
	case mongo.IsDuplicateKeyError(err):
		if duplicateIndex(err) == "username_1" {
			return repository.ErrDuplicateUsername
		}
		return repository.ErrDuplicateEmail
	}
	return err
}

// duplicateIndex 从 E11000 错误信息中取出冲突的索引名，
// 只看 "index: " 之后的部分，避免被重复的键值本身干扰
func duplicateIndex(err error) string {
	var messages []string

	var we mongo.WriteException
	var ce mongo.CommandError
	switch {
	case errors.As(err, &we):
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				messages = append(messages, e.Message)
			}
		}
	case errors.As(err, &ce):
		messages = append(messages, ce.Message)
	default:
		messages = append(messages, err.Error())
	}

	for _, msg := range messages {
		_, rest, found := strings.Cut(msg, "index: ")
		if !found {
			continue
		}
		if name, _, _ := strings.Cut(rest, " "); name != "" {
			return name
		}
	}
	return ""
}
