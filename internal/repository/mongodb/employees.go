package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type employeeDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Role      string             `bson:"role"`
	Email     string             `bson:"email"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
	Version   int32              `bson:"version"`
}

func (d *employeeDocument) toDomain() *domain.Employee {
	return &domain.Employee{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Role:      d.Role,
		Email:     d.Email,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Version:   d.Version,
	}
}

func searchRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func (r *Repository) GetAllEmployees(search string) ([]*domain.Employee, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	filter := bson.M{}
	if search != "" {
		re := searchRegex(search)
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"email": re},
			bson.M{"role": re},
		}
	}

	cursor, err := r.db.Collection(employeesCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	employees := make([]*domain.Employee, 0)
	for cursor.Next(ctx) {
		var doc employeeDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		employees = append(employees, doc.toDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) findEmployee(filter bson.M) (*domain.Employee, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var doc employeeDocument
	if err := r.db.Collection(employeesCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}

	return doc.toDomain(), nil
}

func (r *Repository) GetEmployeeByID(id string) (*domain.Employee, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return r.findEmployee(bson.M{"_id": oid})
}

func (r *Repository) GetEmployeeByEmail(email string) (*domain.Employee, error) {
	return r.findEmployee(bson.M{"email": email})
}

func (r *Repository) CreateEmployee(e *domain.Employee) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	now := time.Now().UTC()
	doc := employeeDocument{
		ID:        primitive.NewObjectID(),
		Name:      e.Name,
		Role:      e.Role,
		Email:     e.Email,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if _, err := r.db.Collection(employeesCollection).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}

	e.ID = doc.ID.Hex()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Version = doc.Version

	return nil
}

func (r *Repository) UpdateEmployee(e *domain.Employee) error {
	oid, ok := objectID(e.ID)
	if !ok {
		return repository.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"_id": oid, "version": versionFilter(e.Version)}
	update := bson.M{
		"$set": bson.M{
			"name":      e.Name,
			"role":      e.Role,
			"email":     e.Email,
			"updatedAt": now,
			"version":   e.Version + 1,
		},
	}

	res, err := r.db.Collection(employeesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrEditConflict
	}

	e.UpdatedAt = now
	e.Version++

	return nil
}

// DeleteEmployee 依次删除任务和员工，两次写入之间没有事务，中途失败可能留下孤立的任务
func (r *Repository) DeleteEmployee(id string) (int64, error) {
	oid, ok := objectID(id)
	if !ok {
		return 0, repository.ErrRecordNotFound
	}

	if _, err := r.findEmployee(bson.M{"_id": oid}); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	res, err := r.db.Collection(tasksCollection).DeleteMany(ctx, bson.M{"employeeId": oid})
	if err != nil {
		return 0, err
	}

	del, err := r.db.Collection(employeesCollection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, err
	}
	if del.DeletedCount == 0 {
		return 0, repository.ErrRecordNotFound
	}

	return res.DeletedCount, nil
}
