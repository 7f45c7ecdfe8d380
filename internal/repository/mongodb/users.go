package mongodb

import (
	"context"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userDocument struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty"`
	Username   string              `bson:"username"`
	Email      string              `bson:"email"`
	Password   string              `bson:"password"`
	Role       string              `bson:"role"`
	EmployeeID *primitive.ObjectID `bson:"employeeId,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt"`
}

func (d *userDocument) toDomain() *domain.User {
	user := &domain.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.EmployeeID != nil {
		employeeID := d.EmployeeID.Hex()
		user.EmployeeID = &employeeID
	}
	return user
}

func (r *Repository) findUser(filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var doc userDocument
	if err := r.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}

	return doc.toDomain(), nil
}

func (r *Repository) GetUserByID(id string) (*domain.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return r.findUser(bson.M{"_id": oid})
}

func (r *Repository) GetUserByEmail(email string) (*domain.User, error) {
	return r.findUser(bson.M{"email": email})
}

func (r *Repository) GetUserByUsername(username string) (*domain.User, error) {
	return r.findUser(bson.M{"username": username})
}

// CreateUser 没有事务保护：如果用户插入失败，会删除刚创建的员工作为补偿
func (r *Repository) CreateUser(user *domain.User, employee *domain.Employee) error {
	if employee != nil {
		if err := r.CreateEmployee(employee); err != nil {
			return err
		}
		user.EmployeeID = &employee.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	now := time.Now().UTC()
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Username:  user.Username,
		Email:     user.Email,
		Password:  user.PasswordHash,
		Role:      string(user.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.EmployeeID != nil {
		if oid, ok := objectID(*user.EmployeeID); ok {
			doc.EmployeeID = &oid
		}
	}

	if _, err := r.db.Collection(usersCollection).InsertOne(ctx, doc); err != nil {
		if employee != nil && doc.EmployeeID != nil {
			_, _ = r.db.Collection(employeesCollection).DeleteOne(ctx, bson.M{"_id": *doc.EmployeeID})
			user.EmployeeID = nil
		}
		return mapError(err)
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}
