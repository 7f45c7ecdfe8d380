package mongodb

import (
	"context"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Status      string             `bson:"status"`
	EmployeeID  primitive.ObjectID `bson:"employeeId"`
	DueDate     *time.Time         `bson:"dueDate,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
	Version     int32              `bson:"version"`
}

func (d *taskDocument) toDomain() *domain.Task {
	task := &domain.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Status:      domain.TaskStatus(d.Status),
		EmployeeID:  d.EmployeeID.Hex(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Version:     d.Version,
	}
	if d.DueDate != nil {
		task.DueDate = domain.NewDate(*d.DueDate)
	}
	return task
}

func dueDateValue(d *domain.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func (r *Repository) GetTasks(filter repository.TaskFilter) ([]*domain.TaskWithEmployee, error) {
	query := bson.M{}
	if filter.EmployeeID != "" {
		oid, ok := objectID(filter.EmployeeID)
		if !ok {
			return make([]*domain.TaskWithEmployee, 0), nil
		}
		query["employeeId"] = oid
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Search != "" {
		re := searchRegex(filter.Search)
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}

	order := -1
	if filter.Ascending {
		order = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: order}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	cursor, err := r.db.Collection(tasksCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	// 相当于 populate：一次性查出所有涉及到的员工
	employeeIDs := make(bson.A, 0, len(docs))
	seen := make(map[primitive.ObjectID]bool)
	for _, doc := range docs {
		if !seen[doc.EmployeeID] {
			seen[doc.EmployeeID] = true
			employeeIDs = append(employeeIDs, doc.EmployeeID)
		}
	}

	employees := make(map[string]*domain.EmployeeSummary)
	if len(employeeIDs) > 0 {
		ecur, err := r.db.Collection(employeesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": employeeIDs}})
		if err != nil {
			return nil, err
		}
		defer ecur.Close(ctx)

		for ecur.Next(ctx) {
			var doc employeeDocument
			if err := ecur.Decode(&doc); err != nil {
				return nil, err
			}
			employees[doc.ID.Hex()] = doc.toDomain().Summary()
		}
		if err := ecur.Err(); err != nil {
			return nil, err
		}
	}

	tasks := make([]*domain.TaskWithEmployee, 0, len(docs))
	for i := range docs {
		task := docs[i].toDomain()
		tasks = append(tasks, &domain.TaskWithEmployee{
			Task:     *task,
			Employee: employees[task.EmployeeID],
		})
	}

	return tasks, nil
}

func (r *Repository) GetTaskByID(id string) (*domain.Task, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, repository.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var doc taskDocument
	if err := r.db.Collection(tasksCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}

	return doc.toDomain(), nil
}

func (r *Repository) CreateTask(task *domain.Task) error {
	employeeID, ok := objectID(task.EmployeeID)
	if !ok {
		return repository.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	now := time.Now().UTC()
	doc := taskDocument{
		ID:          primitive.NewObjectID(),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		EmployeeID:  employeeID,
		DueDate:     dueDateValue(task.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	if _, err := r.db.Collection(tasksCollection).InsertOne(ctx, doc); err != nil {
		return mapError(err)
	}

	task.ID = doc.ID.Hex()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.Version = doc.Version

	return nil
}

func (r *Repository) UpdateTask(task *domain.Task) error {
	oid, ok := objectID(task.ID)
	if !ok {
		return repository.ErrRecordNotFound
	}
	employeeID, ok := objectID(task.EmployeeID)
	if !ok {
		return repository.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	now := time.Now().UTC()
	set := bson.M{
		"title":       task.Title,
		"description": task.Description,
		"status":      string(task.Status),
		"employeeId":  employeeID,
		"updatedAt":   now,
		"version":     task.Version + 1,
	}
	update := bson.M{"$set": set}
	if task.DueDate != nil {
		set["dueDate"] = task.DueDate.Time
	} else {
		update["$unset"] = bson.M{"dueDate": ""}
	}

	res, err := r.db.Collection(tasksCollection).UpdateOne(ctx, bson.M{"_id": oid, "version": versionFilter(task.Version)}, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrEditConflict
	}

	task.UpdatedAt = now
	task.Version++

	return nil
}

func (r *Repository) DeleteTask(id string) error {
	oid, ok := objectID(id)
	if !ok {
		return repository.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	res, err := r.db.Collection(tasksCollection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrRecordNotFound
	}

	return nil
}
