package repository

import (
	"errors"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrEditConflict      = errors.New("edit conflict")
)

// TaskFilter 描述任务列表的查询条件，空字段表示不过滤
type TaskFilter struct {
	EmployeeID string
	Status     domain.TaskStatus
	Search     string
	Limit      int
	Ascending  bool
}

// Repository 由 postgres 和 mongodb 两种存储实现
type Repository interface {
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	// CreateUser 在 employee 非空时同时创建员工并关联到用户
	CreateUser(user *domain.User, employee *domain.Employee) error

	GetAllEmployees(search string) ([]*domain.Employee, error)
	GetEmployeeByID(id string) (*domain.Employee, error)
	GetEmployeeByEmail(email string) (*domain.Employee, error)
	CreateEmployee(employee *domain.Employee) error
	UpdateEmployee(employee *domain.Employee) error
	// DeleteEmployee 先删除该员工的所有任务，再删除员工本身，返回删除的任务数
	DeleteEmployee(id string) (int64, error)

	GetTasks(filter TaskFilter) ([]*domain.TaskWithEmployee, error)
	GetTaskByID(id string) (*domain.Task, error)
	CreateTask(task *domain.Task) error
	UpdateTask(task *domain.Task) error
	DeleteTask(id string) error

	Close() error
}
