package handler

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/google/uuid"
)

// memRepository 是测试用的内存存储，返回的都是副本
type memRepository struct {
	mu        sync.Mutex
	clock     time.Time
	users     map[string]domain.User
	employees map[string]domain.Employee
	tasks     map[string]domain.Task
}

func newMemRepository() *memRepository {
	return &memRepository{
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:     make(map[string]domain.User),
		employees: make(map[string]domain.Employee),
		tasks:     make(map[string]domain.Task),
	}
}

// now 每次调用前进一秒，保证按创建时间排序稳定
func (m *memRepository) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memRepository) GetUserByID(id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &u, nil
}

func (m *memRepository) findUser(match func(u domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (m *memRepository) GetUserByEmail(email string) (*domain.User, error) {
	return m.findUser(func(u domain.User) bool { return u.Email == email })
}

func (m *memRepository) GetUserByUsername(username string) (*domain.User, error) {
	return m.findUser(func(u domain.User) bool { return u.Username == username })
}

func (m *memRepository) CreateUser(user *domain.User, employee *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 与 postgres 一样，两个唯一约束都冲突时不保证先报告哪一个，这里固定先报用户名
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}

	if employee != nil {
		if err := m.insertEmployee(employee); err != nil {
			return err
		}
		user.EmployeeID = &employee.ID
	}

	user.ID = uuid.NewString()
	user.CreatedAt = m.now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user

	return nil
}

func (m *memRepository) GetAllEmployees(search string) ([]*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search = strings.ToLower(search)
	employees := []*domain.Employee{}
	for _, e := range m.employees {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Name), search) &&
			!strings.Contains(strings.ToLower(e.Email), search) &&
			!strings.Contains(strings.ToLower(e.Role), search) {
			continue
		}
		e := e
		employees = append(employees, &e)
	}

	sort.Slice(employees, func(i, j int) bool { return employees[i].Name < employees[j].Name })
	return employees, nil
}

func (m *memRepository) GetEmployeeByID(id string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &e, nil
}

func (m *memRepository) GetEmployeeByEmail(email string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.employees {
		if e.Email == email {
			return &e, nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (m *memRepository) insertEmployee(e *domain.Employee) error {
	for _, existing := range m.employees {
		if existing.Email == e.Email {
			return repository.ErrDuplicateEmail
		}
	}

	e.ID = uuid.NewString()
	e.CreatedAt = m.now()
	e.UpdatedAt = e.CreatedAt
	m.employees[e.ID] = *e
	return nil
}

func (m *memRepository) CreateEmployee(e *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertEmployee(e)
}

func (m *memRepository) UpdateEmployee(e *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.employees[e.ID]
	if !ok || stored.Version != e.Version {
		return repository.ErrEditConflict
	}
	for id, existing := range m.employees {
		if id != e.ID && existing.Email == e.Email {
			return repository.ErrDuplicateEmail
		}
	}

	e.Version++
	e.UpdatedAt = m.now()
	m.employees[e.ID] = *e
	return nil
}

func (m *memRepository) DeleteEmployee(id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[id]; !ok {
		return 0, repository.ErrRecordNotFound
	}

	var deleted int64
	for taskID, t := range m.tasks {
		if t.EmployeeID == id {
			delete(m.tasks, taskID)
			deleted++
		}
	}
	delete(m.employees, id)

	return deleted, nil
}

func (m *memRepository) GetTasks(filter repository.TaskFilter) ([]*domain.TaskWithEmployee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	search := strings.ToLower(filter.Search)
	tasks := []*domain.TaskWithEmployee{}
	for _, t := range m.tasks {
		if filter.EmployeeID != "" && t.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}

		twe := &domain.TaskWithEmployee{Task: t}
		if e, ok := m.employees[t.EmployeeID]; ok {
			twe.Employee = e.Summary()
		}
		tasks = append(tasks, twe)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if filter.Ascending {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}

	return tasks, nil
}

func (m *memRepository) GetTaskByID(id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &t, nil
}

func (m *memRepository) CreateTask(task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[task.EmployeeID]; !ok {
		return repository.ErrRecordNotFound
	}

	task.ID = uuid.NewString()
	task.CreatedAt = m.now()
	task.UpdatedAt = task.CreatedAt
	m.tasks[task.ID] = *task
	return nil
}

func (m *memRepository) UpdateTask(task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.tasks[task.ID]
	if !ok || stored.Version != task.Version {
		return repository.ErrEditConflict
	}
	if _, ok := m.employees[task.EmployeeID]; !ok {
		return repository.ErrRecordNotFound
	}

	task.Version++
	task.UpdatedAt = m.now()
	m.tasks[task.ID] = *task
	return nil
}

func (m *memRepository) DeleteTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return repository.ErrRecordNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memRepository) Close() error {
	return nil
}

func (m *memRepository) taskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tasks)
}
