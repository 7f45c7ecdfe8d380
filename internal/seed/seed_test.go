package seed

import (
	"strings"
	"testing"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
)

// stubRepository 只实现导入用到的方法，其余方法调用会 panic
type stubRepository struct {
	repository.Repository
	employees map[string]*domain.Employee
	tasks     []*domain.Task
}

func (s *stubRepository) GetEmployeeByEmail(email string) (*domain.Employee, error) {
	if e, ok := s.employees[email]; ok {
		return e, nil
	}
	return nil, repository.ErrRecordNotFound
}

func (s *stubRepository) CreateEmployee(e *domain.Employee) error {
	e.ID = "emp-" + e.Email
	s.employees[e.Email] = e
	return nil
}

func (s *stubRepository) CreateTask(task *domain.Task) error {
	s.tasks = append(s.tasks, task)
	return nil
}

func TestImportTasks(t *testing.T) {
	repo := &stubRepository{
		employees: map[string]*domain.Employee{
			"ana@co.com": {ID: "ana", Name: "Ana Lee", Email: "ana@co.com"},
		},
	}

	csv := `title,description,status,employee_name,employee_email,due_date
Set up CI,Use the new runners,In Progress,,ANA@co.com,2026-11-01
Write docs,,,Bob Stone,bob@co.com,
No,,,,ana@co.com,
Unknown person,,,,ghost@co.com,
Bad status,,Done,,ana@co.com,
Bad date,,,,ana@co.com,soon
`

	imported, err := ImportTasks(repo, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if imported != 2 {
		t.Fatalf("Expected 2 imported tasks, got %d", imported)
	}

	first := repo.tasks[0]
	if first.EmployeeID != "ana" || first.Status != domain.TaskStatusInProgress || first.DueDate == nil || first.DueDate.String() != "2026-11-01" {
		t.Errorf("Unexpected first task %+v", first)
	}

	second := repo.tasks[1]
	if second.EmployeeID != "emp-bob@co.com" || second.Status != domain.TaskStatusPending || second.DueDate != nil {
		t.Errorf("Unexpected second task %+v", second)
	}
	if _, ok := repo.employees["bob@co.com"]; !ok {
		t.Error("Expected missing employee with a name to be created")
	}
}

func TestImportTasks_MissingHeader(t *testing.T) {
	repo := &stubRepository{employees: map[string]*domain.Employee{}}

	if _, err := ImportTasks(repo, strings.NewReader("title,status\nWrite docs,Pending\n")); err == nil {
		t.Error("Expected error for missing employee_email column")
	}
}
