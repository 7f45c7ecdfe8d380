package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
)

// 导入文件必须包含的列，其余列 (description, status, employee_name, due_date) 可选
var requiredHeaders = []string{"title", "employee_email"}

// ImportTasks 从 CSV 中导入任务。找不到的员工在给出 employee_name 时会被新建，
// 否则跳过该行。返回成功导入的任务数。
func ImportTasks(r repository.Repository, in io.Reader) (int, error) {
	reader := csv.NewReader(in)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}
	for _, h := range requiredHeaders {
		if !slices.Contains(headers, h) {
			return 0, fmt.Errorf("缺少必需的列 %q", h)
		}
	}

	employees := make(map[string]*domain.Employee)
	imported := 0
	line := 1

	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return imported, fmt.Errorf("读取文件失败: %w", err)
		}
		line++

		record := make(map[string]string, len(headers))
		for i, value := range row {
			record[headers[i]] = strings.TrimSpace(value)
		}

		employee, err := resolveEmployee(r, employees, record)
		if err != nil {
			slog.Error("无法确定任务所属员工", "line", line, "error", err)
			continue
		}

		task, err := taskFromRecord(record, employee.ID)
		if err != nil {
			slog.Error("任务数据不合法", "line", line, "error", err)
			continue
		}

		if err := r.CreateTask(task); err != nil {
			slog.Error("插入任务失败", "line", line, "error", err)
			continue
		}
		imported++
	}

	return imported, nil
}

func resolveEmployee(r repository.Repository, cache map[string]*domain.Employee, record map[string]string) (*domain.Employee, error) {
	email := strings.ToLower(record["employee_email"])
	if email == "" {
		return nil, errors.New("employee_email 为空")
	}
	if e, ok := cache[email]; ok {
		return e, nil
	}

	employee, err := r.GetEmployeeByEmail(email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrRecordNotFound):
		// 表示该员工不在数据库中，有姓名时新建
		name := record["employee_name"]
		if len(name) < 2 {
			return nil, fmt.Errorf("员工 %s 不存在", email)
		}
		employee = &domain.Employee{
			Name:  name,
			Role:  domain.DefaultEmployeeRole,
			Email: email,
		}
		if err := r.CreateEmployee(employee); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	cache[email] = employee
	return employee, nil
}

func taskFromRecord(record map[string]string, employeeID string) (*domain.Task, error) {
	task := &domain.Task{
		Title:       record["title"],
		Description: record["description"],
		Status:      domain.TaskStatus(record["status"]),
		EmployeeID:  employeeID,
	}

	if len(task.Title) < 3 {
		return nil, fmt.Errorf("标题 %q 太短", task.Title)
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if !task.Status.IsValid() {
		return nil, fmt.Errorf("未知的任务状态 %q", task.Status)
	}
	if dueDate := record["due_date"]; dueDate != "" {
		d, err := domain.ParseDate(dueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = d
	}

	return task, nil
}
