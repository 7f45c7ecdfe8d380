package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
)

// visibleTaskFilter 按调用者身份限制可见的任务：
// 匿名请求不受限制，普通用户只能看到关联员工的任务，管理员可以按员工筛选。
// 第二个返回值为 false 表示调用者看不到任何任务。
func visibleTaskFilter(user *domain.User, employeeID string) (repository.TaskFilter, bool) {
	filter := repository.TaskFilter{}

	switch {
	case user == nil:
	case user.IsAdmin():
		if employeeID != "" && employeeID != "all" {
			filter.EmployeeID = employeeID
		}
	case user.EmployeeID == nil:
		return filter, false
	default:
		filter.EmployeeID = *user.EmployeeID
	}

	return filter, true
}

func parseTaskQuery(q url.Values, filter *repository.TaskFilter) error {
	if status := q.Get("status"); status != "" && status != "all" {
		ts := domain.TaskStatus(status)
		if !ts.IsValid() {
			return errors.New("status must be one of all, Pending, In Progress, Completed")
		}
		filter.Status = ts
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}

	switch q.Get("sort") {
	case "", "desc":
	case "asc":
		filter.Ascending = true
	default:
		return errors.New("sort must be asc or desc")
	}

	filter.Search = strings.TrimSpace(q.Get("search"))

	return nil
}

// parseDueDate 区分字段缺失、显式清空 (null 或 "") 和给定日期三种情况
func parseDueDate(raw json.RawMessage) (date *domain.Date, present bool, err error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, true, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, true, errors.New("dueDate must be a date string")
	}
	if strings.TrimSpace(s) == "" {
		return nil, true, nil
	}

	date, err = domain.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil, true, errors.New("dueDate must be a date in YYYY-MM-DD format")
	}
	return date, true, nil
}

func (h *Handler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, visible := visibleTaskFilter(currentUser(r), q.Get("employeeId"))
	if err := parseTaskQuery(q, &filter); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if !visible {
		h.writeJSON(w, r, http.StatusOK, []*domain.TaskWithEmployee{})
		return
	}

	tasks, err := h.repository.GetTasks(filter)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*domain.TaskWithEmployee{}
	}

	h.writeJSON(w, r, http.StatusOK, tasks)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task := r.Context().Value(TaskCtx).(*domain.Task)

	resp := &domain.TaskWithEmployee{Task: *task}

	employee, err := h.repository.GetEmployeeByID(task.EmployeeID)
	switch {
	case err == nil:
		resp.Employee = employee.Summary()
	case errors.Is(err, repository.ErrRecordNotFound):
	default:
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string            `json:"title" validate:"required,min=3"`
		Description string            `json:"description"`
		Status      domain.TaskStatus `json:"status" validate:"omitempty,taskstatus"`
		EmployeeID  string            `json:"employeeId" validate:"required"`
		DueDate     json.RawMessage   `json:"dueDate"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	dueDate, _, err := parseDueDate(req.DueDate)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	employee, err := h.repository.GetEmployeeByID(req.EmployeeID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.badRequest(w, r, errors.New("Invalid employee ID"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	task := &domain.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		EmployeeID:  employee.ID,
		DueDate:     dueDate,
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}

	if err := h.repository.CreateTask(task); err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			// 员工在校验之后被删除
			h.badRequest(w, r, errors.New("Invalid employee ID"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.notifyTaskAssigned(task, employee)

	h.writeJSON(w, r, http.StatusCreated, task)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	task := r.Context().Value(TaskCtx).(*domain.Task)

	var req struct {
		Title       *string            `json:"title" validate:"omitempty,min=3"`
		Description *string            `json:"description"`
		Status      *domain.TaskStatus `json:"status" validate:"omitempty,taskstatus"`
		EmployeeID  *string            `json:"employeeId"`
		DueDate     json.RawMessage    `json:"dueDate"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	trimPtr(req.Title)
	trimPtr(req.EmployeeID)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 普通用户只能修改自己任务的状态，其余字段忽略
	if !user.IsAdmin() {
		if req.Status != nil {
			if !task.Status.CanTransitionTo(*req.Status) {
				h.badRequest(w, r, errors.New("status transition is not allowed"))
				return
			}
			task.Status = *req.Status
		}
		h.saveTask(w, r, task, nil)
		return
	}

	dueDate, dueDatePresent, err := parseDueDate(req.DueDate)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 重新分配时需要校验新员工是否存在
	var assignee *domain.Employee
	if req.EmployeeID != nil && *req.EmployeeID != "" && *req.EmployeeID != task.EmployeeID {
		assignee, err = h.repository.GetEmployeeByID(*req.EmployeeID)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrRecordNotFound):
				h.badRequest(w, r, errors.New("Invalid employee ID"))
			default:
				h.internalServerError(w, r, err)
			}
			return
		}
		task.EmployeeID = assignee.ID
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		if !task.Status.CanTransitionTo(*req.Status) {
			h.badRequest(w, r, errors.New("status transition is not allowed"))
			return
		}
		task.Status = *req.Status
	}
	if dueDatePresent {
		task.DueDate = dueDate
	}

	h.saveTask(w, r, task, assignee)
}

func (h *Handler) saveTask(w http.ResponseWriter, r *http.Request, task *domain.Task, assignee *domain.Employee) {
	if err := h.repository.UpdateTask(task); err != nil {
		switch {
		case errors.Is(err, repository.ErrEditConflict):
			h.editConflict(w, r)
		case errors.Is(err, repository.ErrRecordNotFound):
			h.badRequest(w, r, errors.New("Invalid employee ID"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if assignee != nil {
		h.notifyTaskAssigned(task, assignee)
	}

	h.writeJSON(w, r, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	task := r.Context().Value(TaskCtx).(*domain.Task)

	if err := h.repository.DeleteTask(task.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.notFound(w, r, "Task not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.messageResponse(w, r, http.StatusOK, "Task deleted successfully")
}
