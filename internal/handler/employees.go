package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
)

func (h *Handler) GetAllEmployees(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	employees, err := h.repository.GetAllEmployees(search)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if employees == nil {
		employees = []*domain.Employee{}
	}

	h.writeJSON(w, r, http.StatusOK, employees)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeCtx).(*domain.Employee)
	h.writeJSON(w, r, http.StatusOK, employee)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name" validate:"required,min=2"`
		Role  string `json:"role" validate:"required,min=2"`
		Email string `json:"email" validate:"required,email"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Role = strings.TrimSpace(req.Role)
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	employee := &domain.Employee{
		Name:  req.Name,
		Role:  req.Role,
		Email: req.Email,
	}

	if err := h.repository.CreateEmployee(employee); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			h.badRequest(w, r, errors.New("Email already in use"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.writeJSON(w, r, http.StatusCreated, employee)
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeCtx).(*domain.Employee)

	var req struct {
		Name  *string `json:"name" validate:"omitempty,min=2"`
		Role  *string `json:"role" validate:"omitempty,min=2"`
		Email *string `json:"email" validate:"omitempty,email"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	trimPtr(req.Name)
	trimPtr(req.Role)
	if req.Email != nil {
		*req.Email = normalizeEmail(*req.Email)
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		employee.Name = *req.Name
	}
	if req.Role != nil {
		employee.Role = *req.Role
	}
	if req.Email != nil {
		employee.Email = *req.Email
	}

	if err := h.repository.UpdateEmployee(employee); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			h.badRequest(w, r, errors.New("Email already in use"))
		case errors.Is(err, repository.ErrEditConflict):
			h.editConflict(w, r)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, employee)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeCtx).(*domain.Employee)

	deletedTasks, err := h.repository.DeleteEmployee(employee.ID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.notFound(w, r, "Employee not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	slog.Info("已删除员工", "id", employee.ID, "deletedTasks", deletedTasks)

	h.messageResponse(w, r, http.StatusOK, "Employee deleted successfully")
}
