package handler

import (
	"net/http"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/report"
)

// GetDashboard 每次请求都重新统计，列表的筛选参数不参与统计
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var tasks []*domain.TaskWithEmployee
	filter, visible := visibleTaskFilter(user, "")
	if visible {
		var err error
		tasks, err = h.repository.GetTasks(filter)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	employees, err := h.repository.GetAllEmployees("")
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	includeByEmployee := user == nil || user.IsAdmin()

	h.writeJSON(w, r, http.StatusOK, report.Dashboard(tasks, employees, includeByEmployee))
}
