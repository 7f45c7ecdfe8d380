package handler

import (
	"net/http"
	"testing"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
)

func TestDashboard(t *testing.T) {
	f := newTaskFixture(t)
	env := f.env

	rr := env.do(t, http.MethodPut, "/api/tasks/"+f.mine[0].ID, f.user.Token, map[string]string{"status": "Completed"})
	expectStatus(t, rr, http.StatusOK)

	tests := []struct {
		name           string
		token          string
		total          int
		completed      int
		byEmployeeSize int
	}{
		{"anonymous", "", 3, 1, 2},
		{"admin", f.admin.Token, 3, 1, 2},
		{"user", f.user.Token, 2, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/dashboard", tt.token, nil)
			expectStatus(t, rr, http.StatusOK)
			stats := decode[domain.DashboardStats](t, rr)

			if stats.TotalTasks != tt.total || stats.CompletedTasks != tt.completed {
				t.Errorf("Expected %d/%d tasks, got %d/%d", tt.completed, tt.total, stats.CompletedTasks, stats.TotalTasks)
			}
			if want := float64(tt.completed) / float64(tt.total) * 100; stats.CompletionRate != want {
				t.Errorf("Expected completion rate %v, got %v", want, stats.CompletionRate)
			}
			if stats.TotalEmployees != 2 {
				t.Errorf("Expected 2 employees, got %d", stats.TotalEmployees)
			}
			if len(stats.TasksByEmployee) != tt.byEmployeeSize {
				t.Errorf("Expected %d per-employee entries, got %d", tt.byEmployeeSize, len(stats.TasksByEmployee))
			}
			if len(stats.TasksByStatus) != 3 || stats.TasksByStatus[0].Status != domain.TaskStatusPending {
				t.Errorf("Unexpected status breakdown %+v", stats.TasksByStatus)
			}
		})
	}

	// 普通用户的 tasksByEmployee 序列化为空数组而不是 null
	rr = env.do(t, http.MethodGet, "/api/dashboard", f.user.Token, nil)
	if got := decode[map[string]any](t, rr)["tasksByEmployee"]; got == nil {
		t.Error("Expected tasksByEmployee to be an empty array")
	}
}

func TestDashboard_Empty(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/dashboard", "", nil)
	expectStatus(t, rr, http.StatusOK)

	stats := decode[domain.DashboardStats](t, rr)
	if stats.TotalTasks != 0 || stats.CompletionRate != 0 {
		t.Errorf("Expected empty dashboard, got %+v", stats)
	}
}
