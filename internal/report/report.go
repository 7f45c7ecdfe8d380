// Package report computes the dashboard statistics from the task and employee sets.
package report

import (
	"sort"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
)

// CompletionRate returns completed/total*100, or 0 when there are no tasks.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// Dashboard summarises tasks. tasksByEmployee is only filled when includeByEmployee
// is set; employees without tasks are left out and the rest are sorted by count.
func Dashboard(tasks []*domain.TaskWithEmployee, employees []*domain.Employee, includeByEmployee bool) *domain.DashboardStats {
	counts := make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	perEmployee := make(map[string]int)
	for _, t := range tasks {
		counts[t.Status]++
		perEmployee[t.EmployeeID]++
	}

	stats := &domain.DashboardStats{
		TotalTasks:      len(tasks),
		CompletedTasks:  counts[domain.TaskStatusCompleted],
		PendingTasks:    counts[domain.TaskStatusPending],
		InProgressTasks: counts[domain.TaskStatusInProgress],
		TotalEmployees:  len(employees),
		TasksByStatus:   make([]domain.StatusCount, 0, len(domain.TaskStatuses)),
		TasksByEmployee: make([]domain.EmployeeTaskCount, 0),
	}
	stats.CompletionRate = CompletionRate(stats.CompletedTasks, stats.TotalTasks)

	for _, s := range domain.TaskStatuses {
		stats.TasksByStatus = append(stats.TasksByStatus, domain.StatusCount{Status: s, Count: counts[s]})
	}

	if !includeByEmployee {
		return stats
	}

	for _, e := range employees {
		if n := perEmployee[e.ID]; n > 0 {
			stats.TasksByEmployee = append(stats.TasksByEmployee, domain.EmployeeTaskCount{
				EmployeeID:   e.ID,
				EmployeeName: e.Name,
				TaskCount:    n,
			})
		}
	}

	sort.SliceStable(stats.TasksByEmployee, func(i, j int) bool {
		a, b := stats.TasksByEmployee[i], stats.TasksByEmployee[j]
		if a.TaskCount != b.TaskCount {
			return a.TaskCount > b.TaskCount
		}
		return a.EmployeeName < b.EmployeeName
	})

	return stats
}
