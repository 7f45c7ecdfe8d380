package domain

type StatusCount struct {
	Status TaskStatus `json:"status"`
	Count  int        `json:"count"`
}

type EmployeeTaskCount struct {
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	TaskCount    int    `json:"taskCount"`
}

type DashboardStats struct {
	TotalTasks      int                 `json:"totalTasks"`
	CompletedTasks  int                 `json:"completedTasks"`
	PendingTasks    int                 `json:"pendingTasks"`
	InProgressTasks int                 `json:"inProgressTasks"`
	CompletionRate  float64             `json:"completionRate"`
	TotalEmployees  int                 `json:"totalEmployees"`
	TasksByStatus   []StatusCount       `json:"tasksByStatus"`
	TasksByEmployee []EmployeeTaskCount `json:"tasksByEmployee"`
}
