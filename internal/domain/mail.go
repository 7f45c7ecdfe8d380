package domain

const (
	MailTypeWelcome      = "welcome"
	MailTypeTaskAssigned = "task_assigned"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type WelcomeMailData struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type TaskAssignedMailData struct {
	EmployeeName string `json:"employeeName"`
	TaskTitle    string `json:"taskTitle"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	DueDate      string `json:"dueDate"`
}
