package domain

import (
	"encoding/json"
	"errors"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// TaskStatuses 按看板中的展示顺序排列
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
}

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a task in status s may be moved to next.
// Every status is reachable from every other one.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return s.IsValid() && next.IsValid()
}

type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	EmployeeID  string     `json:"employeeId"`
	DueDate     *Date      `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Version     int32      `json:"-"`
}

type TaskWithEmployee struct {
	Task
	Employee *EmployeeSummary `json:"employee,omitempty"`
}

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Date 是只保留到日的截止日期，JSON 中以 YYYY-MM-DD 表示
type Date struct {
	time.Time
}

func NewDate(t time.Time) *Date {
	y, m, d := t.Date()
	return &Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (*Date, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}
