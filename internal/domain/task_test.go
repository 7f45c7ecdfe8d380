package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTaskStatus(t *testing.T) {
	for _, s := range TaskStatuses {
		if !s.IsValid() {
			t.Errorf("Expected %q to be valid", s)
		}
		for _, next := range TaskStatuses {
			if !s.CanTransitionTo(next) {
				t.Errorf("Expected %q -> %q to be allowed", s, next)
			}
		}
	}

	for _, s := range []TaskStatus{"", "Done", "pending"} {
		if s.IsValid() {
			t.Errorf("Expected %q to be invalid", s)
		}
		if TaskStatusPending.CanTransitionTo(s) {
			t.Errorf("Expected transition to %q to be rejected", s)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := map[string]string{
		"2026-11-01":                "2026-11-01",
		"2026-11-01T00:00:00Z":      "2026-11-01",
		"2026-11-01T18:30:00+02:00": "2026-11-01",
	}

	for in, want := range tests {
		d, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q): unexpected error %v", in, err)
			continue
		}
		if d.String() != want {
			t.Errorf("ParseDate(%q): expected %s, got %s", in, want, d.String())
		}
		if d.Location() != time.UTC || d.Hour() != 0 {
			t.Errorf("ParseDate(%q): expected UTC midnight, got %v", in, d.Time)
		}
	}

	if _, err := ParseDate("next week"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Expected ErrInvalidDate, got %v", err)
	}
}

func TestTask_JSON(t *testing.T) {
	task := Task{
		ID:         "t1",
		Title:      "Set up CI",
		Status:     TaskStatusPending,
		EmployeeID: "e1",
		DueDate:    NewDate(time.Date(2026, 11, 1, 15, 0, 0, 0, time.UTC)),
		Version:    4,
	}

	b, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	if raw["_id"] != "t1" || raw["dueDate"] != "2026-11-01" {
		t.Errorf("Unexpected JSON %s", b)
	}
	if _, ok := raw["version"]; ok {
		t.Error("Expected version to stay internal")
	}
	if _, ok := raw["description"]; ok {
		t.Error("Expected empty description to be omitted")
	}

	var decoded Task
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Expected task to decode, got %v", err)
	}
	if decoded.DueDate == nil || !decoded.DueDate.Equal(task.DueDate.Time) {
		t.Errorf("Expected due date to survive decoding, got %v", decoded.DueDate)
	}
}

func TestUser_OwnsEmployee(t *testing.T) {
	employeeID := "e1"
	user := &User{Role: RoleUser, EmployeeID: &employeeID}
	admin := &User{Role: RoleAdmin}

	if !user.OwnsEmployee("e1") || user.OwnsEmployee("e2") {
		t.Error("Expected user to own only e1")
	}
	if admin.OwnsEmployee("e1") || !admin.IsAdmin() || user.IsAdmin() {
		t.Error("Unexpected admin ownership")
	}
}
