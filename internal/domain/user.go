package domain

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	EmployeeID   *string   `json:"employeeId,omitempty"` // 只有普通用户才会关联员工
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// OwnsEmployee 判断该账户关联的员工是否为 employeeID
func (u *User) OwnsEmployee(employeeID string) bool {
	return u.EmployeeID != nil && *u.EmployeeID == employeeID
}
