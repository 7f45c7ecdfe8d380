package domain

import "time"

// 注册时为普通用户自动创建的员工所使用的职位
const DefaultEmployeeRole = "Team Member"

type Employee struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int32     `json:"-"`
}

type EmployeeSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (e *Employee) Summary() *EmployeeSummary {
	return &EmployeeSummary{
		ID:    e.ID,
		Name:  e.Name,
		Email: e.Email,
		Role:  e.Role,
	}
}
