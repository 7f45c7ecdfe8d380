package handler

import (
	"net/http"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
)

type ContextKey string

var (
	UserCtx     ContextKey = "user"
	ClaimsCtx   ContextKey = "claims"
	TaskCtx     ContextKey = "task"
	EmployeeCtx ContextKey = "employee"
)

// currentUser 在可选认证的路由上可能返回 nil
func currentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(UserCtx).(*domain.User)
	return user
}
