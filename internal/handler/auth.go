package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type authResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required,min=3"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		Role     string `json:"role" validate:"omitempty,oneof=admin user"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 邮箱和用户名同时重复时优先报告邮箱
	if _, err := h.repository.GetUserByEmail(req.Email); err == nil {
		h.badRequest(w, r, errors.New("Email already in use"))
		return
	} else if !errors.Is(err, repository.ErrRecordNotFound) {
		h.internalServerError(w, r, err)
		return
	}
	if _, err := h.repository.GetUserByUsername(req.Username); err == nil {
		h.badRequest(w, r, errors.New("Username already taken"))
		return
	} else if !errors.Is(err, repository.ErrRecordNotFound) {
		h.internalServerError(w, r, err)
		return
	}

	role := domain.RoleUser
	if req.Role != "" {
		role = domain.Role(req.Role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	// 普通用户需要关联一个同名员工，管理员没有
	var employee *domain.Employee
	if role == domain.RoleUser {
		employee = &domain.Employee{
			Name:  user.Username,
			Role:  domain.DefaultEmployeeRole,
			Email: user.Email,
		}
	}

	if err := h.repository.CreateUser(user, employee); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			h.badRequest(w, r, errors.New("Email already in use"))
		case errors.Is(err, repository.ErrDuplicateUsername):
			h.badRequest(w, r, errors.New("Username already taken"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.notify(domain.MailMessage{
		Type: domain.MailTypeWelcome,
		To:   user.Email,
		Data: domain.WelcomeMailData{
			Username: user.Username,
			Role:     user.Role,
		},
	})

	h.writeJSON(w, r, http.StatusCreated, authResponse{User: user, Token: token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if h.loginLocked(req.Email) {
		h.tooManyRequests(w, r, "Too many failed login attempts, please try again later")
		return
	}

	// 邮箱不存在和密码错误返回同样的响应
	user, err := h.repository.GetUserByEmail(req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			h.recordLoginFailure(req.Email)
			h.unauthorized(w, r, "Invalid email or password")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			h.recordLoginFailure(req.Email)
			h.unauthorized(w, r, "Invalid email or password")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.clearLoginFailures(req.Email)

	token, err := h.issueToken(user)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, authResponse{User: user, Token: token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, currentUser(r))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(ClaimsCtx).(*AuthClaims)

	if err := h.revokeToken(claims); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.messageResponse(w, r, http.StatusOK, "Logged out")
}

func loginFailuresKey(email string) string {
	return fmt.Sprintf("login_failures_%s", email)
}

// 以下三个函数在 redis 出错时都放行，只记录日志

func (h *Handler) loginLocked(email string) bool {
	ctx, cancel := h.redisContext()
	defer cancel()

	failures, err := h.redisClient.Get(ctx, loginFailuresKey(email)).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("无法读取登录失败次数", "email", email, "error", err)
		}
		return false
	}

	return failures >= h.config.Login.MaxFailures
}

func (h *Handler) recordLoginFailure(email string) {
	ctx, cancel := h.redisContext()
	defer cancel()

	key := loginFailuresKey(email)
	failures, err := h.redisClient.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("无法记录登录失败次数", "email", email, "error", err)
		return
	}

	// 窗口从第一次失败开始计算
	if failures == 1 {
		window := time.Duration(h.config.Login.FailureWindow) * time.Second
		if err := h.redisClient.Expire(ctx, key, window).Err(); err != nil {
			slog.Warn("无法设置登录失败计数的过期时间", "email", email, "error", err)
		}
	}
}

func (h *Handler) clearLoginFailures(email string) {
	ctx, cancel := h.redisContext()
	defer cancel()

	if err := h.redisClient.Del(ctx, loginFailuresKey(email)).Err(); err != nil {
		slog.Warn("无法清除登录失败次数", "email", email, "error", err)
	}
}
