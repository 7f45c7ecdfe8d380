package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("已处理请求", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

var errUserGone = errors.New("user no longer exists")

// identify 解析 bearer token 并加载对应的用户
func (h *Handler) identify(r *http.Request) (*domain.User, *AuthClaims, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return nil, nil, err
	}

	claims, err := h.parseToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	revoked, err := h.isTokenRevoked(claims)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, errInvalidToken
	}

	user, err := h.repository.GetUserByID(claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, nil, errUserGone
		}
		return nil, nil, err
	}

	return user, claims, nil
}

func withIdentity(r *http.Request, user *domain.User, claims *AuthClaims) *http.Request {
	ctx := context.WithValue(r.Context(), UserCtx, user)
	ctx = context.WithValue(ctx, ClaimsCtx, claims)
	return r.WithContext(ctx)
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, err := h.identify(r)
		if err != nil {
			switch {
			case errors.Is(err, errMissingToken):
				h.unauthorized(w, r, "Authentication required")
			case errors.Is(err, errInvalidToken):
				h.unauthorized(w, r, "Invalid or expired token")
			case errors.Is(err, errUserGone):
				h.unauthorized(w, r, "User not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		next.ServeHTTP(w, withIdentity(r, user, claims))
	})
}

// optionalAuth 在令牌缺失、无效或用户已删除时以匿名身份继续
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, err := h.identify(r)
		if err != nil {
			switch {
			case errors.Is(err, errMissingToken), errors.Is(err, errInvalidToken), errors.Is(err, errUserGone):
				next.ServeHTTP(w, r)
			default:
				// 令牌有效但无法确认身份，不按匿名处理
				h.internalServerError(w, r, err)
			}
			return
		}

		next.ServeHTTP(w, withIdentity(r, user, claims))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			h.unauthorized(w, r, "Authentication required")
			return
		}
		if !user.IsAdmin() {
			h.forbidden(w, r, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) taskInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		task, err := h.repository.GetTaskByID(chi.URLParam(r, "id"))
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrRecordNotFound):
				h.notFound(w, r, "Task not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), TaskCtx, task)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) employeeInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		employee, err := h.repository.GetEmployeeByID(chi.URLParam(r, "id"))
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrRecordNotFound):
				h.notFound(w, r, "Employee not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), EmployeeCtx, employee)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireTaskOwnerOrAdmin 必须放在 authenticate 和 taskInfo 之后
func (h *Handler) requireTaskOwnerOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		task := r.Context().Value(TaskCtx).(*domain.Task)

		if !user.IsAdmin() && !user.OwnsEmployee(task.EmployeeID) {
			h.forbidden(w, r, "You can only update your own tasks")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireTaskReader 对匿名请求放行，普通用户只能查看自己的任务
func (h *Handler) requireTaskReader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		task := r.Context().Value(TaskCtx).(*domain.Task)

		if user != nil && !user.IsAdmin() && !user.OwnsEmployee(task.EmployeeID) {
			h.forbidden(w, r, "You can only view your own tasks")
			return
		}
		next.ServeHTTP(w, r)
	})
}

const limiterIdleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters 为每个客户端 IP 维护一个令牌桶
type ipLimiters struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

func newIPLimiters(rps float64, burst int) *ipLimiters {
	return &ipLimiters{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) authRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authLimiters.allow(clientIP(r)) {
			h.tooManyRequests(w, r, "Too many requests, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
