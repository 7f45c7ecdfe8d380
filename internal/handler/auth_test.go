package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
)

func TestRegister_PairsEmployeeForRegularUser(t *testing.T) {
	for _, role := range []string{"", "user"} {
		env := newTestEnv(t)

		resp := env.register(t, "alice", "Alice@Example.com ", role)

		if resp.Token == "" {
			t.Error("Expected a token")
		}
		if resp.User.Role != domain.RoleUser {
			t.Errorf("Expected role user, got %s", resp.User.Role)
		}
		if resp.User.Email != "alice@example.com" {
			t.Errorf("Expected normalized email, got %s", resp.User.Email)
		}
		if resp.User.EmployeeID == nil {
			t.Fatal("Expected user to be linked to an employee")
		}

		employees, _ := env.repo.GetAllEmployees("")
		if len(employees) != 1 {
			t.Fatalf("Expected exactly 1 employee, got %d", len(employees))
		}
		employee := employees[0]
		if employee.ID != *resp.User.EmployeeID {
			t.Errorf("Expected linked employee %s, got %s", employee.ID, *resp.User.EmployeeID)
		}
		if employee.Email != resp.User.Email || employee.Name != "alice" || employee.Role != domain.DefaultEmployeeRole {
			t.Errorf("Unexpected paired employee %+v", employee)
		}

		if welcome := env.mail.byType(domain.MailTypeWelcome); len(welcome) != 1 || welcome[0].To != "alice@example.com" {
			t.Errorf("Expected one welcome mail to alice, got %+v", welcome)
		}
	}
}

func TestRegister_AdminHasNoEmployee(t *testing.T) {
	env := newTestEnv(t)

	resp := env.register(t, "root", "root@example.com", "admin")

	if resp.User.EmployeeID != nil {
		t.Errorf("Expected admin without employee, got %s", *resp.User.EmployeeID)
	}
	if employees, _ := env.repo.GetAllEmployees(""); len(employees) != 0 {
		t.Errorf("Expected no employees, got %d", len(employees))
	}
}

func TestRegister_Duplicates(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "")

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice2", "email": "ALICE@example.com", "password": "secret123",
	})
	expectStatus(t, rr, http.StatusBadRequest)
	expectMessage(t, rr, "Email already in use")

	rr = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "secret123",
	})
	expectStatus(t, rr, http.StatusBadRequest)
	expectMessage(t, rr, "Username already taken")
}

func TestRegister_EmailReportedBeforeUsername(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "root", "root@example.com", "admin")
	env.register(t, "bob", "bob@example.com", "admin")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"same account", "root", "root@example.com"},
		{"email of one, username of another", "bob", "root@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
				"username": tt.username, "email": tt.email, "password": "secret123", "role": "admin",
			})
			expectStatus(t, rr, http.StatusBadRequest)
			expectMessage(t, rr, "Email already in use")
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []map[string]string{
		{"username": "al", "email": "al@example.com", "password": "secret123"},
		{"username": "alice", "email": "not-an-email", "password": "secret123"},
		{"username": "alice", "email": "alice@example.com", "password": "123"},
		{"username": "alice", "email": "alice@example.com", "password": "secret123", "role": "owner"},
	}

	for _, body := range tests {
		rr := env.do(t, http.MethodPost, "/api/auth/register", "", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %v, got %d", body, rr.Code)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "")

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	expectStatus(t, rr, http.StatusOK)
	if resp := decode[authResponse](t, rr); resp.Token == "" || resp.User.Username != "alice" {
		t.Errorf("Unexpected login response %+v", resp)
	}

	wrongPassword := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	unknownEmail := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})

	expectStatus(t, wrongPassword, http.StatusUnauthorized)
	expectStatus(t, unknownEmail, http.StatusUnauthorized)
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("Expected identical failure bodies, got %q and %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLogin_ThrottlesRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "")

	for i := 0; i < 5; i++ {
		rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-password",
		})
		expectStatus(t, rr, http.StatusUnauthorized)
	}

	// 即使密码正确也会被拒绝
	rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	expectStatus(t, rr, http.StatusTooManyRequests)

	env.redis.FastForward(901 * time.Second)

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	expectStatus(t, rr, http.StatusOK)
}

func TestLogin_SuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "")

	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-password",
		})
	}
	rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	expectStatus(t, rr, http.StatusOK)

	if env.redis.Exists(loginFailuresKey("alice@example.com")) {
		t.Error("Expected failure counter to be cleared after a successful login")
	}
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.h.authLimiters = newIPLimiters(1, 2)

	var last int
	for i := 0; i < 3; i++ {
		last = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "secret123",
		}).Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once the burst is used up, got %d", last)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	resp := env.register(t, "alice", "alice@example.com", "")

	rr := env.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	expectStatus(t, rr, http.StatusOK)

	me := decode[domain.User](t, rr)
	if me.ID != resp.User.ID {
		t.Errorf("Expected user %s, got %s", resp.User.ID, me.ID)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("Expected password hash to never be serialized")
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	env := newTestEnv(t)
	resp := env.register(t, "alice", "alice@example.com", "")

	rr := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	expectStatus(t, rr, http.StatusUnauthorized)
	expectMessage(t, rr, "Authentication required")

	rr = env.do(t, http.MethodGet, "/api/auth/me", resp.Token+"tampered", nil)
	expectStatus(t, rr, http.StatusUnauthorized)
	expectMessage(t, rr, "Invalid or expired token")

	// 用户被删除后令牌失效
	env.repo.mu.Lock()
	delete(env.repo.users, resp.User.ID)
	env.repo.mu.Unlock()

	rr = env.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	expectStatus(t, rr, http.StatusUnauthorized)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.register(t, "alice", "alice@example.com", "")

	rr := env.do(t, http.MethodPost, "/api/auth/logout", resp.Token, nil)
	expectStatus(t, rr, http.StatusOK)
	expectMessage(t, rr, "Logged out")

	rr = env.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	expectStatus(t, rr, http.StatusUnauthorized)

	// 可选认证的接口把吊销的令牌视为匿名
	rr = env.do(t, http.MethodGet, "/api/dashboard", resp.Token, nil)
	expectStatus(t, rr, http.StatusOK)
}
