package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []domain.MailMessage
}

func (p *recordingPublisher) Publish(msg domain.MailMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) byType(mailType string) []domain.MailMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.MailMessage
	for _, m := range p.msgs {
		if m.Type == mailType {
			out = append(out, m)
		}
	}
	return out
}

type testEnv struct {
	h     *Handler
	repo  *memRepository
	mail  *recordingPublisher
	redis *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 1
	cfg.Redis.OperationTimeout = 1
	cfg.Login.MaxFailures = 5
	cfg.Login.FailureWindow = 900
	cfg.AuthRateLimit.RPS = 1000
	cfg.AuthRateLimit.Burst = 1000
	cfg.CORS.AllowedOrigins = []string{"*"}

	repo := newMemRepository()
	pub := &recordingPublisher{}

	h, err := NewHandler(cfg, repo, pub, rdb)
	if err != nil {
		t.Fatalf("Expected handler to be created, got %v", err)
	}
	h.RegisterRoutes()

	return &testEnv{h: h, repo: repo, mail: pub, redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.h.Mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()

	if rr.Code != status {
		t.Fatalf("Expected status %d, got %d (%s)", status, rr.Code, rr.Body.String())
	}
}

func expectMessage(t *testing.T, rr *httptest.ResponseRecorder, msg string) {
	t.Helper()

	got := decode[messageResponse](t, rr)
	if got.Message != msg {
		t.Errorf("Expected message %q, got %q", msg, got.Message)
	}
}

func (e *testEnv) register(t *testing.T, username, email, role string) authResponse {
	t.Helper()

	body := map[string]string{"username": username, "email": email, "password": "secret123"}
	if role != "" {
		body["role"] = role
	}

	rr := e.do(t, http.MethodPost, "/api/auth/register", "", body)
	expectStatus(t, rr, http.StatusCreated)
	return decode[authResponse](t, rr)
}

func (e *testEnv) createEmployee(t *testing.T, adminToken, name, email string) *domain.Employee {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/employees", adminToken, map[string]string{
		"name":  name,
		"role":  "Engineer",
		"email": email,
	})
	expectStatus(t, rr, http.StatusCreated)
	return decode[*domain.Employee](t, rr)
}

func (e *testEnv) createTask(t *testing.T, adminToken, title, employeeID string) *domain.Task {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/tasks", adminToken, map[string]string{
		"title":      title,
		"employeeId": employeeID,
	})
	expectStatus(t, rr, http.StatusCreated)
	return decode[*domain.Task](t, rr)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rr, http.StatusOK)

	if got := decode[map[string]string](t, rr)["status"]; got != "ok" {
		t.Errorf("Expected status ok, got %q", got)
	}
}

func TestReadJSON_RejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"a@b.co","password":"x","remember":true}`)
	expectStatus(t, rr, http.StatusBadRequest)
	expectMessage(t, rr, `unknown field "remember"`)
}

func TestReadJSON_RejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", `{"email":`)
	expectStatus(t, rr, http.StatusBadRequest)
}
