package handler

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/redis/go-redis/v9"
)

// MailPublisher 把通知邮件投递到消息队列，由 cmd/mail 消费
type MailPublisher interface {
	Publish(msg domain.MailMessage) error
}

type Handler struct {
	validate     *validator.Validate
	config       *config.Config
	repository   repository.Repository
	translator   ut.Translator
	mail         MailPublisher
	redisClient  *redis.Client
	authLimiters *ipLimiters

	Mux *chi.Mux
}

// NewHandler 的 mail 可以为 nil，此时不发送任何通知
func NewHandler(cfg *config.Config, repo repository.Repository, mail MailPublisher, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	// 错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := registerTaskStatusValidation(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:     validate,
		config:       cfg,
		repository:   repo,
		translator:   trans,
		mail:         mail,
		redisClient:  rdb,
		authLimiters: newIPLimiters(cfg.AuthRateLimit.RPS, cfg.AuthRateLimit.Burst),

		Mux: chi.NewRouter(),
	}, nil
}

// 状态取值中含有空格，无法用 oneof 表达
func registerTaskStatusValidation(validate *validator.Validate, trans ut.Translator) error {
	if err := validate.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return domain.TaskStatus(fl.Field().String()).IsValid()
	}); err != nil {
		return err
	}

	return validate.RegisterTranslation(
		"taskstatus",
		trans,
		func(ut ut.Translator) error {
			return ut.Add("taskstatus", "{0} must be one of Pending, In Progress, Completed", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("taskstatus", fe.Field())
			return t
		},
	)
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h.Mux.Get("/healthz", h.Healthz)

	h.Mux.Route("/api", func(r chi.Router) {
		// 认证相关，按 IP 限流
		r.Route("/auth", func(r chi.Router) {
			r.Use(h.authRateLimit)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(h.authenticate).Get("/me", h.Me)
			r.With(h.authenticate).Post("/logout", h.Logout)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.GetAllEmployees)
			r.With(h.authenticate, h.requireAdmin).Post("/", h.CreateEmployee)
			r.Route("/{id}", func(r chi.Router) {
				r.With(h.employeeInfo).Get("/", h.GetEmployee)
				r.With(h.authenticate, h.requireAdmin, h.employeeInfo).Put("/", h.UpdateEmployee)
				r.With(h.authenticate, h.requireAdmin, h.employeeInfo).Delete("/", h.DeleteEmployee)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.With(h.optionalAuth).Get("/", h.GetAllTasks)
			r.With(h.authenticate, h.requireAdmin).Post("/", h.CreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.With(h.optionalAuth, h.taskInfo, h.requireTaskReader).Get("/", h.GetTask)
				// 先确认任务存在 (404)，再检查归属 (403)
				r.With(h.authenticate, h.taskInfo, h.requireTaskOwnerOrAdmin).Put("/", h.UpdateTask)
				r.With(h.authenticate, h.requireAdmin, h.taskInfo).Delete("/", h.DeleteTask)
			})
		})

		r.With(h.optionalAuth).Get("/dashboard", h.GetDashboard)
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
