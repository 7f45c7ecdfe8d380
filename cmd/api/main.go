package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/database"
	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/ecnc-dev/task-tracker/backend/internal/handler"
	"github.com/ecnc-dev/task-tracker/backend/internal/mailer"
	"github.com/ecnc-dev/task-tracker/backend/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库并创建 repository
	 **********************************************/
	repo, err := database.Open(cfg)
	if err != nil {
		logger.Error("无法连接到数据库", "driver", cfg.Database.Driver, "error", err)
		return
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("关闭数据库连接失败", "error", err)
		}
	}()

	/**********************************************
	 * 确保数据库中存在初始管理员
	 **********************************************/
	if cfg.InitialAdmin.Email != "" && cfg.InitialAdmin.Password != "" {
		if err := ensureInitialAdmin(cfg, repo); err != nil {
			logger.Error("无法创建初始管理员", "error", err)
			return
		}
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	var publisher handler.MailPublisher
	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("无法连接到 rabbitmq", "error", err)
			return
		}
		defer conn.Close()

		// 建立通道
		ch, err := conn.Channel()
		if err != nil {
			logger.Error("无法建立通道", "error", err)
			return
		}
		defer ch.Close()

		// 声明队列
		if _, err := mailer.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
			logger.Error("无法声明队列", "error", err)
			return
		}

		publisher = mailer.NewPublisher(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	} else {
		logger.Warn("未配置 RABBITMQ_DSN，不会发送通知邮件")
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.OperationTimeout)*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, repo, publisher, rdb)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}

func ensureInitialAdmin(cfg *config.Config, repo repository.Repository) error {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	initialAdmin := &domain.User{
		Username:     cfg.InitialAdmin.Username,
		Email:        strings.ToLower(strings.TrimSpace(cfg.InitialAdmin.Email)),
		PasswordHash: string(passwordHash),
		Role:         domain.RoleAdmin,
	}

	err = repo.CreateUser(initialAdmin, nil)
	switch {
	case err == nil:
		slog.Info("已创建初始管理员", "username", initialAdmin.Username)
	case errors.Is(err, repository.ErrDuplicateEmail), errors.Is(err, repository.ErrDuplicateUsername):
		// 如果返回这个错误，说明数据库中已经存在初始管理员，不处理
	default:
		return err
	}

	return nil
}
