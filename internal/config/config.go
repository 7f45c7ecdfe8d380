package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"5000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		Driver             string `env:"DRIVER" envDefault:"postgres"`
		DSN                string `env:"DSN,required"`
		Name               string `env:"NAME" envDefault:"task_tracker"` // 仅 mongodb 使用
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Email    string `env:"EMAIL"`
		Password string `env:"PASSWORD"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"168"` // 小时，7 天
		Secret     string `env:"SECRET,required,notEmpty"`
	} `envPrefix:"JWT_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		DB               int    `env:"DB" envDefault:"0"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"5"`
	} `envPrefix:"REDIS_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"` // 为空时不发送通知邮件
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
		TemplateDir string `env:"TEMPLATE_DIR" envDefault:"./templates"`
		MaxRetries  int    `env:"MAX_RETRIES" envDefault:"3"` // 发送失败后最多重新投递的次数
	} `envPrefix:"EMAIL_"`
	AuthRateLimit struct {
		RPS   float64 `env:"RPS" envDefault:"5"`
		Burst int     `env:"BURST" envDefault:"10"`
	} `envPrefix:"AUTH_RATE_LIMIT_"`
	Login struct {
		MaxFailures   int `env:"MAX_FAILURES" envDefault:"5"`
		FailureWindow int `env:"FAILURE_WINDOW" envDefault:"900"` // 秒
	} `envPrefix:"LOGIN_"`
	CORS struct {
		AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:5000,http://localhost:3000,http://localhost:5173" envSeparator:","`
	} `envPrefix:"CORS_"`
	Seed struct {
		EmailDomain string `env:"EMAIL_DOMAIN" envDefault:"example.com"`
	} `envPrefix:"SEED_"`
}

func LoadConfig() (*Config, error) {
	// .env 文件只在本地开发时存在
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	switch cfg.Database.Driver {
	case DriverPostgres, DriverMongoDB:
	default:
		return nil, errors.New("DATABASE_DRIVER must be postgres or mongodb")
	}

	return cfg, nil
}
