package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/config"
	"github.com/ecnc-dev/task-tracker/backend/internal/mailer"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}
	if cfg.RabbitMQ.DSN == "" {
		logger.Error("mail worker 需要配置 RABBITMQ_DSN")
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
		mail.WithTimeout(time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	// 验证邮件客户端是否连接成功
	clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer cancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
		return
	}

	renderer := mailer.NewRenderer(cfg.Email.TemplateDir)

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	q, err := mailer.DeclareQueue(ch, cfg.RabbitMQ.Queue)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 发送失败的消息通过同一通道重新发布
	retrier := mailer.NewPublisher(ch, q.Name, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 消费消息
	msgs, err := ch.Consume(
		q.Name, // 队列
		"",     // 消费者标识，设置为空字符串，表示由 RabbitMQ 自动分配
		false,  // 手动确认，发送成功后才 Ack
		false,  // 是否独占队列
		false,  // 必须设置为 false，因为 RabbitMQ 不支持这个参数
		false,  // 等待 RabbitMQ 响应
		nil,    // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 用于关闭 goroutine 的上下文
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}
				handleDelivery(logger, client, renderer, retrier, cfg, msg)
			}
		}
	}()

	// 等待 CTRL+C 信号
	logger.Info("等待消息...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	slog.Info("正在关闭 mail worker...")
	cancel()
	wg.Wait() // 等待所有 goroutine 完成
	slog.Info("mail worker 已成功关闭")
}

// handleDelivery 渲染失败的消息直接丢弃，发送失败的最多重新投递 EMAIL_MAX_RETRIES 次
func handleDelivery(logger *slog.Logger, client *mail.Client, renderer *mailer.Renderer, retrier *mailer.Publisher, cfg *config.Config, msg amqp.Delivery) {
	from := cfg.Email.SMTP.Username

	mailMessage, err := mailer.Decode(msg.Body)
	if err != nil {
		logger.Error("邮件信息反序列化失败", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}
	logger.Info("收到消息", slog.String("type", mailMessage.Type), slog.String("to", mailMessage.To))

	subject, tmpl, err := renderer.Template(mailMessage.Type)
	if err != nil {
		logger.Error("无法解析邮件模板", slog.String("type", mailMessage.Type), slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}

	// 构建邮件
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		logger.Error("无法设置邮件发件人", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}
	if err := m.To(mailMessage.To); err != nil {
		logger.Error("无法设置邮件收件人", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}
	if err := m.SetBodyHTMLTemplate(tmpl, mailMessage.Data); err != nil {
		logger.Error("无法设置邮件正文", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}
	m.Subject(subject)

	// 发送邮件
	if err := client.DialAndSend(m); err != nil {
		attempt := mailer.RetryCount(msg.Headers)
		logger.Error("邮件发送失败", slog.String("to", mailMessage.To), slog.Int("attempt", attempt), slog.String("error", err.Error()))
		if err := retrier.Retry(msg.Body, msg.Headers, cfg.Email.MaxRetries); err != nil {
			logger.Error("放弃发送邮件", slog.String("to", mailMessage.To), slog.String("error", err.Error()))
			_ = msg.Nack(false, false)
			return
		}
		_ = msg.Ack(false) // 新的副本已经排在队列末尾
		return
	}

	// 确认消息
	_ = msg.Ack(false)
}
