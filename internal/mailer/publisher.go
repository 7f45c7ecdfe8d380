package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel 是 *amqp.Channel 中发布消息所需的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
}

func NewPublisher(ch Channel, queue string, timeout time.Duration) *Publisher {
	return &Publisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
	}
}

func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // 持久化
		false, // 没有消费者时不自动删除
		false, // 非独占
		false,
		nil,
	)
}

func (p *Publisher) Publish(msg domain.MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// RetryHeader 记录一条消息已经重新投递的次数
const RetryHeader = "x-retry-count"

var ErrRetriesExhausted = errors.New("mail delivery retries exhausted")

// RetryCount 读取消息头中的重试次数，缺失时为 0
func RetryCount(headers amqp.Table) int {
	switch v := headers[RetryHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// Retry 把发送失败的消息带着递增后的重试次数重新发布到队列末尾，
// 已经重试 maxRetries 次时返回 ErrRetriesExhausted
func (p *Publisher) Retry(body []byte, headers amqp.Table, maxRetries int) error {
	n := RetryCount(headers)
	if n >= maxRetries {
		return ErrRetriesExhausted
	}

	next := amqp.Table{}
	for k, v := range headers {
		next[k] = v
	}
	next[RetryHeader] = int32(n + 1)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      next,
			Body:         body,
		},
	)
}
