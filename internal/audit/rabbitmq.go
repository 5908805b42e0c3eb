package audit

import (
	"context"
	"encoding/json"
	"io"

	amqp "github.com/rabbitmq/amqp091-go"

	xerrors "PumpMCP/internal/errors"
)

// RabbitMQConfig 描述 RabbitMQ 审计队列的连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url" yaml:"url"`
	Exchange   string `json:"exchange" yaml:"exchange"`
	Queue      string `json:"queue" yaml:"queue"`
	Durable    bool   `json:"durable" yaml:"durable"`
	AutoDelete bool   `json:"auto_delete" yaml:"auto_delete"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQSink 把事件以 JSON 消息发布到 RabbitMQ。
type RabbitMQSink struct {
	conn     io.Closer
	ch       publisher
	exchange string
	queue    string
}

// NewRabbitMQSink 连接 RabbitMQ 并声明队列。
func NewRabbitMQSink(cfg RabbitMQConfig) (*RabbitMQSink, error) {
	if cfg.URL == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "pumpmcp.audit"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeSinkFailure, err, "连接 RabbitMQ 失败")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeSinkFailure, err, "创建 RabbitMQ channel 失败")
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeSinkFailure, err, "声明 RabbitMQ 队列失败")
	}
	return &RabbitMQSink{conn: conn, ch: ch, exchange: cfg.Exchange, queue: queue}, nil
}

// Name 实现 Sink。
func (s *RabbitMQSink) Name() string { return DriverRabbitMQ }

// Record 发布一条持久化的 JSON 消息。
func (s *RabbitMQSink) Record(ctx context.Context, event Event) error {
	if s == nil || s.ch == nil {
		return xerrors.New(xerrors.CodeSinkFailure, "RabbitMQ 审计队列未初始化")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeSinkFailure, err, "序列化审计事件失败")
	}
	err = s.ch.PublishWithContext(ctx, s.exchange, s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         event.Tool,
		Body:         payload,
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeSinkFailure, err, "RabbitMQ 发布审计事件失败")
	}
	return nil
}

// Close 关闭 channel 与连接。
func (s *RabbitMQSink) Close() error {
	if s == nil {
		return nil
	}
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
