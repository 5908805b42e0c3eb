package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	xerrors "PumpMCP/internal/errors"
)

// 支持的审计后端。
const (
	DriverNone     = "none"
	DriverLog      = "log"
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
	DriverMySQL    = "mysql"
)

// Config 描述审计后端。Drivers 为空或只含 none 时不记录。
type Config struct {
	Drivers  []string       `json:"drivers" yaml:"drivers" validate:"dive,oneof=none log redis rabbitmq mysql"`
	Timeout  int            `json:"timeout_seconds" yaml:"timeout_seconds"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
	MySQL    MySQLConfig    `json:"mysql" yaml:"mysql"`
}

// RecordTimeout 返回单次投递的超时。
func (c Config) RecordTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// New 按配置构建 Fanout。任一后端初始化失败时关闭已创建的后端并返回错误。
func New(ctx context.Context, cfg Config) (*Fanout, error) {
	var sinks []Sink
	fail := func(err error) (*Fanout, error) {
		_ = NewFanout(sinks...).Close()
		return nil, err
	}

	for _, driver := range cfg.Drivers {
		switch strings.ToLower(strings.TrimSpace(driver)) {
		case "", DriverNone:
		case DriverLog:
			sinks = append(sinks, NewLogSink())
		case DriverRedis:
			sink, err := NewRedisSink(ctx, cfg.Redis)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, sink)
		case DriverRabbitMQ:
			sink, err := NewRabbitMQSink(cfg.RabbitMQ)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, sink)
		case DriverMySQL:
			sink, err := NewMySQLSink(ctx, cfg.MySQL)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, sink)
		default:
			return fail(xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("未知的审计驱动: %s", driver)))
		}
	}
	return NewFanout(sinks...), nil
}
