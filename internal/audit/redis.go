package audit

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	xerrors "PumpMCP/internal/errors"
)

// RedisConfig 描述 Redis 审计列表的连接参数。
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Key      string `json:"key" yaml:"key"`
	MaxLen   int64  `json:"max_len" yaml:"max_len"`
}

// RedisSink 把事件以 JSON 写入一个定长 Redis list，最新事件在表头。
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisSink 创建 RedisSink 并检查连通性。
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeSinkFailure, err, "连接 Redis 失败")
	}
	return newRedisSink(client, cfg), nil
}

func newRedisSink(client *redis.Client, cfg RedisConfig) *RedisSink {
	key := cfg.Key
	if key == "" {
		key = "pumpmcp:audit"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

// Name 实现 Sink。
func (s *RedisSink) Name() string { return DriverRedis }

// Record 通过 LPUSH + LTRIM 写入事件。
func (s *RedisSink) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeSinkFailure, err, "序列化审计事件失败")
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, payload)
	pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeSinkFailure, err, "Redis 写入审计事件失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *RedisSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
