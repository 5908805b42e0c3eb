package audit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"PumpMCP/deploy/migrations"
	xerrors "PumpMCP/internal/errors"
)

// MySQLConfig 描述 MySQL 审计表的连接参数。
type MySQLConfig struct {
	DSN                    string `json:"dsn" yaml:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds"`
}

const insertToolCall = `INSERT INTO tool_calls (id, tool, outcome, error_code, status, duration_ms, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

// MySQLSink 把事件写入 tool_calls 表。
type MySQLSink struct {
	db *sql.DB
}

// NewMySQLSink 打开连接池、检查连通性并执行 deploy/migrations 中的建表语句。
func NewMySQLSink(ctx context.Context, cfg MySQLConfig) (*MySQLSink, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeConfiguration, "MySQL DSN 不能为空")
	}
	parsed, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, "解析 MySQL DSN 失败")
	}
	parsed.ParseTime = true

	db, err := sql.Open("mysql", parsed.FormatDSN())
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeSinkFailure, err, "连接 MySQL 失败")
	}
	configurePool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeSinkFailure, err, "无法连接到 MySQL")
	}
	sink, err := newMySQLSink(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

func configurePool(db *sql.DB, cfg MySQLConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetimeSeconds > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
}

func newMySQLSink(ctx context.Context, db *sql.DB) (*MySQLSink, error) {
	if err := applySchema(ctx, db, migrations.Files); err != nil {
		return nil, err
	}
	return &MySQLSink{db: db}, nil
}

// Name 实现 Sink。
func (s *MySQLSink) Name() string { return DriverMySQL }

// Record 插入一行调用记录。
func (s *MySQLSink) Record(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, insertToolCall,
		event.ID,
		event.Tool,
		string(event.Outcome),
		event.Code,
		event.Status,
		event.DurationMS,
		event.OccurredAt,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeSinkFailure, err, "写入 tool_calls 失败")
	}
	return nil
}

// Close 关闭连接池。
func (s *MySQLSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
