// Package audit 记录每一次工具调用的结果摘要，并投递到可配置的后端。
// 事件只包含工具名、结果分类、错误码、状态码与耗时，从不包含调用参数或密钥。
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	xerrors "PumpMCP/internal/errors"
	"PumpMCP/pkg/logger"
)

// Outcome 是一次调用的结果分类。
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeInvalidInput  Outcome = "invalid_input"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeMalformed     Outcome = "malformed_response"
	OutcomeError         Outcome = "error"
)

// OutcomeOf 根据错误码归类调用结果。
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidInput:
		return OutcomeInvalidInput
	case xerrors.CodeTransportFailure:
		return OutcomeUpstreamError
	case xerrors.CodeMalformedResponse:
		return OutcomeMalformed
	default:
		return OutcomeError
	}
}

// Event 描述一次工具调用。
type Event struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	Outcome    Outcome   `json:"outcome"`
	Code       string    `json:"code,omitempty"`
	Status     int       `json:"status,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent 由调用结果构造事件。
func NewEvent(tool string, err error, duration time.Duration, startedAt time.Time) Event {
	event := Event{
		ID:         uuid.NewString(),
		Tool:       tool,
		Outcome:    OutcomeOf(err),
		DurationMS: duration.Milliseconds(),
		OccurredAt: startedAt.UTC(),
	}
	if err != nil {
		event.Code = string(xerrors.CodeOf(err))
		if e, ok := xerrors.From(err); ok {
			event.Status = e.Status()
		}
	}
	return event
}

// Sink 接收审计事件。
type Sink interface {
	Name() string
	Record(ctx context.Context, event Event) error
	Close() error
}

// Fanout 将事件投递到多个 Sink。
type Fanout struct {
	sinks []Sink
}

// NewFanout 创建 Fanout，忽略 nil。
func NewFanout(sinks ...Sink) *Fanout {
	set := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			set = append(set, s)
		}
	}
	return &Fanout{sinks: set}
}

// Name 实现 Sink。
func (f *Fanout) Name() string { return "fanout" }

// Len 返回已注册的 Sink 数量。
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Record 将事件广播至所有 Sink，汇总错误。
func (f *Fanout) Record(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close 关闭所有 Sink。
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink 把事件写入审计日志。
type LogSink struct {
	log *slog.Logger
}

// NewLogSink 使用 logger.Audit() 创建 LogSink。
func NewLogSink() *LogSink {
	return &LogSink{log: logger.Audit()}
}

// Name 实现 Sink。
func (s *LogSink) Name() string { return DriverLog }

// Record 实现 Sink。
func (s *LogSink) Record(ctx context.Context, event Event) error {
	s.log.LogAttrs(ctx, slog.LevelInfo, "tool call",
		slog.String("id", event.ID),
		slog.String("tool", event.Tool),
		slog.String("outcome", string(event.Outcome)),
		slog.String("code", event.Code),
		slog.Int("status", event.Status),
		slog.Int64("duration_ms", event.DurationMS),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// Close 实现 Sink。
func (s *LogSink) Close() error { return nil }
