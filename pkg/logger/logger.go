// Package logger configures the process-wide structured loggers.
//
// Log records go to stderr unless configured otherwise: when PumpMCP runs on
// the stdio transport, stdout carries the JSON-RPC stream and must stay clean.
// File outputs are rotated with lumberjack. Attributes whose key names a
// credential are masked before they reach any handler.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Redacted replaces the value of credential attributes.
const Redacted = "[REDACTED]"

// Config describes how the application logger should behave.
type Config struct {
	Level       string      `json:"level" yaml:"level"`
	Format      string      `json:"format" yaml:"format"`
	OutputPaths []string    `json:"output_paths" yaml:"output_paths"`
	Rotation    Rotation    `json:"rotation" yaml:"rotation"`
	Audit       AuditConfig `json:"audit" yaml:"audit"`
}

// AuditConfig routes audit records to a dedicated rotated file.
type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// Rotation bounds the size and age of file outputs. Zero fields use the
// defaults of 100 MB, 7 backups and 30 days.
type Rotation struct {
	MaxSizeMB  int `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`
}

func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = 100
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = 7
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = 30
	}
	return r
}

var sensitiveKeys = map[string]struct{}{
	"privatekey": {},
	"fromkey":    {},
	"apikey":     {},
	"password":   {},
	"dsn":        {},
	"secret":     {},
	"token":      {},
}

type state struct {
	app     *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
}

var (
	mu      sync.Mutex
	current *state
)

// Init installs the global loggers. Only the first successful call has an
// effect; later calls return nil without reconfiguring.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return nil
	}
	st, err := build(cfg)
	if err != nil {
		return err
	}
	current = st
	return nil
}

func build(cfg Config) (*state, error) {
	st := &state{}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), ReplaceAttr: redact}

	writer, err := st.open(cfg.OutputPaths, cfg.Rotation)
	if err != nil {
		st.close()
		return nil, err
	}
	st.app = slog.New(newHandler(cfg.Format, writer, opts))
	st.audit = st.app

	if cfg.Audit.Enabled {
		if cfg.Audit.Path == "" {
			st.close()
			return nil, errors.New("audit log path cannot be empty when enabled")
		}
		rotation := Rotation{
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAgeDays: cfg.Audit.MaxAgeDays,
		}
		auditWriter, err := st.rotated(cfg.Audit.Path, rotation)
		if err != nil {
			st.close()
			return nil, err
		}
		st.audit = slog.New(slog.NewJSONHandler(auditWriter, &slog.HandlerOptions{
			Level:       slog.LevelInfo,
			ReplaceAttr: redact,
		}))
	}
	return st, nil
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// open resolves the configured outputs into one writer.
func (s *state) open(outputs []string, rotation Rotation) (io.Writer, error) {
	if len(outputs) == 0 {
		return os.Stderr, nil
	}
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		switch strings.ToLower(strings.TrimSpace(out)) {
		case "", "stderr":
			writers = append(writers, os.Stderr)
		case "stdout":
			writers = append(writers, os.Stdout)
		default:
			w, err := s.rotated(out, rotation)
			if err != nil {
				return nil, err
			}
			writers = append(writers, w)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func (s *state) rotated(path string, rotation Rotation) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rotation = rotation.withDefaults()
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
	}
	s.closers = append(s.closers, w)
	return w, nil
}

func (s *state) close() error {
	var err error
	for _, c := range s.closers {
		err = errors.Join(err, c.Close())
	}
	s.closers = nil
	return err
}

// redact masks attributes whose key names a credential.
func redact(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, Redacted)
	}
	return attr
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	}
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return parsed
}

func loaded() *state {
	mu.Lock()
	st := current
	mu.Unlock()
	if st != nil {
		return st
	}
	_ = Init(Config{})
	mu.Lock()
	defer mu.Unlock()
	return current
}

// L returns the application logger, installing a stderr default when Init
// has not been called.
func L() *slog.Logger {
	return loaded().app
}

// Audit returns the audit logger, which is L() unless audit output is enabled.
func Audit() *slog.Logger {
	return loaded().audit
}

// Named returns a child logger tagged with the provided component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// Sync closes file outputs. Loggers stay usable; records written afterwards
// reopen their files.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	return current.close()
}
