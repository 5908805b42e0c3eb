package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PumpMCP/internal/audit"
	xerrors "PumpMCP/internal/errors"
	"PumpMCP/internal/upstream"
	"PumpMCP/pkg/logger"
)

// 支持的 MCP 传输方式。
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// 环境变量名称。
const (
	EnvConfigPath     = "PUMPMCP_CONFIG"
	EnvBaseURL        = "PUMP_BASE_URL"
	EnvTimeout        = "MCP_HTTP_TIMEOUT"
	EnvMaxUploadBytes = "PUMP_MAX_UPLOAD_BYTES"
	EnvTransport      = "PUMPMCP_TRANSPORT"
	EnvAddress        = "PUMPMCP_ADDRESS"
	EnvMetricsAddress = "PUMPMCP_METRICS_ADDRESS"
	EnvLogLevel       = "PUMPMCP_LOG_LEVEL"
	EnvLogFormat      = "PUMPMCP_LOG_FORMAT"
	EnvAuditDrivers   = "PUMPMCP_AUDIT_DRIVERS"
)

const defaultTimeoutSeconds = 60

// Config 描述了 PumpMCP 在启动阶段需要加载的全部配置。
type Config struct {
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Log      logger.Config  `json:"log" yaml:"log"`
	Audit    audit.Config   `json:"audit" yaml:"audit"`
}

// UpstreamConfig 描述上游 REST 服务。
type UpstreamConfig struct {
	BaseURL        string            `json:"base_url" yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gt=0"`
	MaxUploadBytes int64             `json:"max_upload_bytes" yaml:"max_upload_bytes" validate:"gt=0"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	UserAgent      string            `json:"user_agent" yaml:"user_agent"`
}

// Timeout 返回单次上游请求的超时。
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// ServerConfig 控制 MCP 传输方式与监听地址。
type ServerConfig struct {
	Transport      string `json:"transport" yaml:"transport" validate:"oneof=stdio http"`
	Address        string `json:"address" yaml:"address" validate:"required_if=Transport http"`
	MetricsAddress string `json:"metrics_address" yaml:"metrics_address"`
}

// FromEnvironment 加载 .env，再按 PUMPMCP_CONFIG 指定的路径加载配置。
func FromEnvironment() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return Load(os.Getenv(EnvConfigPath))
}

// LoadDotEnv 把 .env 文件中的变量写入进程环境，已有变量优先。文件不存在时忽略。
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return xerrors.Wrap(xerrors.CodeConfiguration, err, "加载 .env 失败", xerrors.WithMetadata("path", path))
		}
	}
	return nil
}

// Load 解析指定路径的配置文件（可为空），依次应用默认值与环境变量覆盖并校验。
func Load(path string) (*Config, error) {
	var cfg Config
	baseDir := "."
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
		baseDir = filepath.Dir(path)
	}

	cfg.applyDefaults(baseDir)
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "读取配置文件失败", xerrors.WithMetadata("path", path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, cfg)
	case ".json":
		err = json.Unmarshal(content, cfg)
	default:
		return xerrors.New(xerrors.CodeConfiguration, fmt.Sprintf("不支持的配置文件格式: %s", path))
	}
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "解析配置失败", xerrors.WithMetadata("path", path))
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = upstream.DefaultBaseURL
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Upstream.MaxUploadBytes == 0 {
		c.Upstream.MaxUploadBytes = upstream.DefaultMaxFileBytes
	}

	if c.Server.Transport == "" {
		c.Server.Transport = TransportStdio
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Audit.Path != "" && !filepath.IsAbs(c.Log.Audit.Path) {
		c.Log.Audit.Path = filepath.Join(baseDir, c.Log.Audit.Path)
	}
}

type lookupFunc func(key string) (string, bool)

// applyEnv 使用环境变量覆盖配置。
func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Upstream.BaseURL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		seconds, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return xerrors.Wrap(xerrors.CodeConfiguration, err, EnvTimeout+" 必须是整数秒")
		}
		c.Upstream.TimeoutSeconds = seconds
	}
	if v, ok := lookup(EnvMaxUploadBytes); ok && v != "" {
		size, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeConfiguration, err, EnvMaxUploadBytes+" 必须是整数")
		}
		c.Upstream.MaxUploadBytes = size
	}
	if v, ok := lookup(EnvTransport); ok && v != "" {
		c.Server.Transport = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvAddress); ok && v != "" {
		c.Server.Address = v
	}
	if v, ok := lookup(EnvMetricsAddress); ok {
		c.Server.MetricsAddress = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup(EnvAuditDrivers); ok {
		c.Audit.Drivers = splitList(v)
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate 校验配置，错误信息使用配置文件中的字段路径。
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "校验配置失败")
	}
	fields := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		fields = append(fields, fmt.Sprintf("%s(%s)", field, fe.Tag()))
	}
	return xerrors.New(xerrors.CodeConfiguration, "配置不合法: "+strings.Join(fields, ", "),
		xerrors.WithMetadata("fields", strings.Join(fields, ",")))
}
