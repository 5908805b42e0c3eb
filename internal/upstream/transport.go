package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	xerrors "PumpMCP/internal/errors"
	"PumpMCP/internal/observability/metrics"
	"PumpMCP/pkg/logger"
)

// DefaultTimeout 是单次上游交换（连接加完整读取响应）的默认超时。
const DefaultTimeout = 60 * time.Second

// Transport 执行一次 HTTP 交换并返回完整缓冲的响应体。
// 网络错误、超时与非 2xx 状态均以 TRANSPORT_FAILURE 错误返回，不做重试。
type Transport interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Post(ctx context.Context, url string, body []byte, contentType string, headers map[string]string) ([]byte, error)
}

// HTTPConfig 描述 HTTPTransport 的参数。
type HTTPConfig struct {
	Timeout   time.Duration
	Headers   map[string]string
	UserAgent string
}

// HTTPTransport 基于 resty 实现 Transport。
type HTTPTransport struct {
	client  *resty.Client
	timeout time.Duration
	log     *slog.Logger
}

// NewHTTPTransport 根据配置创建 HTTPTransport。
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := logger.Named("upstream")

	client := resty.New().
		SetTimeout(timeout).
		SetLogger(restyLogger{log: log}).
		SetHeader("Accept", "application/json").
		SetHeaders(cfg.Headers)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &HTTPTransport{client: client, timeout: timeout, log: log}
}

// Get 发送不带请求体的 GET。
func (t *HTTPTransport) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return t.do(ctx, http.MethodGet, rawURL, nil, "", nil)
}

// Post 发送已编码的请求体。
func (t *HTTPTransport) Post(ctx context.Context, rawURL string, body []byte, contentType string, headers map[string]string) ([]byte, error) {
	if body == nil {
		body = []byte{}
	}
	return t.do(ctx, http.MethodPost, rawURL, body, contentType, headers)
}

func (t *HTTPTransport) do(ctx context.Context, method, rawURL string, body []byte, contentType string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req := t.client.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}
	if contentType != "" {
		req.SetHeader("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := req.Execute(method, rawURL)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	metrics.ObserveUpstreamRequest(pathOf(rawURL), method, status, elapsed)
	t.log.Debug("upstream exchange", "method", method, "url", rawURL, "status", status,
		"request_bytes", len(body), "elapsed", elapsed)

	if err != nil {
		return nil, transportError(err, rawURL)
	}
	if !resp.IsSuccess() {
		return nil, xerrors.New(xerrors.CodeTransportFailure,
			"upstream returned an error status",
			xerrors.WithStatus(status),
			xerrors.WithBody(resp.Body()),
			xerrors.WithMetadata("url", rawURL))
	}
	return resp.Body(), nil
}

func transportError(err error, rawURL string) error {
	reason := "network"
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		reason = "canceled"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		reason = "timeout"
	}
	return xerrors.Wrap(xerrors.CodeTransportFailure, err, "upstream request failed: "+reason,
		xerrors.WithMetadata("reason", reason),
		xerrors.WithMetadata("url", rawURL))
}

func pathOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}

// restyLogger 把 resty 的内部日志转发到 slog。
type restyLogger struct {
	log *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) { l.log.Error(fmt.Sprintf(format, v...)) }
func (l restyLogger) Warnf(format string, v ...any)  { l.log.Warn(fmt.Sprintf(format, v...)) }
func (l restyLogger) Debugf(format string, v ...any) { l.log.Debug(fmt.Sprintf(format, v...)) }
