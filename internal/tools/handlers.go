package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"PumpMCP/internal/audit"
	xerrors "PumpMCP/internal/errors"
	"PumpMCP/internal/observability/metrics"
	"PumpMCP/internal/upstream"
	"PumpMCP/pkg/logger"
)

// Dispatcher 是工具处理函数依赖的上游门面，*upstream.Client 实现了该接口。
type Dispatcher interface {
	CreateWallet(ctx context.Context) (upstream.Result, error)
	TransferFunds(ctx context.Context, req upstream.TransferRequest) (upstream.Result, error)
	ExecuteTrade(ctx context.Context, req upstream.TradeRequest) (upstream.Result, error)
	CreateAsset(ctx context.Context, req upstream.AssetRequest) (upstream.Result, error)
}

// Options 控制处理函数的可选依赖。
type Options struct {
	// Recorder 接收审计事件，为空时不记录。
	Recorder audit.Sink
	// RecordTimeout 是单次审计投递的超时，默认 2 秒。
	RecordTimeout time.Duration
}

// Handlers 持有四个工具的处理函数。
type Handlers struct {
	dispatcher    Dispatcher
	recorder      audit.Sink
	recordTimeout time.Duration
	log           *slog.Logger
}

// NewHandlers 创建 Handlers。
func NewHandlers(dispatcher Dispatcher, opts Options) *Handlers {
	timeout := opts.RecordTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handlers{
		dispatcher:    dispatcher,
		recorder:      opts.Recorder,
		recordTimeout: timeout,
		log:           logger.Named("tools"),
	}
}

type callFunc func(ctx context.Context, req mcp.CallToolRequest) (upstream.Result, error)

func (h *Handlers) createWallet(ctx context.Context, _ mcp.CallToolRequest) (upstream.Result, error) {
	return h.dispatcher.CreateWallet(ctx)
}

func (h *Handlers) transferFunds(ctx context.Context, req mcp.CallToolRequest) (upstream.Result, error) {
	args := newArguments(req)
	transfer := upstream.TransferRequest{
		FromKey:   args.str(ArgFromKey, ""),
		ToAddress: args.str(ArgToAddress, ""),
		Amount:    args.optionalFloat(ArgAmount),
	}
	if err := args.err(); err != nil {
		return upstream.Result{}, err
	}
	return h.dispatcher.TransferFunds(ctx, transfer)
}

func (h *Handlers) executeTrade(ctx context.Context, req mcp.CallToolRequest) (upstream.Result, error) {
	args := newArguments(req)
	trade := upstream.NewTradeRequest(
		args.str(ArgPrivateKey, ""),
		args.str(ArgPublicKey, ""),
		args.str(ArgAssetID, ""),
	)
	trade.Action = upstream.TradeAction(args.str(ArgAction, string(upstream.DefaultTradeAction)))
	trade.DenominatedInBase = args.boolean(ArgDenominatedInBase, false)
	trade.Amount = args.float(ArgAmount, upstream.DefaultTradeAmount)
	trade.Slippage = args.float(ArgSlippage, upstream.DefaultTradeSlippage)
	trade.PriorityFee = args.float(ArgPriorityFee, upstream.DefaultTradePriorityFee)
	if err := args.err(); err != nil {
		return upstream.Result{}, err
	}
	return h.dispatcher.ExecuteTrade(ctx, trade)
}

func (h *Handlers) createAsset(ctx context.Context, req mcp.CallToolRequest) (upstream.Result, error) {
	args := newArguments(req)
	asset := upstream.NewAssetRequest(
		args.str(ArgFromKey, ""),
		args.str(ArgImagePath, ""),
		args.str(ArgName, ""),
		args.str(ArgSymbol, ""),
		args.str(ArgDescription, ""),
	)
	asset.DevBuy = args.float(ArgDevBuy, upstream.DefaultAssetDevBuy)
	if err := args.err(); err != nil {
		return upstream.Result{}, err
	}
	return h.dispatcher.CreateAsset(ctx, asset)
}

// observe 为一次工具调用计时、记录指标与审计事件，并把结果转换为 MCP 结果。
func (h *Handlers) observe(tool string, fn callFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := fn(ctx, req)
		elapsed := time.Since(start)

		outcome := audit.OutcomeOf(err)
		metrics.ObserveToolCall(tool, string(outcome), elapsed)
		h.record(ctx, audit.NewEvent(tool, err, elapsed, start))

		if err != nil {
			h.logFailure(ctx, tool, outcome, err, elapsed)
			return mcp.NewToolResultError(err.Error()), nil
		}
		h.log.Info("tool call completed", "tool", tool, "elapsed", elapsed)
		return mcp.NewToolResultText(result.Text()), nil
	}
}

// logFailure 按错误码的严重程度选择日志级别，需要告警的错误额外标记 alert。
func (h *Handlers) logFailure(ctx context.Context, tool string, outcome audit.Outcome, err error, elapsed time.Duration) {
	level := slog.LevelInfo
	switch xerrors.SeverityOf(err) {
	case xerrors.SeverityWarning:
		level = slog.LevelWarn
	case xerrors.SeverityCritical:
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("tool", tool),
		slog.String("outcome", string(outcome)),
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.Duration("elapsed", elapsed),
	}
	if e, ok := xerrors.From(err); ok {
		if e.Status() != 0 {
			attrs = append(attrs, slog.Int("status", e.Status()))
		}
		attrs = append(attrs, slog.Bool("retryable", e.Retryable()), slog.Bool("alert", e.ShouldAlert()))
	}
	h.log.LogAttrs(ctx, level, "tool call failed", attrs...)
}

// record 投递审计事件；投递失败只记录日志，不影响调用结果。
func (h *Handlers) record(ctx context.Context, event audit.Event) {
	if h.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.recordTimeout)
	defer cancel()
	if err := h.recorder.Record(recordCtx, event); err != nil {
		h.log.Error("audit record failed", "tool", event.Tool, "sink", h.recorder.Name(), "error", err)
	}
}
