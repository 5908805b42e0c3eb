package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	xerrors "PumpMCP/internal/errors"
	"PumpMCP/pkg/logger"
)

// DefaultBaseURL 是未配置时使用的上游服务地址。
const DefaultBaseURL = "https://api-solana.nodra.app"

// 上游端点路径。
const (
	PathCreateWallet  = "/pump/createWallet"
	PathTransferFunds = "/pump/transferSOL"
	PathExecuteTrade  = "/pump/executeTrade"
	PathCreateAsset   = "/pump/createToken"
)

// 交易请求的默认值。
const (
	DefaultTradeAction      = ActionBuy
	DefaultTradeAmount      = 0.001
	DefaultTradeSlippage    = 10.0
	DefaultTradePriorityFee = 0.00001
	DefaultAssetDevBuy      = 0.001
	assetFileField          = "file"
)

// TradeAction 表示买入或卖出。取值由上游校验。
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// TransferRequest 是 transfer_funds 的参数。
type TransferRequest struct {
	FromKey   string   `json:"fromKey" validate:"required"`
	ToAddress string   `json:"toAddress" validate:"required"`
	Amount    *float64 `json:"amount" validate:"required"`
}

// TradeRequest 是 execute_trade 的参数，使用 NewTradeRequest 获取默认值。
type TradeRequest struct {
	PrivateKey        string      `json:"privateKey" validate:"required"`
	PublicKey         string      `json:"publicKey" validate:"required"`
	AssetID           string      `json:"assetId" validate:"required"`
	Action            TradeAction `json:"action"`
	DenominatedInBase bool        `json:"denominatedInBase"`
	Amount            float64     `json:"amount"`
	Slippage          float64     `json:"slippage"`
	PriorityFee       float64     `json:"priorityFee"`
}

// NewTradeRequest 返回填好默认可选参数的交易请求。
func NewTradeRequest(privateKey, publicKey, assetID string) TradeRequest {
	return TradeRequest{
		PrivateKey:  privateKey,
		PublicKey:   publicKey,
		AssetID:     assetID,
		Action:      DefaultTradeAction,
		Amount:      DefaultTradeAmount,
		Slippage:    DefaultTradeSlippage,
		PriorityFee: DefaultTradePriorityFee,
	}
}

func (r TradeRequest) fields() []Field {
	action := r.Action
	if action == "" {
		action = DefaultTradeAction
	}
	return []Field{
		{Name: "privateKey", Value: r.PrivateKey},
		{Name: "publicKey", Value: r.PublicKey},
		{Name: "assetId", Value: r.AssetID},
		{Name: "action", Value: string(action)},
		{Name: "denominatedInBase", Value: r.DenominatedInBase},
		{Name: "amount", Value: r.Amount},
		{Name: "slippage", Value: r.Slippage},
		{Name: "priorityFee", Value: r.PriorityFee},
	}
}

// AssetRequest 是 create_asset 的参数，使用 NewAssetRequest 获取默认值。
type AssetRequest struct {
	FromKey     string  `json:"fromKey" validate:"required"`
	ImagePath   string  `json:"imagePath" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Symbol      string  `json:"symbol" validate:"required"`
	Description string  `json:"description" validate:"required"`
	DevBuy      float64 `json:"devBuy"`
}

// NewAssetRequest 返回填好默认 devBuy 的铸造请求。
func NewAssetRequest(fromKey, imagePath, name, symbol, description string) AssetRequest {
	return AssetRequest{
		FromKey:     fromKey,
		ImagePath:   imagePath,
		Name:        name,
		Symbol:      symbol,
		Description: description,
		DevBuy:      DefaultAssetDevBuy,
	}
}

func (r AssetRequest) fields() []Field {
	return []Field{
		{Name: "fromKey", Value: r.FromKey},
		{Name: "name", Value: r.Name},
		{Name: "symbol", Value: r.Symbol},
		{Name: "description", Value: r.Description},
		{Name: "devBuy", Value: r.DevBuy},
	}
}

func (r TransferRequest) fields() []Field {
	return []Field{
		{Name: "fromKey", Value: r.FromKey},
		{Name: "toAddress", Value: r.ToAddress},
		{Name: "amount", Value: r.Amount},
	}
}

// Config 描述 Client 的参数。
type Config struct {
	BaseURL        string
	MaxUploadBytes int64
}

// Client 是工具调度门面：每个方法对应一个上游操作。
type Client struct {
	baseURL        string
	transport      Transport
	maxUploadBytes int64
	validate       *validator.Validate
	log            *slog.Logger
}

// NewClient 创建 Client。transport 不能为空。
func NewClient(cfg Config, transport Transport) (*Client, error) {
	if transport == nil {
		return nil, xerrors.New(xerrors.CodeConfiguration, "upstream transport is nil")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, xerrors.Wrap(xerrors.CodeConfiguration, err, fmt.Sprintf("invalid upstream base url %q", cfg.BaseURL))
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload == 0 {
		maxUpload = DefaultMaxFileBytes
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return &Client{
		baseURL:        baseURL,
		transport:      transport,
		maxUploadBytes: maxUpload,
		validate:       validate,
		log:            logger.Named("upstream"),
	}, nil
}

// BaseURL 返回规范化后的上游地址。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateWallet 生成新钱包。
func (c *Client) CreateWallet(ctx context.Context) (Result, error) {
	return c.call(ctx, PathCreateWallet, EncodeQuery())
}

// TransferFunds 在钱包之间转账基础币。
func (c *Client) TransferFunds(ctx context.Context, req TransferRequest) (Result, error) {
	if err := c.check(req); err != nil {
		return Result{}, err
	}
	return c.call(ctx, PathTransferFunds, EncodeForm(req.fields()))
}

// ExecuteTrade 买入或卖出资产。
func (c *Client) ExecuteTrade(ctx context.Context, req TradeRequest) (Result, error) {
	if err := c.check(req); err != nil {
		return Result{}, err
	}
	return c.call(ctx, PathExecuteTrade, EncodeForm(req.fields()))
}

// CreateAsset 上传图片并铸造新资产。图片在发起网络请求前读取并关闭。
func (c *Client) CreateAsset(ctx context.Context, req AssetRequest) (Result, error) {
	if err := c.check(req); err != nil {
		return Result{}, err
	}
	encoded, err := EncodeMultipart(req.fields(), []FilePart{{Field: assetFileField, Path: req.ImagePath}}, c.maxUploadBytes)
	if err != nil {
		return Result{}, err
	}
	return c.call(ctx, PathCreateAsset, encoded)
}

func (c *Client) check(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		missing := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			missing = append(missing, fe.Field())
		}
		return xerrors.New(xerrors.CodeInvalidInput,
			"missing required argument: "+strings.Join(missing, ", "),
			xerrors.WithMetadata("fields", strings.Join(missing, ",")))
	}
	return xerrors.Wrap(xerrors.CodeInvalidInput, err, "validate arguments")
}

func (c *Client) call(ctx context.Context, path string, req Request) (Result, error) {
	endpoint := c.baseURL + path

	var (
		body []byte
		err  error
	)
	switch req.Method {
	case http.MethodGet:
		body, err = c.transport.Get(ctx, endpoint)
	default:
		body, err = c.transport.Post(ctx, endpoint, req.Body, req.ContentType, nil)
	}
	if err != nil {
		c.log.Warn("upstream call failed", "path", path, "code", xerrors.CodeOf(err), "error", err)
		return Result{}, err
	}
	return ParseResult(body)
}
