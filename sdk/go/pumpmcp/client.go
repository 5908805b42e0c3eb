// Package pumpmcp is a typed Go client for the PumpMCP tools. It speaks MCP
// through any mcp-go client, so the same code works against the stdio
// transport, the streamable HTTP endpoint or an in-process server.
package pumpmcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names exposed by the server.
const (
	ToolCreateWallet  = "create_wallet"
	ToolTransferFunds = "transfer_funds"
	ToolExecuteTrade  = "execute_trade"
	ToolCreateAsset   = "create_asset"
)

// ErrNotInitialized is returned when a tool is called before Initialize.
var ErrNotInitialized = errors.New("pumpmcp: client not initialized")

// Wallet is the payload returned by CreateWallet.
type Wallet struct {
	APIKey          string `json:"apiKey"`
	WalletPublicKey string `json:"walletPublicKey"`
	PrivateKey      string `json:"privateKey"`
}

// Transfer describes a transfer_funds call.
type Transfer struct {
	FromKey   string
	ToAddress string
	Amount    float64
}

// Trade describes an execute_trade call. Nil optional fields fall back to
// the server defaults.
type Trade struct {
	PrivateKey        string
	PublicKey         string
	AssetID           string
	Action            string
	DenominatedInBase *bool
	Amount            *float64
	Slippage          *float64
	PriorityFee       *float64
}

// Asset describes a create_asset call. ImagePath is read by the server, not
// by this client.
type Asset struct {
	FromKey     string
	ImagePath   string
	Name        string
	Symbol      string
	Description string
	DevBuy      *float64
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// ToolError is a tool-level failure reported by the server.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pumpmcp: %s failed: %s", e.Tool, e.Message)
}

// Client wraps an mcp-go client with typed tool calls.
type Client struct {
	mcp *client.Client

	mu          sync.RWMutex
	initialized bool
	server      mcp.Implementation
}

// New wraps an existing mcp-go client. The caller is responsible for
// starting it; Initialize must be called before any tool.
func New(c *client.Client) *Client {
	return &Client{mcp: c}
}

// Dial connects to a streamable HTTP endpoint and performs the initialize
// handshake.
func Dial(ctx context.Context, endpoint string, opts ...transport.StreamableHTTPCOption) (*Client, error) {
	c, err := client.NewStreamableHttpClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start mcp client: %w", err)
	}
	pc := New(c)
	if _, err := pc.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return pc, nil
}

// Initialize performs the MCP handshake and returns the server identity.
func (c *Client) Initialize(ctx context.Context) (mcp.Implementation, error) {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "pumpmcp-go", Version: "1.0.0"}

	res, err := c.mcp.Initialize(ctx, req)
	if err != nil {
		return mcp.Implementation{}, fmt.Errorf("initialize: %w", err)
	}
	c.mu.Lock()
	c.initialized = true
	c.server = res.ServerInfo
	c.mu.Unlock()
	return res.ServerInfo, nil
}

// ServerInfo returns the identity reported during Initialize.
func (c *Client) ServerInfo() mcp.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// CreateWallet generates a new wallet.
func (c *Client) CreateWallet(ctx context.Context) (Wallet, error) {
	raw, err := c.Call(ctx, ToolCreateWallet, nil)
	if err != nil {
		return Wallet{}, err
	}
	var wallet Wallet
	if err := json.Unmarshal(raw, &wallet); err != nil {
		return Wallet{}, fmt.Errorf("decode wallet: %w", err)
	}
	return wallet, nil
}

// TransferFunds sends base currency between wallets.
func (c *Client) TransferFunds(ctx context.Context, t Transfer) (json.RawMessage, error) {
	return c.Call(ctx, ToolTransferFunds, map[string]any{
		"fromKey":   t.FromKey,
		"toAddress": t.ToAddress,
		"amount":    t.Amount,
	})
}

// ExecuteTrade buys or sells an asset.
func (c *Client) ExecuteTrade(ctx context.Context, t Trade) (json.RawMessage, error) {
	args := map[string]any{
		"privateKey": t.PrivateKey,
		"publicKey":  t.PublicKey,
		"assetId":    t.AssetID,
	}
	if t.Action != "" {
		args["action"] = t.Action
	}
	if t.DenominatedInBase != nil {
		args["denominatedInBase"] = *t.DenominatedInBase
	}
	if t.Amount != nil {
		args["amount"] = *t.Amount
	}
	if t.Slippage != nil {
		args["slippage"] = *t.Slippage
	}
	if t.PriorityFee != nil {
		args["priorityFee"] = *t.PriorityFee
	}
	return c.Call(ctx, ToolExecuteTrade, args)
}

// CreateAsset mints a new asset from an image on the server's filesystem.
func (c *Client) CreateAsset(ctx context.Context, a Asset) (json.RawMessage, error) {
	args := map[string]any{
		"fromKey":     a.FromKey,
		"imagePath":   a.ImagePath,
		"name":        a.Name,
		"symbol":      a.Symbol,
		"description": a.Description,
	}
	if a.DevBuy != nil {
		args["devBuy"] = *a.DevBuy
	}
	return c.Call(ctx, ToolCreateAsset, args)
}

// Call invokes a tool by name and returns its JSON text. Tool error results
// are returned as *ToolError.
func (c *Client) Call(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	c.mu.RLock()
	ready := c.initialized
	c.mu.RUnlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	if args != nil {
		req.Params.Arguments = args
	}
	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}

	text := textOf(res.Content)
	if res.IsError {
		return nil, &ToolError{Tool: tool, Message: text}
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("call %s: result is not JSON", tool)
	}
	return json.RawMessage(text), nil
}

func textOf(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		switch v := content.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}
