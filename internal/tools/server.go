package tools

import (
	"github.com/mark3labs/mcp-go/server"
)

// ServerName 是握手时报告的服务名称。
const ServerName = "Nodra Server Create, Buy, Sell Tokens"

// Instructions 提示模型如何选择工具。
const Instructions = "When asked to create, buy or sell a Solana-based token, call create_asset to create a new token, " +
	"execute_trade with action \"buy\" to buy an existing token, execute_trade with action \"sell\" to sell an existing token, " +
	"transfer_funds to send SOL between wallets, or create_wallet to create a new wallet."

// Version 在构建时通过 -ldflags 覆盖。
var Version = "dev"

// NewServer 创建注册了全部工具的 MCP 服务。
func NewServer(dispatcher Dispatcher, opts Options) *server.MCPServer {
	s := server.NewMCPServer(ServerName, Version,
		server.WithToolCapabilities(false),
		server.WithInstructions(Instructions),
		server.WithRecovery(),
		server.WithLogging(),
	)
	Register(s, NewHandlers(dispatcher, opts))
	return s
}

// Register 把四个工具挂到已有的 MCP 服务上。
func Register(s *server.MCPServer, h *Handlers) {
	s.AddTool(CreateWalletTool, h.observe(NameCreateWallet, h.createWallet))
	s.AddTool(TransferFundsTool, h.observe(NameTransferFunds, h.transferFunds))
	s.AddTool(ExecuteTradeTool, h.observe(NameExecuteTrade, h.executeTrade))
	s.AddTool(CreateAssetTool, h.observe(NameCreateAsset, h.createAsset))
}
