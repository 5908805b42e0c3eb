package tools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"PumpMCP/internal/upstream"
)

// 工具名称。
const (
	NameCreateWallet  = "create_wallet"
	NameTransferFunds = "transfer_funds"
	NameExecuteTrade  = "execute_trade"
	NameCreateAsset   = "create_asset"
)

// 参数名称，与上游字段名一致。
const (
	ArgFromKey           = "fromKey"
	ArgToAddress         = "toAddress"
	ArgAmount            = "amount"
	ArgPrivateKey        = "privateKey"
	ArgPublicKey         = "publicKey"
	ArgAssetID           = "assetId"
	ArgAction            = "action"
	ArgDenominatedInBase = "denominatedInBase"
	ArgSlippage          = "slippage"
	ArgPriorityFee       = "priorityFee"
	ArgImagePath         = "imagePath"
	ArgName              = "name"
	ArgSymbol            = "symbol"
	ArgDescription       = "description"
	ArgDevBuy            = "devBuy"
)

var CreateWalletTool = mcp.NewTool(NameCreateWallet,
	mcp.WithDescription(
		"Generate a brand-new Solana wallet. "+
			"Returns JSON containing apiKey, walletPublicKey and privateKey."),
	mcp.WithTitleAnnotation("Create wallet"),
	mcp.WithReadOnlyHintAnnotation(false),
	mcp.WithDestructiveHintAnnotation(false),
	mcp.WithOpenWorldHintAnnotation(true),
)

var TransferFundsTool = mcp.NewTool(NameTransferFunds,
	mcp.WithDescription(
		"Transfer SOL between wallets. "+
			"Returns JSON with the signature of the system-transfer transaction."),
	mcp.WithString(ArgFromKey,
		mcp.Required(),
		mcp.Description("Base-58 private key of the sender")),
	mcp.WithString(ArgToAddress,
		mcp.Required(),
		mcp.Description("Base-58 recipient address")),
	mcp.WithNumber(ArgAmount,
		mcp.Required(),
		mcp.Description("SOL to send (e.g. 0.02)")),
	mcp.WithTitleAnnotation("Transfer funds"),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithOpenWorldHintAnnotation(true),
)

var ExecuteTradeTool = mcp.NewTool(NameExecuteTrade,
	mcp.WithDescription(
		"Buy or sell an SPL token (Pump Portal if listed, else Raydium). "+
			"Returns JSON {success, signature, explorerUrl, ...}."),
	mcp.WithString(ArgPrivateKey,
		mcp.Required(),
		mcp.Description("Base-58 private key of the trading wallet")),
	mcp.WithString(ArgPublicKey,
		mcp.Required(),
		mcp.Description("Public key of the trading wallet")),
	mcp.WithString(ArgAssetID,
		mcp.Required(),
		mcp.Description("Mint address of the token to trade")),
	mcp.WithString(ArgAction,
		mcp.Description("\"buy\" or \"sell\""),
		mcp.DefaultString(string(upstream.DefaultTradeAction)),
		mcp.Enum(string(upstream.ActionBuy), string(upstream.ActionSell))),
	mcp.WithBoolean(ArgDenominatedInBase,
		mcp.Description("false: amount is in tokens; true: amount is in SOL"),
		mcp.DefaultBool(false)),
	mcp.WithNumber(ArgAmount,
		mcp.Description("Amount to trade"),
		mcp.DefaultNumber(upstream.DefaultTradeAmount)),
	mcp.WithNumber(ArgSlippage,
		mcp.Description("Allowed price movement in percent"),
		mcp.DefaultNumber(upstream.DefaultTradeSlippage)),
	mcp.WithNumber(ArgPriorityFee,
		mcp.Description("Extra SOL paid for a high-priority transaction"),
		mcp.DefaultNumber(upstream.DefaultTradePriorityFee)),
	mcp.WithTitleAnnotation("Execute trade"),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithOpenWorldHintAnnotation(true),
)

var CreateAssetTool = mcp.NewTool(NameCreateAsset,
	mcp.WithDescription(
		"Mint a brand-new SPL token and host its metadata on IPFS. "+
			"devBuy is the SOL amount spent buying the token on creation."),
	mcp.WithString(ArgFromKey,
		mcp.Required(),
		mcp.Description("Base-58 private key of the creator wallet")),
	mcp.WithString(ArgImagePath,
		mcp.Required(),
		mcp.Description("Local path of the token image, read by the server")),
	mcp.WithString(ArgName,
		mcp.Required(),
		mcp.Description("Token name")),
	mcp.WithString(ArgSymbol,
		mcp.Required(),
		mcp.Description("Token symbol")),
	mcp.WithString(ArgDescription,
		mcp.Required(),
		mcp.Description("Token description")),
	mcp.WithNumber(ArgDevBuy,
		mcp.Description("SOL spent buying the token on creation"),
		mcp.DefaultNumber(upstream.DefaultAssetDevBuy)),
	mcp.WithTitleAnnotation("Create asset"),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithOpenWorldHintAnnotation(true),
)
