package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PumpMCP/internal/audit"
	xerrors "PumpMCP/internal/errors"
	"PumpMCP/internal/upstream"
)

type exchange struct {
	method      string
	url         string
	body        string
	contentType string
}

type fakeTransport struct {
	mu       sync.Mutex
	calls    []exchange
	response []byte
	err      error
}

func (f *fakeTransport) Get(_ context.Context, url string) ([]byte, error) {
	return f.record(exchange{method: "GET", url: url})
}

func (f *fakeTransport) Post(_ context.Context, url string, body []byte, contentType string, _ map[string]string) ([]byte, error) {
	return f.record(exchange{method: "POST", url: url, body: string(body), contentType: contentType})
}

func (f *fakeTransport) record(call exchange) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeTransport) exchanges() []exchange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange(nil), f.calls...)
}

type memorySink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Record(_ context.Context, event audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) recorded() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.events...)
}

func newDispatcher(t *testing.T, transport upstream.Transport) *upstream.Client {
	t.Helper()
	c, err := upstream.NewClient(upstream.Config{BaseURL: "https://upstream.test/"}, transport)
	require.NoError(t, err)
	return c
}

func startClient(t *testing.T, dispatcher Dispatcher, opts Options) *client.Client {
	t.Helper()
	ctx := context.Background()

	c, err := client.NewInProcessClient(NewServer(dispatcher, opts))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Start(ctx))

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "tools-test", Version: "1.0.0"}
	res, err := c.Initialize(ctx, init)
	require.NoError(t, err)
	require.Equal(t, ServerName, res.ServerInfo.Name)
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return textOf(t, res.Content[0]), res.IsError
}

func textOf(t *testing.T, content mcp.Content) string {
	t.Helper()
	switch v := content.(type) {
	case mcp.TextContent:
		return v.Text
	case *mcp.TextContent:
		return v.Text
	default:
		t.Fatalf("unexpected content type %T", content)
		return ""
	}
}

func TestListTools(t *testing.T) {
	c := startClient(t, newDispatcher(t, &fakeTransport{}), Options{})

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	byName := map[string]mcp.Tool{}
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
	}
	require.Len(t, byName, 4)

	assert.Empty(t, byName[NameCreateWallet].InputSchema.Required)
	assert.ElementsMatch(t, []string{ArgFromKey, ArgToAddress, ArgAmount}, byName[NameTransferFunds].InputSchema.Required)
	assert.ElementsMatch(t, []string{ArgPrivateKey, ArgPublicKey, ArgAssetID}, byName[NameExecuteTrade].InputSchema.Required)
	assert.ElementsMatch(t, []string{ArgFromKey, ArgImagePath, ArgName, ArgSymbol, ArgDescription}, byName[NameCreateAsset].InputSchema.Required)

	action, ok := byName[NameExecuteTrade].InputSchema.Properties[ArgAction].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "buy", action["default"])
	assert.ElementsMatch(t, []any{"buy", "sell"}, action["enum"])

	devBuy, ok := byName[NameCreateAsset].InputSchema.Properties[ArgDevBuy].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.001, devBuy["default"])
}

func TestCreateWalletReturnsIndentedJSON(t *testing.T) {
	transport := &fakeTransport{response: []byte(`{"walletPublicKey":"pub","privateKey":"priv","apiKey":"k"}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	text, isError := callTool(t, c, NameCreateWallet, nil)
	assert.False(t, isError)
	assert.Equal(t, "{\n  \"walletPublicKey\": \"pub\",\n  \"privateKey\": \"priv\",\n  \"apiKey\": \"k\"\n}", text)

	calls := transport.exchanges()
	require.Len(t, calls, 1)
	assert.Equal(t, "GET", calls[0].method)
	assert.Equal(t, "https://upstream.test/pump/createWallet", calls[0].url)
}

func TestTransferFundsArguments(t *testing.T) {
	transport := &fakeTransport{response: []byte(`{"signature":"sig"}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	text, isError := callTool(t, c, NameTransferFunds, map[string]any{
		ArgFromKey:   "A",
		ArgToAddress: "B",
	})
	assert.True(t, isError)
	assert.Contains(t, text, "amount")
	assert.Empty(t, transport.exchanges())

	_, isError = callTool(t, c, NameTransferFunds, map[string]any{
		ArgFromKey:   "A",
		ArgToAddress: "B",
		ArgAmount:    0,
	})
	assert.False(t, isError)

	_, isError = callTool(t, c, NameTransferFunds, map[string]any{
		ArgFromKey:   "A",
		ArgToAddress: "B",
		ArgAmount:    0.02,
	})
	assert.False(t, isError)

	calls := transport.exchanges()
	require.Len(t, calls, 2)
	assert.Equal(t, "fromKey=A&toAddress=B&amount=0", calls[0].body)
	assert.Equal(t, "fromKey=A&toAddress=B&amount=0.02", calls[1].body)
	assert.Equal(t, upstream.ContentTypeForm, calls[1].contentType)
	assert.Equal(t, "https://upstream.test/pump/transferSOL", calls[1].url)
}

func TestTransferFundsRejectsNonNumericAmount(t *testing.T) {
	transport := &fakeTransport{response: []byte(`{}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	_, isError := callTool(t, c, NameTransferFunds, map[string]any{
		ArgFromKey:   "A",
		ArgToAddress: "B",
		ArgAmount:    []any{1},
	})
	assert.True(t, isError)
	assert.Empty(t, transport.exchanges())
}

func TestExecuteTradeDefaultsAndOverrides(t *testing.T) {
	transport := &fakeTransport{response: []byte(`{"success":true}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	_, isError := callTool(t, c, NameExecuteTrade, map[string]any{
		ArgPrivateKey: "priv",
		ArgPublicKey:  "pub",
		ArgAssetID:    "mint1",
	})
	require.False(t, isError)

	_, isError = callTool(t, c, NameExecuteTrade, map[string]any{
		ArgPrivateKey:        "priv",
		ArgPublicKey:         "pub",
		ArgAssetID:           "mint1",
		ArgAction:            "sell",
		ArgDenominatedInBase: true,
		ArgAmount:            1500,
		ArgSlippage:          2.5,
		ArgPriorityFee:       0.0005,
	})
	require.False(t, isError)

	calls := transport.exchanges()
	require.Len(t, calls, 2)
	assert.Equal(t, "privateKey=priv&publicKey=pub&assetId=mint1&action=buy&denominatedInBase=false&amount=0.001&slippage=10&priorityFee=0.00001", calls[0].body)
	assert.Equal(t, "privateKey=priv&publicKey=pub&assetId=mint1&action=sell&denominatedInBase=true&amount=1500&slippage=2.5&priorityFee=0.0005", calls[1].body)
}

func TestExecuteTradeMissingArguments(t *testing.T) {
	transport := &fakeTransport{response: []byte(`{}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	text, isError := callTool(t, c, NameExecuteTrade, map[string]any{ArgPrivateKey: "priv"})
	assert.True(t, isError)
	assert.Contains(t, text, ArgPublicKey)
	assert.Contains(t, text, ArgAssetID)
	assert.Empty(t, transport.exchanges())
}

func TestCreateAssetUploadsImage(t *testing.T) {
	image := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(image, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	transport := &fakeTransport{response: []byte(`{"mint":"m"}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	text, isError := callTool(t, c, NameCreateAsset, map[string]any{
		ArgFromKey:     "creator",
		ArgImagePath:   image,
		ArgName:        "Coin",
		ArgSymbol:      "CN",
		ArgDescription: "a coin",
	})
	require.False(t, isError, text)

	calls := transport.exchanges()
	require.Len(t, calls, 1)
	assert.Equal(t, "https://upstream.test/pump/createToken", calls[0].url)
	assert.Contains(t, calls[0].contentType, "multipart/form-data; boundary=")
	assert.Contains(t, calls[0].body, "name=\"devBuy\"\r\n\r\n0.001\r\n")
	assert.Contains(t, calls[0].body, "filename=\"logo.png\"")
}

func TestCreateAssetMissingImage(t *testing.T) {
	transport := &fakeTransport{response: []byte(`{}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	_, isError := callTool(t, c, NameCreateAsset, map[string]any{
		ArgFromKey:     "creator",
		ArgImagePath:   filepath.Join(t.TempDir(), "missing.png"),
		ArgName:        "Coin",
		ArgSymbol:      "CN",
		ArgDescription: "a coin",
	})
	assert.True(t, isError)
	assert.Empty(t, transport.exchanges())
}

func TestWrongTypedArgumentsAreRejected(t *testing.T) {
	image := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(image, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	trade := func(key string, value any) map[string]any {
		return map[string]any{ArgPrivateKey: "priv", ArgPublicKey: "pub", ArgAssetID: "mint1", key: value}
	}
	asset := func(key string, value any) map[string]any {
		args := map[string]any{
			ArgFromKey:     "creator",
			ArgImagePath:   image,
			ArgName:        "Coin",
			ArgSymbol:      "CN",
			ArgDescription: "a coin",
		}
		args[key] = value
		return args
	}

	cases := []struct {
		name  string
		tool  string
		field string
		args  map[string]any
	}{
		{"trade action number", NameExecuteTrade, ArgAction, trade(ArgAction, 1)},
		{"trade amount words", NameExecuteTrade, ArgAmount, trade(ArgAmount, "five hundred")},
		{"trade slippage list", NameExecuteTrade, ArgSlippage, trade(ArgSlippage, []any{1})},
		{"trade priority fee object", NameExecuteTrade, ArgPriorityFee, trade(ArgPriorityFee, map[string]any{})},
		{"trade denomination object", NameExecuteTrade, ArgDenominatedInBase, trade(ArgDenominatedInBase, map[string]any{"v": true})},
		{"trade denomination words", NameExecuteTrade, ArgDenominatedInBase, trade(ArgDenominatedInBase, "yes")},
		{"trade private key number", NameExecuteTrade, ArgPrivateKey, trade(ArgPrivateKey, 42)},
		{"asset dev buy words", NameCreateAsset, ArgDevBuy, asset(ArgDevBuy, "x")},
		{"asset from key number", NameCreateAsset, ArgFromKey, asset(ArgFromKey, 42)},
		{"asset name list", NameCreateAsset, ArgName, asset(ArgName, []any{"Coin"})},
		{"transfer to address bool", NameTransferFunds, ArgToAddress, map[string]any{ArgFromKey: "A", ArgToAddress: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &fakeTransport{response: []byte(`{}`)}
			c := startClient(t, newDispatcher(t, transport), Options{})

			text, isError := callTool(t, c, tc.tool, tc.args)
			assert.True(t, isError)
			assert.Contains(t, text, string(xerrors.CodeInvalidInput))
			assert.Contains(t, text, tc.field+" must be")
			assert.NotContains(t, text, "missing")
			assert.Empty(t, transport.exchanges())
		})
	}
}

func TestStringBooleansAndNumericStringsAccepted(t *testing.T) {
	transport := &fakeTransport{response: []byte(`{"success":true}`)}
	c := startClient(t, newDispatcher(t, transport), Options{})

	text, isError := callTool(t, c, NameExecuteTrade, map[string]any{
		ArgPrivateKey:        "priv",
		ArgPublicKey:         "pub",
		ArgAssetID:           "mint1",
		ArgDenominatedInBase: "true",
		ArgAmount:            "2",
	})
	require.False(t, isError, text)

	calls := transport.exchanges()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].body, "denominatedInBase=true&amount=2&")
}

func TestUpstreamErrorPayloadIsVisible(t *testing.T) {
	transport := &fakeTransport{err: xerrors.New(xerrors.CodeTransportFailure, "upstream returned an error status",
		xerrors.WithStatus(400), xerrors.WithBody([]byte(`{"error":"insufficient funds"}`)))}
	c := startClient(t, newDispatcher(t, transport), Options{})

	text, isError := callTool(t, c, NameCreateWallet, nil)
	assert.True(t, isError)
	assert.Contains(t, text, `{"error":"insufficient funds"}`)
	assert.Contains(t, text, "400")
}

func TestMalformedResponseIsError(t *testing.T) {
	transport := &fakeTransport{response: []byte("<html>oops</html>")}
	c := startClient(t, newDispatcher(t, transport), Options{})

	text, isError := callTool(t, c, NameCreateWallet, nil)
	assert.True(t, isError)
	assert.Contains(t, text, "<html>oops</html>")
}

func TestAuditEventsRecorded(t *testing.T) {
	sink := &memorySink{}
	transport := &fakeTransport{response: []byte(`{}`)}
	c := startClient(t, newDispatcher(t, transport), Options{Recorder: sink})

	callTool(t, c, NameCreateWallet, nil)
	callTool(t, c, NameTransferFunds, map[string]any{ArgFromKey: "A"})

	events := sink.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, NameCreateWallet, events[0].Tool)
	assert.Equal(t, audit.OutcomeSuccess, events[0].Outcome)
	assert.Equal(t, NameTransferFunds, events[1].Tool)
	assert.Equal(t, audit.OutcomeInvalidInput, events[1].Outcome)
	assert.Equal(t, string(xerrors.CodeInvalidInput), events[1].Code)
}

func TestAuditFailureDoesNotAffectResult(t *testing.T) {
	sink := &memorySink{err: errors.New("sink down")}
	transport := &fakeTransport{response: []byte(`{"ok":true}`)}
	c := startClient(t, newDispatcher(t, transport), Options{Recorder: sink})

	text, isError := callTool(t, c, NameCreateWallet, nil)
	assert.False(t, isError)
	assert.Equal(t, "{\n  \"ok\": true\n}", text)
	assert.Len(t, sink.recorded(), 1)
}
