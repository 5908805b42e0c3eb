package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"PumpMCP/internal/api"
	"PumpMCP/internal/tools"
	"PumpMCP/internal/upstream"
	"PumpMCP/sdk/go/pumpmcp"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc(upstream.PathCreateWallet, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"apiKey":          "demo-key",
			"walletPublicKey": "DemoPublicKey111111111111111111111111111111",
			"privateKey":      "demo-private-key",
		})
	})
	mux.HandleFunc(upstream.PathExecuteTrade, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, `{"error":"bad form"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"action":    r.PostForm.Get("action"),
			"signature": "demo-signature",
		})
	})
	fakeUpstream := httptest.NewServer(mux)
	defer fakeUpstream.Close()

	dispatcher, err := upstream.NewClient(upstream.Config{BaseURL: fakeUpstream.URL},
		upstream.NewHTTPTransport(upstream.HTTPConfig{Timeout: 5 * time.Second}))
	if err != nil {
		panic(err)
	}
	gateway := httptest.NewServer(api.NewServer(":0", tools.NewServer(dispatcher, tools.Options{})).Handler())
	defer gateway.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := pumpmcp.Dial(ctx, gateway.URL+api.MCPPath)
	if err != nil {
		panic(err)
	}
	defer client.Close()
	fmt.Printf("connected to %s\n", client.ServerInfo().Name)

	wallet, err := client.CreateWallet(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("created wallet %s\n", wallet.WalletPublicKey)

	trade, err := client.ExecuteTrade(ctx, pumpmcp.Trade{
		PrivateKey: wallet.PrivateKey,
		PublicKey:  wallet.WalletPublicKey,
		AssetID:    "DemoMint1111111111111111111111111111111111",
		Action:     "sell",
		Amount:     pumpmcp.Float(0.5),
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("trade result: %s\n", trade)
}
