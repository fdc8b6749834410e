package tron

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", logging.Discard()), srv
}

func TestCreateWallet(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/create" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("missing api key header, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"address": "TAddr1", "privateKey": "pk1"})
	}))

	w, err := client.CreateWallet(context.Background())
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if w.Address != "TAddr1" || w.PrivateKey != "pk1" {
		t.Fatalf("unexpected wallet: %+v", w)
	}
}

func TestBalanceToleratesStringAndNumber(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wallet/balance/TAddr":
			w.Write([]byte(`{"balance": 12.5}`))
		case "/wallet/usdt/TAddr":
			w.Write([]byte(`{"usdt": "100.123456"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	trx, err := client.TRXBalance(context.Background(), "TAddr")
	if err != nil {
		t.Fatalf("trx balance: %v", err)
	}
	if trx != money.MustParse("12.5") {
		t.Fatalf("unexpected trx balance %s", trx)
	}

	usdt, err := client.USDTBalance(context.Background(), "TAddr")
	if err != nil {
		t.Fatalf("usdt balance: %v", err)
	}
	if usdt != money.MustParse("100.123456") {
		t.Fatalf("unexpected usdt balance %s", usdt)
	}
}

func TestSendUSDTRejection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["from"] != "TFrom" || req["pk"] != "pk" || req["to"] != "TTo" {
			t.Fatalf("unexpected payload: %v", req)
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "error": "insufficient energy"}`))
	}))

	res, err := client.SendUSDT(context.Background(), "TFrom", "pk", "TTo", money.MustParse("5"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.OK || res.Err != "insufficient energy" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTransactionInfoNotYetAvailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	receipt, err := client.TransactionInfo(context.Background(), "txid123")
	if err != nil {
		t.Fatalf("transaction info: %v", err)
	}
	if receipt != nil {
		t.Fatalf("expected nil receipt for pending transaction")
	}
}

func TestTransactionInfoSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"txid123","receipt":{"result":"SUCCESS"}}`))
	}))

	receipt, err := client.TransactionInfo(context.Background(), "txid123")
	if err != nil {
		t.Fatalf("transaction info: %v", err)
	}
	if !receipt.Succeeded() {
		t.Fatalf("expected success receipt, got %+v", receipt)
	}
	if len(receipt.Raw) == 0 {
		t.Fatalf("expected raw payload to be retained")
	}
}

func TestTRC20Transfers(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fingerprint"); got != "cursor1" {
			t.Fatalf("expected fingerprint cursor, got %q", got)
		}
		w.Write([]byte(`{
            "data": [{
                "transaction_id": "tx1",
                "from": "TFrom", "to": "TTo",
                "value": "50123456",
                "token_info": {"decimals": 6},
                "block_timestamp": 1700000000000,
                "confirmed": true
            }],
            "meta": {"fingerprint": "cursor2"}
        }`))
	}))

	page, err := client.TRC20Transfers(context.Background(), "TAddr", 25, "cursor1")
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if page.Fingerprint != "cursor2" || len(page.Items) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].Amount != money.MustParse("50.123456") {
		t.Fatalf("unexpected amount %s", page.Items[0].Amount)
	}
}

func TestTokenValueToAmount(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		micros   int64
	}{
		{"50123456", 6, 50_123_456},
		{"0x2FCD2C0", 6, 50_123_456},
		{"5000000000", 8, 50_000_000},
	}
	for _, tc := range cases {
		got, err := tokenValueToAmount(tc.value, tc.decimals)
		if err != nil {
			t.Fatalf("tokenValueToAmount(%q): %v", tc.value, err)
		}
		if got.Micros() != tc.micros {
			t.Fatalf("tokenValueToAmount(%q) = %d, want %d", tc.value, got.Micros(), tc.micros)
		}
	}

	if _, err := tokenValueToAmount("not-a-number", 6); err == nil {
		t.Fatalf("expected error for junk value")
	}
}
