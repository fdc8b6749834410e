package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

const defaultTimeout = 30 * time.Second

// Client is the HTTP adapter for the Tron REST bridge.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a bridge client. apiKey may be empty for bridges that
// do not require one.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	return c.http.Do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateWallet provisions a new address/key pair on the bridge.
func (c *Client) CreateWallet(ctx context.Context) (Wallet, error) {
	var payload struct {
		Address    string `json:"address"`
		PrivateKey string `json:"privateKey"`
	}
	if err := c.getJSON(ctx, "/wallet/create", &payload); err != nil {
		return Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	if payload.Address == "" || payload.PrivateKey == "" {
		return Wallet{}, fmt.Errorf("create wallet: bridge response missing address or key")
	}
	return Wallet{Address: payload.Address, PrivateKey: payload.PrivateKey}, nil
}

// IsValidAddress asks the bridge whether the address is well formed.
func (c *Client) IsValidAddress(ctx context.Context, address string) (bool, error) {
	var payload struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "/wallet/isAddress/"+url.PathEscape(address), &payload); err != nil {
		return false, fmt.Errorf("validate address: %w", err)
	}
	return payload.OK, nil
}

// flexAmount tolerates the bridge returning balances as JSON numbers or
// strings under a couple of different property names.
type flexAmount struct {
	value money.Amount
	set   bool
}

func (f *flexAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	a, err := money.Parse(s)
	if err != nil {
		return err
	}
	f.value = a
	f.set = true
	return nil
}

func (c *Client) balance(ctx context.Context, path string, altKey string) (money.Amount, error) {
	var payload map[string]json.RawMessage
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return 0, err
	}
	for _, key := range []string{"balance", altKey} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var f flexAmount
		if err := f.UnmarshalJSON(raw); err != nil {
			return 0, fmt.Errorf("parse %s balance: %w", key, err)
		}
		if f.set {
			return f.value, nil
		}
	}
	c.logger.Warn("balance response missing expected properties", "path", path)
	return 0, nil
}

// TRXBalance returns the native-coin balance for the address.
func (c *Client) TRXBalance(ctx context.Context, address string) (money.Amount, error) {
	return c.balance(ctx, "/wallet/balance/"+url.PathEscape(address), "trx")
}

// USDTBalance returns the TRC20 token balance for the address.
func (c *Client) USDTBalance(ctx context.Context, address string) (money.Amount, error) {
	return c.balance(ctx, "/wallet/usdt/"+url.PathEscape(address), "usdt")
}

type sendRequest struct {
	From   string      `json:"from"`
	PK     string      `json:"pk"`
	To     string      `json:"to"`
	Amount json.Number `json:"amount"`
}

type sendResponse struct {
	OK    bool   `json:"ok"`
	TxID  string `json:"txid"`
	Error string `json:"error"`
}

func (c *Client) send(ctx context.Context, path string, req sendRequest) (SendResult, error) {
	resp, err := c.do(ctx, http.MethodPost, path, req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	var payload sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SendResult{}, fmt.Errorf("decode send response (status %d): %w", resp.StatusCode, err)
	}
	if !payload.OK && payload.Error == "" {
		payload.Error = fmt.Sprintf("transfer rejected without error message (status %d)", resp.StatusCode)
	}
	return SendResult{OK: payload.OK, TxID: payload.TxID, Err: payload.Error}, nil
}

// SendUSDT submits a signed TRC20 transfer.
func (c *Client) SendUSDT(ctx context.Context, from, privateKey, to string, amount money.Amount) (SendResult, error) {
	return c.send(ctx, "/wallet/usdt/send", sendRequest{
		From: from, PK: privateKey, To: to, Amount: json.Number(amount.String()),
	})
}

// SendTRX submits a signed native transfer. The bridge converts the
// decimal amount to SUN internally.
func (c *Client) SendTRX(ctx context.Context, from, privateKey, to string, amount money.Amount) (SendResult, error) {
	return c.send(ctx, "/wallet/trx/send", sendRequest{
		From: from, PK: privateKey, To: to, Amount: json.Number(amount.String()),
	})
}

// TransactionInfo looks up the receipt for a chain transaction. A nil
// receipt with a nil error means the chain has not finalized it yet.
func (c *Client) TransactionInfo(ctx context.Context, txid string) (*Receipt, error) {
	resp, err := c.do(ctx, http.MethodGet, "/wallet/tx/"+url.PathEscape(txid), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Receipt struct {
			Result string `json:"result"`
		} `json:"receipt"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &Receipt{Result: payload.Receipt.Result, Raw: raw}, nil
}

type trc20ListResponse struct {
	Data []struct {
		TransactionID string `json:"transaction_id"`
		From          string `json:"from"`
		To            string `json:"to"`
		Value         string `json:"value"`
		TokenInfo     struct {
			Decimals int `json:"decimals"`
		} `json:"token_info"`
		BlockTimestamp int64 `json:"block_timestamp"`
		Confirmed      bool  `json:"confirmed"`
	} `json:"data"`
	Meta struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"meta"`
}

// TRC20Transfers lists token history for an address, newest first.
func (c *Client) TRC20Transfers(ctx context.Context, address string, limit int, fingerprint string) (TransferPage, error) {
	path := fmt.Sprintf("/wallet/trc20/%s?limit=%d", url.PathEscape(address), limit)
	if fingerprint != "" {
		path += "&fingerprint=" + url.QueryEscape(fingerprint)
	}
	var payload trc20ListResponse
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return TransferPage{}, fmt.Errorf("list trc20 transfers: %w", err)
	}

	page := TransferPage{Fingerprint: payload.Meta.Fingerprint}
	for _, item := range payload.Data {
		amount, err := tokenValueToAmount(item.Value, item.TokenInfo.Decimals)
		if err != nil {
			c.logger.Warn("skipping transfer with unparseable value",
				"txid", item.TransactionID, "value", item.Value, "error", err)
			continue
		}
		page.Items = append(page.Items, TRC20Transfer{
			TxID:      item.TransactionID,
			From:      item.From,
			To:        item.To,
			Amount:    amount,
			Timestamp: time.UnixMilli(item.BlockTimestamp).UTC(),
			Confirmed: item.Confirmed,
		})
	}
	return page, nil
}

type nativeListResponse struct {
	Data []struct {
		TxID           string `json:"txID"`
		BlockTimestamp int64  `json:"block_timestamp"`
		RawData        struct {
			Contract []struct {
				Type      string `json:"type"`
				Parameter struct {
					Value struct {
						Amount       int64  `json:"amount"`
						OwnerAddress string `json:"owner_address"`
						ToAddress    string `json:"to_address"`
					} `json:"value"`
				} `json:"parameter"`
			} `json:"contract"`
		} `json:"raw_data"`
	} `json:"data"`
	Meta struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"meta"`
}

// NativeTransactions lists native TRX history for an address.
func (c *Client) NativeTransactions(ctx context.Context, address string, limit int, fingerprint string) (NativePage, error) {
	path := fmt.Sprintf("/wallet/transactions/%s?limit=%d", url.PathEscape(address), limit)
	if fingerprint != "" {
		path += "&fingerprint=" + url.QueryEscape(fingerprint)
	}
	var payload nativeListResponse
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return NativePage{}, fmt.Errorf("list native transactions: %w", err)
	}

	page := NativePage{Fingerprint: payload.Meta.Fingerprint}
	for _, item := range payload.Data {
		for _, contract := range item.RawData.Contract {
			if contract.Type != "TransferContract" {
				continue
			}
			v := contract.Parameter.Value
			// TRX amounts arrive in SUN, already one micro-TRX each.
			page.Items = append(page.Items, NativeTransfer{
				TxID:      item.TxID,
				From:      v.OwnerAddress,
				To:        v.ToAddress,
				Amount:    money.FromMicros(v.Amount),
				Timestamp: time.UnixMilli(item.BlockTimestamp).UTC(),
			})
		}
	}
	return page, nil
}

// tokenValueToAmount converts a raw integer token value (decimal or
// hex-encoded string) at the given token precision into micro-units.
func tokenValueToAmount(value string, decimals int) (money.Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty value")
	}

	raw := new(big.Int)
	base := 10
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		value = value[2:]
		base = 16
	} else if strings.ContainsAny(value, "abcdefABCDEF") {
		base = 16
	}
	if _, ok := raw.SetString(value, base); !ok {
		return 0, fmt.Errorf("unparseable value %q", value)
	}

	if decimals <= 0 {
		decimals = money.Precision
	}
	// micros = raw * 10^6 / 10^decimals
	micros := new(big.Int).Mul(raw, big.NewInt(1_000_000))
	micros.Quo(micros, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	if !micros.IsInt64() {
		return 0, fmt.Errorf("value %q out of range", value)
	}
	return money.FromMicros(micros.Int64()), nil
}
