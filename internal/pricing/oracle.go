// Package pricing supplies fiat reference rates for USDT and the quote
// math applied on top of them.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// Side selects which side of the P2P book is sampled.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Oracle produces a market reference rate in fiat per USDT.
type Oracle interface {
	MarketRate(ctx context.Context, side Side) (money.Amount, error)
}

// BinanceP2P samples the public Binance P2P advertisement book and
// averages the listed prices.
type BinanceP2P struct {
	baseURL string
	asset   string
	fiat    string
	rows    int
	http    *http.Client
	logger  *slog.Logger
}

// NewBinanceP2P builds a P2P oracle for the given asset/fiat pair.
func NewBinanceP2P(baseURL, asset, fiat string, logger *slog.Logger) *BinanceP2P {
	return &BinanceP2P{
		baseURL: baseURL,
		asset:   asset,
		fiat:    fiat,
		rows:    10,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type advSearchRequest struct {
	Asset         string   `json:"asset"`
	Fiat          string   `json:"fiat"`
	MerchantCheck bool     `json:"merchantCheck"`
	Page          int      `json:"page"`
	PayTypes      []string `json:"payTypes"`
	Rows          int      `json:"rows"`
	TradeType     string   `json:"tradeType"`
}

type advSearchResponse struct {
	Data []struct {
		Adv struct {
			Price string `json:"price"`
		} `json:"adv"`
	} `json:"data"`
}

// MarketRate averages the advertised prices on one side of the book.
func (c *BinanceP2P) MarketRate(ctx context.Context, side Side) (money.Amount, error) {
	payload, err := json.Marshal(advSearchRequest{
		Asset:         c.asset,
		Fiat:          c.fiat,
		MerchantCheck: false,
		Page:          1,
		PayTypes:      []string{},
		Rows:          c.rows,
		TradeType:     string(side),
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/bapi/c2c/v2/friendly/c2c/adv/search", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("p2p search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("p2p search: unexpected status %d", resp.StatusCode)
	}

	var decoded advSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("p2p search: decode: %w", err)
	}

	var sum money.Amount
	var count int64
	for _, row := range decoded.Data {
		price, err := money.Parse(row.Adv.Price)
		if err != nil || !price.IsPositive() {
			c.logger.Warn("skipping unparseable p2p price", "price", row.Adv.Price)
			continue
		}
		sum = sum.Add(price)
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("p2p search: no usable advertisements for %s/%s %s", c.asset, c.fiat, side)
	}
	return money.FromMicros(sum.Micros() / count), nil
}
