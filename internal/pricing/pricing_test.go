package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

func newP2PServer(t *testing.T, prices []string, wantTradeType string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bapi/c2c/v2/friendly/c2c/adv/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req advSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if wantTradeType != "" && req.TradeType != wantTradeType {
			t.Errorf("tradeType = %s, want %s", req.TradeType, wantTradeType)
		}
		if req.Asset != "USDT" {
			t.Errorf("asset = %s", req.Asset)
		}

		var resp advSearchResponse
		for _, p := range prices {
			row := struct {
				Adv struct {
					Price string `json:"price"`
				} `json:"adv"`
			}{}
			row.Adv.Price = p
			resp.Data = append(resp.Data, row)
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestMarketRateAveragesListings(t *testing.T) {
	srv := newP2PServer(t, []string{"36.00", "37.00", "38.00"}, "BUY")
	defer srv.Close()

	oracle := NewBinanceP2P(srv.URL, "USDT", "VES", logging.Discard())
	rate, err := oracle.MarketRate(context.Background(), SideBuy)
	if err != nil {
		t.Fatalf("market rate: %v", err)
	}
	if rate != money.MustParse("37") {
		t.Fatalf("rate = %s, want 37", rate)
	}
}

func TestMarketRateSkipsBadListings(t *testing.T) {
	srv := newP2PServer(t, []string{"36.00", "not-a-price", "38.00"}, "")
	defer srv.Close()

	oracle := NewBinanceP2P(srv.URL, "USDT", "VES", logging.Discard())
	rate, err := oracle.MarketRate(context.Background(), SideSell)
	if err != nil {
		t.Fatalf("market rate: %v", err)
	}
	if rate != money.MustParse("37") {
		t.Fatalf("rate = %s, want 37", rate)
	}
}

func TestMarketRateEmptyBook(t *testing.T) {
	srv := newP2PServer(t, nil, "")
	defer srv.Close()

	oracle := NewBinanceP2P(srv.URL, "USDT", "VES", logging.Discard())
	if _, err := oracle.MarketRate(context.Background(), SideBuy); err == nil {
		t.Fatal("expected error for empty book")
	}
}

type staticOracle struct {
	rate money.Amount
	err  error
}

func (o staticOracle) MarketRate(context.Context, Side) (money.Amount, error) {
	return o.rate, o.err
}

func TestQuoterAppliesSpread(t *testing.T) {
	q := NewQuoter(staticOracle{rate: money.MustParse("100")}, DefaultQuoteConfig(), logging.Discard())

	if got := q.BuyRate(context.Background()); got != money.MustParse("113") {
		t.Fatalf("buy rate = %s, want 113", got)
	}
	if got := q.SellRate(context.Background()); got != money.MustParse("90") {
		t.Fatalf("sell rate = %s, want 90", got)
	}
}

func TestQuoterFallsBackWhenOracleDown(t *testing.T) {
	q := NewQuoter(staticOracle{err: errors.New("down")}, DefaultQuoteConfig(), logging.Discard())

	// 36.50 with 13% markup.
	if got := q.BuyRate(context.Background()); got != money.MustParse("41.245") {
		t.Fatalf("buy rate = %s, want 41.245", got)
	}
	// 36.50 with 10% discount.
	if got := q.SellRate(context.Background()); got != money.MustParse("32.85") {
		t.Fatalf("sell rate = %s, want 32.85", got)
	}
}
