package pricing

import (
	"context"
	"log/slog"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// QuoteConfig sets the spread applied over the market reference rate and
// the rate used when the oracle is unreachable.
type QuoteConfig struct {
	BuyMarkupBp    int
	SellDiscountBp int
	FallbackRate   money.Amount
}

// DefaultQuoteConfig mirrors production spreads: 13% over market on
// purchases, 10% under market on withdrawals.
func DefaultQuoteConfig() QuoteConfig {
	return QuoteConfig{
		BuyMarkupBp:    1300,
		SellDiscountBp: 1000,
		FallbackRate:   money.MustParse("36.50"),
	}
}

// Quoter turns a market reference rate into the rate actually offered.
// Quotes never fail: when the oracle is down the configured fallback
// applies, so commerce degrades rather than stopping.
type Quoter struct {
	oracle Oracle
	cfg    QuoteConfig
	logger *slog.Logger
}

func NewQuoter(oracle Oracle, cfg QuoteConfig, logger *slog.Logger) *Quoter {
	return &Quoter{oracle: oracle, cfg: cfg, logger: logger}
}

// BuyRate is the fiat-per-USDT rate charged when a user buys USDT.
func (q *Quoter) BuyRate(ctx context.Context) money.Amount {
	return applyBp(q.marketOrFallback(ctx, SideBuy), q.cfg.BuyMarkupBp)
}

// SellRate is the fiat-per-USDT rate paid when a user cashes USDT out.
func (q *Quoter) SellRate(ctx context.Context) money.Amount {
	return applyBp(q.marketOrFallback(ctx, SideSell), -q.cfg.SellDiscountBp)
}

func (q *Quoter) marketOrFallback(ctx context.Context, side Side) money.Amount {
	rate, err := q.oracle.MarketRate(ctx, side)
	if err != nil {
		q.logger.Warn("price oracle unavailable, using fallback rate",
			"side", string(side), "fallback", q.cfg.FallbackRate.String(), "error", err)
		return q.cfg.FallbackRate
	}
	return rate
}

// applyBp shifts a rate by the given basis points, rounding half up.
func applyBp(rate money.Amount, bp int) money.Amount {
	n := rate.Micros() * int64(10000+bp)
	return money.FromMicros((n + 5000) / 10000)
}
