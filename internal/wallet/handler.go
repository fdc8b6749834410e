package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
)

// Handler exposes HTTP endpoints for custody wallet operations.
type Handler struct {
	service  *Service
	balances BalanceSource
	cache    *CachedBalances
}

// NewHandler constructs a wallet handler. balances may be a caching
// decorator; cache may be nil when caching is disabled.
func NewHandler(service *Service, balances BalanceSource, cache *CachedBalances) *Handler {
	return &Handler{service: service, balances: balances, cache: cache}
}

type balancesResponse struct {
	WalletID  string  `json:"wallet_id"`
	Address   string  `json:"address"`
	TRX       string  `json:"trx"`
	USDT      string  `json:"usdt"`
	Locked    string  `json:"locked"`
	Available string  `json:"available"`
	AsOf      string  `json:"as_of"`
	TRXFloat  float64 `json:"trx_value"`
	USDTFloat float64 `json:"usdt_value"`
}

type sendRequest struct {
	ToAddress string `json:"to_address"`
	Amount    string `json:"amount"`
}

type sendResponse struct {
	TransactionID string `json:"transaction_id"`
	ChainTxID     string `json:"chain_txid,omitempty"`
	Status        string `json:"status"`
	FailReason    string `json:"fail_reason,omitempty"`
}

type transactionResponse struct {
	ID         string `json:"id"`
	ToAddress  string `json:"to_address"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	ChainTxID  string `json:"chain_txid,omitempty"`
	FailReason string `json:"fail_reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type historyResponse struct {
	TxID      string `json:"txid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
	Timestamp string `json:"timestamp"`
	Confirmed bool   `json:"confirmed"`
}

// Balances returns the authenticated user's balance sheet.
func (h *Handler) Balances(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	balances, err := h.balances.Balances(c.UserContext(), userID)
	if err != nil {
		return mapWalletError(err)
	}
	return c.JSON(balancesResponse{
		WalletID:  balances.WalletID,
		Address:   balances.Address,
		TRX:       balances.TRX.String(),
		USDT:      balances.USDT.String(),
		Locked:    balances.Locked.String(),
		Available: balances.Available.String(),
		AsOf:      balances.AsOf.Format(time.RFC3339),
		TRXFloat:  balances.TRX.Float64(),
		USDTFloat: balances.USDT.Float64(),
	})
}

// Send submits a USDT transfer from the user's custody wallet.
func (h *Handler) Send(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.service.Send(c.UserContext(), SendInput{
		UserID:           userID,
		ToAddress:        req.ToAddress,
		Amount:           req.Amount,
		IdempotencyToken: c.Get("Idempotency-Key"),
	})
	if h.cache != nil && outcome.TransactionID != "" {
		h.cache.Invalidate(c.UserContext(), userID)
	}
	if err != nil {
		if errors.Is(err, custody.ErrGatewayFailure) {
			return c.Status(http.StatusUnprocessableEntity).JSON(toSendResponse(outcome))
		}
		return mapWalletError(err)
	}
	return c.Status(http.StatusAccepted).JSON(toSendResponse(outcome))
}

// Transactions lists the user's custodial transfer records.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 50)
	status := custody.TxStatus(c.Query("status"))

	txs, err := h.service.Transactions(c.UserContext(), userID, limit, status)
	if err != nil {
		return mapWalletError(err)
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:         tx.ID,
			ToAddress:  tx.ToAddress,
			Amount:     tx.Amount.String(),
			Status:     string(tx.Status),
			ChainTxID:  tx.ChainTxID,
			FailReason: tx.FailReason,
			CreatedAt:  tx.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(out)
}

// History lists on-chain movements for the user's address.
func (h *Handler) History(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 50)

	items, err := h.service.OnChainHistory(c.UserContext(), userID, limit, c.Query("direction"), c.Query("fingerprint"))
	if err != nil {
		return mapWalletError(err)
	}

	out := make([]historyResponse, 0, len(items))
	for _, item := range items {
		out = append(out, historyResponse{
			TxID:      item.TxID,
			From:      item.From,
			To:        item.To,
			Currency:  item.Currency,
			Amount:    item.Amount.String(),
			Direction: item.Direction,
			Timestamp: item.Timestamp.Format(time.RFC3339),
			Confirmed: item.Confirmed,
		})
	}
	return c.JSON(out)
}

func toSendResponse(outcome SendOutcome) sendResponse {
	return sendResponse{
		TransactionID: outcome.TransactionID,
		ChainTxID:     outcome.ChainTxID,
		Status:        string(outcome.Status),
		FailReason:    outcome.FailReason,
	}
}

func mapWalletError(err error) error {
	switch {
	case errors.Is(err, custody.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, custody.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, custody.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, custody.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, custody.ErrGatewayUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
