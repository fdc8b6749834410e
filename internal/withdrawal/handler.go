package withdrawal

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
)

// Handler exposes HTTP endpoints for withdrawal requests.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	TokenAmount string `json:"token_amount"`
	BankEntity  string `json:"bank_entity"`
	BankAccount string `json:"bank_account"`
}

type decisionRequest struct {
	Reason string `json:"reason"`
}

type withdrawalResponse struct {
	ID          string `json:"id"`
	TokenAmount string `json:"token_amount"`
	Rate        string `json:"rate"`
	FiatAmount  string `json:"fiat_amount"`
	BankEntity  string `json:"bank_entity"`
	BankAccount string `json:"bank_account"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	LockTxID    string `json:"lock_txid,omitempty"`
	RefundTxID  string `json:"refund_txid,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Create locks tokens and records a new pending request.
func (h *Handler) Create(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	w, err := h.service.Create(c.UserContext(), CreateInput{
		UserID:      userID,
		TokenAmount: req.TokenAmount,
		BankEntity:  req.BankEntity,
		BankAccount: req.BankAccount,
	})
	if err != nil {
		return mapWithdrawalError(err)
	}
	return c.Status(http.StatusCreated).JSON(toWithdrawalResponse(w))
}

// List returns the authenticated user's requests.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	requests, err := h.service.List(c.UserContext(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return mapWithdrawalError(err)
	}
	return c.JSON(toWithdrawalResponses(requests))
}

// Pending returns the operator review queue.
func (h *Handler) Pending(c *fiber.Ctx) error {
	requests, err := h.service.Pending(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return mapWithdrawalError(err)
	}
	return c.JSON(toWithdrawalResponses(requests))
}

// Approve records the completed fiat payout.
func (h *Handler) Approve(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("user_id").(string)

	w, err := h.service.Approve(c.UserContext(), operatorID, c.Params("withdrawalId"))
	if err != nil {
		return mapWithdrawalError(err)
	}
	return c.JSON(toWithdrawalResponse(w))
}

// Reject declines the request and refunds the locked tokens.
func (h *Handler) Reject(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("user_id").(string)
	var req decisionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	w, err := h.service.Reject(c.UserContext(), operatorID, c.Params("withdrawalId"), req.Reason)
	if err != nil {
		return mapWithdrawalError(err)
	}
	return c.JSON(toWithdrawalResponse(w))
}

func toWithdrawalResponse(w Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:          w.ID,
		TokenAmount: w.TokenAmount.String(),
		Rate:        w.Rate.String(),
		FiatAmount:  w.FiatAmount.String(),
		BankEntity:  w.BankEntity,
		BankAccount: w.BankAccount,
		Status:      string(w.Status),
		Reason:      w.Reason,
		LockTxID:    w.LockTxID,
		RefundTxID:  w.RefundTxID,
		CreatedAt:   w.CreatedAt.Format(time.RFC3339),
	}
}

func toWithdrawalResponses(requests []Withdrawal) []withdrawalResponse {
	out := make([]withdrawalResponse, 0, len(requests))
	for _, w := range requests {
		out = append(out, toWithdrawalResponse(w))
	}
	return out
}

func mapWithdrawalError(err error) error {
	switch {
	case errors.Is(err, custody.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, custody.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, custody.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, custody.ErrInsufficientFunds), errors.Is(err, custody.ErrGatewayFailure):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, custody.ErrGatewayUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
