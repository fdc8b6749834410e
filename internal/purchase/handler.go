package purchase

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
)

// Handler exposes HTTP endpoints for purchase orders.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	FiatAmount string `json:"fiat_amount"`
	PaymentRef string `json:"payment_ref"`
}

type decisionRequest struct {
	Reason string `json:"reason"`
}

type purchaseResponse struct {
	ID          string `json:"id"`
	FiatAmount  string `json:"fiat_amount"`
	Rate        string `json:"rate"`
	TokenAmount string `json:"token_amount"`
	PaymentRef  string `json:"payment_ref"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	TxID        string `json:"txid,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Create records a new pending order for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	p, err := h.service.Create(c.UserContext(), CreateInput{
		UserID:     userID,
		FiatAmount: req.FiatAmount,
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		return mapPurchaseError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPurchaseResponse(p))
}

// List returns the authenticated user's orders.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	orders, err := h.service.List(c.UserContext(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return mapPurchaseError(err)
	}
	return c.JSON(toPurchaseResponses(orders))
}

// Pending returns the operator review queue.
func (h *Handler) Pending(c *fiber.Ctx) error {
	orders, err := h.service.Pending(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return mapPurchaseError(err)
	}
	return c.JSON(toPurchaseResponses(orders))
}

// Approve settles a pending order from the treasury.
func (h *Handler) Approve(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("user_id").(string)

	p, err := h.service.Approve(c.UserContext(), operatorID, c.Params("purchaseId"))
	if err != nil {
		return mapPurchaseError(err)
	}
	return c.JSON(toPurchaseResponse(p))
}

// Reject declines a pending order.
func (h *Handler) Reject(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("user_id").(string)
	var req decisionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	p, err := h.service.Reject(c.UserContext(), operatorID, c.Params("purchaseId"), req.Reason)
	if err != nil {
		return mapPurchaseError(err)
	}
	return c.JSON(toPurchaseResponse(p))
}

func toPurchaseResponse(p Purchase) purchaseResponse {
	return purchaseResponse{
		ID:          p.ID,
		FiatAmount:  p.FiatAmount.String(),
		Rate:        p.Rate.String(),
		TokenAmount: p.TokenAmount.String(),
		PaymentRef:  p.PaymentRef,
		Status:      string(p.Status),
		Reason:      p.Reason,
		TxID:        p.TxID,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toPurchaseResponses(orders []Purchase) []purchaseResponse {
	out := make([]purchaseResponse, 0, len(orders))
	for _, p := range orders {
		out = append(out, toPurchaseResponse(p))
	}
	return out
}

func mapPurchaseError(err error) error {
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
