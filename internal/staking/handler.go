package staking

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
)

// Handler exposes HTTP endpoints for the stake lifecycle.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type openRequest struct {
	Amount string `json:"amount"`
}

type stakeResponse struct {
	ID             string `json:"id"`
	Principal      string `json:"principal"`
	Accrued        string `json:"accrued"`
	DailyRateBp    int    `json:"daily_rate_bp"`
	Status         string `json:"status"`
	StartAt        string `json:"start_at"`
	ClosedAt       string `json:"closed_at,omitempty"`
	FundingTxID    string `json:"funding_txid,omitempty"`
	SettlementTxID string `json:"settlement_txid,omitempty"`
}

type closeResponse struct {
	StakeID        string `json:"stake_id"`
	Principal      string `json:"principal"`
	Accrued        string `json:"accrued"`
	Total          string `json:"total"`
	SettlementTxID string `json:"settlement_txid"`
	ChainTxID      string `json:"chain_txid,omitempty"`
}

// Open locks principal into a new stake.
func (h *Handler) Open(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	view, err := h.service.Open(c.UserContext(), OpenInput{UserID: userID, Amount: req.Amount})
	if err != nil {
		return mapStakingError(err)
	}
	return c.Status(http.StatusCreated).JSON(toStakeResponse(view))
}

// List returns the user's stakes with interest brought forward.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	views, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return mapStakingError(err)
	}
	out := make([]stakeResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toStakeResponse(v))
	}
	return c.JSON(out)
}

// Close settles a stake and pays principal plus interest back.
func (h *Handler) Close(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	stakeID := c.Params("stakeId")

	result, err := h.service.Close(c.UserContext(), userID, stakeID)
	if err != nil {
		return mapStakingError(err)
	}
	return c.JSON(closeResponse{
		StakeID:        result.StakeID,
		Principal:      result.Principal.String(),
		Accrued:        result.Accrued.String(),
		Total:          result.Total.String(),
		SettlementTxID: result.SettlementTxID,
		ChainTxID:      result.ChainTxID,
	})
}

func toStakeResponse(v View) stakeResponse {
	resp := stakeResponse{
		ID:             v.ID,
		Principal:      v.Principal.String(),
		Accrued:        v.Accrued.String(),
		DailyRateBp:    v.DailyRateBp,
		Status:         string(v.Status),
		StartAt:        v.StartAt.Format(time.RFC3339),
		FundingTxID:    v.FundingTxID,
		SettlementTxID: v.SettlementTxID,
	}
	if v.ClosedAt != nil {
		resp.ClosedAt = v.ClosedAt.Format(time.RFC3339)
	}
	return resp
}

func mapStakingError(err error) error {
	switch {
	case errors.Is(err, custody.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, custody.ErrAccountNotFound), errors.Is(err, custody.ErrStakeNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, custody.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, custody.ErrIntegrity):
		return fiber.NewError(http.StatusConflict, "stake cannot be settled")
	case errors.Is(err, custody.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, custody.ErrGatewayFailure):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, custody.ErrGatewayUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
