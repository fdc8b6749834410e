package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type bankDetailsRequest struct {
	BankEntity  string `json:"bank_entity"`
	BankAccount string `json:"bank_account"`
}

type profileResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	BankEntity  string `json:"bank_entity,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
}

// Profile returns the authenticated user's account details.
func (h *Handler) Profile(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.service.ByID(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.JSON(toProfile(user))
}

// SetBankDetails stores the user's payout destination.
func (h *Handler) SetBankDetails(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req bankDetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetBankDetails(c.UserContext(), userID, BankDetails{
		Entity:  req.BankEntity,
		Account: req.BankAccount,
	}); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.ByID(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return c.JSON(toProfile(user))
}

func toProfile(user User) profileResponse {
	return profileResponse{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		BankEntity:  user.BankEntity,
		BankAccount: user.BankAccount,
	}
}
