package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/identity"
)

// Onboarder provisions the custody account at registration time.
type Onboarder interface {
	CreateAccount(ctx context.Context, userID string) (custody.Account, error)
}

// Handler exposes auth endpoints for register/login/refresh/logout.
type Handler struct {
	ids     *identity.Service
	svc     *Service
	onboard Onboarder
}

func NewHandler(ids *identity.Service, svc *Service, onboard Onboarder) *Handler {
	return &Handler{ids: ids, svc: svc, onboard: onboard}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type registerResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Register onboards a user and provisions their custody wallet.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Register(c.UserContext(), identity.Credentials{
		Email: req.Email, Password: req.Password, Name: req.Name,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	account, err := h.onboard.CreateAccount(c.UserContext(), user.ID)
	if err != nil {
		// The user exists; wallet provisioning retries on next login.
		return c.Status(http.StatusCreated).JSON(registerResponse{UserID: user.ID, Email: user.Email})
	}
	return c.Status(http.StatusCreated).JSON(registerResponse{
		UserID: user.ID, Email: user.Email, Address: account.Address,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Address      string `json:"address,omitempty"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{
		Email: req.Email, Password: req.Password,
	})
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	pair, err := h.svc.Login(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	var address string
	if account, err := h.onboard.CreateAccount(c.UserContext(), user.ID); err == nil {
		address = account.Address
	}
	return c.JSON(loginResponse{
		UserID:       user.ID,
		Role:         user.Role,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		Address:      address,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	if err := h.svc.Logout(c.UserContext(), userID); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"status": "logged_out"})
}
