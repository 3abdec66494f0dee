package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/gravadigital/polls-api/internal/auth"
	"github.com/gravadigital/polls-api/internal/config"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/response"
	"github.com/gravadigital/polls-api/internal/services"
	"github.com/gravadigital/polls-api/internal/storage/postgres"
)

type AuthHandler struct {
	auth   *services.AuthService
	cookie string
	secure bool
	log    *log.Logger
}

func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		cookie: cfg.Auth.SessionCookie,
		secure: cfg.IsProduction(),
		log:    logger.Handler("auth"),
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequestError(c, "name, email and password are required")
		return
	}

	session, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			response.BadRequestError(c, validationErr.Error())
		case errors.Is(err, postgres.ErrEmailTaken):
			response.ConflictError(c, "An account with this email already exists")
		default:
			h.log.Error("registration failed", "error", err)
			response.InternalServerError(c, "Could not create the account")
		}
		return
	}

	h.setSession(c, session)
	response.SuccessResponse(c, http.StatusCreated, "Account created", session)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequestError(c, "email and password are required")
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.UnauthorizedError(c, err.Error())
			return
		}
		h.log.Error("login failed", "error", err)
		response.InternalServerError(c, "Could not sign in")
		return
	}

	h.setSession(c, session)
	response.SuccessResponse(c, http.StatusOK, "Signed in", session)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie, "", -1, "/", "", h.secure, true)
	response.Navigate(c, "Signed out", response.Navigation{RedirectTo: "/polls"})
}

func (h *AuthHandler) setSession(c *gin.Context, session *services.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie, session.Token, maxAge, "/", "", h.secure, true)
}
