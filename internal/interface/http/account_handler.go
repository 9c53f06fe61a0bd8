package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/pkg/response"
	"github.com/mundotango/mundo-tango-api/pkg/validation"
)

// AccountHandler serves email verification and password reset.
type AccountHandler struct {
	Svc    *app.AccountService
	Logger *logrus.Logger
}

func NewAccountHandler(svc *app.AccountService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger}
}

type tokenRequest struct {
	Token string `json:"token" binding:"required,max=128"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required,max=128"`
	Password string `json:"password" binding:"required,pwd"`
}

// RequestVerification handles POST /api/auth/verify/init for the caller.
func (h *AccountHandler) RequestVerification(c *gin.Context) {
	already, err := h.Svc.RequestVerification(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	if already {
		response.Success(c, http.StatusOK, gin.H{"verified": true}, "email already verified", nil)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"verified": false}, "verification email queued", nil)
}

func (h *AccountHandler) ConfirmVerification(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid, err := h.Svc.ConfirmVerification(c.Request.Context(), req.Token)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user_id": uid, "verified": true}, "email verified", nil)
}

// ForgotPassword answers the same way whether or not the address exists.
func (h *AccountHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"sent": true}, "if the address exists, a reset link is on its way", nil)
}

func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}
