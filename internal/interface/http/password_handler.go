package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-shop-account/internal/application"
	"github.com/oksasatya/go-shop-account/internal/interface/middleware"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
	"github.com/oksasatya/go-shop-account/pkg/response"
)

// PasswordHandler serves the forgot/reset flow. Delivery of the reset link
// is not handled here; ExposeResetLink returns it in the response body.
type PasswordHandler struct {
	Svc             *userapp.Service
	Logger          *logrus.Logger
	Cookies         *helpers.SessionCookie
	ExposeResetLink bool
}

func NewPasswordHandler(svc *userapp.Service, logger *logrus.Logger, cookies *helpers.SessionCookie, exposeResetLink bool) *PasswordHandler {
	return &PasswordHandler{Svc: svc, Logger: logger, Cookies: cookies, ExposeResetLink: exposeResetLink}
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required,pwd"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

// Forgot POST /api/password/forgot {email}
// Answers identically whether or not the email is registered.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	token, err := h.Svc.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	data := gin.H{}
	if token != "" {
		if h.Logger != nil {
			h.Logger.WithField("ip", middleware.ClientIP(c)).Info("password reset issued")
		}
		if h.ExposeResetLink {
			data["reset_link"] = h.Svc.ResetLink(token)
		}
	}
	response.Success(c, http.StatusOK, data, "if the email is registered, a reset link has been issued", nil)
}

// Reset POST /api/password/reset {token, password, confirmPassword}
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, sess, err := h.Svc.ResetPassword(c.Request.Context(), req.Token, userapp.ResetPasswordInput{
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.Set(c, sess.Token, sess.ExpiresAt)
	response.Success(c, http.StatusOK, sessionPayload{User: u, Token: sess.Token}, "password updated", gin.H{"expires_at": sess.ExpiresAt})
}
