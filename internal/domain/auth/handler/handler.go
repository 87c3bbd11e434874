// Package handler exposes the admin login and the admin route guard.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/auth/service"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
)

// claimsKey is the gin context key holding the validated admin claims.
const claimsKey = "admin_claims"

// AuthHandler serves the admin login.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler constructs a new handler
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// RegisterRoutes mounts POST /auth/admin.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/admin", h.Login)
}

type loginRequest struct {
	Code string `json:"code"`
}

// Login exchanges the admin code for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %w", common.ErrInvalidRequest, err))
		return
	}

	result, err := h.svc.Login(req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RequireAdmin rejects requests without a valid "Authorization: Bearer" token.
func (h *AuthHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			writeError(c, common.ErrUnauthorized)
			return
		}

		claims, err := h.svc.ValidateAccessToken(strings.TrimSpace(token))
		if err != nil {
			h.logger.Debug("admin token rejected", slog.Any("error", err))
			writeError(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(common.HTTPStatus(err), gin.H{"error": common.UserMessage(err)})
}
