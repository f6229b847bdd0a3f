package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appctx "metaform/internal/core/context"
	"metaform/internal/core/apperror"
	"metaform/internal/domain/auth"
	"metaform/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User: dto.UserResponse{
			ID:      result.User.ID.String(),
			Email:   result.User.Email,
			Name:    result.User.Name,
			Roles:   result.User.Roles,
			IsAdmin: result.User.IsAdmin,
		},
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user := appctx.GetUser(c.Request.Context())
	if user == nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return
	}
	c.JSON(http.StatusOK, dto.UserResponse{
		ID:      user.UserID,
		Email:   user.Email,
		Roles:   user.Roles,
		IsAdmin: user.IsAdmin,
	})
}
