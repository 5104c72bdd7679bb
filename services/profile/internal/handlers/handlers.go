package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aminammar1/storefront/libs/auth"
	"github.com/aminammar1/storefront/services/profile/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*storage.Profile, error)
}

type Handler struct {
	Store  ProfileStore
	Logger *slog.Logger
}

type meResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt string    `json:"created_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(store ProfileStore, logger *slog.Logger) *Handler {
	return &Handler{Store: store, Logger: logger}
}

func (h *Handler) Register(r *gin.Engine, jwtSecret []byte) {
	authGroup := r.Group("/", auth.Middleware(jwtSecret))
	authGroup.GET("/me", h.Me)
}

func (h *Handler) Me(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	profile, err := h.Store.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The token outlived the account.
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unknown user"})
			return
		}
		h.Logger.Error("me lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	resp := meResponse{
		ID:        profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		CreatedAt: profile.CreatedAt.UTC().Format(time.RFC3339),
	}
	if profile.PhotoURL != nil {
		resp.Photo = *profile.PhotoURL
	}
	if profile.Provider != nil {
		resp.Provider = *profile.Provider
	}

	c.JSON(http.StatusOK, resp)
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(auth.ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	idStr, ok := val.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
