package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell-go/internal/domain/events"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/security"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// TokenHandlers mints stream tokens. Authorization of who may request a
// token for which topics belongs to the fronting auth layer; this endpoint
// only encodes the grant.
type TokenHandlers struct{}

// NewTokenHandlers creates the token handler set.
func NewTokenHandlers() *TokenHandlers {
	return &TokenHandlers{}
}

// PostStreamToken handles POST /api/v1/stream/token.
func (h *TokenHandlers) PostStreamToken(c *gin.Context) {
	if config.StreamTokenSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream tokens are not configured"})
		return
	}

	var request struct {
		ClientID string   `json:"clientId" binding:"required"`
		Topics   []string `json:"topics"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(request.Topics) == 0 {
		request.Topics = events.AllTopics()
	}

	token, err := security.GenerateStreamToken(request.ClientID, request.Topics, config.StreamTokenSecret, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "topics": request.Topics})
}
