package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell-go/internal/domain/entities/content"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/coordinator"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/dependency"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// ContentWriter applies the primary write. The domain layer implements it;
// a nil writer means the caller persisted the write already and this
// endpoint is notification-only.
type ContentWriter interface {
	Apply(ctx context.Context, m dependency.Mutation, payload json.RawMessage) error
}

// MutationHandlers receives mutations, applies the primary write, and runs
// the invalidation coordinator inside the same logical operation so
// invalidation can never be skipped by a caller forgetting to call it.
type MutationHandlers struct {
	writer      ContentWriter
	coordinator *coordinator.Coordinator
	logger      *logging.ChanneledLogger
}

// NewMutationHandlers creates the mutation handler set.
func NewMutationHandlers(writer ContentWriter, coord *coordinator.Coordinator, logger *logging.ChanneledLogger) *MutationHandlers {
	return &MutationHandlers{writer: writer, coordinator: coord, logger: logger}
}

type mutationRequest struct {
	EntityType   string          `json:"entityType" binding:"required"`
	EntityID     string          `json:"entityId" binding:"required"`
	MutationKind string          `json:"mutationKind" binding:"required"`
	ParentID     string          `json:"parentId"`
	Payload      json.RawMessage `json:"payload"`
}

// PostMutation handles POST /api/v1/mutations. The durable cache purge is
// synchronous; event publication happens in the background. A purge
// failure still returns 202 because the primary write already happened,
// with degradedConsistency set so the caller can surface it.
func (h *MutationHandlers) PostMutation(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entityType, err := content.ParseEntityType(req.EntityType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := content.ParseMutationKind(req.MutationKind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.MutationTimeout)
	defer cancel()

	mutation := dependency.Mutation{
		EntityType: entityType,
		Kind:       kind,
		EntityID:   req.EntityID,
		ParentID:   req.ParentID,
	}

	if h.writer != nil {
		if err := h.writer.Apply(ctx, mutation, req.Payload); err != nil {
			h.logger.System().Error("Primary write failed, skipping invalidation",
				"entityType", req.EntityType, "entityId", req.EntityID, "error", err.Error())
			c.JSON(http.StatusBadGateway, gin.H{"error": "primary write failed"})
			return
		}
	}

	err = h.coordinator.OnMutation(ctx, mutation, req.Payload)
	if err != nil {
		if errors.Is(err, coordinator.ErrDegradedConsistency) {
			c.JSON(http.StatusAccepted, gin.H{
				"status":                "accepted",
				"degradedConsistency":   true,
				"stalenessBoundedByTtl": true,
			})
			return
		}
		h.logger.System().Error("Mutation processing failed",
			"entityType", req.EntityType, "entityId", req.EntityID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mutation processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}
