package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/manager"
)

// ContentReader fetches an entity from primary storage on a full cache
// miss. The domain layer implements it; it returns manager.ErrNotFound for
// entities that do not exist.
type ContentReader interface {
	Fetch(ctx context.Context, key keys.CacheKey) ([]byte, error)
}

// CacheHandlers exposes the read-through fetch endpoint used by client
// revalidation sweeps and the warmer.
type CacheHandlers struct {
	cache  *manager.Manager
	reader ContentReader
}

// NewCacheHandlers creates the cache handler set. A nil reader degrades
// the endpoint to cache inspection only.
func NewCacheHandlers(cache *manager.Manager, reader ContentReader) *CacheHandlers {
	return &CacheHandlers{cache: cache, reader: reader}
}

// GetEntry handles GET /api/v1/cache/:namespace/:id. With a reader wired
// it reads through memory, durable, then primary storage; without one it
// peeks the durable tier so inspection never perturbs what it observes.
func (h *CacheHandlers) GetEntry(c *gin.Context) {
	key := keys.CacheKey{Namespace: c.Param("namespace"), ID: c.Param("id")}

	if h.reader == nil {
		h.peek(c, key)
		return
	}

	value, err := h.cache.GetOrLoad(c.Request.Context(), key, 0, func(ctx context.Context) ([]byte, error) {
		return h.reader.Fetch(ctx, key)
	})
	if err != nil {
		if errors.Is(err, manager.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entity not found", "key": key.String()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "primary fetch failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":   key.String(),
		"value": json.RawMessage(value),
	})
}

func (h *CacheHandlers) peek(c *gin.Context, key keys.CacheKey) {
	value, found, err := h.cache.Peek(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "durable cache unavailable"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "cache miss", "key": key.String()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":   key.String(),
		"value": json.RawMessage(value),
	})
}
