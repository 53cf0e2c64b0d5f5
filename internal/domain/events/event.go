// Package events defines the change events published after cache invalidation.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/domain/entities/content"
	"github.com/oklog/ulid/v2"
)

// ChangeEvent describes one successful mutation. It is published exactly once
// per mutation, after the durable cache has been invalidated, and carries
// everything a subscriber needs to purge its own tiers by entity identity.
type ChangeEvent struct {
	ID           string               `json:"id"`
	EntityType   content.EntityType   `json:"entityType"`
	EntityID     string               `json:"entityId"`
	ParentID     string               `json:"parentId,omitempty"`
	MutationKind content.MutationKind `json:"mutationKind"`
	Timestamp    time.Time            `json:"timestamp"`
	Data         json.RawMessage      `json:"data,omitempty"`
}

// NewChangeEvent stamps a fresh event with a ULID and the current time.
func NewChangeEvent(entityType content.EntityType, entityID string, kind content.MutationKind, data json.RawMessage) ChangeEvent {
	now := time.Now().UTC()
	return ChangeEvent{
		ID:           ulid.Make().String(),
		EntityType:   entityType,
		EntityID:     entityID,
		MutationKind: kind,
		Timestamp:    now,
		Data:         data,
	}
}

// Topic derives the pub/sub topic for an entity type. One topic per entity
// type keeps per-entity ordering within a single subscriber stream.
func Topic(entityType content.EntityType) string {
	return fmt.Sprintf("%s-changed", entityType)
}

// AllTopics returns the topics for every known entity type.
func AllTopics() []string {
	topics := make([]string, 0, len(content.EntityTypes))
	for _, et := range content.EntityTypes {
		topics = append(topics, Topic(et))
	}
	return topics
}

// Reserved stream event names. Clients must tolerate names they do not know.
const (
	EventConnected = "connected"
	EventPing      = "ping"
	EventClose     = "close"
)
