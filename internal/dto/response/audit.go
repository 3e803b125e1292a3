package response

import (
	"time"

	"service-engagement/internal/data/entity"
)

type AuditEntryResponse struct {
	Seq        int64             `json:"seq"`
	EntityType entity.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	FromState  string            `json:"from_state"`
	ToState    string            `json:"to_state"`
	ActorID    string            `json:"actor_id"`
	ActorRole  entity.ActorRole  `json:"actor_role"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func AuditEntriesToResponse(entries []*entity.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			Seq:        e.Seq,
			EntityType: e.EntityType,
			EntityID:   e.EntityID.String(),
			FromState:  e.FromState,
			ToState:    e.ToState,
			ActorID:    e.ActorID.String(),
			ActorRole:  e.ActorRole,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out
}
