package entity

import "github.com/google/uuid"

type ActorRole string

const (
	RoleClient   ActorRole = "client"
	RoleProvider ActorRole = "provider"
	RoleAdmin    ActorRole = "admin"
	RoleSystem   ActorRole = "system"
)

func (r ActorRole) Valid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is the explicit credential passed with every command.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role ActorRole `json:"role"`
}

func SystemActor() Actor {
	return Actor{ID: uuid.Nil, Role: RoleSystem}
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsSystem() bool { return a.Role == RoleSystem }
