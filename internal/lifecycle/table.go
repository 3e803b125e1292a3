// Package lifecycle holds the transition tables for bookings, escrow holds
// and rectifications. Every legality check in the engine goes through here;
// pairs missing from a table are illegal.
package lifecycle

import (
	"service-engagement/internal/data/entity"
	"service-engagement/pkg/apperr"
)

// Rule is one edge of a table. Roles lists who may issue the command;
// an empty Roles permits any actor.
type Rule[S ~string] struct {
	To    S
	Roles []entity.ActorRole
}

func (r Rule[S]) Permits(role entity.ActorRole) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

type Table[S ~string, C ~string] map[S]map[C]Rule[S]

func (t Table[S, C]) Next(from S, cmd C) (Rule[S], bool) {
	edges, ok := t[from]
	if !ok {
		return Rule[S]{}, false
	}
	rule, ok := edges[cmd]
	return rule, ok
}

// Check resolves the target state for cmd issued by role from state from.
func (t Table[S, C]) Check(op string, from S, cmd C, role entity.ActorRole) (S, error) {
	rule, ok := t.Next(from, cmd)
	if !ok {
		var zero S
		return zero, apperr.InvalidTransition(op, "%s is not allowed from %s", cmd, from)
	}
	if !rule.Permits(role) {
		var zero S
		return zero, apperr.Forbidden(op, "%s may not %s", role, cmd)
	}
	return rule.To, nil
}

// Commands lists the commands legal from a state, in no particular order.
func (t Table[S, C]) Commands(from S) []C {
	edges := t[from]
	out := make([]C, 0, len(edges))
	for c := range edges {
		out = append(out, c)
	}
	return out
}

func roles(r ...entity.ActorRole) []entity.ActorRole { return r }
