package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"vitalwatch/internal/models"
)

// Actor headers. They select a read scope; they do not authenticate.
const (
	ActorRoleHeader = "X-Actor-Role"
	ActorIDHeader   = "X-Actor-ID"
	ActorNameHeader = "X-Actor-Name"
)

// Actor is the caller described by the actor headers, with the scope their
// role grants.
type Actor struct {
	ID    string
	Name  string
	Role  models.Role
	Scope models.Scope
}

// ScopeResolver maps a role and actor id to a read scope.
type ScopeResolver func(role models.Role, actorID string) (models.Scope, error)

// Scope reads the actor headers and stores the resolved Actor in the request
// context. A request without a role acts as admin.
func Scope(resolve ScopeResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := models.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(ActorRoleHeader))))
			if role == "" {
				role = models.RoleAdmin
			}
			actor := Actor{
				ID:   strings.TrimSpace(r.Header.Get(ActorIDHeader)),
				Name: strings.TrimSpace(r.Header.Get(ActorNameHeader)),
				Role: role,
			}

			scope, err := resolve(role, actor.ID)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   err.Error(),
				})
				return
			}
			actor.Scope = scope

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

// ActorFrom returns the actor stored by Scope. Without one it returns an
// unscoped admin.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey).(Actor); ok {
		return a
	}
	return Actor{Role: models.RoleAdmin, Scope: models.AllPatients()}
}
