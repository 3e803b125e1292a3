package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/utils"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Claims is the bearer token payload. Sub is the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the actor. Used by operators and tests;
// the service itself only verifies.
func IssueToken(secret, issuer string, actor entity.Actor, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseActor validates the token and returns the actor it names. The system
// role is never accepted from a caller.
func ParseActor(secret, issuer, tokenStr string) (entity.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return entity.Actor{}, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return entity.Actor{}, errors.New("invalid token")
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return entity.Actor{}, fmt.Errorf("subject: %w", err)
	}
	role := entity.ActorRole(c.Role)
	if !role.Valid() || role == entity.RoleSystem {
		return entity.Actor{}, fmt.Errorf("role %q not allowed", c.Role)
	}
	return entity.Actor{ID: id, Role: role}, nil
}

// Auth resolves the bearer token into an actor on the request context.
func Auth(secret, issuer string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			actor, err := ParseActor(secret, issuer, parts[1])
			if err != nil {
				logger.Warn("Rejected bearer token", zap.Error(err), zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.SetActorContext(r.Context(), actor)))
		})
	}
}

// RequireRole lets the request through only for the given roles. Auth must
// run first.
func RequireRole(logger *zap.Logger, roles ...entity.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := utils.GetActorFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.Warn("Role check failed",
				zap.String("actor_id", actor.ID.String()),
				zap.String("role", string(actor.Role)),
				zap.String("path", r.URL.Path))
			utils.ResponseForbidden(w, "Insufficient role")
		})
	}
}
