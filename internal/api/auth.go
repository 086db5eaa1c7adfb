package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hackgods/hospital-portal-scheduling/internal/policy"
)

// Claims carries the portal role next to the standard claims. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type JWTConfig struct {
	Secret []byte
	Issuer string
}

// NewToken signs an HS256 bearer token for actor.
func NewToken(cfg JWTConfig, actor policy.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// ParseToken validates tokenStr and returns the actor it names.
func ParseToken(cfg JWTConfig, tokenStr string) (policy.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return policy.Actor{}, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return policy.Actor{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}

	role := policy.Role(claims.Role)
	switch role {
	case policy.RolePatient, policy.RoleAdmin, policy.RoleStaff:
	default:
		return policy.Actor{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return policy.Actor{UserID: userID, Role: role}, nil
}

// AuthMiddleware resolves the bearer token into a policy.Actor on the request context.
func AuthMiddleware(cfg JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization format")
				return
			}

			actor, err := ParseToken(cfg, strings.TrimSpace(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(policy.WithActor(r.Context(), actor)))
		})
	}
}

func actorFrom(r *http.Request) policy.Actor {
	actor, _ := policy.ActorFromContext(r.Context())
	return actor
}
