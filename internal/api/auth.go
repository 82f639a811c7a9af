package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/directory"
)

const actorKey contextKey = "actor"

var errInvalidToken = errors.New("invalid token")

// IssueToken signs an HS256 access token whose subject is the user id.
func IssueToken(secret []byte, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

// ParseToken verifies the token and returns its subject.
func ParseToken(secret []byte, raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, errInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", errInvalidToken)
	}
	return id, nil
}

// Authenticator resolves a token subject to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, id uuid.UUID) (*directory.User, error)
}

// AuthMiddleware requires a bearer token and stores the caller as the
// request actor.
func AuthMiddleware(secret []byte, authn Authenticator, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "", "missing or malformed authorization header")
				return
			}

			userID, err := ParseToken(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "", "invalid token")
				return
			}

			user, err := authn.Authenticate(r.Context(), userID)
			if err != nil {
				if errors.Is(err, directory.ErrUserNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized", "", "unknown or inactive user")
					return
				}
				log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("authenticate user")
				writeError(w, http.StatusInternalServerError, "internal_error", "", "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, user.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the authenticated caller.
func ActorFromContext(ctx context.Context) (directory.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(directory.Actor)
	return actor, ok
}
