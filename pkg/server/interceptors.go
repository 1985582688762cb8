// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// UserIDHeader is the HTTP header carrying the caller's identity when no
// bearer token is configured.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDContextKey contextKey = "user_id"

// ContextWithUserID returns a copy of ctx carrying id.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}

// UserIDFromContext returns the id stashed by ContextWithUserID, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}

// UserIDConfig controls the behavior of UserIDMiddleware. Authentication is
// explicitly out of scope for the query pipeline itself; this middleware
// only threads a caller identity through to the access log.
type UserIDConfig struct {
	// RequireUserID rejects requests missing both the header and a valid
	// bearer token with 401 Unauthorized.
	RequireUserID bool

	// DefaultUserID is used when RequireUserID is false and no identity was
	// presented. Falls back to "default-user" if empty.
	DefaultUserID string

	Logger *zap.Logger
}

// UserIDMiddleware extracts a caller identity from X-User-ID or a JWT bearer
// token and stores it in the request context for downstream handlers and
// logging.
func UserIDMiddleware(cfg UserIDConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := userIDFromRequest(r)
			if id == "" {
				if cfg.RequireUserID {
					http.Error(w, "X-User-ID or bearer token required", http.StatusUnauthorized)
					return
				}
				id = cfg.DefaultUserID
				if id == "" {
					id = "default-user"
				}
				logger.Debug("server: no caller identity presented, using default", zap.String("user_id", id))
			}
			ctx := ContextWithUserID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(UserIDHeader); id != "" {
		return id
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	raw := strings.TrimPrefix(auth, "Bearer ")
	claims := jwt.MapClaims{}
	// Unverified: identity here is for request logging, not access control.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return ""
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}
