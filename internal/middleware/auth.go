// Copyright 2026 the Trackeo Server authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/mux"
	"github.com/trackeo/trackeo-server/pkg/logging"
	"github.com/trackeo/trackeo-server/pkg/render"
)

// contextKeyUser is the unique key in the context where the authenticated
// user is stored.
const contextKeyUser = contextKey("user")

var (
	errNotAuthenticated = errors.New("not authenticated")
	errForbidden        = errors.New("insufficient permissions")
)

// User is the subject of a platform bearer token.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Claims is the claim set of a platform bearer token. The subject is the full
// user object rather than an opaque ID.
type Claims struct {
	User      User  `json:"sub"`
	ExpiresAt int64 `json:"exp"`
}

// Valid implements jwt.Claims. Tokens must carry an expiry and a role.
func (c *Claims) Valid() error {
	if c.ExpiresAt == 0 {
		return fmt.Errorf("token has no expiry")
	}
	if time.Now().Unix() > c.ExpiresAt {
		return fmt.Errorf("token expired")
	}
	if c.User.Role == "" {
		return fmt.Errorf("token subject has no role")
	}
	return nil
}

// RequireRole authenticates the HS256 bearer token on the request and only
// lets through users with one of the given roles, ignoring case. Missing or
// invalid tokens receive a 401 and other roles a 403.
func RequireRole(secret []byte, roles ...string) mux.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(r)] = struct{}{}
	}

	h := render.NewRenderer()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx).Named("middleware.RequireRole")

			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				h.RenderJSON(w, http.StatusUnauthorized, errNotAuthenticated)
				return
			}

			user, err := ParseToken(secret, raw)
			if err != nil {
				logger.Debugw("rejected bearer token", "error", err)
				w.Header().Set("WWW-Authenticate", "Bearer")
				h.RenderJSON(w, http.StatusUnauthorized, errNotAuthenticated)
				return
			}

			if _, ok := allowed[strings.ToLower(user.Role)]; !ok {
				logger.Debugw("role not permitted", "user_id", user.ID, "role", user.Role)
				h.RenderJSON(w, http.StatusForbidden, errForbidden)
				return
			}

			ctx = WithUser(ctx, user)
			r = r.Clone(ctx)

			next.ServeHTTP(w, r)
		})
	}
}

// ParseToken verifies an HS256 token signed with secret and returns its user.
func ParseToken(secret []byte, raw string) (*User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if method, ok := token.Method.(*jwt.SigningMethodHMAC); !ok || method.Name != jwt.SigningMethodHS256.Name {
			return nil, fmt.Errorf("unsupported signing method, must be %v", jwt.SigningMethodHS256.Name)
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("authentication token invalid")
	}

	user := claims.User
	return &user, nil
}

func bearerToken(r *http.Request) (string, bool) {
	v := r.Header.Get("Authorization")
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKeyUser, u)
}

// UserFromContext returns the authenticated user, or nil if the request was
// not authenticated.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKeyUser).(*User)
	return u
}
