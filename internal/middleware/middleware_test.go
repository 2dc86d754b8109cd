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

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/trackeo/trackeo-server/internal/middleware"
	"github.com/trackeo/trackeo-server/internal/project"
)

var testSecret = []byte("federation-test-secret")

func signToken(tb testing.TB, method jwt.SigningMethod, secret []byte, claims *middleware.Claims) string {
	tb.Helper()

	s, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		tb.Fatal(err)
	}
	return s
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Unix()
	federationUser := middleware.User{ID: 7, Email: "results@caa.test", Role: "federation"}

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{
			name: "missing",
			code: http.StatusUnauthorized,
			body: `{"error":"not authenticated"}`,
		},
		{
			name:   "not_bearer",
			header: "Basic Zm9vOmJhcg==",
			code:   http.StatusUnauthorized,
			body:   `{"error":"not authenticated"}`,
		},
		{
			name:   "garbage",
			header: "Bearer not.a.token",
			code:   http.StatusUnauthorized,
			body:   `{"error":"not authenticated"}`,
		},
		{
			name: "wrong_secret",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"),
				&middleware.Claims{User: federationUser, ExpiresAt: exp}),
			code: http.StatusUnauthorized,
			body: `{"error":"not authenticated"}`,
		},
		{
			name: "wrong_algorithm",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS512, testSecret,
				&middleware.Claims{User: federationUser, ExpiresAt: exp}),
			code: http.StatusUnauthorized,
			body: `{"error":"not authenticated"}`,
		},
		{
			name: "expired",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret,
				&middleware.Claims{User: federationUser, ExpiresAt: time.Now().Add(-time.Minute).Unix()}),
			code: http.StatusUnauthorized,
			body: `{"error":"not authenticated"}`,
		},
		{
			name: "wrong_role",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret,
				&middleware.Claims{User: middleware.User{ID: 3, Email: "fan@trackeo.test", Role: "fan"}, ExpiresAt: exp}),
			code: http.StatusForbidden,
			body: `{"error":"insufficient permissions"}`,
		},
		{
			name: "allowed",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret,
				&middleware.Claims{User: federationUser, ExpiresAt: exp}),
			code: http.StatusOK,
			body: "results@caa.test",
		},
		{
			name: "allowed_mixed_case",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret,
				&middleware.Claims{User: middleware.User{ID: 8, Email: "admin@caa.test", Role: "Federation"}, ExpiresAt: exp}),
			code: http.StatusOK,
			body: "admin@caa.test",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := project.TestContext(t)
			r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				u := middleware.UserFromContext(r.Context())
				if u == nil {
					t.Fatal("expected user on context")
				}
				w.Write([]byte(u.Email))
			})
			middleware.RequireRole(testSecret, "federation")(next).ServeHTTP(w, r)

			if got, want := w.Code, tc.code; got != want {
				t.Errorf("expected %d to be %d", got, want)
			}
			if got, want := strings.TrimSpace(w.Body.String()), tc.body; got != want {
				t.Errorf("expected %q to be %q", got, want)
			}
		})
	}
}

func TestRequireRole_configuredCase(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	token := signToken(t, jwt.SigningMethodHS256, testSecret, &middleware.Claims{
		User:      middleware.User{ID: 7, Email: "results@caa.test", Role: "federation"},
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	middleware.RequireRole(testSecret, "FEDERATION")(next).ServeHTTP(w, r)

	if got, want := w.Code, http.StatusNoContent; got != want {
		t.Errorf("expected %d to be %d", got, want)
	}
}

func TestParseToken(t *testing.T) {
	t.Parallel()

	want := &middleware.User{ID: 11, Email: "coach@trackeo.test", Role: "coach"}
	raw := signToken(t, jwt.SigningMethodHS256, testSecret,
		&middleware.Claims{User: *want, ExpiresAt: time.Now().Add(time.Hour).Unix()})

	got, err := middleware.ParseToken(testSecret, raw)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}

	noExp := signToken(t, jwt.SigningMethodHS256, testSecret, &middleware.Claims{User: *want})
	if _, err := middleware.ParseToken(testSecret, noExp); err == nil {
		t.Errorf("expected token without expiry to be rejected")
	}
}

func TestPopulateRequestID(t *testing.T) {
	t.Parallel()

	known := uuid.New().String()

	cases := []struct {
		name   string
		header string
		check  func(t *testing.T, id string)
	}{
		{
			name: "generated",
			check: func(t *testing.T, id string) {
				if _, err := uuid.Parse(id); err != nil {
					t.Errorf("expected uuid, got %q", id)
				}
			},
		},
		{
			name:   "propagated",
			header: known,
			check: func(t *testing.T, id string) {
				if id != known {
					t.Errorf("expected %q to be %q", id, known)
				}
			},
		},
		{
			name:   "invalid_header_replaced",
			header: "not-a-uuid",
			check: func(t *testing.T, id string) {
				if id == "not-a-uuid" {
					t.Errorf("expected invalid header to be replaced")
				}
			},
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set(middleware.RequestIDHeader, tc.header)
			}
			w := httptest.NewRecorder()

			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = middleware.RequestIDFromContext(r.Context())
			})
			middleware.PopulateRequestID()(next).ServeHTTP(w, r)

			tc.check(t, seen)
			if got := w.Header().Get(middleware.RequestIDHeader); got != seen {
				t.Errorf("expected response header %q to be %q", got, seen)
			}
		})
	}

	if got := middleware.RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)

	m := middleware.Recovery()

	cases := []struct {
		name    string
		handler http.Handler
		code    int
	}{
		{
			name: "default",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
			code: http.StatusOK,
		},
		{
			name: "panic",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("oops")
			}),
			code: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := http.NewRequestWithContext(ctx, http.MethodGet, "/", nil)
			if err != nil {
				t.Fatal(err)
			}

			w := httptest.NewRecorder()

			m(tc.handler).ServeHTTP(w, r)

			if got, want := w.Code, tc.code; got != want {
				t.Errorf("expected %d to be %d", got, want)
			}
		})
	}
}
