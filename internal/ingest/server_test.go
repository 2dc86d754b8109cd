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

package ingest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/go-cmp/cmp"
	"github.com/trackeo/trackeo-server/internal/bus"
	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/internal/middleware"
	"github.com/trackeo/trackeo-server/internal/project"
	"github.com/trackeo/trackeo-server/internal/serverenv"
)

const testSigningSecret = "platform-signing-secret"

func testConfig() *Config {
	return &Config{
		AllowedPayloadSchemes: testSchemes,
		TokenSigningSecret:    testSigningSecret,
		MaxBodyBytes:          64_000,
	}
}

func testBearer(tb testing.TB, role string) string {
	tb.Helper()

	claims := &middleware.Claims{
		User: middleware.User{
			ID:    7,
			Email: "official@trackeo.test",
			Role:  role,
		},
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningSecret))
	if err != nil {
		tb.Fatal(err)
	}
	return "Bearer " + signed
}

func newTestServer(tb testing.TB, pub Publisher) (*httptest.Server, *MemoryStore) {
	tb.Helper()

	ctx := project.TestContext(tb)
	store := newTestStore(tb)
	svc := NewService(store, pub, testSchemes)

	s, err := NewServer(testConfig(), serverenv.New(ctx), svc)
	if err != nil {
		tb.Fatal(err)
	}

	srv := httptest.NewServer(s.Routes(ctx))
	tb.Cleanup(srv.Close)
	return srv, store
}

func doJSON(tb testing.TB, method, url, auth string, body interface{}) (*http.Response, map[string]interface{}) {
	tb.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			tb.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		tb.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		tb.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.Header.Get("Content-Type") == "application/json" {
		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			tb.Fatal(err)
		}
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			if err := json.Unmarshal(raw, &out); err != nil {
				tb.Fatal(err)
			}
		}
	}
	return resp, out
}

func submissionBody(token string) map[string]interface{} {
	return map[string]interface{}{
		"federation_name": testFederationName,
		"contact_email":   "results@caa.example.org",
		"payload_url":     testPayloadURL,
		"notes":           "Final results, day 2",
		"access_token":    token,
	}
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	svc := NewService(NewMemoryStore(), &recordingPublisher{}, testSchemes)

	if _, err := NewServer(testConfig(), serverenv.New(ctx), nil); err == nil {
		t.Errorf("expected error for missing service")
	}
	if _, err := NewServer(&Config{}, serverenv.New(ctx), svc); err == nil {
		t.Errorf("expected error for missing signing secret")
	}
	if _, err := NewServer(testConfig(), serverenv.New(ctx), svc); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServer_submit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   map[string]interface{}
		code   int
		errMsg string
		errs   []string
	}{
		{
			name: "accepted",
			body: submissionBody(testToken),
			code: http.StatusAccepted,
		},
		{
			name:   "wrong_token",
			body:   submissionBody("wrong-token"),
			code:   http.StatusBadRequest,
			errMsg: "Invalid federation access token",
		},
		{
			name: "http_payload",
			body: func() map[string]interface{} {
				b := submissionBody(testToken)
				b["payload_url"] = "http://data.trackeo.test/results.json"
				return b
			}(),
			code:   http.StatusBadRequest,
			errMsg: "Payload URL must be HTTPS or signed storage URL",
		},
		{
			name: "missing_host",
			body: func() map[string]interface{} {
				b := submissionBody(testToken)
				b["payload_url"] = "s3:///results.json"
				return b
			}(),
			code:   http.StatusBadRequest,
			errMsg: "Payload URL must include a host",
		},
		{
			name:   "missing_token",
			body:   submissionBody(""),
			code:   http.StatusBadRequest,
			errMsg: "Federation access token is required",
		},
		{
			name: "unregistered_federation",
			body: func() map[string]interface{} {
				b := submissionBody(testToken)
				b["federation_name"] = unprovisionedFederationName
				return b
			}(),
			code:   http.StatusBadRequest,
			errMsg: "Federation not registered for secure uploads",
		},
		{
			name: "field_errors",
			body: func() map[string]interface{} {
				b := submissionBody(testToken)
				delete(b, "contact_email")
				b["federation_name"] = "CA"
				return b
			}(),
			code: http.StatusBadRequest,
			errs: []string{
				"federation_name must be at least 3 characters",
				"contact_email is required",
			},
		},
		{
			name: "unknown_field",
			body: func() map[string]interface{} {
				b := submissionBody(testToken)
				b["priority"] = "high"
				return b
			}(),
			code:   http.StatusBadRequest,
			errMsg: `unknown field "priority"`,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pub := &recordingPublisher{}
			srv, store := newTestServer(t, pub)

			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/federations/submissions", "", tc.body)
			if resp.StatusCode != tc.code {
				t.Fatalf("expected status %d to be %d: %v", resp.StatusCode, tc.code, body)
			}

			if tc.code != http.StatusAccepted {
				if tc.errMsg != "" {
					if got := body["error"]; got != tc.errMsg {
						t.Errorf("expected error %q to be %q", got, tc.errMsg)
					}
				}
				if tc.errs != nil {
					var got []string
					list, _ := body["errors"].([]interface{})
					for _, v := range list {
						got = append(got, v.(string))
					}
					if diff := cmp.Diff(tc.errs, got); diff != "" {
						t.Errorf("mismatch (-want, +got):\n%s", diff)
					}
				}

				list, err := store.ListSubmissions(project.TestContext(t))
				if err != nil {
					t.Fatal(err)
				}
				if len(list) != 0 {
					t.Errorf("expected rejected submission not to be stored")
				}
				return
			}

			if got, want := body["status"], "queued"; got != want {
				t.Errorf("expected status %q to be %q", got, want)
			}
			if got, want := body["federation_name"], testFederationName; got != want {
				t.Errorf("expected federation_name %q to be %q", got, want)
			}
			for _, key := range []string{"checksum", "verified_at", "processed_at"} {
				if v, ok := body[key]; !ok || v != nil {
					t.Errorf("expected %s to be null, got %v", key, v)
				}
			}
			if _, ok := body["access_token"]; ok {
				t.Errorf("access token must not be echoed")
			}
			if _, ok := body["submitted_at"]; !ok {
				t.Errorf("expected submitted_at in response")
			}
			if len(pub.Published()) != 1 {
				t.Errorf("expected one published submission, got %v", pub.Published())
			}
		})
	}
}

func TestServer_submit_contentType(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &recordingPublisher{})

	resp, err := http.Post(srv.URL+"/api/v1/federations/submissions", "text/plain",
		strings.NewReader(`{"federation_name":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got, want := resp.StatusCode, http.StatusUnsupportedMediaType; got != want {
		t.Errorf("expected status %d to be %d", got, want)
	}
}

func TestServer_list(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		auth string
		code int
	}{
		{
			name: "no_token",
			code: http.StatusUnauthorized,
		},
		{
			name: "garbage_token",
			auth: "Bearer not-a-jwt",
			code: http.StatusUnauthorized,
		},
		{
			name: "wrong_role",
			auth: testBearer(t, "athlete"),
			code: http.StatusForbidden,
		},
		{
			name: "federation_role",
			auth: testBearer(t, RoleFederation),
			code: http.StatusOK,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t, &recordingPublisher{})

			resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/federations/submissions", "", submissionBody(testToken))
			if resp.StatusCode != http.StatusAccepted {
				t.Fatalf("expected status %d to be %d", resp.StatusCode, http.StatusAccepted)
			}

			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/federations/submissions", nil)
			if err != nil {
				t.Fatal(err)
			}
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}

			resp, err = http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.code {
				t.Fatalf("expected status %d to be %d", resp.StatusCode, tc.code)
			}
			if tc.code != http.StatusOK {
				return
			}

			var list []*model.Submission
			if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
				t.Fatal(err)
			}
			if len(list) != 1 {
				t.Fatalf("expected 1 submission, got %d", len(list))
			}
			if got, want := list[0].Status, model.StatusQueued; got != want {
				t.Errorf("expected status %q to be %q", got, want)
			}
		})
	}
}

func TestServer_health(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &recordingPublisher{})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d to be %d", resp.StatusCode, http.StatusOK)
	}
	if got, want := body["status"], "ok"; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Errorf("expected a request id header")
	}
}

func TestServer_methodNotAllowed(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &recordingPublisher{})

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/federations/submissions", "", nil)
	if got, want := resp.StatusCode, http.StatusMethodNotAllowed; got != want {
		t.Errorf("expected status %d to be %d", got, want)
	}
}

func TestServer_maintenance(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	store := newTestStore(t)
	pub := &recordingPublisher{}

	config := testConfig()
	config.Maintenance = true

	s, err := NewServer(config, serverenv.New(ctx), NewService(store, pub, testSchemes))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.Routes(ctx))
	t.Cleanup(srv.Close)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/federations/submissions", "", submissionBody(testToken))
	if got, want := resp.StatusCode, http.StatusTooManyRequests; got != want {
		t.Fatalf("expected status %d to be %d", got, want)
	}
	if got, want := resp.Header.Get("Retry-After"), "60"; got != want {
		t.Errorf("expected retry-after %q to be %q", got, want)
	}
	if got, want := body["error"], "please try again later"; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}

	list, err := store.ListSubmissions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected no submissions in maintenance mode, got %d", len(list))
	}

	// Reads stay available.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/federations/submissions", testBearer(t, RoleFederation), nil)
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		t.Errorf("expected status %d to be %d", got, want)
	}
}

func TestServer_endToEnd(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)

	b := bus.New()
	srv, store := newTestServer(t, b)
	NewProcessor(store, &ReferenceVerifier{}, b, 0)

	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/federations/submissions", "", submissionBody(testToken))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d to be %d: %v", resp.StatusCode, http.StatusAccepted, body)
	}
	if got, want := body["status"], "queued"; got != want {
		t.Errorf("expected status %q to be %q", got, want)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/federations/submissions", "", submissionBody("wrong-token"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d to be %d: %v", resp.StatusCode, http.StatusBadRequest, body)
	}

	if err := b.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/federations/submissions", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", testBearer(t, RoleFederation))

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var list []*model.Submission
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(list))
	}

	got := list[0]
	if got.Status != model.StatusProcessed {
		t.Errorf("expected status %q to be %q", got.Status, model.StatusProcessed)
	}
	if got.Checksum == nil || got.VerifiedAt == nil {
		t.Errorf("expected checksum and verified_at on processed submission")
	}
	if got.StatusDetails == nil || *got.StatusDetails != model.ProcessedDetails {
		t.Errorf("expected details %q, got %v", model.ProcessedDetails, got.StatusDetails)
	}
}
