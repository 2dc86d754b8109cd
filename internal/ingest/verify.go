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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/internal/storage"
)

// Verifier computes the checksum recorded on a processed submission.
type Verifier interface {
	Checksum(ctx context.Context, s *model.Submission) (string, error)
}

// NewVerifier returns the verifier selected by config.
func NewVerifier(config *Config, blobstore storage.Blobstore) (Verifier, error) {
	switch typ := config.Verifier; typ {
	case VerifierReference:
		return &ReferenceVerifier{}, nil
	case VerifierContent:
		client := &http.Client{Timeout: config.FetchTimeout}
		return NewContentVerifier(client, blobstore, config.MaxPayloadBytes), nil
	default:
		return nil, fmt.Errorf("unknown verifier type: %v", typ)
	}
}

// Compile-time check to assert implementation.
var _ Verifier = (*ReferenceVerifier)(nil)

// ReferenceVerifier hashes the payload URL. It never touches the network.
type ReferenceVerifier struct{}

// Checksum returns the hex SHA-256 of the payload URL.
func (v *ReferenceVerifier) Checksum(_ context.Context, s *model.Submission) (string, error) {
	sum := sha256.Sum256([]byte(s.PayloadURL))
	return hex.EncodeToString(sum[:]), nil
}

// Compile-time check to assert implementation.
var _ Verifier = (*ContentVerifier)(nil)

// ContentVerifier downloads the payload and hashes its bytes. HTTPS payloads
// are fetched with the HTTP client and s3 payloads through the blobstore.
type ContentVerifier struct {
	client    *http.Client
	blobstore storage.Blobstore
	maxBytes  int64
}

// NewContentVerifier creates a verifier that reads at most maxBytes of each
// payload.
func NewContentVerifier(client *http.Client, blobstore storage.Blobstore, maxBytes int64) *ContentVerifier {
	return &ContentVerifier{
		client:    client,
		blobstore: blobstore,
		maxBytes:  maxBytes,
	}
}

// Checksum returns the hex SHA-256 of the payload contents.
func (v *ContentVerifier) Checksum(ctx context.Context, s *model.Submission) (string, error) {
	u, err := url.Parse(s.PayloadURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse payload url: %w", err)
	}

	rc, err := v.open(ctx, u)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	n, err := io.Copy(h, io.LimitReader(rc, v.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	if n > v.maxBytes {
		return "", fmt.Errorf("payload exceeds %d bytes", v.maxBytes)
	}
	if n == 0 {
		return "", fmt.Errorf("payload is empty")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (v *ContentVerifier) open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	switch strings.ToLower(u.Scheme) {
	case "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build payload request: %w", err)
		}

		resp, err := v.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch payload: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch payload: unexpected status %s", resp.Status)
		}
		return resp.Body, nil

	case "s3":
		if v.blobstore == nil {
			return nil, fmt.Errorf("no blobstore configured for s3 payloads")
		}

		rc, err := v.blobstore.GetObject(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch payload: %w", err)
		}
		return rc, nil

	default:
		return nil, fmt.Errorf("unsupported payload scheme %q", u.Scheme)
	}
}
