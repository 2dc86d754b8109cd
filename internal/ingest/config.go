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

// Package ingest accepts federation result submissions, queues them on the
// in-process bus, and verifies them in the background.
package ingest

import (
	"time"

	"github.com/trackeo/trackeo-server/internal/storage"
	"github.com/trackeo/trackeo-server/pkg/database"
	"github.com/trackeo/trackeo-server/pkg/observability"
)

// VerifierType selects how the processor computes a submission checksum.
type VerifierType string

const (
	// VerifierReference hashes the payload URL itself.
	VerifierReference VerifierType = "REFERENCE"

	// VerifierContent fetches the payload and hashes its bytes.
	VerifierContent VerifierType = "CONTENT"
)

// Config represents the configuration and associated environment variables
// for the ingestion server.
type Config struct {
	Database      database.Config
	Blobstore     storage.Config
	Observability observability.Config

	Port string `env:"PORT, default=8080"`

	// AllowedPayloadSchemes are the URL schemes accepted for payload_url.
	AllowedPayloadSchemes []string `env:"ALLOWED_PAYLOAD_SCHEMES, default=https,s3"`

	// ResumeUnfinished republishes queued and processing submissions on
	// startup.
	ResumeUnfinished bool `env:"RESUME_UNFINISHED, default=true"`

	// ProcessTimeout bounds a single delivery. Zero means no timeout.
	ProcessTimeout time.Duration `env:"PROCESS_TIMEOUT, default=0"`

	Verifier        VerifierType  `env:"VERIFIER, default=REFERENCE"`
	MaxPayloadBytes int64         `env:"MAX_PAYLOAD_BYTES, default=52428800"`
	FetchTimeout    time.Duration `env:"PAYLOAD_FETCH_TIMEOUT, default=30s"`

	// TokenSigningSecret verifies platform bearer tokens on read routes.
	TokenSigningSecret string `env:"TOKEN_SIGNING_SECRET, required"`

	MaxBodyBytes int64 `env:"MAX_BODY_BYTES, default=64000"`

	// FederationCacheDuration is how long federation lookups are cached. Zero
	// disables the cache.
	FederationCacheDuration time.Duration `env:"FEDERATION_CACHE_DURATION, default=1m"`

	// Maintenance rejects new submissions with a retryable error.
	Maintenance bool `env:"MAINTENANCE_MODE, default=false"`
}

func (c *Config) MaintenanceMode() bool {
	return c.Maintenance
}

func (c *Config) DatabaseConfig() *database.Config {
	return &c.Database
}

func (c *Config) BlobstoreConfig() *storage.Config {
	return &c.Blobstore
}

func (c *Config) ObservabilityExporterConfig() *observability.Config {
	return &c.Observability
}
