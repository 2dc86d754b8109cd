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

// Package serverenv defines common parameters for the sever environment.
package serverenv

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/trackeo/trackeo-server/internal/storage"
	"github.com/trackeo/trackeo-server/pkg/database"
	"github.com/trackeo/trackeo-server/pkg/observability"
)

// ServerEnv represents latent environment configuration for servers in this application.
type ServerEnv struct {
	blobstore             storage.Blobstore
	database              *database.DB
	observabilityExporter observability.Exporter
}

// Option defines function types to modify the ServerEnv on creation.
type Option func(*ServerEnv) *ServerEnv

// New creates a new ServerEnv with the requested options.
func New(ctx context.Context, opts ...Option) *ServerEnv {
	env := &ServerEnv{}

	for _, f := range opts {
		env = f(env)
	}

	return env
}

// WithBlobStorage creates an Option to install a specific Blobstore instance.
func WithBlobStorage(bs storage.Blobstore) Option {
	return func(s *ServerEnv) *ServerEnv {
		s.blobstore = bs
		return s
	}
}

// WithDatabase attached a database to the environment.
func WithDatabase(db *database.DB) Option {
	return func(s *ServerEnv) *ServerEnv {
		s.database = db
		return s
	}
}

// WithObservabilityExporter creates an Option to install a specific
// observability exporter system.
func WithObservabilityExporter(oe observability.Exporter) Option {
	return func(s *ServerEnv) *ServerEnv {
		s.observabilityExporter = oe
		return s
	}
}

func (s *ServerEnv) Blobstore() storage.Blobstore {
	return s.blobstore
}

func (s *ServerEnv) Database() *database.DB {
	return s.database
}

func (s *ServerEnv) ObservabilityExporter() observability.Exporter {
	return s.observabilityExporter
}

// Close shuts down the server env, closing database connections, etc.
func (s *ServerEnv) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var result *multierror.Error

	if s.database != nil {
		s.database.Close(ctx)
	}

	if s.observabilityExporter != nil {
		if err := s.observabilityExporter.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close observability exporter: %w", err))
		}
	}

	return result.ErrorOrNil()
}
