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

// Package setup provides common logic for configuring the various services.
package setup

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
	"github.com/trackeo/trackeo-server/internal/serverenv"
	"github.com/trackeo/trackeo-server/internal/storage"
	"github.com/trackeo/trackeo-server/pkg/database"
	"github.com/trackeo/trackeo-server/pkg/logging"
	"github.com/trackeo/trackeo-server/pkg/observability"
)

// BlobstoreConfigProvider provides the information about current storage
// configuration.
type BlobstoreConfigProvider interface {
	BlobstoreConfig() *storage.Config
}

// DatabaseConfigProvider ensures that the environment config can provide a DB config.
// All binaries in this application connect to the database via the same method.
type DatabaseConfigProvider interface {
	DatabaseConfig() *database.Config
}

// ObservabilityExporterConfigProvider signals that the config knows how to configure an
// observability exporter.
type ObservabilityExporterConfigProvider interface {
	ObservabilityExporterConfig() *observability.Config
}

// Setup runs common initialization code for all servers. See SetupWith.
func Setup(ctx context.Context, config interface{}) (*serverenv.ServerEnv, error) {
	return SetupWith(ctx, config, envconfig.OsLookuper())
}

// SetupWith processes the given configuration using envconfig. It is
// responsible for establishing database connections, the blobstore, and the
// observability exporter, depending on which provider interfaces config
// implements. The caller must call env.Close when finished.
func SetupWith(ctx context.Context, config interface{}, l envconfig.Lookuper) (*serverenv.ServerEnv, error) {
	logger := logging.FromContext(ctx)

	if err := envconfig.ProcessWith(ctx, config, l); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}
	logger.Infow("provided", "config", config)

	var serverEnvOpts []serverenv.Option

	if provider, ok := config.(ObservabilityExporterConfigProvider); ok {
		logger.Infow("configuring observability exporter")

		oeConfig := provider.ObservabilityExporterConfig()
		oe, err := observability.NewFromEnv(oeConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to create ObservabilityExporter provider: %w", err)
		}
		if err := oe.StartExporter(ctx); err != nil {
			return nil, fmt.Errorf("error initializing observability exporter: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, serverenv.WithObservabilityExporter(oe))
		logger.Infow("observability exporter", "config", oeConfig)
	}

	if provider, ok := config.(BlobstoreConfigProvider); ok {
		logger.Infow("configuring blobstore")

		blobstore, err := storage.BlobstoreFor(ctx, provider.BlobstoreConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to connect to storage system: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, serverenv.WithBlobStorage(blobstore))
		logger.Infow("blobstore", "config", provider.BlobstoreConfig())
	}

	if provider, ok := config.(DatabaseConfigProvider); ok {
		logger.Infow("configuring database")

		dbConfig := provider.DatabaseConfig()
		db, err := database.NewFromEnv(ctx, dbConfig)
		if err != nil {
			env := serverenv.New(ctx, serverEnvOpts...)
			if cerr := env.Close(ctx); cerr != nil {
				logger.Errorw("failed to close partial environment", "error", cerr)
			}
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, serverenv.WithDatabase(db))
		logger.Infow("database", "config", dbConfig)
	}

	return serverenv.New(ctx, serverEnvOpts...), nil
}
