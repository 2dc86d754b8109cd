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

// This package is used to apply database migrations
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	"github.com/trackeo/trackeo-server/internal/buildinfo"
	"github.com/trackeo/trackeo-server/internal/migrate"
	"github.com/trackeo/trackeo-server/pkg/logging"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := logging.NewLoggerFromEnv().Named("migrate").
		With("build_id", buildinfo.Server.ID()).
		With("build_tag", buildinfo.Server.Tag())
	ctx = logging.WithLogger(ctx, logger)

	err := realMain(ctx)
	done()

	if err != nil {
		logger.Fatal(err)
	}
}

func realMain(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	// The database connection is owned by golang-migrate, so the config is
	// processed directly instead of through setup.
	var config migrate.Config
	if err := envconfig.Process(ctx, &config); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}

	m, err := migrate.New(&config)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}

	logger.Infow("beginning migration", "command", config.MigrateCommand, "database", config.Database.String())

	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("migrate.Run: %w", err)
	}

	logger.Infow("migration completed")
	return nil
}
