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

// Package migrate handles the configuration and execution of database migrations
package migrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/trackeo/trackeo-server/pkg/logging"

	// Register the postgres driver and file source.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Commands accepted by Run.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandVersion = "version"
)

// Migration wraps the configuration required to execute a migration against the database.
type Migration struct {
	config *Config
}

// New makes a new, configured Migration.
func New(config *Config) (*Migration, error) {
	switch config.MigrateCommand {
	case CommandUp, CommandDown, CommandVersion:
	default:
		return nil, fmt.Errorf("unknown migrate command %q", config.MigrateCommand)
	}

	if config.Migrations == "" {
		return nil, fmt.Errorf("missing migrations directory")
	}

	return &Migration{
		config: config,
	}, nil
}

// Run executes the configured command against the database.
func (m *Migration) Run(ctx context.Context) (retErr error) {
	logger := logging.FromContext(ctx).Named("migrate")

	dir, err := filepath.Abs(m.config.Migrations)
	if err != nil {
		return fmt.Errorf("failed to resolve migrations directory: %w", err)
	}

	mg, err := migrate.New("file://"+dir, m.config.Database.ConnectionURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate: %w", err)
	}
	defer func() {
		srcErr, dbErr := mg.Close()
		if srcErr != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("migrate source error: %w", srcErr))
		}
		if dbErr != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("migrate database error: %w", dbErr))
		}
	}()

	steps := int(m.config.MigrateSteps)

	switch m.config.MigrateCommand {
	case CommandUp:
		if steps > 0 {
			err = mg.Steps(steps)
		} else {
			err = mg.Up()
		}
	case CommandDown:
		if steps > 0 {
			err = mg.Steps(-steps)
		} else {
			err = mg.Down()
		}
	case CommandVersion:
		// Reported below.
	}

	if err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrate %s: %w", m.config.MigrateCommand, err)
		}
		logger.Infow("no migrations to apply")
	}

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Infow("migrations finished",
		"command", m.config.MigrateCommand,
		"version", version,
		"dirty", dirty)
	return nil
}
