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

// This package is the ingestion server that accepts federation result
// submissions and verifies them in the background.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/trackeo/trackeo-server/internal/buildinfo"
	"github.com/trackeo/trackeo-server/internal/bus"
	"github.com/trackeo/trackeo-server/internal/ingest"
	ingestdb "github.com/trackeo/trackeo-server/internal/ingest/database"
	"github.com/trackeo/trackeo-server/internal/setup"
	"github.com/trackeo/trackeo-server/pkg/logging"
	"github.com/trackeo/trackeo-server/pkg/server"
)

// busDrainTimeout bounds how long queued submissions are processed after the
// HTTP server stops. Anything left is resumed on the next start.
const busDrainTimeout = 30 * time.Second

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := logging.NewLoggerFromEnv().
		With("build_id", buildinfo.Server.ID()).
		With("build_tag", buildinfo.Server.Tag())
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		done()
		if r := recover(); r != nil {
			logger.Fatalw("application panic", "panic", r)
		}
	}()

	err := realMain(ctx)
	done()

	if err != nil {
		logger.Fatal(err)
	}
	logger.Info("successful shutdown")
}

func realMain(ctx context.Context) (retErr error) {
	logger := logging.FromContext(ctx)

	var config ingest.Config
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer env.Close(ctx)

	store := ingestdb.New(env.Database())

	verifier, err := ingest.NewVerifier(&config, env.Blobstore())
	if err != nil {
		return fmt.Errorf("ingest.NewVerifier: %w", err)
	}

	// The processor subscribes before anything is published.
	b := bus.New()
	ingest.NewProcessor(store, verifier, b, config.ProcessTimeout)

	cached, err := ingest.NewCachedStore(store, config.FederationCacheDuration)
	if err != nil {
		return fmt.Errorf("ingest.NewCachedStore: %w", err)
	}
	svc := ingest.NewService(cached, b, config.AllowedPayloadSchemes)

	if config.ResumeUnfinished {
		if _, err := svc.ResumeUnfinished(ctx); err != nil {
			return fmt.Errorf("failed to resume unfinished submissions: %w", err)
		}
	}

	// The bus outlives the signal context so that it can drain after the HTTP
	// server has stopped accepting submissions.
	busCtx := logging.WithLogger(context.Background(), logger)
	if err := b.Start(busCtx); err != nil {
		return fmt.Errorf("failed to start bus: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(busCtx, busDrainTimeout)
		defer cancel()

		logger.Infow("draining bus", "pending", b.Len())
		if err := b.Stop(stopCtx); err != nil {
			retErr = multierror.Append(retErr, fmt.Errorf("failed to stop bus: %w", err)).ErrorOrNil()
		}
	}()

	ingestServer, err := ingest.NewServer(&config, env, svc)
	if err != nil {
		return fmt.Errorf("ingest.NewServer: %w", err)
	}

	srv, err := server.New(config.Port)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	logger.Infow("server listening", "port", config.Port)

	return srv.ServeHTTPHandler(ctx, ingestServer.Routes(ctx))
}
