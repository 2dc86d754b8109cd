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

// Package main provides a utility that bootstraps the database with
// federations and their ingest tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/trackeo/trackeo-server/internal/buildinfo"
	"github.com/trackeo/trackeo-server/internal/ingest"
	ingestdb "github.com/trackeo/trackeo-server/internal/ingest/database"
	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/internal/project"
	"github.com/trackeo/trackeo-server/internal/setup"
	"github.com/trackeo/trackeo-server/pkg/database"
	"github.com/trackeo/trackeo-server/pkg/logging"
)

var (
	flagName          = flag.String("federation", "", "Name of a single federation to provision instead of the sample data.")
	flagCountry       = flag.String("country", "", "Country or region of the federation.")
	flagWebsite       = flag.String("website", "", "Website of the federation.")
	flagToken         = flag.String("token", "", "Ingest token for the federation. Only its hash is stored.")
	flagGenerateToken = flag.Bool("generate-token", false, "Generate a random ingest token and print it once.")
)

// seedFederation is a federation plus the plaintext token to provision, if
// any.
type seedFederation struct {
	Name    string
	Country string
	Website string
	Token   string
}

// sampleFederations are used for local development and demos.
var sampleFederations = []*seedFederation{
	{
		Name:    "Confederación Sudamericana de Atletismo",
		Country: "South America",
		Website: "https://consudatle.org",
	},
	{
		Name:    "Brazilian Athletics Confederation",
		Country: "Brazil",
		Website: "https://www.cbat.org.br",
	},
	{
		Name:    "Confederación Andina de Atletismo",
		Country: "Andean Community",
		Website: "https://caa.example.org",
		Token:   "caa-demo-token",
	},
}

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := logging.NewLoggerFromEnv().Named("tools.seed").
		With("build_id", buildinfo.Server.ID()).
		With("build_tag", buildinfo.Server.Tag())
	ctx = logging.WithLogger(ctx, logger)

	flag.Parse()

	err := realMain(ctx)
	done()

	if err != nil {
		logger.Fatal(err)
	}
}

func realMain(ctx context.Context) error {
	federations, token, err := federationsFromFlags()
	if err != nil {
		return err
	}

	var config database.Config
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("failed to setup database: %w", err)
	}
	defer env.Close(ctx)

	if _, err := seed(ctx, ingestdb.New(env.Database()), federations); err != nil {
		return err
	}

	if *flagGenerateToken {
		fmt.Printf("ingest token for %q (store it now, it is not shown again): %s\n", federations[0].Name, token)
	}
	return nil
}

// federationsFromFlags returns the federations to provision and, when one was
// generated, the plaintext token.
func federationsFromFlags() ([]*seedFederation, string, error) {
	if *flagName == "" {
		if *flagToken != "" || *flagGenerateToken {
			return nil, "", fmt.Errorf("-token and -generate-token require -federation")
		}
		return sampleFederations, "", nil
	}

	if *flagToken != "" && *flagGenerateToken {
		return nil, "", fmt.Errorf("-token and -generate-token are mutually exclusive")
	}

	token := *flagToken
	if *flagGenerateToken {
		generated, err := project.RandomToken(32)
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate token: %w", err)
		}
		token = generated
	}

	return []*seedFederation{
		{
			Name:    *flagName,
			Country: *flagCountry,
			Website: *flagWebsite,
			Token:   token,
		},
	}, token, nil
}

// seed adds every federation that does not exist yet and returns how many were
// created. Existing federations are left untouched, and requesting a token that
// differs from an existing federation's is an error.
func seed(ctx context.Context, registry ingest.FederationRegistry, federations []*seedFederation) (int, error) {
	logger := logging.FromContext(ctx)

	created := 0
	for _, sf := range federations {
		if existing, err := registry.GetFederationByName(ctx, sf.Name); err == nil {
			if project.TrimSpace(sf.Token) != "" && existing.IngestTokenHash != model.HashIngestToken(sf.Token) {
				return created, fmt.Errorf("federation %q already exists with a different ingest token, token not stored", sf.Name)
			}
			logger.Infow("federation exists, skipping", "federation", sf.Name)
			continue
		} else if !errors.Is(err, database.ErrNotFound) {
			return created, fmt.Errorf("failed to look up federation %q: %w", sf.Name, err)
		}

		f := &model.Federation{
			Name:    sf.Name,
			Country: sf.Country,
			Website: sf.Website,
		}
		if project.TrimSpace(sf.Token) != "" {
			f.IngestTokenHash = model.HashIngestToken(sf.Token)
		}

		if err := registry.AddFederation(ctx, f); err != nil {
			return created, fmt.Errorf("failed to create federation %q: %w", sf.Name, err)
		}
		created++
		logger.Infow("created federation",
			"federation", f.Name,
			"id", f.ID,
			"secure_uploads", f.AcceptsSecureUploads())
	}
	return created, nil
}
