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

// Package database is a database interface to federations and their result
// submissions.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trackeo/trackeo-server/internal/ingest"
	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/pkg/database"

	pgx "github.com/jackc/pgx/v4"
)

// Compile-time check to assert implementation.
var _ ingest.Store = (*IngestDB)(nil)

// IngestDB is a handle to database operations for federations and
// submissions.
type IngestDB struct {
	db *database.DB
}

// New creates a new IngestDB that wraps a raw database handle.
func New(db *database.DB) *IngestDB {
	return &IngestDB{
		db: db,
	}
}

const submissionColumns = `
	id, federation_id, federation_name, contact_email, payload_url, notes,
	status, status_details, created_at, processed_at, verified_at, checksum`

// AddFederation inserts a federation and sets its ID.
func (i *IngestDB) AddFederation(ctx context.Context, f *model.Federation) error {
	return i.db.InTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO
				federations
				(name, country, website, ingest_token_hash)
			VALUES
				($1, $2, $3, $4)
			RETURNING id
		`, f.Name, database.NullableString(f.Country), database.NullableString(f.Website),
			database.NullableString(f.IngestTokenHash))

		if err := row.Scan(&f.ID); err != nil {
			return fmt.Errorf("inserting federation: %w", err)
		}
		return nil
	})
}

// GetFederationByName returns the federation with exactly the given name, or
// database.ErrNotFound.
func (i *IngestDB) GetFederationByName(ctx context.Context, name string) (*model.Federation, error) {
	conn, err := i.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
		SELECT
			id, name, country, website, ingest_token_hash
		FROM
			federations
		WHERE
			name = $1
	`, name)

	f, err := scanOneFederation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("scanning federation: %w", err)
	}
	return f, nil
}

// ListFederations returns all federations ordered by name.
func (i *IngestDB) ListFederations(ctx context.Context) ([]*model.Federation, error) {
	conn, err := i.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT
			id, name, country, website, ingest_token_hash
		FROM
			federations
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing federations: %w", err)
	}
	defer rows.Close()

	federations := make([]*model.Federation, 0)
	for rows.Next() {
		f, err := scanOneFederation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning federation: %w", err)
		}
		federations = append(federations, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing federations: %w", err)
	}
	return federations, nil
}

// InsertSubmission persists s and sets its ID and CreatedAt. The status
// defaults to queued.
func (i *IngestDB) InsertSubmission(ctx context.Context, s *model.Submission) error {
	if s.Status == "" {
		s.Status = model.StatusQueued
	}
	if !s.Status.Valid() {
		return fmt.Errorf("invalid status %q", s.Status)
	}

	return i.db.InTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO
				federation_submissions
				(federation_id, federation_name, contact_email, payload_url, notes,
				status, status_details, processed_at, verified_at, checksum)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at
		`, s.FederationID, s.FederationName, s.ContactEmail, s.PayloadURL, s.Notes,
			string(s.Status), s.StatusDetails, s.ProcessedAt, s.VerifiedAt, s.Checksum)

		if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
			return fmt.Errorf("inserting submission: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		return nil
	})
}

// GetSubmission returns the submission with the given ID, or
// database.ErrNotFound.
func (i *IngestDB) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	conn, err := i.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	return getSubmission(ctx, conn.QueryRow, id, false)
}

// ListSubmissions returns every submission ordered by ID.
func (i *IngestDB) ListSubmissions(ctx context.Context) ([]*model.Submission, error) {
	return i.listSubmissions(ctx, `
		SELECT`+submissionColumns+`
		FROM
			federation_submissions
		ORDER BY id
	`)
}

// ListUnfinishedSubmissions returns queued and processing submissions ordered
// by ID.
func (i *IngestDB) ListUnfinishedSubmissions(ctx context.Context) ([]*model.Submission, error) {
	return i.listSubmissions(ctx, `
		SELECT`+submissionColumns+`
		FROM
			federation_submissions
		WHERE
			status IN ($1, $2)
		ORDER BY id
	`, string(model.StatusQueued), string(model.StatusProcessing))
}

func (i *IngestDB) listSubmissions(ctx context.Context, query string, args ...interface{}) ([]*model.Submission, error) {
	conn, err := i.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]*model.Submission, 0)
	for rows.Next() {
		s, err := scanOneSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return submissions, nil
}

// MarkProcessing moves the submission to processing.
func (i *IngestDB) MarkProcessing(ctx context.Context, id int64, now time.Time) error {
	return i.update(ctx, id, func(s *model.Submission) error {
		return s.MarkProcessing(now)
	})
}

// MarkProcessed moves the submission to processed with the checksum.
func (i *IngestDB) MarkProcessed(ctx context.Context, id int64, checksum string, now time.Time) error {
	return i.update(ctx, id, func(s *model.Submission) error {
		return s.MarkProcessed(checksum, now)
	})
}

// MarkFailed moves the submission to failed with details.
func (i *IngestDB) MarkFailed(ctx context.Context, id int64, details string) error {
	return i.update(ctx, id, func(s *model.Submission) error {
		return s.MarkFailed(details)
	})
}

// update locks the row, applies f and writes the status columns back in one
// transaction. The row is unchanged when f returns an error.
func (i *IngestDB) update(ctx context.Context, id int64, f func(s *model.Submission) error) error {
	return i.db.InTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		s, err := getSubmission(ctx, tx.QueryRow, id, true)
		if err != nil {
			return err
		}

		if err := f(s); err != nil {
			return err
		}

		result, err := tx.Exec(ctx, `
			UPDATE
				federation_submissions
			SET
				status = $1, status_details = $2, processed_at = $3,
				verified_at = $4, checksum = $5
			WHERE
				id = $6
		`, string(s.Status), s.StatusDetails, s.ProcessedAt, s.VerifiedAt, s.Checksum, id)
		if err != nil {
			return fmt.Errorf("updating submission: %w", err)
		}
		if result.RowsAffected() != 1 {
			return fmt.Errorf("no rows updated")
		}
		return nil
	})
}

type queryRowFn func(ctx context.Context, query string, args ...interface{}) pgx.Row

func getSubmission(ctx context.Context, queryRow queryRowFn, id int64, forUpdate bool) (*model.Submission, error) {
	query := `
		SELECT` + submissionColumns + `
		FROM
			federation_submissions
		WHERE
			id = $1`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	s, err := scanOneSubmission(queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("scanning submission: %w", err)
	}
	return s, nil
}

func scanOneFederation(row pgx.Row) (*model.Federation, error) {
	var (
		f                      model.Federation
		country, website, hash *string
	)
	if err := row.Scan(&f.ID, &f.Name, &country, &website, &hash); err != nil {
		return nil, err
	}
	if country != nil {
		f.Country = *country
	}
	if website != nil {
		f.Website = *website
	}
	if hash != nil {
		f.IngestTokenHash = *hash
	}
	return &f, nil
}

func scanOneSubmission(row pgx.Row) (*model.Submission, error) {
	var (
		s      model.Submission
		status string
	)
	if err := row.Scan(&s.ID, &s.FederationID, &s.FederationName, &s.ContactEmail,
		&s.PayloadURL, &s.Notes, &status, &s.StatusDetails, &s.CreatedAt,
		&s.ProcessedAt, &s.VerifiedAt, &s.Checksum); err != nil {
		return nil, err
	}

	s.Status = model.Status(status)
	if !s.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q on submission %d", status, s.ID)
	}

	s.CreatedAt = s.CreatedAt.UTC()
	s.ProcessedAt = utc(s.ProcessedAt)
	s.VerifiedAt = utc(s.VerifiedAt)
	return &s, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
