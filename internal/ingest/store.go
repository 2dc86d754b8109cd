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
	"time"

	"github.com/trackeo/trackeo-server/internal/ingest/model"
)

// FederationRegistry resolves and provisions federations. Lookups of unknown
// names return database.ErrNotFound.
type FederationRegistry interface {
	AddFederation(ctx context.Context, f *model.Federation) error
	GetFederationByName(ctx context.Context, name string) (*model.Federation, error)
	ListFederations(ctx context.Context) ([]*model.Federation, error)
}

// SubmissionStore persists submissions and their status transitions. Each
// Mark method commits on its own and returns model.ErrInvalidTransition when
// the stored status does not allow the change, or database.ErrNotFound when
// the submission does not exist.
type SubmissionStore interface {
	// InsertSubmission persists s and sets its ID and CreatedAt.
	InsertSubmission(ctx context.Context, s *model.Submission) error
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)

	// ListSubmissions returns every submission ordered by ID.
	ListSubmissions(ctx context.Context) ([]*model.Submission, error)

	// ListUnfinishedSubmissions returns queued and processing submissions
	// ordered by ID.
	ListUnfinishedSubmissions(ctx context.Context) ([]*model.Submission, error)

	MarkProcessing(ctx context.Context, id int64, now time.Time) error
	MarkProcessed(ctx context.Context, id int64, checksum string, now time.Time) error
	MarkFailed(ctx context.Context, id int64, details string) error
}

// Store is the persistence the ingestion pipeline depends on.
type Store interface {
	FederationRegistry
	SubmissionStore
}
