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
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/internal/project"
	"github.com/trackeo/trackeo-server/pkg/database"
	"github.com/trackeo/trackeo-server/pkg/logging"
)

// TopicSubmission is the bus topic carrying the IDs of queued submissions.
const TopicSubmission = "federation.submission"

// Publisher enqueues a payload on a topic without waiting for delivery.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Service validates, persists and queues federation submissions.
type Service struct {
	store     Store
	publisher Publisher
	schemes   map[string]struct{}
}

// NewService creates an ingestion service. Payload URLs must use one of
// allowedSchemes, compared case-insensitively.
func NewService(store Store, publisher Publisher, allowedSchemes []string) *Service {
	schemes := make(map[string]struct{}, len(allowedSchemes))
	for _, s := range allowedSchemes {
		schemes[strings.ToLower(project.TrimSpace(s))] = struct{}{}
	}

	return &Service{
		store:     store,
		publisher: publisher,
		schemes:   schemes,
	}
}

// EnqueueSubmission authenticates the federation, stores the submission as
// queued and publishes its ID. Errors matching ErrValidation mean nothing was
// persisted.
func (s *Service) EnqueueSubmission(ctx context.Context, req *model.SubmissionRequest) (*model.Submission, error) {
	logger := logging.FromContext(ctx).Named("ingest.EnqueueSubmission")

	federation, err := s.validate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			recordCount(ctx, mSubmissionsRejected, 1)
		}
		return nil, err
	}

	submission := &model.Submission{
		FederationID:   &federation.ID,
		FederationName: req.FederationName,
		ContactEmail:   req.ContactEmail,
		PayloadURL:     req.PayloadURL,
		Notes:          req.Notes,
		Status:         model.StatusQueued,
	}
	if err := s.store.InsertSubmission(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	// The row is durable at this point. A failed publish leaves it queued for
	// the startup resume scan.
	if err := s.publisher.Publish(ctx, TopicSubmission, submission.ID); err != nil {
		logger.Errorw("failed to queue submission", "submission_id", submission.ID, "error", err)
		return nil, fmt.Errorf("failed to queue submission %d: %w", submission.ID, err)
	}

	recordCount(ctx, mSubmissionsAccepted, 1)
	logger.Infow("submission queued",
		"submission_id", submission.ID,
		"federation", submission.FederationName)
	return submission, nil
}

// ListSubmissions returns every submission ordered by ID.
func (s *Service) ListSubmissions(ctx context.Context) ([]*model.Submission, error) {
	submissions, err := s.store.ListSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

// ResumeUnfinished republishes the IDs of queued and processing submissions,
// oldest first, and returns how many were queued. The in-memory bus loses its
// queue on restart, so this runs before the server accepts traffic.
func (s *Service) ResumeUnfinished(ctx context.Context) (int, error) {
	logger := logging.FromContext(ctx).Named("ingest.ResumeUnfinished")

	submissions, err := s.store.ListUnfinishedSubmissions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unfinished submissions: %w", err)
	}

	for i, sub := range submissions {
		if err := s.publisher.Publish(ctx, TopicSubmission, sub.ID); err != nil {
			return i, fmt.Errorf("failed to requeue submission %d: %w", sub.ID, err)
		}
		logger.Debugw("requeued submission", "submission_id", sub.ID, "status", sub.Status)
	}

	if n := len(submissions); n > 0 {
		recordCount(ctx, mSubmissionsResumed, int64(n))
		logger.Infow("requeued unfinished submissions", "count", n)
	}
	return len(submissions), nil
}

// validate runs the checks in the order callers see them: request fields,
// payload URL, token presence, federation lookup, token match.
func (s *Service) validate(ctx context.Context, req *model.SubmissionRequest) (*model.Federation, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{err: err}
	}

	u, err := url.Parse(req.PayloadURL)
	if err != nil {
		return nil, newValidationError(msgPayloadScheme)
	}
	if _, ok := s.schemes[u.Scheme]; !ok {
		return nil, newValidationError(msgPayloadScheme)
	}
	if u.Host == "" {
		return nil, newValidationError(msgPayloadHost)
	}

	token := project.TrimSpace(req.AccessToken)
	if token == "" {
		return nil, newValidationError(msgTokenRequired)
	}

	federation, err := s.store.GetFederationByName(ctx, req.FederationName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newValidationError(msgFederationUnknown)
		}
		return nil, fmt.Errorf("failed to look up federation: %w", err)
	}
	if !federation.AcceptsSecureUploads() {
		return nil, newValidationError(msgFederationUnknown)
	}

	if model.HashIngestToken(token) != federation.IngestTokenHash {
		return nil, newValidationError(msgTokenInvalid)
	}
	return federation, nil
}
