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
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/trackeo/trackeo-server/internal/bus"
	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/pkg/database"
	"github.com/trackeo/trackeo-server/pkg/logging"
	"github.com/trackeo/trackeo-server/pkg/observability"
	"go.uber.org/zap"
)

const (
	failFallbackTimeout = 30 * time.Second
	failFallbackRetries = 5
	failFallbackBase    = 100 * time.Millisecond
)

// Subscriber registers handlers for a topic.
type Subscriber interface {
	Subscribe(topic string, h bus.Handler)
}

// Processor verifies queued submissions delivered on TopicSubmission.
type Processor struct {
	store    Store
	verifier Verifier
	timeout  time.Duration

	now     func() time.Time
	backoff func() retry.Backoff
}

// NewProcessor creates a processor and subscribes it to TopicSubmission. It
// must be called before the bus starts delivering. A positive timeout bounds
// each delivery.
func NewProcessor(store Store, verifier Verifier, sub Subscriber, timeout time.Duration) *Processor {
	p := &Processor{
		store:    store,
		verifier: verifier,
		timeout:  timeout,
		now: func() time.Time {
			return time.Now().UTC()
		},
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(failFallbackRetries, retry.NewExponential(failFallbackBase))
		},
	}
	sub.Subscribe(TopicSubmission, p.Handle)
	return p
}

// Handle processes one delivered submission ID. Deliveries for unknown IDs
// and for submissions already in a terminal status are ignored. A delivery
// for a submission left in processing resumes it.
func (p *Processor) Handle(ctx context.Context, payload interface{}) error {
	id, err := submissionID(payload)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx).Named("ingest.Processor").With("submission_id", id)
	ctx = logging.WithLogger(ctx, logger)

	result := observability.ResultOK
	defer observability.RecordLatency(ctx, time.Now(), mProcessLatencyMs, &result)

	processCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done, err := p.process(processCtx, id)
	if err == nil {
		if done {
			recordCount(ctx, mSubmissionsProcessed, 1)
		}
		return nil
	}

	// Leave the row unfinished so the next startup resumes it.
	if ctx.Err() != nil {
		result = observability.ResultError("CANCELED")
		logger.Warnw("processing interrupted", "error", err)
		return fmt.Errorf("processing submission %d interrupted: %w", id, err)
	}

	result = observability.ResultError("FAILED")
	logger.Warnw("processing failed", "error", err)
	if ferr := p.fail(logger, id, err.Error()); ferr != nil {
		return fmt.Errorf("failed to mark submission %d as failed: %w", id, ferr)
	}
	recordCount(ctx, mSubmissionsFailed, 1)
	return nil
}

// process runs the submission through processing to processed. It reports
// whether the submission reached processed during this call.
func (p *Processor) process(ctx context.Context, id int64) (bool, error) {
	logger := logging.FromContext(ctx)

	submission, err := p.store.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			logger.Debugw("submission does not exist, skipping")
			return false, nil
		}
		return false, fmt.Errorf("failed to load submission: %w", err)
	}

	switch submission.Status {
	case model.StatusProcessed, model.StatusFailed:
		logger.Debugw("submission already finished, skipping", "status", submission.Status)
		return false, nil
	case model.StatusProcessing:
		logger.Infow("resuming submission")
	default:
		if err := p.store.MarkProcessing(ctx, id, p.now()); err != nil {
			return false, fmt.Errorf("failed to mark submission processing: %w", err)
		}
	}

	checksum, err := p.verifier.Checksum(ctx, submission)
	if err != nil {
		return false, fmt.Errorf("failed to verify payload: %w", err)
	}

	if err := p.store.MarkProcessed(ctx, id, checksum, p.now()); err != nil {
		return false, fmt.Errorf("failed to mark submission processed: %w", err)
	}

	logger.Infow("submission processed", "checksum", checksum)
	return true, nil
}

// fail records details on the submission with a fresh context, so that an
// expired processing deadline does not prevent the write.
func (p *Processor) fail(logger *zap.SugaredLogger, id int64, details string) error {
	ctx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), logger), failFallbackTimeout)
	defer cancel()

	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		// A queued submission passes through processing first. Any other status
		// rejects the move, which is expected here.
		err := p.store.MarkProcessing(ctx, id, p.now())
		if err != nil && !errors.Is(err, model.ErrInvalidTransition) {
			return retryableStatusWrite(logger, err)
		}

		if err := p.store.MarkFailed(ctx, id, details); err != nil {
			return retryableStatusWrite(logger, err)
		}
		return nil
	})
}

// retryableStatusWrite marks err as retryable unless retrying cannot change
// the outcome.
func retryableStatusWrite(logger *zap.SugaredLogger, err error) error {
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, model.ErrInvalidTransition) {
		return err
	}
	logger.Debugw("retrying failed status write", "error", err)
	return retry.RetryableError(err)
}

func submissionID(payload interface{}) (int64, error) {
	switch v := payload.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected %s payload type %T", TopicSubmission, payload)
	}
}
