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
	"errors"
	"net/http"

	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/internal/jsonutil"
	"github.com/trackeo/trackeo-server/pkg/logging"
)

func (s *Server) handleSubmit() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx).Named("ingest.handleSubmit")

		var req model.SubmissionRequest
		if code, err := jsonutil.Unmarshal(w, r, &req, s.config.MaxBodyBytes); err != nil {
			logger.Debugw("failed to parse request", "error", err)
			if code == http.StatusBadRequest {
				recordCount(ctx, mSubmissionsRejected, 1)
			}
			s.h.RenderJSON(w, code, err)
			return
		}

		submission, err := s.service.EnqueueSubmission(ctx, &req)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				logger.Debugw("rejected submission", "federation", req.FederationName, "error", err)
				s.h.RenderJSON(w, http.StatusBadRequest, validationDetail(err))
				return
			}

			logger.Errorw("failed to enqueue submission", "error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, nil)
			return
		}

		s.h.RenderJSON(w, http.StatusAccepted, submission)
	})
}

func (s *Server) handleList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx).Named("ingest.handleList")

		submissions, err := s.service.ListSubmissions(ctx)
		if err != nil {
			logger.Errorw("failed to list submissions", "error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, nil)
			return
		}

		s.h.RenderJSON(w, http.StatusOK, submissions)
	})
}

// validationDetail unwraps the error to what the caller should see. Field
// problems stay aggregated so they render as a list.
func validationDetail(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Unwrap()
	}
	return err
}
