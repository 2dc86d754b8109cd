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

package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/trackeo/trackeo-server/pkg/logging"
	"go.uber.org/zap"
)

// PopulateLogger populates the logger onto the context, annotated with the
// request ID and route.
func PopulateLogger(originalLogger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			logger := originalLogger

			// Only override the logger if it's the default logger. This is only
			// used for testing and is intentionally a strict object equality check
			// because the default logger is a global default in the logger
			// package.
			if existing := logging.FromContext(ctx); existing == logging.DefaultLogger() {
				logger = existing
			}

			if id := RequestIDFromContext(ctx); id != "" {
				logger = logger.With("request_id", id)
			}
			logger = logger.With("method", r.Method, "path", r.URL.Path)

			ctx = logging.WithLogger(ctx, logger)
			r = r.Clone(ctx)

			next.ServeHTTP(w, r)
		})
	}
}
