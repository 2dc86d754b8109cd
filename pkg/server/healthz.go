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

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/trackeo/trackeo-server/pkg/logging"
	"github.com/trackeo/trackeo-server/pkg/render"

	"golang.org/x/time/rate"
)

// Pinger checks connectivity to a dependency, usually the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealthz returns a health check handler. The dependency is pinged at
// most once per second since this is an unauthenticated endpoint. A nil
// pinger always reports healthy.
func HandleHealthz(p Pinger) http.Handler {
	limiter := rate.NewLimiter(rate.Every(1*time.Second), 1)
	h := render.NewRenderer()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx).Named("server.HandleHealthz")

		if p != nil && limiter.Allow() {
			if err := p.Ping(ctx); err != nil {
				logger.Errorw("health check failed", "error", err)
				h.RenderJSON(w, http.StatusInternalServerError, nil)
				return
			}
		}

		h.RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
