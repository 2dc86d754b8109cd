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
	"github.com/trackeo/trackeo-server/pkg/render"
)

// Recovery recovers from panics and renders a JSON 500.
func Recovery() mux.MiddlewareFunc {
	h := render.NewRenderer()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger := logging.FromContext(r.Context()).Named("middleware.Recovery")
					logger.Errorw("http handler panic", "panic", p)

					h.RenderJSON(w, http.StatusInternalServerError, nil)
					return
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
