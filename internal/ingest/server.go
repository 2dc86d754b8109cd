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
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/trackeo/trackeo-server/internal/maintenance"
	"github.com/trackeo/trackeo-server/internal/middleware"
	"github.com/trackeo/trackeo-server/internal/serverenv"
	"github.com/trackeo/trackeo-server/pkg/logging"
	"github.com/trackeo/trackeo-server/pkg/render"
	"github.com/trackeo/trackeo-server/pkg/server"
)

// RoleFederation is the platform role allowed to list submissions.
const RoleFederation = "federation"

// Server hosts the submission endpoints.
type Server struct {
	config  *Config
	env     *serverenv.ServerEnv
	service *Service
	h       *render.Renderer
}

// NewServer creates a Server around an ingestion service.
func NewServer(config *Config, env *serverenv.ServerEnv, service *Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("missing ingestion service")
	}
	if config.TokenSigningSecret == "" {
		return nil, fmt.Errorf("missing token signing secret")
	}

	return &Server{
		config:  config,
		env:     env,
		service: service,
		h:       render.NewRenderer(),
	}, nil
}

// Routes defines and returns the routes for this server.
func (s *Server) Routes(ctx context.Context) *mux.Router {
	logger := logging.FromContext(ctx).Named("ingest")

	r := mux.NewRouter()
	r.Use(middleware.PopulateRequestID())
	r.Use(middleware.PopulateLogger(logger))
	r.Use(middleware.Recovery())

	api := r.PathPrefix("/api/v1").Subrouter()

	var pinger server.Pinger
	if s.env != nil && s.env.Database() != nil {
		pinger = s.env.Database()
	}
	api.Handle("/health", server.HandleHealthz(pinger)).Methods(http.MethodGet)

	requireFederation := middleware.RequireRole([]byte(s.config.TokenSigningSecret), RoleFederation)
	mResponder := maintenance.New(s.config)

	api.Handle("/federations/submissions", mResponder.Handle(s.handleSubmit())).Methods(http.MethodPost)
	api.Handle("/federations/submissions", requireFederation(s.handleList())).Methods(http.MethodGet)

	return r
}
