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

package observability

import (
	"context"
	"fmt"
	"net/http"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/gorilla/mux"
	"github.com/trackeo/trackeo-server/pkg/logging"
	"github.com/trackeo/trackeo-server/pkg/server"
	"go.opencensus.io/stats/view"
)

// Compile-time check to verify implements interface.
var _ Exporter = (*prometheusExporter)(nil)

type prometheusExporter struct {
	exporter *prometheus.Exporter
	config   *PrometheusConfig
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// NewPrometheus creates an exporter that serves the collected views on
// /metrics for Prometheus to scrape.
func NewPrometheus(_ context.Context, config *PrometheusConfig) (Exporter, error) {
	if config == nil || config.Port == "" {
		return nil, fmt.Errorf("prometheus exporter requires METRICS_PORT")
	}

	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: config.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return &prometheusExporter{
		exporter: pe,
		config:   config,
	}, nil
}

// StartExporter registers all views and starts serving /metrics in the
// background. The endpoint stops on Close.
func (e *prometheusExporter) StartExporter(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("observability")

	for _, v := range AllViews() {
		if err := view.Register(v); err != nil {
			return fmt.Errorf("failed to start prometheus exporter: view registration failed: %w", err)
		}
	}

	srv, err := server.New(e.config.Port)
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	r := mux.NewRouter()
	r.Handle("/metrics", e.exporter).Methods(http.MethodGet)

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.doneCh = make(chan struct{})

	go func() {
		defer close(e.doneCh)

		logger.Infow("metrics endpoint listening", "port", srv.Port())
		if err := srv.ServeHTTP(ctx, &http.Server{Handler: r}); err != nil {
			logger.Errorw("metrics endpoint failed", "error", err)
		}
	}()
	return nil
}

// Close stops the metrics endpoint.
func (e *prometheusExporter) Close() error {
	if e.cancel == nil {
		return nil
	}

	e.cancel()
	<-e.doneCh
	return nil
}
