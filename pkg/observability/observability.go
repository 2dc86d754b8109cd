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

// Package observability sets up and configures observability tools.
package observability

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/stats/view"
)

var collectedViews = struct {
	views []*view.View
	sync.Mutex
}{}

// CollectViews adds the list of view to the global registry. Packages call
// this from init so the exporter registers their views on start.
func CollectViews(views ...*view.View) {
	collectedViews.Lock()
	defer collectedViews.Unlock()
	collectedViews.views = append(collectedViews.views, views...)
}

// AllViews returns the collected views plus the default HTTP server views.
func AllViews() []*view.View {
	collectedViews.Lock()
	defer collectedViews.Unlock()

	result := make([]*view.View, 0, len(collectedViews.views)+len(ochttp.DefaultServerViews))
	result = append(result, collectedViews.views...)
	result = append(result, ochttp.DefaultServerViews...)
	return result
}

// Exporter defines the minimum shared functionality for an observability
// exporter used by this application.
type Exporter interface {
	io.Closer
	StartExporter(ctx context.Context) error
}

// NewFromEnv returns the observability exporter given the provided
// configuration, or an error if it failed to be created.
func NewFromEnv(config *Config) (Exporter, error) {
	switch config.ExporterType {
	case ExporterNoop:
		return NewNoop(context.Background())
	case ExporterPrometheus:
		return NewPrometheus(context.Background(), config.Prometheus)
	default:
		return nil, fmt.Errorf("unknown observability exporter type %v", config.ExporterType)
	}
}
