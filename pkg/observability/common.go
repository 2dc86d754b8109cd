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
	"time"

	"github.com/trackeo/trackeo-server/pkg/logging"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// MetricRoot is the prefix of every metric this server records.
const MetricRoot = "trackeo/"

var (
	// ResultTagKey contains a free format text describing the result of an
	// operation. Preferably ALL CAPS WITH UNDERSCORE.
	ResultTagKey = tag.MustNewKey("result")

	// ResultOK add a tag indicating the operation succeeded.
	ResultOK = tag.Upsert(ResultTagKey, "OK")
)

// ResultError add a tag with the given string as the result.
func ResultError(result string) tag.Mutator {
	return tag.Upsert(ResultTagKey, result)
}

// RecordLatency calculates and records the latency in milliseconds since
// start.
//
//	defer observability.RecordLatency(ctx, time.Now(), mLatencyMs, &result)
func RecordLatency(ctx context.Context, start time.Time, m *stats.Float64Measure, result *tag.Mutator) {
	var mutators []tag.Mutator
	if result != nil {
		mutators = append(mutators, *result)
	}

	latency := float64(time.Since(start)) / float64(time.Millisecond)
	if err := stats.RecordWithTags(ctx, mutators, m.M(latency)); err != nil {
		logging.FromContext(ctx).Errorw("failed to record latency", "measure", m.Name(), "error", err)
	}
}
