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

	"github.com/trackeo/trackeo-server/pkg/observability"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	ingestMetricsPrefix = observability.MetricRoot + "ingest/"

	mSubmissionsAccepted = stats.Int64(ingestMetricsPrefix+"submissions_accepted",
		"Submissions persisted and queued", stats.UnitDimensionless)
	mSubmissionsRejected = stats.Int64(ingestMetricsPrefix+"submissions_rejected",
		"Submissions rejected by validation", stats.UnitDimensionless)
	mSubmissionsProcessed = stats.Int64(ingestMetricsPrefix+"submissions_processed",
		"Submissions verified successfully", stats.UnitDimensionless)
	mSubmissionsFailed = stats.Int64(ingestMetricsPrefix+"submissions_failed",
		"Submissions marked as failed", stats.UnitDimensionless)
	mSubmissionsResumed = stats.Int64(ingestMetricsPrefix+"submissions_resumed",
		"Unfinished submissions republished on startup", stats.UnitDimensionless)

	mProcessLatencyMs = stats.Float64(ingestMetricsPrefix+"process_latency",
		"Time spent processing one submission", stats.UnitMilliseconds)
)

func init() {
	observability.CollectViews(
		&view.View{
			Name:        ingestMetricsPrefix + "submissions_accepted_count",
			Description: "Total count of accepted submissions",
			Measure:     mSubmissionsAccepted,
			Aggregation: view.Sum(),
		},
		&view.View{
			Name:        ingestMetricsPrefix + "submissions_rejected_count",
			Description: "Total count of rejected submissions",
			Measure:     mSubmissionsRejected,
			Aggregation: view.Sum(),
		},
		&view.View{
			Name:        ingestMetricsPrefix + "submissions_processed_count",
			Description: "Total count of processed submissions",
			Measure:     mSubmissionsProcessed,
			Aggregation: view.Sum(),
		},
		&view.View{
			Name:        ingestMetricsPrefix + "submissions_failed_count",
			Description: "Total count of failed submissions",
			Measure:     mSubmissionsFailed,
			Aggregation: view.Sum(),
		},
		&view.View{
			Name:        ingestMetricsPrefix + "submissions_resumed_count",
			Description: "Total count of submissions resumed on startup",
			Measure:     mSubmissionsResumed,
			Aggregation: view.Sum(),
		},
		&view.View{
			Name:        ingestMetricsPrefix + "process_latency",
			Description: "Latency distribution of submission processing",
			Measure:     mProcessLatencyMs,
			Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 30000),
			TagKeys:     []tag.Key{observability.ResultTagKey},
		},
	)
}

func recordCount(ctx context.Context, m *stats.Int64Measure, n int64) {
	stats.Record(ctx, m.M(n))
}
