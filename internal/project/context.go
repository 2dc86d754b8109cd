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

// Package project defines global project helpers shared by the server, its
// tools, and tests.
package project

import (
	"context"
	"testing"

	"github.com/trackeo/trackeo-server/pkg/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestContext returns a context with a test logger attached.
func TestContext(tb testing.TB) context.Context {
	return logging.WithLogger(context.Background(), TestLogger(tb))
}

// TestLogger returns a logger that writes through tb. Only warnings and above
// are printed so passing tests stay quiet.
func TestLogger(tb testing.TB) *zap.SugaredLogger {
	return zaptest.NewLogger(tb, zaptest.Level(zap.WarnLevel)).Sugar()
}
