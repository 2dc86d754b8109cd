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

// Package errcmp contains a convenience helper for checking error conditions
// in tests.
package errcmp

import (
	"strings"
	"testing"
)

// MustMatch fails the test unless err contains want. An empty want means err
// must be nil.
func MustMatch(tb testing.TB, err error, want string) {
	tb.Helper()

	switch {
	case err == nil && want == "":
	case err == nil:
		tb.Fatalf("missing error, want: %q got: nil", want)
	case want == "":
		tb.Fatalf("unexpected error: got: %v", err)
	case !strings.Contains(err.Error(), want):
		tb.Fatalf("wrong error; want: %q got: %v", want, err)
	}
}
