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

package project

import (
	"testing"
)

func TestTrimSpace(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "bom", in: "\uFEFFConfederación Andina de Atletismo", want: "Confederación Andina de Atletismo"},
		{name: "space", in: " caa-demo-token  \r\t", want: "caa-demo-token"},
		{name: "inner", in: "Brazilian Athletics Confederation", want: "Brazilian Athletics Confederation"},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := TrimSpace(tc.in); got != tc.want {
				t.Errorf("wrong trim, want: %q got: %q", tc.want, got)
			}
		})
	}
}

func TestRandomToken(t *testing.T) {
	t.Parallel()

	a, err := RandomToken(24)
	if err != nil {
		t.Fatal(err)
	}
	b, err := RandomToken(24)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("expected distinct tokens, got %q twice", a)
	}
	if got, want := len(a), 32; got != want {
		t.Errorf("expected token length %d, got %d", want, got)
	}
}
