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

package storage

import (
	"context"
	"io"
)

// Compile-time check to verify implements interface.
var _ Blobstore = (*Noop)(nil)

// Noop is a blobstore with no objects.
type Noop struct{}

// NewNoop creates a Blobstore that never finds anything.
func NewNoop(_ context.Context) (Blobstore, error) {
	return &Noop{}, nil
}

// GetObject always returns ErrNotFound.
func (s *Noop) GetObject(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}
