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
	"bytes"
	"context"
	"io"
	"path"
	"sync"
)

// Compile-time check to verify implements interface.
var _ Blobstore = (*Memory)(nil)

// Memory implements Blobstore and keeps objects in memory. It is primarily
// used for testing.
type Memory struct {
	lock sync.Mutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Blobstore.
func NewMemory(_ context.Context) (Blobstore, error) {
	return &Memory{
		data: make(map[string][]byte),
	}, nil
}

// CreateObject creates or overwrites an object.
func (s *Memory) CreateObject(_ context.Context, bucket, objectName string, contents []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data[path.Join(bucket, objectName)] = contents
	return nil
}

// GetObject returns the contents for the given object. If the object does not
// exist, it returns ErrNotFound.
func (s *Memory) GetObject(_ context.Context, bucket, objectName string) (io.ReadCloser, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	v, ok := s.data[path.Join(bucket, objectName)]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(v)), nil
}
