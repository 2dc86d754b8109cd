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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time check to verify implements interface.
var _ Blobstore = (*FilesystemStorage)(nil)

// FilesystemStorage implements Blobstore on top of a local directory. Buckets
// are subdirectories of the root.
type FilesystemStorage struct {
	root string
}

// NewFilesystemStorage creates a Blobstore rooted at root.
func NewFilesystemStorage(_ context.Context, root string) (Blobstore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	return &FilesystemStorage{root: abs}, nil
}

// GetObject opens the file at root/bucket/objectName. Paths that escape the
// root are rejected.
func (s *FilesystemStorage) GetObject(_ context.Context, bucket, objectName string) (io.ReadCloser, error) {
	pth := filepath.Join(s.root, bucket, objectName)
	if pth != s.root && !strings.HasPrefix(pth, s.root+string(filepath.Separator)) {
		return nil, fmt.Errorf("storage.GetObject: %q escapes the storage root", filepath.Join(bucket, objectName))
	}

	f, err := os.Open(pth)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage.GetObject: %w", err)
	}
	return f, nil
}
