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

// Package storage is a read-only interface over the blob stores federations
// publish result files to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is the error returned when the requested object does not exist.
var ErrNotFound = errors.New("storage object not found")

// Blobstore defines the minimum interface for reading from a blob storage
// system.
type Blobstore interface {
	// GetObject opens the object for reading. Callers must close the returned
	// reader. It returns ErrNotFound if the object does not exist.
	GetObject(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
}

// BlobstoreFor returns the blobstore for the given config.
func BlobstoreFor(ctx context.Context, config *Config) (Blobstore, error) {
	switch typ := config.Type; typ {
	case BlobstoreTypeAWSS3:
		return NewAWSS3(ctx)
	case BlobstoreTypeFilesystem:
		return NewFilesystemStorage(ctx, config.FilesystemRoot)
	case BlobstoreTypeMemory:
		return NewMemory(ctx)
	case BlobstoreTypeNoop:
		return NewNoop(ctx)
	default:
		return nil, fmt.Errorf("unknown blob store type: %v", typ)
	}
}
