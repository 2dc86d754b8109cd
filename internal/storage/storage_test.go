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
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/trackeo/trackeo-server/internal/project"
)

func readAll(tb testing.TB, rc io.ReadCloser) string {
	tb.Helper()

	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		tb.Fatal(err)
	}
	return string(b)
}

func TestFilesystemStorage_GetObject(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "results"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "results", "indoor.json"), []byte(`{"events":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		bucket  string
		object  string
		want    string
		wantErr error
		anyErr  bool
	}{
		{
			name:   "default",
			bucket: "results",
			object: "indoor.json",
			want:   `{"events":[]}`,
		},
		{
			name:    "missing",
			bucket:  "results",
			object:  "outdoor.json",
			wantErr: ErrNotFound,
		},
		{
			name:   "escape",
			bucket: "results",
			object: "../../etc/passwd",
			anyErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := project.TestContext(t)
			store, err := NewFilesystemStorage(ctx, root)
			if err != nil {
				t.Fatal(err)
			}

			rc, err := store.GetObject(ctx, tc.bucket, tc.object)
			switch {
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			case tc.anyErr:
				if err == nil {
					rc.Close()
					t.Fatal("expected error")
				}
				return
			case err != nil:
				t.Fatal(err)
			}

			if got := readAll(t, rc); got != tc.want {
				t.Errorf("expected %q to be %q", got, tc.want)
			}
		})
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	store, err := NewMemory(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetObject(ctx, "results", "indoor.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected %v, got %v", ErrNotFound, err)
	}

	if err := store.(*Memory).CreateObject(ctx, "results", "indoor.json", []byte("100m,10.01")); err != nil {
		t.Fatal(err)
	}

	rc, err := store.GetObject(ctx, "results", "indoor.json")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := readAll(t, rc), "100m,10.01"; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	v, ok := f.objects[aws.StringValue(input.Bucket)+"/"+aws.StringValue(input.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func TestAWSS3_GetObject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &AWSS3{svc: &fakeS3{objects: map[string]string{
		"caa-results/2026/indoor.json": "relay results",
	}}}

	rc, err := store.GetObject(ctx, "caa-results", "2026/indoor.json")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := readAll(t, rc), "relay results"; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}

	if _, err := store.GetObject(ctx, "caa-results", "missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected %v, got %v", ErrNotFound, err)
	}
}

func TestBlobstoreFor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for _, typ := range []BlobstoreType{BlobstoreTypeFilesystem, BlobstoreTypeMemory, BlobstoreTypeNoop} {
		if _, err := BlobstoreFor(ctx, &Config{Type: typ, FilesystemRoot: t.TempDir()}); err != nil {
			t.Errorf("%s: %v", typ, err)
		}
	}

	if _, err := BlobstoreFor(ctx, &Config{Type: "GOOGLE_CLOUD_STORAGE"}); err == nil {
		t.Errorf("expected error for unknown type")
	}
}
