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
	"fmt"
	"time"

	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/pkg/cache"
)

// Compile-time check to assert implementation.
var _ Store = (*CachedStore)(nil)

// CachedStore caches federation lookups by name in front of a Store. Misses
// and errors are not cached, so a newly provisioned federation is visible on
// the next request.
type CachedStore struct {
	Store

	federations *cache.Cache[*model.Federation]
}

// NewCachedStore wraps store with a federation cache of the given duration. A
// zero duration returns store unchanged.
func NewCachedStore(store Store, d time.Duration) (Store, error) {
	if d == 0 {
		return store, nil
	}

	c, err := cache.New[*model.Federation](d)
	if err != nil {
		return nil, fmt.Errorf("failed to create federation cache: %w", err)
	}
	return &CachedStore{
		Store:       store,
		federations: c,
	}, nil
}

// GetFederationByName returns a copy of the cached federation, loading it
// from the wrapped store on a miss.
func (s *CachedStore) GetFederationByName(ctx context.Context, name string) (*model.Federation, error) {
	f, err := s.federations.WriteThruLookup(name, func() (*model.Federation, error) {
		return s.Store.GetFederationByName(ctx, name)
	})
	if err != nil {
		return nil, err
	}

	c := *f
	return &c, nil
}

// AddFederation adds f and caches a copy of it.
func (s *CachedStore) AddFederation(ctx context.Context, f *model.Federation) error {
	if err := s.Store.AddFederation(ctx, f); err != nil {
		s.federations.Delete(f.Name)
		return err
	}

	c := *f
	s.federations.Set(f.Name, &c)
	return nil
}
