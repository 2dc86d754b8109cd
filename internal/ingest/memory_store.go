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
	"sort"
	"sync"
	"time"

	"github.com/trackeo/trackeo-server/internal/ingest/model"
	"github.com/trackeo/trackeo-server/pkg/database"
)

// Compile-time check to assert implementation.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a Store that keeps values in memory. It is primarily used for
// testing and local development.
type MemoryStore struct {
	lock sync.RWMutex

	nextFederationID int64
	federations      map[string]*model.Federation

	nextSubmissionID int64
	submissions      map[int64]*model.Submission
	history          map[int64][]model.Status
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		federations: make(map[string]*model.Federation),
		submissions: make(map[int64]*model.Submission),
		history:     make(map[int64][]model.Status),
	}
}

// AddFederation inserts f and sets its ID. It returns an error if a federation
// with the same name exists.
func (m *MemoryStore) AddFederation(_ context.Context, f *model.Federation) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.federations[f.Name]; ok {
		return fmt.Errorf("federation %q already exists", f.Name)
	}

	m.nextFederationID++
	f.ID = m.nextFederationID

	c := *f
	m.federations[f.Name] = &c
	return nil
}

// GetFederationByName returns the federation with exactly the given name.
func (m *MemoryStore) GetFederationByName(_ context.Context, name string) (*model.Federation, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	f, ok := m.federations[name]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *f
	return &c, nil
}

// ListFederations returns all federations ordered by name.
func (m *MemoryStore) ListFederations(_ context.Context) ([]*model.Federation, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	result := make([]*model.Federation, 0, len(m.federations))
	for _, f := range m.federations {
		c := *f
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// InsertSubmission stores a copy of s and sets its ID and CreatedAt.
func (m *MemoryStore) InsertSubmission(_ context.Context, s *model.Submission) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.nextSubmissionID++
	s.ID = m.nextSubmissionID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = model.StatusQueued
	}

	m.submissions[s.ID] = s.Copy()
	m.history[s.ID] = []model.Status{s.Status}
	return nil
}

// GetSubmission returns a copy of the submission.
func (m *MemoryStore) GetSubmission(_ context.Context, id int64) (*model.Submission, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	s, ok := m.submissions[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return s.Copy(), nil
}

// ListSubmissions returns copies of all submissions ordered by ID.
func (m *MemoryStore) ListSubmissions(_ context.Context) ([]*model.Submission, error) {
	return m.list(func(*model.Submission) bool { return true }), nil
}

// ListUnfinishedSubmissions returns copies of queued and processing
// submissions ordered by ID.
func (m *MemoryStore) ListUnfinishedSubmissions(_ context.Context) ([]*model.Submission, error) {
	return m.list(func(s *model.Submission) bool { return !s.Status.IsTerminal() }), nil
}

func (m *MemoryStore) list(keep func(*model.Submission) bool) []*model.Submission {
	m.lock.RLock()
	defer m.lock.RUnlock()

	result := make([]*model.Submission, 0, len(m.submissions))
	for _, s := range m.submissions {
		if keep(s) {
			result = append(result, s.Copy())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// MarkProcessing moves the submission to processing.
func (m *MemoryStore) MarkProcessing(_ context.Context, id int64, now time.Time) error {
	return m.update(id, func(s *model.Submission) error {
		return s.MarkProcessing(now)
	})
}

// MarkProcessed moves the submission to processed.
func (m *MemoryStore) MarkProcessed(_ context.Context, id int64, checksum string, now time.Time) error {
	return m.update(id, func(s *model.Submission) error {
		return s.MarkProcessed(checksum, now)
	})
}

// MarkFailed moves the submission to failed.
func (m *MemoryStore) MarkFailed(_ context.Context, id int64, details string) error {
	return m.update(id, func(s *model.Submission) error {
		return s.MarkFailed(details)
	})
}

// update applies f to a copy and only stores it when f succeeds.
func (m *MemoryStore) update(id int64, f func(s *model.Submission) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	existing, ok := m.submissions[id]
	if !ok {
		return database.ErrNotFound
	}

	s := existing.Copy()
	if err := f(s); err != nil {
		return err
	}
	m.submissions[id] = s
	m.history[id] = append(m.history[id], s.Status)
	return nil
}

// History returns every status the submission has been stored with, in order.
func (m *MemoryStore) History(id int64) []model.Status {
	m.lock.RLock()
	defer m.lock.RUnlock()

	h := make([]model.Status, len(m.history[id]))
	copy(h, m.history[id])
	return h
}
