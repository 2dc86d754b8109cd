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

// Package cache implements an in-memory, time-expiring cache keyed by string.
package cache

import (
	"errors"
	"sync"
	"time"
)

var ErrInvalidDuration = errors.New("expireAfter duration cannot be negative")

const initialSize = 16

// Func computes a value on a cache miss.
type Func[T any] func() (T, error)

// Cache holds values of type T for a fixed duration after they are written.
type Cache[T any] struct {
	data        map[string]item[T]
	expireAfter time.Duration
	mu          sync.RWMutex
}

type item[T any] struct {
	object    T
	expiresAt int64
}

func (i *item[T]) expired() bool {
	return i.expiresAt < time.Now().UnixNano()
}

// New creates a new in memory cache.
func New[T any](expireAfter time.Duration) (*Cache[T], error) {
	if expireAfter < 0 {
		return nil, ErrInvalidDuration
	}

	return &Cache[T]{
		data:        make(map[string]item[T], initialSize),
		expireAfter: expireAfter,
	}, nil
}

// Removes an item by name and expiry time when the purge was scheduled.
// If there is a race, and the item has been refreshed, it will not be purged.
func (c *Cache[T]) purgeExpired(name string, expectedExpiryTime int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.data[name]; ok && item.expiresAt == expectedExpiryTime {
		delete(c.data, name)
	}
}

// Delete removes name from the cache.
func (c *Cache[T]) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, name)
}

// WriteThruLookup checks the cache for the value associated with name,
// and if not found or expired, invokes the provided primaryLookup function
// to load the value. Errors from primaryLookup are returned and not cached.
func (c *Cache[T]) WriteThruLookup(name string, primaryLookup Func[T]) (T, error) {
	c.mu.RLock()
	val, hit := c.lookup(name)
	c.mu.RUnlock()
	if hit {
		return val, nil
	}

	// Escalate to a write lock and check again, another goroutine may have
	// filled the entry in the meantime.
	c.mu.Lock()
	defer c.mu.Unlock()
	if val, hit = c.lookup(name); hit {
		return val, nil
	}

	newData, err := primaryLookup()
	if err != nil {
		var zero T
		return zero, err
	}

	c.data[name] = item[T]{
		object:    newData,
		expiresAt: time.Now().Add(c.expireAfter).UnixNano(),
	}
	return newData, nil
}

// Set saves the current value of an object in the cache, with the supplied
// duration until the object expires.
func (c *Cache[T]) Set(name string, object T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[name] = item[T]{
		object:    object,
		expiresAt: time.Now().Add(c.expireAfter).UnixNano(),
	}
}

// lookup finds an unexpired item at the given name. The bool indicates if a hit
// occurred. This is an internal API that is NOT thread-safe. Consumers must
// take out a read or read-write lock.
func (c *Cache[T]) lookup(name string) (T, bool) {
	var zero T

	item, ok := c.data[name]
	if !ok {
		return zero, false
	}
	if item.expired() {
		// The removal from the cache is deferred.
		go c.purgeExpired(name, item.expiresAt)
		return zero, false
	}
	return item.object, true
}
