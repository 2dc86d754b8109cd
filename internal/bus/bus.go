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

// Package bus is an in-process, asynchronous publish/subscribe channel.
//
// Items are delivered from a single goroutine in publish order. Every handler
// subscribed to an item's topic runs to completion, one after another, before
// the next item is taken off the queue. The queue is unbounded and lives only
// in memory.
package bus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/ef-ds/deque"
	"github.com/trackeo/trackeo-server/pkg/logging"
)

var (
	// ErrStopped is returned when publishing to a bus that has been stopped.
	ErrStopped = errors.New("bus is stopped")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("bus is already started")
)

// Handler processes a single payload delivered on a topic. A returned error is
// logged by the bus and does not affect delivery of later items.
type Handler func(ctx context.Context, payload interface{}) error

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopping
	stateStopped
)

type envelope struct {
	topic   string
	payload interface{}
}

// Bus is an unbounded FIFO queue with a single delivery loop. The zero value
// is not usable, use New.
type Bus struct {
	mu          sync.Mutex
	queue       deque.Deque
	subscribers map[string][]Handler
	state       state
	cancel      context.CancelFunc

	wakeCh chan struct{}
	doneCh chan struct{}
}

// New creates a bus. Nothing is delivered until Start is called.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]Handler),
		wakeCh:      make(chan struct{}, 1),
		doneCh:      make(chan struct{}),
	}
}

// Subscribe registers h for every item published to topic from now on. Items
// already delivered are not replayed.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[topic] = append(b.subscribers[topic], h)
}

// Publish appends payload to the queue and returns without waiting for
// delivery. Publishing before Start is allowed; those items are delivered once
// the bus starts.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %q: %w", topic, err)
	}

	b.mu.Lock()
	if b.state == stateStopping || b.state == stateStopped {
		b.mu.Unlock()
		return ErrStopped
	}
	b.queue.PushBack(&envelope{topic: topic, payload: payload})
	b.mu.Unlock()

	b.wake()
	return nil
}

// Len returns the number of items waiting for delivery.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.queue.Len()
}

// Start launches the delivery loop. The loop runs until Stop is called or ctx
// is cancelled.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopping, stateStopped:
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.state = stateRunning

	go b.run(ctx)
	return nil
}

// Stop rejects further publishes and waits for the queue to drain. If ctx is
// done first, the in-flight handler's context is cancelled and ctx's error is
// returned; undelivered items are dropped.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case stateIdle:
		b.state = stateStopped
		b.mu.Unlock()
		return nil
	case stateStopped:
		b.mu.Unlock()
		return nil
	}
	b.state = stateStopping
	cancel := b.cancel
	b.mu.Unlock()

	b.wake()

	select {
	case <-b.doneCh:
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("waiting for bus to drain: %w", ctx.Err())
	}

	b.mu.Lock()
	b.state = stateStopped
	b.mu.Unlock()
	cancel()
	return nil
}

func (b *Bus) wake() {
	select {
	case b.wakeCh <- struct{}{}:
	default:
	}
}

// next pops the head of the queue. draining reports whether Stop has been
// called, in which case an empty queue ends the loop.
func (b *Bus) next() (env *envelope, handlers []Handler, draining bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	draining = b.state == stateStopping

	v, ok := b.queue.PopFront()
	if !ok {
		return nil, nil, draining
	}
	env = v.(*envelope)

	// Copy so a concurrent Subscribe cannot change the slice mid-delivery.
	handlers = make([]Handler, len(b.subscribers[env.topic]))
	copy(handlers, b.subscribers[env.topic])
	return env, handlers, draining
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.doneCh)

	logger := logging.FromContext(ctx).Named("bus")
	logger.Debugw("delivery loop started")
	defer logger.Debugw("delivery loop stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		env, handlers, draining := b.next()
		if env == nil {
			if draining {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-b.wakeCh:
			}
			continue
		}

		if len(handlers) == 0 {
			logger.Debugw("no subscribers, dropping item", "topic", env.topic)
			continue
		}

		for _, h := range handlers {
			if err := b.deliver(ctx, h, env); err != nil {
				logger.Errorw("handler failed", "topic", env.topic, "payload", env.payload, "error", err)
			}
		}
	}
}

// deliver invokes a single handler. A panicking handler is reported as an
// error so the loop keeps serving later items.
func (b *Bus) deliver(ctx context.Context, h Handler, env *envelope) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v\n%s", p, debug.Stack())
		}
	}()

	return h(ctx, env.payload)
}
