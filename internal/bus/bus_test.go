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

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/trackeo/trackeo-server/internal/project"
)

const testTopic = "federation.submission"

func stopBus(tb testing.TB, b *Bus) {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Stop(ctx); err != nil {
		tb.Fatalf("failed to stop bus: %v", err)
	}
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	b := New()

	var got []int
	b.Subscribe(testTopic, func(ctx context.Context, payload interface{}) error {
		got = append(got, payload.(int))
		return nil
	})

	var want []int
	for i := 1; i <= 50; i++ {
		if err := b.Publish(ctx, testTopic, i); err != nil {
			t.Fatal(err)
		}
		want = append(want, i)
	}

	if got, want := b.Len(), 50; got != want {
		t.Errorf("expected %d queued items before start, got %d", want, got)
	}

	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	stopBus(t, b)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delivery order mismatch (-want, +got):\n%s", diff)
	}
}

func TestBus_SequentialFanOut(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	b := New()

	var inFlight int32
	var overlapped int32
	var got []string

	record := func(name string) Handler {
		return func(ctx context.Context, payload interface{}) error {
			if atomic.AddInt32(&inFlight, 1) > 1 {
				atomic.StoreInt32(&overlapped, 1)
			}
			defer atomic.AddInt32(&inFlight, -1)

			time.Sleep(time.Millisecond)
			got = append(got, fmt.Sprintf("%s:%v", name, payload))
			return nil
		}
	}
	b.Subscribe(testTopic, record("first"))
	b.Subscribe(testTopic, record("second"))

	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := b.Publish(ctx, testTopic, i); err != nil {
			t.Fatal(err)
		}
	}
	stopBus(t, b)

	if atomic.LoadInt32(&overlapped) != 0 {
		t.Errorf("handlers overlapped")
	}

	want := []string{
		"first:1", "second:1",
		"first:2", "second:2",
		"first:3", "second:3",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fan-out mismatch (-want, +got):\n%s", diff)
	}
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	b := New()

	earlyCh := make(chan interface{}, 10)
	b.Subscribe(testTopic, func(ctx context.Context, payload interface{}) error {
		earlyCh <- payload
		return nil
	})

	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := b.Publish(ctx, testTopic, 1); err != nil {
		t.Fatal(err)
	}
	select {
	case <-earlyCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first delivery")
	}

	var mu sync.Mutex
	var late []interface{}
	b.Subscribe(testTopic, func(ctx context.Context, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		late = append(late, payload)
		return nil
	})

	if err := b.Publish(ctx, testTopic, 2); err != nil {
		t.Fatal(err)
	}
	stopBus(t, b)

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]interface{}{2}, late); diff != "" {
		t.Errorf("late subscriber mismatch (-want, +got):\n%s", diff)
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	b := New()

	var got []interface{}
	b.Subscribe(testTopic, func(ctx context.Context, payload interface{}) error {
		got = append(got, payload)
		return nil
	})

	if err := b.Publish(ctx, "athlete.updated", "ignored"); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(ctx, testTopic, "kept"); err != nil {
		t.Fatal(err)
	}

	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	stopBus(t, b)

	if diff := cmp.Diff([]interface{}{"kept"}, got); diff != "" {
		t.Errorf("topic mismatch (-want, +got):\n%s", diff)
	}
}

func TestBus_HandlerFailuresDoNotStopDelivery(t *testing.T) {
	t.Parallel()

	ctx := project.TestContext(t)
	b := New()

	var got []interface{}
	b.Subscribe(testTopic, func(ctx context.Context, payload interface{}) error {
		got = append(got, payload)
		switch payload {
		case "error":
			return errors.New("verification failed")
		case "panic":
			panic("boom")
		}
		return nil
	})

	for _, p := range []string{"error", "panic", "ok"} {
		if err := b.Publish(ctx, testTopic, p); err != nil {
			t.Fatal(err)
		}
	}

	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	stopBus(t, b)

	if diff := cmp.Diff([]interface{}{"error", "panic", "ok"}, got); diff != "" {
		t.Errorf("delivery mismatch (-want, +got):\n%s", diff)
	}
}

func TestBus_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start_twice", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		b := New()
		if err := b.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if err := b.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
			t.Errorf("expected %v, got %v", ErrAlreadyStarted, err)
		}
		stopBus(t, b)
	})

	t.Run("publish_after_stop", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		b := New()
		if err := b.Start(ctx); err != nil {
			t.Fatal(err)
		}
		stopBus(t, b)

		if err := b.Publish(ctx, testTopic, 1); !errors.Is(err, ErrStopped) {
			t.Errorf("expected %v, got %v", ErrStopped, err)
		}
		if err := b.Start(ctx); !errors.Is(err, ErrStopped) {
			t.Errorf("expected %v, got %v", ErrStopped, err)
		}
	})

	t.Run("stop_without_start", func(t *testing.T) {
		t.Parallel()

		b := New()
		stopBus(t, b)
	})

	t.Run("stop_deadline", func(t *testing.T) {
		t.Parallel()

		ctx := project.TestContext(t)
		b := New()

		enteredCh := make(chan struct{})
		b.Subscribe(testTopic, func(ctx context.Context, payload interface{}) error {
			close(enteredCh)
			<-ctx.Done()
			return ctx.Err()
		})

		if err := b.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if err := b.Publish(ctx, testTopic, 1); err != nil {
			t.Fatal(err)
		}
		<-enteredCh

		stopCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		if err := b.Stop(stopCtx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected %v, got %v", context.DeadlineExceeded, err)
		}

		// The loop exits once the cancelled handler returns.
		<-b.doneCh
	})
}
