package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type failingStore struct{ err error }

func (f failingStore) Load(context.Context) (*CallLimitState, error) { return nil, f.err }
func (f failingStore) Save(context.Context, *CallLimitState) error { return f.err }

func newTestTracker(store StateStore, now time.Time) *Tracker {
	tracker := NewTracker(store, zerolog.Nop())
	tracker.now = func() time.Time { return now }
	return tracker
}

func TestUpdateFromHeaders(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		header      string
		wantState   bool
		wantUsed    int
		shouldError bool
	}{
		{name: "valid header", header: "12/40", wantState: true, wantUsed: 12},
		{name: "missing header", header: "", wantState: false},
		{name: "invalid header", header: "twelve/forty", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			tracker := newTestTracker(store, now)
			ctx := context.Background()

			headers := http.Header{}
			if tt.header != "" {
				headers.Set(HeaderCallLimit, tt.header)
			}

			err := tracker.UpdateFromHeaders(ctx, headers)
			if tt.shouldError {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if (state != nil) != tt.wantState {
				t.Fatalf("state = %+v, want present=%v", state, tt.wantState)
			}
			if state == nil {
				return
			}
			if state.Used != tt.wantUsed {
				t.Errorf("Used = %d, want %d", state.Used, tt.wantUsed)
			}
			if !state.LastUpdate.Equal(now) {
				t.Errorf("LastUpdate = %v, want %v", state.LastUpdate, now)
			}
		})
	}
}

func TestTracker_Delay(t *testing.T) {
	now := time.Now()
	ctx := context.Background()

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "no state yet", header: "", want: 0},
		{name: "healthy", header: "5/40", want: 0},
		{name: "warning", header: "35/40", want: ThrottleDelay},
		{name: "full", header: "40/40", want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker(NewMemoryStore(), now)
			if tt.header != "" {
				headers := http.Header{}
				headers.Set(HeaderCallLimit, tt.header)
				if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
					t.Fatalf("UpdateFromHeaders() error = %v", err)
				}
			}

			got, err := tracker.Delay(ctx)
			if err != nil {
				t.Fatalf("Delay() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_Wait_Healthy(t *testing.T) {
	tracker := newTestTracker(NewMemoryStore(), time.Now())

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() took %v with no state, want immediate", elapsed)
	}
}

func TestTracker_Wait_ContextCancelled(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	if err := store.Save(context.Background(), &CallLimitState{Used: 40, Size: 40, LastUpdate: now}); err != nil {
		t.Fatal(err)
	}
	tracker := newTestTracker(store, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestTracker_Delay_OldStateDrained(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	state := &CallLimitState{Used: 40, Size: 40, LastUpdate: now.Add(-StateTTL)}
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	delay, err := newTestTracker(store, now).Delay(context.Background())
	if err != nil {
		t.Fatalf("Delay() error = %v", err)
	}
	if delay != 0 {
		t.Errorf("Delay() = %v for state older than StateTTL, want 0", delay)
	}
}

func TestTracker_StoreErrors(t *testing.T) {
	storeErr := errors.New("store down")
	tracker := newTestTracker(failingStore{err: storeErr}, time.Now())
	ctx := context.Background()

	if _, err := tracker.Delay(ctx); !errors.Is(err, storeErr) {
		t.Errorf("Delay() error = %v, want %v", err, storeErr)
	}

	headers := http.Header{}
	headers.Set(HeaderCallLimit, "1/40")
	if err := tracker.UpdateFromHeaders(ctx, headers); !errors.Is(err, storeErr) {
		t.Errorf("UpdateFromHeaders() error = %v, want %v", err, storeErr)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &CallLimitState{Used: 3, Size: 40}
	if err := store.Save(ctx, state); err != nil {
		t.Fatal(err)
	}
	state.Used = 39

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Used != 3 {
		t.Errorf("Used = %d, want 3 (store must not alias the caller's value)", got.Used)
	}

	if err := store.Save(ctx, nil); err == nil {
		t.Error("Save(nil) expected error")
	}
}

func TestNewTracker_NilStore(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	if _, err := tracker.Delay(context.Background()); err != nil {
		t.Errorf("Delay() with default store error = %v", err)
	}
}

func TestPacer(t *testing.T) {
	pacer := NewPacer(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// First call is free, the next two wait one interval each.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 paced calls took %v, want >= ~100ms", elapsed)
	}
	if pacer.Interval() != 50*time.Millisecond {
		t.Errorf("Interval() = %v", pacer.Interval())
	}
}

func TestPacer_Disabled(t *testing.T) {
	pacer := NewPacer(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("unpaced calls took %v", elapsed)
	}
}
