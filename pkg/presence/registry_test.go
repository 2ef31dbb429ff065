package presence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/afkwatch/pkg/testutil"
	"github.com/benbjohnson/clock"
)

func newTestRegistry(probe *testutil.MockProbe) (*Registry, *clock.Mock) {
	mock := clock.NewMock()
	return NewRegistry(WithClock(mock), WithProbe(probe)), mock
}

func TestRegistryAddWatcher(t *testing.T) {
	reg, _ := newTestRegistry(testutil.NewMockProbe())
	defer reg.RemoveAllWatchers()

	first, err := reg.AddWatcher(time.Second, nil)
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}
	second, err := reg.AddWatcher(2*time.Second, nil)
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}

	if first == second {
		t.Errorf("ids should be unique, both were %v", first)
	}
	if second <= first {
		t.Errorf("ids should increase: %v then %v", first, second)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}

	w, ok := reg.Watcher(second)
	if !ok {
		t.Fatal("Watcher() did not find the second watcher")
	}
	if w.Threshold() != 2*time.Second {
		t.Errorf("Threshold() = %v, want 2s", w.Threshold())
	}
	if !w.Running() {
		t.Error("AddWatcher should start the watcher")
	}
}

func TestRegistryAddWatcherInvalidThreshold(t *testing.T) {
	reg, _ := newTestRegistry(testutil.NewMockProbe())
	defer reg.RemoveAllWatchers()

	id, err := reg.AddWatcher(0, nil)
	if !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("AddWatcher(0) error = %v, want ErrInvalidThreshold", err)
	}
	if id != 0 {
		t.Errorf("AddWatcher(0) id = %v, want 0", id)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d after failed add, want 0", reg.Len())
	}

	next, err := reg.AddWatcher(time.Second, nil)
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}
	if next != 1 {
		t.Errorf("first successful id = %v, want 1", next)
	}
}

func TestRegistryRemoveWatcher(t *testing.T) {
	probe := testutil.NewMockProbe(testutil.Idle(10 * time.Second))
	reg, mock := newTestRegistry(probe)
	defer reg.RemoveAllWatchers()

	rec := &recorder{}
	id, err := reg.AddWatcher(time.Second, rec.callback)
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}
	w, _ := reg.Watcher(id)

	if !reg.RemoveWatcher(id) {
		t.Fatal("RemoveWatcher() = false, want true")
	}
	if reg.RemoveWatcher(id) {
		t.Error("second RemoveWatcher() = true, want false")
	}
	if w.Running() {
		t.Error("removed watcher is still running")
	}

	mock.Add(3 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := len(rec.getEvents()); got != 0 {
		t.Errorf("got %d events from a removed watcher, want 0", got)
	}

	next, err := reg.AddWatcher(time.Second, nil)
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}
	if next == id {
		t.Errorf("id %v was reused", id)
	}
}

func TestRegistryRemoveUnknownWatcher(t *testing.T) {
	reg, _ := newTestRegistry(testutil.NewMockProbe())
	defer reg.RemoveAllWatchers()

	if _, err := reg.AddWatcher(time.Second, nil); err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}

	if reg.RemoveWatcher(12345) {
		t.Error("RemoveWatcher(unknown) = true, want false")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistryRemoveAllWatchers(t *testing.T) {
	reg, _ := newTestRegistry(testutil.NewMockProbe())

	var watchers []*Watcher
	for i := 0; i < 3; i++ {
		id, err := reg.AddWatcher(time.Second, nil)
		if err != nil {
			t.Fatalf("AddWatcher() unexpected error: %v", err)
		}
		w, _ := reg.Watcher(id)
		watchers = append(watchers, w)
	}

	reg.RemoveAllWatchers()

	if reg.Len() != 0 {
		t.Errorf("Len() = %d after RemoveAllWatchers, want 0", reg.Len())
	}
	for _, w := range watchers {
		if w.Running() {
			t.Errorf("watcher %v still running", w.ID())
		}
	}

	// Safe to call on an empty registry.
	reg.RemoveAllWatchers()
}

func TestRegistryWatchersSnapshot(t *testing.T) {
	reg, _ := newTestRegistry(testutil.NewMockProbe())
	defer reg.RemoveAllWatchers()

	id, err := reg.AddWatcher(time.Second, nil)
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}

	snapshot := reg.Watchers()
	if len(snapshot) != 1 || snapshot[id] == nil {
		t.Fatalf("Watchers() = %v, want one entry for %v", snapshot, id)
	}

	delete(snapshot, id)
	if reg.Len() != 1 {
		t.Error("mutating the snapshot changed the registry")
	}
}

func TestRegistryDeliversEvents(t *testing.T) {
	probe := testutil.NewMockProbe(testutil.Idle(time.Second), testutil.Idle(2*time.Second))
	reg, mock := newTestRegistry(probe)
	defer reg.RemoveAllWatchers()

	rec := &recorder{}
	id, err := reg.AddWatcher(2*time.Second, rec.callback)
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}

	tick(t, mock, probe, time.Second)
	tick(t, mock, probe, time.Second)

	if !testutil.Eventually(waitTimeout, func() bool { return len(rec.getEvents()) == 1 }) {
		t.Fatalf("got %d events, want 1", len(rec.getEvents()))
	}
	ev := rec.getEvents()[0]
	if ev.ID != id || ev.Status != StatusAway || ev.Seconds != 2 {
		t.Errorf("event = %+v, want away/2s for watcher %v", ev, id)
	}
}

func TestRegistryPerWatcherOptions(t *testing.T) {
	reg, _ := newTestRegistry(testutil.NewMockProbe())
	defer reg.RemoveAllWatchers()

	id, err := reg.AddWatcher(time.Second, nil, WithInitialState(StateIdle))
	if err != nil {
		t.Fatalf("AddWatcher() unexpected error: %v", err)
	}
	w, _ := reg.Watcher(id)
	if w.State() != StateIdle {
		t.Errorf("State() = %v, want %v", w.State(), StateIdle)
	}

	if _, err := reg.AddWatcher(time.Second, nil, WithPollInterval(-time.Second)); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("AddWatcher(bad interval) error = %v, want ErrInvalidInterval", err)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg, _ := newTestRegistry(testutil.NewMockProbe())
	defer reg.RemoveAllWatchers()

	var wg sync.WaitGroup
	ids := make(chan WatcherID, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := reg.AddWatcher(time.Second, nil)
			if err != nil {
				t.Errorf("AddWatcher() unexpected error: %v", err)
				return
			}
			ids <- id
			_ = reg.Watchers()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[WatcherID]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %v", id)
		}
		seen[id] = true
	}

	for id := range seen {
		if id%2 == 0 {
			reg.RemoveWatcher(id)
		}
	}
	if reg.Len() != 25 {
		t.Errorf("Len() = %d, want 25", reg.Len())
	}
}
