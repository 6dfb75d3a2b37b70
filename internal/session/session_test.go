package session

import (
	"testing"
	"time"

	"imgseekbot/internal/engine"
)

func TestStoreReplaceAndDelete(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	store.Put(1, NewAwaitBoth(now, "", nil))
	store.Put(1, NewAwaitImage(now, engine.Baidu))

	s, ok := store.Get(1)
	if !ok {
		t.Fatal("expected session")
	}
	if s.Step() != StepAwaitImage {
		t.Fatalf("step = %s, want %s (put must replace)", s.Step(), StepAwaitImage)
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}

	store.Delete(1)
	if _, ok := store.Get(1); ok {
		t.Fatal("session must be gone after delete")
	}
}

func TestStepFields(t *testing.T) {
	now := time.Now()

	eng := NewAwaitEngine(now, []byte{1}, 1)
	if eng.Step() != StepAwaitEngine || eng.InvalidAttempts != 1 || len(eng.Image) != 1 {
		t.Fatalf("unexpected AwaitEngine: %+v", eng)
	}

	confirm := NewAwaitTextConfirm(now, "result")
	if confirm.Step() != StepAwaitTextConfirm || confirm.ResultText != "result" {
		t.Fatalf("unexpected AwaitTextConfirm: %+v", confirm)
	}
	if got := confirm.LastActivity(); !got.Equal(now) {
		t.Fatalf("lastActivity = %v, want %v", got, now)
	}

	later := now.Add(5 * time.Second)
	confirm.Touch(later)
	if !confirm.LastActivity().Equal(later) {
		t.Fatal("Touch must update lastActivity")
	}
}

func TestSweeperEvictsStaleOnly(t *testing.T) {
	store := NewMemoryStore()
	base := time.Unix(1_700_000_000, 0)

	store.Put(1, NewAwaitBoth(base, "", nil))                         // stale
	store.Put(2, NewAwaitImage(base.Add(20*time.Second), engine.Bing)) // fresh
	store.Put(3, NewAwaitTextConfirm(base.Add(15*time.Second), "r"))  // past its 10s window, within sweep threshold

	clock := base.Add(31 * time.Second)
	sw := newSweeper(store, time.Hour, SweepThreshold, func() time.Time { return clock })
	sw.sweep()

	if _, ok := store.Get(1); ok {
		t.Fatal("stale session must be evicted")
	}
	if _, ok := store.Get(2); !ok {
		t.Fatal("fresh session must survive")
	}
	// The sweep is a backstop using the 30s threshold even for
	// text-confirm sessions; their 10s expiry is enforced inline.
	if _, ok := store.Get(3); !ok {
		t.Fatal("text-confirm session within 30s must survive the sweep")
	}
}

func TestSweeperLifecycle(t *testing.T) {
	store := NewMemoryStore()
	store.Put(7, NewAwaitBoth(time.Unix(0, 0), "", nil))

	sw := newSweeper(store, time.Millisecond, SweepThreshold, time.Now)
	sw.Start()

	deadline := time.After(2 * time.Second)
	for store.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not evict within deadline")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	sw.Stop()
	// Stop must be idempotent and deterministic.
	sw.Stop()
}
