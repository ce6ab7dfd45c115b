package roster

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestRoster_Respond(t *testing.T) {
	t.Parallel()

	t.Run("moves participant between statuses", func(t *testing.T) {
		t.Parallel()
		r := New()

		if _, err := r.Respond("alice", StatusJoining); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap, err := r.Respond("alice", StatusMaybe)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if snap.Count(StatusJoining) != 0 {
			t.Fatalf("expected alice to leave joining, got %v", snap.Members(StatusJoining))
		}
		if got := snap.Members(StatusMaybe); !reflect.DeepEqual(got, []string{"alice"}) {
			t.Fatalf("expected alice in maybe, got %v", got)
		}
		if snap.Total() != 1 {
			t.Fatalf("expected total of 1, got %d", snap.Total())
		}
	})

	t.Run("same status twice yields identical snapshots", func(t *testing.T) {
		t.Parallel()
		r := New()
		_, _ = r.Respond("bob", StatusJoining)

		first, err := r.Respond("alice", StatusCantMakeIt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := r.Respond("alice", StatusCantMakeIt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(first, second) {
			t.Fatalf("expected idempotent respond, got %+v and %+v", first, second)
		}
	})

	t.Run("rejects values outside the enumeration", func(t *testing.T) {
		t.Parallel()
		r := New()

		for _, status := range []Status{StatusUnspecified, Status(42)} {
			if _, err := r.Respond("alice", status); !errors.Is(err, ErrInvalidStatus) {
				t.Fatalf("expected ErrInvalidStatus for %d, got %v", status, err)
			}
		}
		if r.Snapshot().Total() != 0 {
			t.Fatalf("expected roster to remain empty")
		}
	})

	t.Run("orders members by arrival in the bucket", func(t *testing.T) {
		t.Parallel()
		r := New()
		_, _ = r.Respond("carol", StatusJoining)
		_, _ = r.Respond("alice", StatusJoining)
		_, _ = r.Respond("carol", StatusMaybe)
		snap, _ := r.Respond("carol", StatusJoining)

		if got := snap.Members(StatusJoining); !reflect.DeepEqual(got, []string{"alice", "carol"}) {
			t.Fatalf("unexpected ordering: %v", got)
		}
	})
}

func TestSnapshot_IsIsolatedFromLaterChanges(t *testing.T) {
	t.Parallel()
	r := New()
	snap, _ := r.Respond("alice", StatusJoining)

	members := snap.Members(StatusJoining)
	members[0] = "mallory"
	_, _ = r.Respond("alice", StatusCantMakeIt)

	if got := snap.Members(StatusJoining); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("snapshot changed after later respond: %v", got)
	}
	status, ok := snap.StatusOf("alice")
	if !ok || status != StatusJoining {
		t.Fatalf("expected alice joining in old snapshot, got %v %v", status, ok)
	}
}

func TestSnapshot_VersionTracksChanges(t *testing.T) {
	t.Parallel()
	r := New()
	if v := r.Snapshot().Version(); v != 0 {
		t.Fatalf("expected version 0 for an empty roster, got %d", v)
	}

	first, _ := r.Respond("alice", StatusJoining)
	repeated, _ := r.Respond("alice", StatusJoining)
	if first.Version() != 1 || repeated.Version() != first.Version() {
		t.Fatalf("repeating a status must not bump the version: %d then %d", first.Version(), repeated.Version())
	}

	moved, _ := r.Respond("alice", StatusMaybe)
	if moved.Version() <= first.Version() {
		t.Fatalf("expected version to grow after a change, got %d", moved.Version())
	}
}

func TestRoster_ConcurrentRespond(t *testing.T) {
	t.Parallel()

	const participants = 200
	r := New()

	want := make(map[string]Status, participants)
	for i := 0; i < participants; i++ {
		want[fmt.Sprintf("user-%d", i)] = Statuses[i%len(Statuses)]
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	observerErr := make(chan error, 1)

	go func() {
		for {
			select {
			case <-stop:
				close(observerErr)
				return
			default:
			}
			if err := checkDisjoint(r.Snapshot()); err != nil {
				observerErr <- err
				close(observerErr)
				return
			}
		}
	}()

	for id, status := range want {
		wg.Add(1)
		go func(id string, final Status) {
			defer wg.Done()
			for _, s := range Statuses {
				if _, err := r.Respond(id, s); err != nil {
					t.Errorf("respond failed: %v", err)
					return
				}
			}
			if _, err := r.Respond(id, final); err != nil {
				t.Errorf("respond failed: %v", err)
			}
		}(id, status)
	}
	wg.Wait()
	close(stop)

	if err := <-observerErr; err != nil {
		t.Fatalf("observer saw inconsistent snapshot: %v", err)
	}

	snap := r.Snapshot()
	if snap.Total() != participants {
		t.Fatalf("expected %d responses, got %d", participants, snap.Total())
	}
	for id, status := range want {
		got, ok := snap.StatusOf(id)
		if !ok || got != status {
			t.Fatalf("expected %s to be %s, got %s (present=%v)", id, status, got, ok)
		}
	}
}

func checkDisjoint(snap Snapshot) error {
	seen := make(map[string]Status)
	for _, status := range Statuses {
		for _, id := range snap.Members(status) {
			if prev, ok := seen[id]; ok {
				return fmt.Errorf("%s in both %s and %s", id, prev, status)
			}
			seen[id] = status
		}
	}
	return nil
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]Status{
		"joining":      StatusJoining,
		" Maybe ":      StatusMaybe,
		"cant_make_it": StatusCantMakeIt,
	}
	for input, want := range cases {
		got, err := ParseStatus(input)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%q) = %v, %v; want %v", input, got, err, want)
		}
		if got.String() != want.String() {
			t.Fatalf("round trip mismatch for %q", input)
		}
	}

	if _, err := ParseStatus("declined"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
