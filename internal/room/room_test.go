package room

import (
	"testing"
	"time"
)

func TestFirstJoinerBecomesHost(t *testing.T) {
	r := New("ABC123")
	r.Add("conn-a", "alice", "")
	r.Add("conn-b", "bob", "")

	if r.Host() != "conn-a" {
		t.Fatalf("host: got %q, want %q", r.Host(), "conn-a")
	}
}

func TestHostSuccessionFollowsJoinOrder(t *testing.T) {
	r := New("ABC123")
	r.Add("conn-a", "alice", "")
	r.Add("conn-b", "bob", "")
	r.Add("conn-c", "carol", "")

	steps := []struct {
		remove   string
		wantHost string
	}{
		{remove: "conn-a", wantHost: "conn-b"},
		{remove: "conn-b", wantHost: "conn-c"},
		{remove: "conn-c", wantHost: ""},
	}

	for _, s := range steps {
		if _, ok := r.Remove(s.remove); !ok {
			t.Fatalf("remove %q: not a member", s.remove)
		}
		if r.Host() != s.wantHost {
			t.Fatalf("after removing %q: host %q, want %q", s.remove, r.Host(), s.wantHost)
		}
	}
	if !r.IsEmpty() {
		t.Fatalf("expected empty room, have %d participants", r.Len())
	}
}

func TestNonHostLeaveKeepsHost(t *testing.T) {
	r := New("ABC123")
	r.Add("conn-a", "alice", "")
	r.Add("conn-b", "bob", "")
	r.Add("conn-c", "carol", "")

	r.Remove("conn-b")

	if r.Host() != "conn-a" {
		t.Fatalf("host: got %q, want %q", r.Host(), "conn-a")
	}
	got := r.Participants()
	if len(got) != 2 || got[0].ID != "conn-a" || got[1].ID != "conn-c" {
		t.Fatalf("unexpected order after middle leave: %#v", got)
	}
}

func TestRemoveUnknownIsNoOp(t *testing.T) {
	r := New("ABC123")
	r.Add("conn-a", "alice", "")

	if _, ok := r.Remove("conn-zzz"); ok {
		t.Fatalf("removing a stranger should report false")
	}
	if r.Len() != 1 || r.Host() != "conn-a" {
		t.Fatalf("room mutated by no-op remove")
	}
}

func TestRejoinKeepsPositionAndUpdatesProfile(t *testing.T) {
	r := New("ABC123")
	r.Add("conn-a", "alice", "")
	r.Add("conn-b", "bob", "")

	r.Add("conn-a", "alice2", "https://cdn.example/alice.png")

	got := r.Participants()
	if len(got) != 2 {
		t.Fatalf("participant count: got %d, want 2", len(got))
	}
	if got[0].ID != "conn-a" || got[0].Username != "alice2" || got[0].AvatarURL == "" {
		t.Fatalf("re-add did not update in place: %#v", got[0])
	}
}

func TestSetDistracted(t *testing.T) {
	r := New("ABC123")
	r.Add("conn-a", "alice", "")

	if _, ok := r.SetDistracted("conn-zzz", true); ok {
		t.Fatalf("status for a stranger should report false")
	}

	p, ok := r.SetDistracted("conn-a", true)
	if !ok || !p.IsDistracted {
		t.Fatalf("expected alice distracted, got %#v", p)
	}
	p, _ = r.SetDistracted("conn-a", false)
	if p.IsDistracted {
		t.Fatalf("expected alice focused again")
	}
}

func TestTimerLifecycle(t *testing.T) {
	r := New("ABC123")

	if _, ok := r.TimerEnd(); ok {
		t.Fatalf("fresh room should have no timer")
	}
	if r.Phase() != PhaseFocus {
		t.Fatalf("fresh room phase: got %q, want %q", r.Phase(), PhaseFocus)
	}

	end := time.Now().Add(BreakDuration)
	r.StartTimer(end, PhaseBreak)

	got, ok := r.TimerEnd()
	if !ok || !got.Equal(end) {
		t.Fatalf("timer end: got %v ok=%v, want %v", got, ok, end)
	}

	r.StopTimer()
	if _, ok := r.TimerEnd(); ok {
		t.Fatalf("stop should clear the end instant")
	}
	if r.Phase() != PhaseBreak {
		t.Fatalf("stop should keep the phase, got %q", r.Phase())
	}
}

func TestDurationFor(t *testing.T) {
	cases := []struct {
		name  string
		phase Phase
		want  time.Duration
	}{
		{name: "focus", phase: PhaseFocus, want: 25 * time.Minute},
		{name: "break", phase: PhaseBreak, want: 5 * time.Minute},
		{name: "unknown falls back to focus", phase: Phase("sprint"), want: 25 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DurationFor(tc.phase); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidPhase(t *testing.T) {
	if !ValidPhase(PhaseFocus) || !ValidPhase(PhaseBreak) {
		t.Fatalf("focus and break are valid phases")
	}
	if ValidPhase(Phase("")) || ValidPhase(Phase("sprint")) {
		t.Fatalf("unknown phases must be rejected")
	}
}
