package game

import (
	"errors"
	"testing"
)

func TestNextFollowsRoundCycle(t *testing.T) {
	steps := []struct {
		from  Phase
		ev    Event
		round int
		total int
		want  Phase
	}{
		{PhaseWaiting, EventStart, 0, 3, PhaseTransition},
		{PhaseTransition, EventTimerExpired, 1, 3, PhaseCountdown},
		{PhaseCountdown, EventTimerExpired, 1, 3, PhaseSubmission},
		{PhaseSubmission, EventTimerExpired, 1, 3, PhaseVoting},
		{PhaseSubmission, EventAllSubmitted, 1, 3, PhaseVoting},
		{PhaseVoting, EventTimerExpired, 1, 3, PhaseResults},
		{PhaseVoting, EventAllVoted, 1, 3, PhaseResults},
		{PhaseResults, EventTimerExpired, 1, 3, PhaseLeaderboard},
		{PhaseLeaderboard, EventTimerExpired, 1, 3, PhaseCountdown},
		{PhaseLeaderboard, EventTimerExpired, 3, 3, PhaseGameOver},
	}
	for _, st := range steps {
		got, err := Next(st.from, st.ev, st.round, st.total)
		if err != nil {
			t.Fatalf("%s + %s: unexpected error %v", st.from, st.ev, err)
		}
		if got != st.want {
			t.Fatalf("%s + %s: expected %s, got %s", st.from, st.ev, st.want, got)
		}
	}
}

func TestNextRejectsWrongEvents(t *testing.T) {
	bad := []struct {
		from Phase
		ev   Event
	}{
		{PhaseWaiting, EventTimerExpired},
		{PhaseSubmission, EventAllVoted},
		{PhaseVoting, EventAllSubmitted},
		{PhaseResults, EventStart},
		{PhaseGameOver, EventTimerExpired},
		{PhaseGameOver, EventStart},
	}
	for _, b := range bad {
		got, err := Next(b.from, b.ev, 1, 3)
		if !errors.Is(err, ErrInvalidPhase) {
			t.Fatalf("%s + %s: expected ErrInvalidPhase, got %v", b.from, b.ev, err)
		}
		if got != b.from {
			t.Fatalf("%s + %s: phase changed to %s on rejection", b.from, b.ev, got)
		}
	}
}

func TestDurationsSubmissionUsesTimeLimit(t *testing.T) {
	d := DefaultDurations()
	if got := d.seconds(PhaseSubmission, Settings{TimeLimit: 45}); got != 45 {
		t.Fatalf("expected 45, got %d", got)
	}
	if got := d.seconds(PhaseSubmission, Settings{}); got != 60 {
		t.Fatalf("expected default 60, got %d", got)
	}
	if got := d.seconds(PhaseCountdown, Settings{}); got != 5 {
		t.Fatalf("expected 5 second countdown, got %d", got)
	}
	if got := d.seconds(PhaseWaiting, Settings{}); got != 0 {
		t.Fatalf("waiting is untimed, got %d", got)
	}
}
