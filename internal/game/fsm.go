package game

import (
	"fmt"
	"time"
)

type Event string

const (
	EventStart        Event = "start"
	EventTimerExpired Event = "timer_expired"
	EventAllSubmitted Event = "all_submitted"
	EventAllVoted     Event = "all_voted"
)

// Next is the transition table of the round state machine. It never mutates
// anything; callers apply the returned phase under their own lock.
func Next(from Phase, ev Event, round, totalRounds int) (Phase, error) {
	switch from {
	case PhaseWaiting:
		if ev == EventStart {
			return PhaseTransition, nil
		}
	case PhaseTransition:
		if ev == EventTimerExpired {
			return PhaseCountdown, nil
		}
	case PhaseCountdown:
		if ev == EventTimerExpired {
			return PhaseSubmission, nil
		}
	case PhaseSubmission:
		if ev == EventTimerExpired || ev == EventAllSubmitted {
			return PhaseVoting, nil
		}
	case PhaseVoting:
		if ev == EventTimerExpired || ev == EventAllVoted {
			return PhaseResults, nil
		}
	case PhaseResults:
		if ev == EventTimerExpired {
			return PhaseLeaderboard, nil
		}
	case PhaseLeaderboard:
		if ev == EventTimerExpired {
			if round < totalRounds {
				return PhaseCountdown, nil
			}
			return PhaseGameOver, nil
		}
	case PhaseGameOver:
		return PhaseGameOver, fmt.Errorf("%w: game is over", ErrInvalidPhase)
	}
	return from, fmt.Errorf("%w: %s does not accept %s", ErrInvalidPhase, from, ev)
}

// Durations holds the length of every timed phase.
type Durations struct {
	Transition  time.Duration
	Countdown   time.Duration
	Voting      time.Duration
	Results     time.Duration
	Leaderboard time.Duration
	// Submission falls back to this when the lobby has no TimeLimit.
	Submission time.Duration
}

func DefaultDurations() Durations {
	return Durations{
		Transition:  6 * time.Second,
		Countdown:   5 * time.Second,
		Submission:  60 * time.Second,
		Voting:      30 * time.Second,
		Results:     6 * time.Second,
		Leaderboard: 8 * time.Second,
	}
}

// seconds returns the timer for a phase in whole seconds, or 0 when the phase is untimed.
func (d Durations) seconds(p Phase, settings Settings) int {
	var dur time.Duration
	switch p {
	case PhaseTransition:
		dur = d.Transition
	case PhaseCountdown:
		dur = d.Countdown
	case PhaseSubmission:
		if settings.TimeLimit > 0 {
			return settings.TimeLimit
		}
		dur = d.Submission
	case PhaseVoting:
		dur = d.Voting
	case PhaseResults:
		dur = d.Results
	case PhaseLeaderboard:
		dur = d.Leaderboard
	default:
		return 0
	}
	secs := int(dur / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
