package decision

import (
	"time"

	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

// Outcome tags how a decision was reached.
type Outcome string

const (
	// Success: the model answered and the answer parsed cleanly.
	Success Outcome = "success"
	// Fallback: a usable value was produced, but not from a clean parse.
	Fallback Outcome = "fallback"
	// Failure: no value; the caller picks a default.
	Failure Outcome = "failure"
)

type Kind string

const (
	KindCard Kind = "card"
	KindVote Kind = "vote"
	KindChat Kind = "chat"
)

// Meta is shared by every result.
type Meta struct {
	Outcome    Outcome       `json:"outcome"`
	Reason     string        `json:"reason,omitempty"`
	Raw        string        `json:"raw,omitempty"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

func (m Meta) OK() bool { return m.Outcome != Failure }

type CardResult struct {
	Meta
	Card game.Card `json:"card"`
}

type VoteResult struct {
	Meta
	TargetID string `json:"targetId"`
}

type ChatResult struct {
	Meta
	Message string `json:"message,omitempty"`
	Skipped bool   `json:"skipped"`
}

// Actor identifies who a decision is made for, for prompts and the audit trail.
type Actor struct {
	LobbyCode   string
	PlayerID    string
	Personality *personality.Personality
}

type CardRequest struct {
	Actor
	Situation string
	Cards     []game.Card
	Round     int
}

type VoteRequest struct {
	Actor
	Situation   string
	Submissions []game.Submission
	Round       int
}

type ChatRequest struct {
	Actor
	Situation string
	Phase     game.Phase
	Round     int
	Trigger   personality.Trigger
	Recent    []game.ChatMessage
}
