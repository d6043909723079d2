package game

import (
	"time"
)

type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhaseTransition  Phase = "transition"
	PhaseCountdown   Phase = "countdown"
	PhaseSubmission  Phase = "submission"
	PhaseVoting      Phase = "voting"
	PhaseResults     Phase = "results"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseGameOver    Phase = "game_over"
)

type LobbyStatus string

const (
	LobbyWaiting  LobbyStatus = "waiting"
	LobbyStarted  LobbyStatus = "started"
	LobbyFinished LobbyStatus = "finished"
)

type PlayerStatus string

const (
	PlayerOnline  PlayerStatus = "online"
	PlayerOffline PlayerStatus = "offline"
)

// Card is a meme card. Name is the image filename shown to players and to the AI.
type Card struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Player struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Avatar        string       `json:"avatar,omitempty"`
	IsHost        bool         `json:"isHost"`
	IsAI          bool         `json:"isAI"`
	PersonalityID string       `json:"personalityId,omitempty"`
	Difficulty    string       `json:"difficulty,omitempty"`
	Status        PlayerStatus `json:"status"`
	Score         int          `json:"score"`
	HasSubmitted  bool         `json:"hasSubmitted"`
	HasVoted      bool         `json:"hasVoted"`
	JoinedAt      time.Time    `json:"joinedAt"`
}

type AISettings struct {
	Enabled         bool     `json:"enabled"`
	AutoBalance     bool     `json:"autoBalance"`
	MaxAIPlayers    int      `json:"maxAIPlayers"`
	MinHumanPlayers int      `json:"minHumanPlayers"`
	PersonalityPool []string `json:"personalityPool"`
	Difficulty      string   `json:"difficulty,omitempty"`
}

type Settings struct {
	Rounds     int        `json:"rounds"`
	TimeLimit  int        `json:"timeLimit"` // seconds for the submission phase
	Categories []string   `json:"categories,omitempty"`
	AI         AISettings `json:"ai"`
}

type Lobby struct {
	Code       string      `json:"code"`
	HostID     string      `json:"hostId"`
	Status     LobbyStatus `json:"status"`
	MaxPlayers int         `json:"maxPlayers"`
	Players    []Player    `json:"players"`
	Settings   Settings    `json:"settings"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type Submission struct {
	PlayerID    string    `json:"playerId"`
	CardID      string    `json:"cardId"`
	CardName    string    `json:"cardName"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	IsAI     bool      `json:"isAI"`
	SentAt   time.Time `json:"sentAt"`
}

type PlayerStreak struct {
	PlayerID      string `json:"playerId"`
	CurrentStreak int    `json:"currentStreak"`
}

// GameState is the round-scoped live state of a lobby. Scores and
// PlayerStreaks survive across rounds, everything else is reset per round.
type GameState struct {
	Phase            Phase                 `json:"phase"`
	CurrentSituation string                `json:"currentSituation"`
	Submissions      map[string]Submission `json:"submissions"`
	Votes            map[string]string     `json:"votes"`
	RoundNumber      int                   `json:"roundNumber"`
	TotalRounds      int                   `json:"totalRounds"`
	TimeLeft         int                   `json:"timeLeft"`
	Scores           map[string]int        `json:"scores"`
	PlayerStreaks    map[string]int        `json:"playerStreaks"`
	Chat             []ChatMessage         `json:"chat"`
	LastRound        *RoundResult          `json:"lastRound,omitempty"`
}

// PhaseChange is published after every state machine transition.
type PhaseChange struct {
	Code  string `json:"code"`
	From  Phase  `json:"from"`
	To    Phase  `json:"to"`
	Round int    `json:"round"`
	Seq   uint64 `json:"seq"`
}

// Snapshot is a consistent copy of a session, safe to hand to other goroutines.
type Snapshot struct {
	Lobby Lobby     `json:"lobby"`
	State GameState `json:"state"`
}

func (s Snapshot) Player(id string) (Player, bool) {
	for _, p := range s.Lobby.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

func (s Snapshot) HumanCount() int {
	n := 0
	for _, p := range s.Lobby.Players {
		if !p.IsAI {
			n++
		}
	}
	return n
}
