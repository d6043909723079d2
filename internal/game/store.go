package game

import (
	"context"
	"errors"
)

var ErrCodeTaken = errors.New("invite code already in use")

// LobbyPatch carries the fields to overwrite; nil fields are left alone.
type LobbyPatch struct {
	HostID   *string
	Status   *LobbyStatus
	Players  *[]Player
	Settings *Settings
}

// LobbyStore persists one document per lobby, keyed by invite code.
type LobbyStore interface {
	Create(ctx context.Context, lobby Lobby) error
	Get(ctx context.Context, code string) (Lobby, error)
	Update(ctx context.Context, code string, patch LobbyPatch) error
	Delete(ctx context.Context, code string) error
	// AddPlayer appends p unless a player with the same ID is already present.
	AddPlayer(ctx context.Context, code string, p Player) error
	Exists(ctx context.Context, code string) (bool, error)
}

// ApplyPatch is shared by store implementations.
func ApplyPatch(l *Lobby, patch LobbyPatch) {
	if patch.HostID != nil {
		l.HostID = *patch.HostID
	}
	if patch.Status != nil {
		l.Status = *patch.Status
	}
	if patch.Players != nil {
		l.Players = append([]Player(nil), (*patch.Players)...)
	}
	if patch.Settings != nil {
		l.Settings = cloneSettings(*patch.Settings)
	}
}

// UnionPlayer returns players with p appended unless its ID is already there.
func UnionPlayer(players []Player, p Player) []Player {
	for _, existing := range players {
		if existing.ID == p.ID {
			return players
		}
	}
	return append(players, p)
}

func cloneSettings(s Settings) Settings {
	out := s
	out.Categories = append([]string(nil), s.Categories...)
	out.AI.PersonalityPool = append([]string(nil), s.AI.PersonalityPool...)
	return out
}

func cloneLobby(l Lobby) Lobby {
	out := l
	out.Players = append([]Player(nil), l.Players...)
	out.Settings = cloneSettings(l.Settings)
	return out
}

// CloneLobby returns a deep copy of l.
func CloneLobby(l Lobby) Lobby { return cloneLobby(l) }
