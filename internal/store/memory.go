package store

import (
	"context"
	"sync"

	"github.com/kiliankoe/memebattles/internal/game"
)

// MemoryStore keeps lobbies in process memory. Used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	lobbies map[string]game.Lobby
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lobbies: make(map[string]game.Lobby)}
}

func (m *MemoryStore) Create(ctx context.Context, l game.Lobby) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lobbies[l.Code]; ok {
		return game.ErrCodeTaken
	}
	m.lobbies[l.Code] = game.CloneLobby(l)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, code string) (game.Lobby, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lobbies[code]
	if !ok {
		return game.Lobby{}, game.ErrLobbyNotFound
	}
	return game.CloneLobby(l), nil
}

func (m *MemoryStore) Update(ctx context.Context, code string, patch game.LobbyPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[code]
	if !ok {
		return game.ErrLobbyNotFound
	}
	game.ApplyPatch(&l, patch)
	l.UpdatedAt = now()
	m.lobbies[code] = l
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lobbies[code]; !ok {
		return game.ErrLobbyNotFound
	}
	delete(m.lobbies, code)
	return nil
}

func (m *MemoryStore) AddPlayer(ctx context.Context, code string, p game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[code]
	if !ok {
		return game.ErrLobbyNotFound
	}
	l.Players = game.UnionPlayer(append([]game.Player(nil), l.Players...), p)
	l.UpdatedAt = now()
	m.lobbies[code] = l
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lobbies[code]
	return ok, nil
}

func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lobbies)
}
