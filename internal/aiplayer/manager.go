package aiplayer

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/memebattles/internal/ai/decision"
	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

const (
	MinAIPlayers = 1
	MaxAIPlayers = 6
	historyLimit = 20
)

var (
	ErrLobbyAtCapacity    = errors.New("lobby already has the maximum number of AI players")
	ErrUnknownPersonality = errors.New("unknown personality")
	ErrInvalidDifficulty  = errors.New("invalid difficulty")
	ErrLobbyRemoved       = errors.New("lobby was removed")
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusThinking  Status = "thinking"
	StatusSubmitted Status = "submitted"
	StatusVoted     Status = "voted"
)

// DecisionEntry is a short note of a move the AI made.
type DecisionEntry struct {
	Kind    decision.Kind    `json:"kind"`
	Outcome decision.Outcome `json:"outcome"`
	Choice  string           `json:"choice"`
	Round   int              `json:"round"`
	At      time.Time        `json:"at"`
}

// AIPlayer is the runtime record of one AI seat.
type AIPlayer struct {
	ID           string                   `json:"id"`
	LobbyCode    string                   `json:"lobbyCode"`
	Personality  *personality.Personality `json:"-"`
	Name         string                   `json:"name"`
	Avatar       string                   `json:"avatar"`
	Difficulty   string                   `json:"difficulty"`
	IsConnected  bool                     `json:"isConnected"`
	Score        int                      `json:"score"`
	Hand         []game.Card              `json:"hand"`
	Status       Status                   `json:"status"`
	CreatedAt    time.Time                `json:"createdAt"`
	LastActivity time.Time                `json:"lastActivity"`
	Decisions    []DecisionEntry          `json:"decisions"`
	ChatHistory  []string                 `json:"chatHistory"`

	order uint64
}

func (a *AIPlayer) clone() *AIPlayer {
	cp := *a
	cp.Hand = append([]game.Card(nil), a.Hand...)
	cp.Decisions = append([]DecisionEntry(nil), a.Decisions...)
	cp.ChatHistory = append([]string(nil), a.ChatHistory...)
	return &cp
}

// SettingsError describes the first problem found in AI settings.
type SettingsError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *SettingsError) Error() string { return e.Field + ": " + e.Message }

type CreateOptions struct {
	PersonalityID string
	// Force keeps PersonalityID even if that personality already plays in the lobby.
	Force      bool
	MaxPlayers int
	Pool       []string
	Difficulty string
}

// Update carries the fields UpdateAIPlayer changes; nil fields are left alone.
type Update struct {
	Score        *int
	Hand         *[]game.Card
	Status       *Status
	IsConnected  *bool
	LastActivity *time.Time
	Decision     *DecisionEntry
	Chat         *string
}

// Manager owns every AI player in the process, keyed by lobby code and then
// player id. Mutations of one lobby are serialised by a per-lobby lock.
type Manager struct {
	catalog *personality.Catalog

	mu      sync.RWMutex
	lobbies map[string]map[string]*AIPlayer
	locks   map[string]*lobbyLock
	nextSeq uint64
	now     func() time.Time
}

func NewManager(catalog *personality.Catalog) *Manager {
	if catalog == nil {
		catalog = personality.Default()
	}
	return &Manager{
		catalog: catalog,
		lobbies: make(map[string]map[string]*AIPlayer),
		locks:   make(map[string]*lobbyLock),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Catalog() *personality.Catalog { return m.catalog }

// DefaultAISettings returns the lobby defaults with the whole catalog as pool.
func (m *Manager) DefaultAISettings() game.AISettings {
	s := game.DefaultSettings().AI
	for _, p := range m.catalog.All() {
		s.PersonalityPool = append(s.PersonalityPool, p.ID)
	}
	return s
}

// lobbyLock serialises mutations of one lobby. removed is set, under the
// mutex, once RemoveLobby dropped the lobby; callers still waiting on the
// old lock must not touch the registry after that.
type lobbyLock struct {
	sync.Mutex
	removed bool
}

func (m *Manager) lockFor(code string) *lobbyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[code]
	if !ok {
		l = &lobbyLock{}
		m.locks[code] = l
	}
	return l
}

// lockLobby locks code for mutation. It returns false, with nothing held,
// if the lobby was removed while waiting.
func (m *Manager) lockLobby(code string) (*lobbyLock, bool) {
	l := m.lockFor(code)
	l.Lock()
	if l.removed {
		l.Unlock()
		return nil, false
	}
	return l, true
}

// CreateAIPlayer seats a new AI player in the lobby's registry.
func (m *Manager) CreateAIPlayer(code string, opts CreateOptions) (*AIPlayer, error) {
	l, ok := m.lockLobby(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLobbyRemoved, code)
	}
	defer l.Unlock()
	ai, err := m.createLocked(code, opts)
	if err != nil {
		return nil, err
	}
	return ai.clone(), nil
}

func (m *Manager) createLocked(code string, opts CreateOptions) (*AIPlayer, error) {
	m.mu.RLock()
	existing := m.lobbies[code]
	count := len(existing)
	active := make(map[string]bool, count)
	names := make(map[string]bool, count)
	for _, a := range existing {
		if a.Personality != nil {
			active[a.Personality.ID] = true
		}
		names[a.Name] = true
	}
	m.mu.RUnlock()

	if opts.MaxPlayers > 0 && count >= opts.MaxPlayers {
		return nil, fmt.Errorf("%w (%d/%d)", ErrLobbyAtCapacity, count, opts.MaxPlayers)
	}
	switch opts.Difficulty {
	case "", "easy", "medium", "hard":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, opts.Difficulty)
	}

	var p *personality.Personality
	if opts.PersonalityID != "" {
		p = m.catalog.Get(opts.PersonalityID)
		if p == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPersonality, opts.PersonalityID)
		}
		if active[p.ID] && !opts.Force {
			p = nil
		}
	}
	if p == nil {
		p = m.pick(opts.Pool, active)
	}

	name := p.Name
	for i := 2; names[name]; i++ {
		name = fmt.Sprintf("%s %d", p.Name, i)
	}
	difficulty := opts.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}
	now := m.now()

	m.mu.Lock()
	m.nextSeq++
	ai := &AIPlayer{
		ID:           "ai-" + uuid.NewString(),
		LobbyCode:    code,
		Personality:  p,
		Name:         name,
		Avatar:       p.Avatar,
		Difficulty:   difficulty,
		IsConnected:  true,
		Hand:         []game.Card{},
		Status:       StatusWaiting,
		CreatedAt:    now,
		LastActivity: now,
		order:        m.nextSeq,
	}
	if m.lobbies[code] == nil {
		m.lobbies[code] = make(map[string]*AIPlayer)
	}
	m.lobbies[code][ai.ID] = ai
	m.mu.Unlock()

	log.Info().Str("code", code).Str("playerId", ai.ID).Str("personality", p.ID).Msg("AI player created")
	return ai, nil
}

// pick chooses a personality from pool (or the catalog) not yet active.
func (m *Manager) pick(pool []string, active map[string]bool) *personality.Personality {
	exclude := make([]string, 0, len(active))
	for id := range active {
		exclude = append(exclude, id)
	}
	if len(pool) == 0 {
		return m.catalog.Random(exclude...)
	}
	var free, known []*personality.Personality
	for _, id := range pool {
		p := m.catalog.Get(id)
		if p == nil {
			continue
		}
		known = append(known, p)
		if !active[id] {
			free = append(free, p)
		}
	}
	switch {
	case len(free) > 0:
		return free[rand.Intn(len(free))]
	case len(known) > 0:
		return known[rand.Intn(len(known))]
	}
	return m.catalog.Random(exclude...)
}

// RemoveAIPlayer deletes an AI player. Unknown ids are logged and ignored.
func (m *Manager) RemoveAIPlayer(code, playerID, reason string) {
	l, ok := m.lockLobby(code)
	if !ok {
		return
	}
	defer l.Unlock()
	m.removeLocked(code, playerID, reason)
}

func (m *Manager) removeLocked(code, playerID, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	players := m.lobbies[code]
	if _, ok := players[playerID]; !ok {
		log.Debug().Str("code", code).Str("playerId", playerID).Msg("AI player already removed")
		return false
	}
	delete(players, playerID)
	if len(players) == 0 {
		delete(m.lobbies, code)
	}
	log.Info().Str("code", code).Str("playerId", playerID).Str("reason", reason).Msg("AI player removed")
	return true
}

// BalanceAIPlayers adjusts the lobby's AI seats to humanCount and settings.
// With auto-balance the lobby is filled to min(max(humans, MinHumanPlayers),
// maxPlayers), never beyond MaxAIPlayers AI seats; surplus AI players are
// removed oldest first. Disabled AI removes every AI player.
func (m *Manager) BalanceAIPlayers(code string, humanCount int, settings game.AISettings, maxPlayers int) (added, removed []*AIPlayer, err error) {
	l, ok := m.lockLobby(code)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrLobbyRemoved, code)
	}
	defer l.Unlock()

	current := m.orderedLocked(code)
	want := 0
	if settings.Enabled {
		if settings.AutoBalance {
			target := humanCount
			if settings.MinHumanPlayers > target {
				target = settings.MinHumanPlayers
			}
			if target > maxPlayers {
				target = maxPlayers
			}
			want = target - humanCount
		} else {
			want = len(current)
			if free := maxPlayers - humanCount; want > free {
				want = free
			}
		}
		if want > settings.MaxAIPlayers {
			want = settings.MaxAIPlayers
		}
		if want < 0 {
			want = 0
		}
	}

	for i := 0; i < len(current)-want; i++ {
		if m.removeLocked(code, current[i].ID, "balance") {
			removed = append(removed, current[i].clone())
		}
	}
	for i := len(current); i < want; i++ {
		ai, err := m.createLocked(code, CreateOptions{Pool: settings.PersonalityPool, Difficulty: settings.Difficulty})
		if err != nil {
			return added, removed, err
		}
		added = append(added, ai.clone())
	}
	if len(added) > 0 || len(removed) > 0 {
		log.Info().Str("code", code).Int("humans", humanCount).Int("added", len(added)).Int("removed", len(removed)).Msg("AI players balanced")
	}
	return added, removed, nil
}

func (m *Manager) orderedLocked(code string) []*AIPlayer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*AIPlayer, 0, len(m.lobbies[code]))
	for _, a := range m.lobbies[code] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// GetAIPlayersForLobby returns copies of the lobby's AI players, oldest first.
func (m *Manager) GetAIPlayersForLobby(code string) []*AIPlayer {
	ordered := m.orderedLocked(code)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*AIPlayer, len(ordered))
	for i, a := range ordered {
		out[i] = a.clone()
	}
	return out
}

// GetAIPlayer returns a copy of the player, or nil.
func (m *Manager) GetAIPlayer(code, playerID string) *AIPlayer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a := m.lobbies[code][playerID]; a != nil {
		return a.clone()
	}
	return nil
}

func (m *Manager) IsAIPlayer(code, playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lobbies[code][playerID] != nil
}

// GetAIPlayerByID searches every lobby.
func (m *Manager) GetAIPlayerByID(playerID string) *AIPlayer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, players := range m.lobbies {
		if a := players[playerID]; a != nil {
			return a.clone()
		}
	}
	return nil
}

// UpdateAIPlayer applies u and refreshes LastActivity unless u sets it.
func (m *Manager) UpdateAIPlayer(code, playerID string, u Update) (*AIPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	players, ok := m.lobbies[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrLobbyNotFound, code)
	}
	a, ok := players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrPlayerNotFound, playerID)
	}
	if u.Score != nil {
		a.Score = *u.Score
	}
	if u.Hand != nil {
		a.Hand = append([]game.Card(nil), (*u.Hand)...)
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.IsConnected != nil {
		a.IsConnected = *u.IsConnected
	}
	if u.Decision != nil {
		a.Decisions = appendCapped(a.Decisions, *u.Decision)
	}
	if u.Chat != nil {
		a.ChatHistory = appendCapped(a.ChatHistory, *u.Chat)
	}
	if u.LastActivity != nil {
		a.LastActivity = *u.LastActivity
	} else {
		a.LastActivity = m.now()
	}
	return a.clone(), nil
}

func appendCapped[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyLimit {
		s = append([]T(nil), s[len(s)-historyLimit:]...)
	}
	return s
}

// ConvertToLobbyPlayer projects an AI player onto the lobby player shape.
func ConvertToLobbyPlayer(a *AIPlayer) game.Player {
	p := game.Player{
		ID:           a.ID,
		Name:         a.Name,
		Avatar:       a.Avatar,
		IsAI:         true,
		Difficulty:   a.Difficulty,
		Status:       game.PlayerOffline,
		Score:        a.Score,
		HasSubmitted: a.Status == StatusSubmitted,
		HasVoted:     a.Status == StatusVoted,
		JoinedAt:     a.CreatedAt,
	}
	if a.Personality != nil {
		p.PersonalityID = a.Personality.ID
	}
	if a.IsConnected {
		p.Status = game.PlayerOnline
	}
	return p
}

func (m *Manager) GetAIPlayersAsLobbyPlayers(code string) []game.Player {
	ais := m.GetAIPlayersForLobby(code)
	out := make([]game.Player, len(ais))
	for i, a := range ais {
		out[i] = ConvertToLobbyPlayer(a)
	}
	return out
}

// ValidateAISettings returns the first problem with s, or nil.
func (m *Manager) ValidateAISettings(s game.AISettings) *SettingsError {
	if s.MaxAIPlayers < MinAIPlayers || s.MaxAIPlayers > MaxAIPlayers {
		return &SettingsError{Field: "maxAIPlayers", Message: fmt.Sprintf("must be between %d and %d", MinAIPlayers, MaxAIPlayers)}
	}
	if s.MinHumanPlayers < 1 {
		return &SettingsError{Field: "minHumanPlayers", Message: "must be at least 1"}
	}
	if len(s.PersonalityPool) == 0 {
		return &SettingsError{Field: "personalityPool", Message: "must not be empty"}
	}
	for _, id := range s.PersonalityPool {
		if m.catalog.Get(id) == nil {
			return &SettingsError{Field: "personalityPool", Message: fmt.Sprintf("unknown personality %q", id)}
		}
	}
	switch s.Difficulty {
	case "", "easy", "medium", "hard":
	default:
		return &SettingsError{Field: "difficulty", Message: "must be easy, medium or hard"}
	}
	return nil
}

// CleanupInactiveAIPlayers removes AI players idle for longer than maxInactive
// and returns them grouped by lobby code.
func (m *Manager) CleanupInactiveAIPlayers(maxInactive time.Duration) map[string][]*AIPlayer {
	cutoff := m.now().Add(-maxInactive)
	type ref struct{ code, id string }
	m.mu.RLock()
	var stale []ref
	for code, players := range m.lobbies {
		for id, a := range players {
			if a.LastActivity.Before(cutoff) {
				stale = append(stale, ref{code, id})
			}
		}
	}
	m.mu.RUnlock()

	out := make(map[string][]*AIPlayer)
	n := 0
	for _, r := range stale {
		l, ok := m.lockLobby(r.code)
		if !ok {
			continue
		}
		// activity may have been refreshed since the scan
		m.mu.RLock()
		a := m.lobbies[r.code][r.id]
		idle := a != nil && a.LastActivity.Before(cutoff)
		if idle {
			a = a.clone()
		}
		m.mu.RUnlock()
		if idle && m.removeLocked(r.code, r.id, "inactive") {
			out[r.code] = append(out[r.code], a)
			n++
		}
		l.Unlock()
	}
	if n > 0 {
		log.Info().Int("removed", n).Dur("maxInactive", maxInactive).Msg("inactive AI players cleaned up")
	}
	return out
}

// RemoveLobby forgets every AI player of the lobby. Calls already waiting
// on the lobby fail with ErrLobbyRemoved instead of re-creating it.
func (m *Manager) RemoveLobby(code string) {
	l, ok := m.lockLobby(code)
	if !ok {
		return
	}
	n := m.dropLocked(code, l)
	l.Unlock()
	if n > 0 {
		log.Info().Str("code", code).Int("count", n).Msg("AI players of lobby removed")
	}
}

func (m *Manager) dropLocked(code string, l *lobbyLock) int {
	l.removed = true
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.lobbies[code])
	delete(m.lobbies, code)
	if m.locks[code] == l {
		delete(m.locks, code)
	}
	return n
}

// Reset clears all state.
func (m *Manager) Reset() {
	m.mu.RLock()
	codes := make([]string, 0, len(m.locks)+len(m.lobbies))
	for code := range m.locks {
		codes = append(codes, code)
	}
	for code := range m.lobbies {
		if _, ok := m.locks[code]; !ok {
			codes = append(codes, code)
		}
	}
	m.mu.RUnlock()
	for _, code := range codes {
		m.RemoveLobby(code)
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, players := range m.lobbies {
		n += len(players)
	}
	return n
}
