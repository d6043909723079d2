package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const storeTimeout = 3 * time.Second

type Option func(*RoomManager)

// WithStore persists every lobby change to st.
func WithStore(st LobbyStore) Option { return func(rm *RoomManager) { rm.store = st } }

func WithDurations(d Durations) Option { return func(rm *RoomManager) { rm.durations = d } }

func WithContent(c Content) Option { return func(rm *RoomManager) { rm.content = c } }

// WithTickInterval changes how often running lobbies are ticked; one tick is one second of game time.
func WithTickInterval(d time.Duration) Option {
	return func(rm *RoomManager) { rm.scheduler = NewScheduler(d) }
}

type RoomManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store     LobbyStore
	content   Content
	durations Durations
	scheduler *Scheduler

	obsMu     sync.RWMutex
	onChange  []func(*Session)
	onPhase   []func(*Session, PhaseChange)
	onRemoved []func(code string)
}

func NewRoomManager(opts ...Option) *RoomManager {
	rm := &RoomManager{
		sessions:  make(map[string]*Session),
		content:   DefaultContent(),
		durations: DefaultDurations(),
		scheduler: NewScheduler(time.Second),
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// OnChange registers fn to run after any lobby or game state change.
func (rm *RoomManager) OnChange(fn func(*Session)) {
	rm.obsMu.Lock()
	defer rm.obsMu.Unlock()
	rm.onChange = append(rm.onChange, fn)
}

// OnPhase registers fn to run after every phase transition.
func (rm *RoomManager) OnPhase(fn func(*Session, PhaseChange)) {
	rm.obsMu.Lock()
	defer rm.obsMu.Unlock()
	rm.onPhase = append(rm.onPhase, fn)
}

// OnRemoved registers fn to run after a lobby has been deleted.
func (rm *RoomManager) OnRemoved(fn func(code string)) {
	rm.obsMu.Lock()
	defer rm.obsMu.Unlock()
	rm.onRemoved = append(rm.onRemoved, fn)
}

// CreateLobby opens a new lobby with a verified-unique invite code and seats the host.
func (rm *RoomManager) CreateLobby(ctx context.Context, hostName, avatar string, maxPlayers int, settings Settings) (*Session, Player, string, error) {
	if maxPlayers < MinMaxPlayers || maxPlayers > MaxMaxPlayers {
		return nil, Player{}, "", fmt.Errorf("%w: max players must be between %d and %d", ErrInvalidSettings, MinMaxPlayers, MaxMaxPlayers)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, Player{}, "", err
	}

	rm.mu.Lock()
	code, err := uniqueCode(ctx, func(ctx context.Context, code string) (bool, error) {
		if rm.sessions[code] != nil {
			return true, nil
		}
		if rm.store == nil {
			return false, nil
		}
		return rm.store.Exists(ctx, code)
	})
	if err != nil {
		rm.mu.Unlock()
		return nil, Player{}, "", err
	}
	sess := newSession(code, maxPlayers, settings, rm.content, rm.durations, hooks{
		changed: rm.sessionChanged,
		phase:   rm.phaseChanged,
	})
	rm.sessions[code] = sess
	rm.mu.Unlock()

	if rm.store != nil {
		if err := rm.store.Create(ctx, sess.Snapshot().Lobby); err != nil {
			rm.mu.Lock()
			delete(rm.sessions, code)
			rm.mu.Unlock()
			return nil, Player{}, "", fmt.Errorf("persist lobby: %w", err)
		}
	}

	host, token, err := sess.Join(hostName, avatar)
	if err != nil {
		return nil, Player{}, "", err
	}
	log.Info().Str("code", code).Str("hostId", host.ID).Msg("lobby created")
	return sess, host, token, nil
}

// Get looks a lobby up by invite code; the code is normalized first.
func (rm *RoomManager) Get(code string) (*Session, error) {
	code, err := NormalizeInviteCode(code)
	if err != nil {
		return nil, err
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	s := rm.sessions[code]
	if s == nil {
		return nil, ErrLobbyNotFound
	}
	return s, nil
}

func (rm *RoomManager) Sessions() []*Session {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Session, 0, len(rm.sessions))
	for _, s := range rm.sessions {
		out = append(out, s)
	}
	return out
}

func (rm *RoomManager) Join(ctx context.Context, code, name, avatar string) (*Session, Player, string, error) {
	sess, err := rm.Get(code)
	if err != nil {
		return nil, Player{}, "", err
	}
	p, token, err := sess.Join(name, avatar)
	if err != nil {
		return nil, Player{}, "", err
	}
	if rm.store != nil {
		if err := rm.store.AddPlayer(ctx, sess.Code(), p); err != nil {
			log.Error().Err(err).Str("code", sess.Code()).Msg("failed to persist joined player")
		}
	}
	return sess, p, token, nil
}

// Leave removes a player; the lobby is deleted once no human is left.
func (rm *RoomManager) Leave(ctx context.Context, code, playerID string) error {
	sess, err := rm.Get(code)
	if err != nil {
		return err
	}
	humans, err := sess.Leave(playerID)
	if err != nil {
		return err
	}
	if humans == 0 {
		rm.Remove(ctx, sess.Code())
	}
	return nil
}

// Start begins the game and hands the lobby to the scheduler.
func (rm *RoomManager) Start(code, hostID string) error {
	sess, err := rm.Get(code)
	if err != nil {
		return err
	}
	if err := sess.Start(hostID); err != nil {
		return err
	}
	rm.scheduler.Start(sess)
	return nil
}

func (rm *RoomManager) Remove(ctx context.Context, code string) {
	rm.mu.Lock()
	_, ok := rm.sessions[code]
	delete(rm.sessions, code)
	rm.mu.Unlock()
	if !ok {
		return
	}
	rm.scheduler.Stop(code)
	if rm.store != nil {
		if err := rm.store.Delete(ctx, code); err != nil && !errors.Is(err, ErrLobbyNotFound) {
			log.Error().Err(err).Str("code", code).Msg("failed to delete lobby")
		}
	}
	log.Info().Str("code", code).Msg("lobby removed")

	rm.obsMu.RLock()
	fns := append([]func(string){}, rm.onRemoved...)
	rm.obsMu.RUnlock()
	for _, fn := range fns {
		fn(code)
	}
}

func (rm *RoomManager) Close() {
	rm.scheduler.Close()
}

func (rm *RoomManager) sessionChanged(s *Session) {
	if rm.store != nil {
		l := s.Snapshot().Lobby
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := rm.store.Update(ctx, l.Code, LobbyPatch{
			HostID:   &l.HostID,
			Status:   &l.Status,
			Players:  &l.Players,
			Settings: &l.Settings,
		})
		cancel()
		if err != nil && !errors.Is(err, ErrLobbyNotFound) {
			log.Error().Err(err).Str("code", l.Code).Msg("failed to persist lobby")
		}
	}
	rm.obsMu.RLock()
	fns := append([]func(*Session){}, rm.onChange...)
	rm.obsMu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (rm *RoomManager) phaseChanged(s *Session, pc PhaseChange) {
	if pc.To == PhaseGameOver {
		rm.scheduler.Stop(pc.Code)
	}
	rm.obsMu.RLock()
	fns := append([]func(*Session, PhaseChange){}, rm.onPhase...)
	rm.obsMu.RUnlock()
	for _, fn := range fns {
		fn(s, pc)
	}
}
