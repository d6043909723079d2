package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrLobbyNotFound     = errors.New("lobby not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNotHost           = errors.New("not host")
	ErrInvalidPhase      = errors.New("invalid phase for action")
	ErrAlreadySubmitted  = errors.New("already submitted")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrSelfVote          = errors.New("cannot vote for own submission")
	ErrNoSubmission      = errors.New("player has no submission this round")
	ErrCardNotInHand     = errors.New("card not in hand")
	ErrLobbyFull         = errors.New("lobby is full")
	ErrGameStarted       = errors.New("game already started")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrInvalidInviteCode = errors.New("invalid invite code")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrStaleAction       = errors.New("stale action")
	ErrEmptyMessage      = errors.New("empty message")
	ErrCannotKickSelf    = errors.New("host cannot kick themselves")
)

const (
	MinPlayersToStart = 2
	MinMaxPlayers     = 2
	MaxMaxPlayers     = 10
	MaxRounds         = 20
	MaxChatLength     = 200
	chatBacklog       = 50
)

// ValidateSettings checks the human-tunable lobby settings. AI settings are
// validated by the AI player manager, which knows the personality catalog.
func ValidateSettings(s Settings) error {
	if s.Rounds < 1 || s.Rounds > MaxRounds {
		return fmt.Errorf("%w: rounds must be between 1 and %d", ErrInvalidSettings, MaxRounds)
	}
	if s.TimeLimit != 0 && (s.TimeLimit < 10 || s.TimeLimit > 300) {
		return fmt.Errorf("%w: time limit must be between 10 and 300 seconds", ErrInvalidSettings)
	}
	return nil
}

func DefaultSettings() Settings {
	return Settings{
		Rounds:    5,
		TimeLimit: 60,
		AI: AISettings{
			Enabled:         true,
			AutoBalance:     true,
			MaxAIPlayers:    3,
			MinHumanPlayers: 3,
		},
	}
}

type hooks struct {
	changed func(*Session)
	phase   func(*Session, PhaseChange)
}

// Session owns one lobby: its players, settings and live game state.
// All methods are safe for concurrent use; observers are called after the
// lock is released.
type Session struct {
	code string

	mu        sync.Mutex
	lobby     Lobby
	state     GameState
	hands     map[string][]Card
	tokens    map[string]string // token -> playerID
	deck      *deck
	durations Durations
	seq       uint64
	now       func() time.Time

	pending []PhaseChange
	dirty   bool
	hooks   hooks
}

func newSession(code string, maxPlayers int, settings Settings, content Content, durations Durations, h hooks) *Session {
	now := time.Now().UTC()
	return &Session{
		code: code,
		lobby: Lobby{
			Code:       code,
			Status:     LobbyWaiting,
			MaxPlayers: maxPlayers,
			Players:    []Player{},
			Settings:   cloneSettings(settings),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		state: GameState{
			Phase:         PhaseWaiting,
			Submissions:   make(map[string]Submission),
			Votes:         make(map[string]string),
			Scores:        make(map[string]int),
			PlayerStreaks: make(map[string]int),
			Chat:          []ChatMessage{},
			TotalRounds:   settings.Rounds,
		},
		hands:     make(map[string][]Card),
		tokens:    make(map[string]string),
		deck:      newDeck(content),
		durations: durations,
		now:       func() time.Time { return time.Now().UTC() },
		hooks:     h,
	}
}

func (s *Session) Code() string { return s.code }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase
}

func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RoundNumber
}

// Seq increases with every phase transition.
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.state
	st.Submissions = make(map[string]Submission, len(s.state.Submissions))
	for k, v := range s.state.Submissions {
		st.Submissions[k] = v
	}
	st.Votes = make(map[string]string, len(s.state.Votes))
	for k, v := range s.state.Votes {
		st.Votes[k] = v
	}
	st.Scores = copyCounts(s.state.Scores)
	st.PlayerStreaks = copyCounts(s.state.PlayerStreaks)
	st.Chat = append([]ChatMessage(nil), s.state.Chat...)
	return Snapshot{Lobby: cloneLobby(s.lobby), State: st}
}

// Hand returns a copy of a player's current cards.
func (s *Session) Hand(playerID string) []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Card(nil), s.hands[playerID]...)
}

// Authenticate resolves a player token handed out by Join.
func (s *Session) Authenticate(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	if s.indexLocked(id) < 0 {
		return "", false
	}
	return id, true
}

func (s *Session) IsHost(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.HostID == playerID
}

// Join seats a human player. A full lobby gives up its oldest AI seat to a human.
func (s *Session) Join(name, avatar string) (Player, string, error) {
	s.mu.Lock()
	p, token, err := s.joinLocked(name, avatar)
	s.mu.Unlock()
	s.flush()
	return p, token, err
}

func (s *Session) joinLocked(name, avatar string) (Player, string, error) {
	if s.state.Phase != PhaseWaiting {
		return Player{}, "", ErrGameStarted
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player"
	}
	if len(s.lobby.Players) >= s.lobby.MaxPlayers {
		ai := -1
		for i, p := range s.lobby.Players {
			if p.IsAI {
				ai = i
				break
			}
		}
		if ai < 0 {
			return Player{}, "", ErrLobbyFull
		}
		log.Info().Str("code", s.code).Str("playerId", s.lobby.Players[ai].ID).Msg("AI seat released for human")
		s.removeLocked(s.lobby.Players[ai].ID)
	}
	p := Player{
		ID:       uuid.NewString(),
		Name:     name,
		Avatar:   avatar,
		IsHost:   len(s.lobby.Players) == 0 || s.lobby.HostID == "",
		Status:   PlayerOnline,
		JoinedAt: s.now(),
	}
	if p.IsHost {
		s.lobby.HostID = p.ID
	}
	s.lobby.Players = append(s.lobby.Players, p)
	token := uuid.NewString()
	s.tokens[token] = p.ID
	s.touchLocked()
	return p, token, nil
}

// Leave removes a player and reports how many humans remain.
func (s *Session) Leave(playerID string) (int, error) {
	s.mu.Lock()
	humans, err := s.leaveLocked(playerID)
	s.mu.Unlock()
	s.flush()
	return humans, err
}

func (s *Session) leaveLocked(playerID string) (int, error) {
	if s.indexLocked(playerID) < 0 {
		return s.humanCountLocked(), ErrPlayerNotFound
	}
	s.removeLocked(playerID)
	if s.lobby.HostID == playerID {
		s.lobby.HostID = ""
		for i := range s.lobby.Players {
			if !s.lobby.Players[i].IsAI {
				s.lobby.Players[i].IsHost = true
				s.lobby.HostID = s.lobby.Players[i].ID
				break
			}
		}
	}
	s.touchLocked()
	s.checkCompletionLocked()
	return s.humanCountLocked(), nil
}

// Kick lets the host remove another player.
func (s *Session) Kick(hostID, targetID string) error {
	s.mu.Lock()
	err := func() error {
		if s.lobby.HostID != hostID {
			return ErrNotHost
		}
		if hostID == targetID {
			return ErrCannotKickSelf
		}
		_, err := s.leaveLocked(targetID)
		return err
	}()
	s.mu.Unlock()
	s.flush()
	return err
}

func (s *Session) UpdateSettings(hostID string, settings Settings) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	s.mu.Lock()
	err := func() error {
		if s.lobby.HostID != hostID {
			return ErrNotHost
		}
		if s.state.Phase != PhaseWaiting {
			return ErrGameStarted
		}
		s.lobby.Settings = cloneSettings(settings)
		s.state.TotalRounds = settings.Rounds
		s.touchLocked()
		return nil
	}()
	s.mu.Unlock()
	s.flush()
	return err
}

func (s *Session) SetOnline(playerID string, online bool) {
	s.mu.Lock()
	if i := s.indexLocked(playerID); i >= 0 {
		status := PlayerOffline
		if online {
			status = PlayerOnline
		}
		if s.lobby.Players[i].Status != status {
			s.lobby.Players[i].Status = status
			s.touchLocked()
		}
	}
	s.mu.Unlock()
	s.flush()
}

// SyncAIPlayers makes the lobby's AI seats match ais. Existing AI players keep
// their state; new ones are only seated while the lobby is waiting.
func (s *Session) SyncAIPlayers(ais []Player) {
	s.mu.Lock()
	want := make(map[string]Player, len(ais))
	for _, p := range ais {
		want[p.ID] = p
	}
	changed := false
	for _, p := range append([]Player(nil), s.lobby.Players...) {
		if p.IsAI {
			if _, ok := want[p.ID]; !ok {
				s.removeLocked(p.ID)
				changed = true
			}
		}
	}
	if s.state.Phase == PhaseWaiting {
		for _, p := range ais {
			if s.indexLocked(p.ID) >= 0 {
				continue
			}
			if len(s.lobby.Players) >= s.lobby.MaxPlayers {
				break
			}
			p.IsAI = true
			p.IsHost = false
			if p.JoinedAt.IsZero() {
				p.JoinedAt = s.now()
			}
			s.lobby.Players = append(s.lobby.Players, p)
			changed = true
		}
	}
	if changed {
		s.touchLocked()
		s.checkCompletionLocked()
	}
	s.mu.Unlock()
	s.flush()
}

func (s *Session) Start(hostID string) error {
	s.mu.Lock()
	err := func() error {
		if s.lobby.HostID != hostID {
			return ErrNotHost
		}
		if s.state.Phase != PhaseWaiting {
			return ErrGameStarted
		}
		if len(s.lobby.Players) < MinPlayersToStart {
			return ErrNotEnoughPlayers
		}
		return s.advanceLocked(EventStart)
	}()
	s.mu.Unlock()
	s.flush()
	return err
}

// Submit plays a card from the player's hand for the current round.
func (s *Session) Submit(playerID, cardID string) error {
	s.mu.Lock()
	err := s.submitLocked(playerID, cardID)
	s.mu.Unlock()
	s.flush()
	return err
}

// SubmitInRound is Submit for results computed asynchronously: it returns
// ErrStaleAction when the round or phase has moved on in the meantime.
func (s *Session) SubmitInRound(round int, playerID, cardID string) error {
	s.mu.Lock()
	var err error
	if s.state.RoundNumber != round || s.state.Phase != PhaseSubmission {
		err = ErrStaleAction
	} else {
		err = s.submitLocked(playerID, cardID)
	}
	s.mu.Unlock()
	s.flush()
	return err
}

func (s *Session) submitLocked(playerID, cardID string) error {
	if s.state.Phase != PhaseSubmission {
		return ErrInvalidPhase
	}
	i := s.indexLocked(playerID)
	if i < 0 {
		return ErrPlayerNotFound
	}
	if _, ok := s.state.Submissions[playerID]; ok {
		return ErrAlreadySubmitted
	}
	hand := s.hands[playerID]
	at := -1
	for j, c := range hand {
		if c.ID == cardID {
			at = j
			break
		}
	}
	if at < 0 {
		return ErrCardNotInHand
	}
	card := hand[at]
	s.hands[playerID] = append(hand[:at:at], hand[at+1:]...)
	s.state.Submissions[playerID] = Submission{
		PlayerID:    playerID,
		CardID:      card.ID,
		CardName:    card.Name,
		SubmittedAt: s.now(),
	}
	s.lobby.Players[i].HasSubmitted = true
	s.touchLocked()
	s.checkCompletionLocked()
	return nil
}

func (s *Session) Vote(voterID, targetID string) error {
	s.mu.Lock()
	err := s.voteLocked(voterID, targetID)
	s.mu.Unlock()
	s.flush()
	return err
}

// VoteInRound is Vote guarded against the round having moved on.
func (s *Session) VoteInRound(round int, voterID, targetID string) error {
	s.mu.Lock()
	var err error
	if s.state.RoundNumber != round || s.state.Phase != PhaseVoting {
		err = ErrStaleAction
	} else {
		err = s.voteLocked(voterID, targetID)
	}
	s.mu.Unlock()
	s.flush()
	return err
}

func (s *Session) voteLocked(voterID, targetID string) error {
	if s.state.Phase != PhaseVoting {
		return ErrInvalidPhase
	}
	i := s.indexLocked(voterID)
	if i < 0 {
		return ErrPlayerNotFound
	}
	if voterID == targetID {
		return ErrSelfVote
	}
	if _, ok := s.state.Submissions[targetID]; !ok {
		return ErrNoSubmission
	}
	if _, ok := s.state.Votes[voterID]; ok {
		return ErrAlreadyVoted
	}
	s.state.Votes[voterID] = targetID
	s.lobby.Players[i].HasVoted = true
	s.touchLocked()
	s.checkCompletionLocked()
	return nil
}

func (s *Session) Chat(playerID, text string) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	if r := []rune(text); len(r) > MaxChatLength {
		text = string(r[:MaxChatLength])
	}
	s.mu.Lock()
	i := s.indexLocked(playerID)
	if i < 0 {
		s.mu.Unlock()
		return ChatMessage{}, ErrPlayerNotFound
	}
	p := s.lobby.Players[i]
	msg := ChatMessage{ID: uuid.NewString(), PlayerID: p.ID, Name: p.Name, Text: text, IsAI: p.IsAI, SentAt: s.now()}
	s.state.Chat = append(s.state.Chat, msg)
	if n := len(s.state.Chat); n > chatBacklog {
		s.state.Chat = append([]ChatMessage(nil), s.state.Chat[n-chatBacklog:]...)
	}
	s.mu.Unlock()
	return msg, nil
}

// Tick advances the phase timer by one second and fires the timer transition
// when it runs out. Untimed phases ignore ticks.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state.Phase != PhaseWaiting && s.state.Phase != PhaseGameOver && s.state.TimeLeft > 0 {
		s.state.TimeLeft--
		if s.state.TimeLeft == 0 {
			if err := s.advanceLocked(EventTimerExpired); err != nil {
				log.Error().Err(err).Str("code", s.code).Msg("timer transition failed")
			}
		}
	}
	s.mu.Unlock()
	s.flush()
}

func (s *Session) advanceLocked(ev Event) error {
	to, err := Next(s.state.Phase, ev, s.state.RoundNumber, s.state.TotalRounds)
	if err != nil {
		return err
	}
	s.enterLocked(to)
	if to == PhaseVoting && s.allVotedLocked() {
		return s.advanceLocked(EventAllVoted)
	}
	return nil
}

func (s *Session) enterLocked(to Phase) {
	from := s.state.Phase
	switch to {
	case PhaseTransition:
		s.lobby.Status = LobbyStarted
		s.state.RoundNumber = 1
		s.state.TotalRounds = s.lobby.Settings.Rounds
		for _, p := range s.lobby.Players {
			if _, ok := s.state.Scores[p.ID]; !ok {
				s.state.Scores[p.ID] = 0
			}
		}
		s.dealLocked()
	case PhaseCountdown:
		if from == PhaseLeaderboard {
			s.state.RoundNumber++
			s.dealLocked()
		}
	case PhaseLeaderboard:
		s.scoreLocked()
	case PhaseGameOver:
		s.lobby.Status = LobbyFinished
	}
	s.state.Phase = to
	s.state.TimeLeft = s.durations.seconds(to, s.lobby.Settings)
	s.seq++
	s.pending = append(s.pending, PhaseChange{Code: s.code, From: from, To: to, Round: s.state.RoundNumber, Seq: s.seq})
	s.touchLocked()
	log.Info().Str("code", s.code).Str("from", string(from)).Str("to", string(to)).Int("round", s.state.RoundNumber).Msg("phase transition")
}

// dealLocked clears the per-round state, draws a situation and refills hands.
func (s *Session) dealLocked() {
	s.state.Submissions = make(map[string]Submission)
	s.state.Votes = make(map[string]string)
	s.state.CurrentSituation = s.deck.drawSituation()
	for i := range s.lobby.Players {
		p := &s.lobby.Players[i]
		p.HasSubmitted = false
		p.HasVoted = false
		s.hands[p.ID] = s.deck.fill(s.hands[p.ID])
	}
}

func (s *Session) scoreLocked() {
	refs := make([]PlayerRef, 0, len(s.lobby.Players))
	for _, p := range s.lobby.Players {
		refs = append(refs, PlayerRef{ID: p.ID, Name: p.Name})
	}
	res := ScoreRound(RoundInput{
		Players:     refs,
		Submissions: s.state.Submissions,
		Votes:       s.state.Votes,
		RoundNumber: s.state.RoundNumber,
		Scores:      s.state.Scores,
		Streaks:     s.state.PlayerStreaks,
	})
	s.state.Scores = res.Scores
	s.state.PlayerStreaks = res.Streaks
	s.state.LastRound = &res
	for i := range s.lobby.Players {
		s.lobby.Players[i].Score = res.Scores[s.lobby.Players[i].ID]
	}
}

func (s *Session) checkCompletionLocked() {
	var err error
	switch s.state.Phase {
	case PhaseSubmission:
		if s.allSubmittedLocked() {
			err = s.advanceLocked(EventAllSubmitted)
		}
	case PhaseVoting:
		if s.allVotedLocked() {
			err = s.advanceLocked(EventAllVoted)
		}
	}
	if err != nil {
		log.Error().Err(err).Str("code", s.code).Msg("completion transition failed")
	}
}

func (s *Session) allSubmittedLocked() bool {
	if len(s.lobby.Players) == 0 {
		return false
	}
	for _, p := range s.lobby.Players {
		if _, ok := s.state.Submissions[p.ID]; !ok {
			return false
		}
	}
	return true
}

// allVotedLocked reports whether every player who has something to vote for has voted.
func (s *Session) allVotedLocked() bool {
	for _, p := range s.lobby.Players {
		canVote := false
		for owner := range s.state.Submissions {
			if owner != p.ID {
				canVote = true
				break
			}
		}
		if !canVote {
			continue
		}
		if _, ok := s.state.Votes[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (s *Session) removeLocked(playerID string) {
	i := s.indexLocked(playerID)
	if i < 0 {
		return
	}
	s.lobby.Players = append(s.lobby.Players[:i], s.lobby.Players[i+1:]...)
	delete(s.hands, playerID)
	for token, id := range s.tokens {
		if id == playerID {
			delete(s.tokens, token)
		}
	}
}

func (s *Session) indexLocked(playerID string) int {
	for i := range s.lobby.Players {
		if s.lobby.Players[i].ID == playerID {
			return i
		}
	}
	return -1
}

func (s *Session) humanCountLocked() int {
	n := 0
	for _, p := range s.lobby.Players {
		if !p.IsAI {
			n++
		}
	}
	return n
}

func (s *Session) touchLocked() {
	s.lobby.UpdatedAt = s.now()
	s.dirty = true
}

// flush hands pending notifications to the observers outside the lock.
func (s *Session) flush() {
	s.mu.Lock()
	changes := s.pending
	s.pending = nil
	dirty := s.dirty
	s.dirty = false
	s.mu.Unlock()

	if dirty && s.hooks.changed != nil {
		s.hooks.changed(s)
	}
	if s.hooks.phase != nil {
		for _, pc := range changes {
			s.hooks.phase(s, pc)
		}
	}
}
