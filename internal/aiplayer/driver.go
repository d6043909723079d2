package aiplayer

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/memebattles/internal/ai/decision"
	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

type DriverOption func(*Driver)

// WithThinkScale multiplies personality think delays; 0 disables them.
func WithThinkScale(f float64) DriverOption { return func(d *Driver) { d.thinkScale = f } }

// Driver plays the AI seats of every lobby in rooms. AI moves go through the
// same Session methods as human ones and are dropped when the round has
// moved on by the time the model answers.
type Driver struct {
	rooms  *game.RoomManager
	ai     *Manager
	engine *decision.Engine

	thinkScale float64
	chatSink   func(code string, msg game.ChatMessage)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDriver(rooms *game.RoomManager, mgr *Manager, engine *decision.Engine, opts ...DriverOption) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{rooms: rooms, ai: mgr, engine: engine, thinkScale: 1, ctx: ctx, cancel: cancel}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attach subscribes the driver to phase changes and lobby removal.
func (d *Driver) Attach() {
	d.rooms.OnPhase(d.HandlePhase)
	d.rooms.OnRemoved(d.ai.RemoveLobby)
}

// OnChat sets the receiver of chat lines AI players post. Call before Attach.
func (d *Driver) OnChat(fn func(code string, msg game.ChatMessage)) { d.chatSink = fn }

// Manager returns the AI player registry the driver plays for.
func (d *Driver) Manager() *Manager { return d.ai }

// Close stops pending AI turns and waits for them.
func (d *Driver) Close() {
	d.cancel()
	d.wg.Wait()
}

// Rebalance fits the lobby's AI seats to its human count and AI settings.
// Seats are only added or removed while the lobby is waiting.
func (d *Driver) Rebalance(sess *game.Session) error {
	snap := sess.Snapshot()
	if snap.State.Phase != game.PhaseWaiting {
		return nil
	}
	code := snap.Lobby.Code

	// seats the session gave up to humans
	for _, a := range d.ai.GetAIPlayersForLobby(code) {
		if _, ok := snap.Player(a.ID); !ok {
			d.ai.RemoveAIPlayer(code, a.ID, "seat released")
		}
	}

	settings := snap.Lobby.Settings.AI
	if len(settings.PersonalityPool) == 0 {
		settings.PersonalityPool = d.ai.DefaultAISettings().PersonalityPool
	}
	if _, _, err := d.ai.BalanceAIPlayers(code, snap.HumanCount(), settings, snap.Lobby.MaxPlayers); err != nil {
		if errors.Is(err, ErrLobbyRemoved) {
			return nil
		}
		return err
	}
	sess.SyncAIPlayers(d.ai.GetAIPlayersAsLobbyPlayers(code))
	return nil
}

// Sweep removes idle AI players and frees their seats.
func (d *Driver) Sweep(maxInactive time.Duration) {
	for code := range d.ai.CleanupInactiveAIPlayers(maxInactive) {
		if sess, err := d.rooms.Get(code); err == nil {
			sess.SyncAIPlayers(d.ai.GetAIPlayersAsLobbyPlayers(code))
		}
	}
}

// HandlePhase starts the AI moves a phase calls for.
func (d *Driver) HandlePhase(sess *game.Session, pc game.PhaseChange) {
	snap := sess.Snapshot()
	for _, p := range snap.Lobby.Players {
		p := p // per-iteration copy for the spawned closures (pre-Go 1.22 loop semantics)
		if !p.IsAI || !d.ai.IsAIPlayer(pc.Code, p.ID) {
			continue
		}
		switch pc.To {
		case game.PhaseSubmission:
			d.spawn(func() { d.playCard(sess, p.ID, pc.Round) })
		case game.PhaseVoting:
			d.spawn(func() { d.castVote(sess, p.ID, pc.Round) })
		case game.PhaseResults:
			d.spawn(func() { d.chat(sess, p.ID, pc.Round, game.PhaseResults, personality.TriggerGeneral) })
		case game.PhaseLeaderboard:
			d.spawn(func() { d.react(sess, p.ID) })
		case game.PhaseCountdown, game.PhaseGameOver:
			status := StatusWaiting
			_, _ = d.ai.UpdateAIPlayer(pc.Code, p.ID, Update{Status: &status})
		}
	}
}

func (d *Driver) spawn(fn func()) {
	if d.ctx.Err() != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

func (d *Driver) playCard(sess *game.Session, id string, round int) {
	code := sess.Code()
	a := d.ai.GetAIPlayer(code, id)
	if a == nil {
		return
	}
	thinking := StatusThinking
	hand := sess.Hand(id)
	_, _ = d.ai.UpdateAIPlayer(code, id, Update{Status: &thinking, Hand: &hand})
	if len(hand) == 0 {
		return
	}
	snap := sess.Snapshot()
	if !d.think(a.Personality, snap.State.TimeLeft) {
		return
	}

	res := d.engine.SelectMemeCard(d.ctx, decision.CardRequest{
		Actor:     decision.Actor{LobbyCode: code, PlayerID: id, Personality: a.Personality},
		Situation: snap.State.CurrentSituation,
		Cards:     hand,
		Round:     round,
	})
	card := res.Card
	if !res.OK() {
		card = hand[rand.Intn(len(hand))]
	}
	if err := sess.SubmitInRound(round, id, card.ID); err != nil {
		d.logDiscard(code, id, "submit", err)
		return
	}
	submitted := StatusSubmitted
	left := sess.Hand(id)
	_, _ = d.ai.UpdateAIPlayer(code, id, Update{
		Status:   &submitted,
		Hand:     &left,
		Decision: &DecisionEntry{Kind: decision.KindCard, Outcome: res.Outcome, Choice: card.Name, Round: round, At: time.Now().UTC()},
	})

	if d.engine.ShouldChat(a.Personality, game.PhaseSubmission, snap.State.CurrentSituation) {
		d.post(sess, id, personality.RandomChatMessage(a.Personality, personality.TriggerSubmission))
	}
}

func (d *Driver) castVote(sess *game.Session, id string, round int) {
	code := sess.Code()
	a := d.ai.GetAIPlayer(code, id)
	if a == nil {
		return
	}
	snap := sess.Snapshot()
	subs := make([]game.Submission, 0, len(snap.State.Submissions))
	for _, s := range snap.State.Submissions {
		subs = append(subs, s)
	}
	sortSubmissions(subs)
	if !hasOther(subs, id) {
		return
	}
	thinking := StatusThinking
	_, _ = d.ai.UpdateAIPlayer(code, id, Update{Status: &thinking})
	if !d.think(a.Personality, snap.State.TimeLeft) {
		return
	}

	res := d.engine.CastVote(d.ctx, decision.VoteRequest{
		Actor:       decision.Actor{LobbyCode: code, PlayerID: id, Personality: a.Personality},
		Situation:   snap.State.CurrentSituation,
		Submissions: subs,
		Round:       round,
	})
	target := res.TargetID
	if !res.OK() {
		target = randomOther(subs, id)
	}
	if err := sess.VoteInRound(round, id, target); err != nil {
		d.logDiscard(code, id, "vote", err)
		return
	}
	voted := StatusVoted
	_, _ = d.ai.UpdateAIPlayer(code, id, Update{
		Status:   &voted,
		Decision: &DecisionEntry{Kind: decision.KindVote, Outcome: res.Outcome, Choice: target, Round: round, At: time.Now().UTC()},
	})

	if d.engine.ShouldChat(a.Personality, game.PhaseVoting, snap.State.CurrentSituation) {
		d.post(sess, id, personality.RandomChatMessage(a.Personality, personality.TriggerVoting))
	}
}

// chat lets the model comment on the round, if the personality feels like it.
func (d *Driver) chat(sess *game.Session, id string, round int, phase game.Phase, trigger personality.Trigger) {
	code := sess.Code()
	a := d.ai.GetAIPlayer(code, id)
	if a == nil {
		return
	}
	snap := sess.Snapshot()
	if !d.engine.ShouldChat(a.Personality, phase, snap.State.CurrentSituation) {
		return
	}
	recent := snap.State.Chat
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	res := d.engine.GenerateChatMessage(d.ctx, decision.ChatRequest{
		Actor:     decision.Actor{LobbyCode: code, PlayerID: id, Personality: a.Personality},
		Situation: snap.State.CurrentSituation,
		Phase:     phase,
		Round:     round,
		Trigger:   trigger,
		Recent:    recent,
	})
	if !res.OK() || res.Skipped {
		return
	}
	if sess.Round() != round {
		return
	}
	d.post(sess, id, res.Message)
}

// react posts a canned winning or losing line once the round is scored.
func (d *Driver) react(sess *game.Session, id string) {
	code := sess.Code()
	a := d.ai.GetAIPlayer(code, id)
	if a == nil {
		return
	}
	snap := sess.Snapshot()
	score := snap.State.Scores[id]
	_, _ = d.ai.UpdateAIPlayer(code, id, Update{Score: &score})

	res := snap.State.LastRound
	if res == nil {
		return
	}
	trigger := personality.TriggerLosing
	for _, w := range res.Winners {
		if w == id {
			trigger = personality.TriggerWinning
		}
	}
	if trigger == personality.TriggerWinning || d.engine.ShouldChat(a.Personality, game.PhaseLeaderboard, "") {
		d.post(sess, id, personality.RandomChatMessage(a.Personality, trigger))
	}
}

func (d *Driver) post(sess *game.Session, id, text string) {
	msg, err := sess.Chat(id, text)
	if err != nil {
		return
	}
	_, _ = d.ai.UpdateAIPlayer(sess.Code(), id, Update{Chat: &msg.Text})
	if d.chatSink != nil {
		d.chatSink(sess.Code(), msg)
	}
}

// think waits a personality-dependent delay, at most half the time left in
// the phase. It reports false if the driver was closed meanwhile.
func (d *Driver) think(p *personality.Personality, timeLeft int) bool {
	delay := thinkDelay(p, d.thinkScale)
	if limit := time.Duration(timeLeft) * time.Second / 2; delay > limit {
		delay = limit
	}
	if delay <= 0 {
		return d.ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}

func thinkDelay(p *personality.Personality, scale float64) time.Duration {
	if p == nil || scale <= 0 {
		return 0
	}
	rt := p.Traits.ResponseTime
	ms := rt.MinMs
	if span := rt.MaxMs - rt.MinMs; span > 0 {
		ms += rand.Intn(span + 1)
	}
	return time.Duration(float64(ms)*scale) * time.Millisecond
}

func (d *Driver) logDiscard(code, id, action string, err error) {
	ev := log.Warn()
	if errors.Is(err, game.ErrStaleAction) || errors.Is(err, game.ErrInvalidPhase) {
		ev = log.Debug()
	}
	ev.Err(err).Str("code", code).Str("playerId", id).Str("action", action).Msg("AI move discarded")
}

// sortSubmissions orders submissions by time, then player id, so vote
// indexes mean the same thing on every call.
func sortSubmissions(subs []game.Submission) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
		}
		return subs[i].PlayerID < subs[j].PlayerID
	})
}

func hasOther(subs []game.Submission, id string) bool {
	for _, s := range subs {
		if s.PlayerID != id {
			return true
		}
	}
	return false
}

func randomOther(subs []game.Submission, id string) string {
	var ids []string
	for _, s := range subs {
		if s.PlayerID != id {
			ids = append(ids, s.PlayerID)
		}
	}
	return ids[rand.Intn(len(ids))]
}
