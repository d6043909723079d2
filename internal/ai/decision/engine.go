package decision

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/memebattles/internal/ai"
	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

const (
	DefaultTimeout = 8 * time.Second
	DefaultModel   = "gpt-4o-mini"
	recordTimeout  = 2 * time.Second

	baseConfidence = 0.5
	jitter         = 0.05
	maxChatChance  = 0.9
)

var (
	ErrTimeout    = errors.New("ai call timed out")
	ErrNoProvider = errors.New("no ai provider configured")
)

type Option func(*Engine)

func WithModel(model string) Option { return func(e *Engine) { e.model = model } }

// WithSystemPrompt sets the instructions every personality prompt starts with.
func WithSystemPrompt(s string) Option { return func(e *Engine) { e.systemPrompt = s } }

func WithTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }

func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

// WithSeed makes the engine's random choices reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// Engine turns a personality and a game situation into AI moves. Its
// operations never return errors or panic: problems come back as Failure
// results and callers substitute a default move.
type Engine struct {
	provider     ai.Provider
	model        string
	systemPrompt string
	timeout      time.Duration
	recorder     Recorder

	mu  sync.Mutex
	rng *rand.Rand
}

func New(p ai.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider:     p,
		model:        DefaultModel,
		systemPrompt: "You are playing a party game. Follow the answer format exactly.",
		timeout:      DefaultTimeout,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SelectMemeCard asks the model to pick a card from req.Cards. An unmatched
// answer falls back to a random card; a failed call yields Failure.
func (e *Engine) SelectMemeCard(ctx context.Context, req CardRequest) (res CardResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = CardResult{Meta: Meta{Outcome: Failure, Reason: "panic", Err: fmt.Errorf("panic: %v", r)}}
		}
		res.Duration = time.Since(start)
		e.record(KindCard, req.Actor, req.Round, res.Meta, res.Card.Name)
	}()

	if len(req.Cards) == 0 {
		return CardResult{Meta: Meta{Outcome: Failure, Reason: "no cards in hand"}}
	}
	raw, err := e.call(ctx, req.Personality, cardPrompt(req))
	if err != nil {
		return CardResult{Meta: Meta{Outcome: Failure, Reason: "model call failed", Err: err}}
	}
	m := matchCard(raw, req.Cards)
	if !m.found {
		m = cardMatch{card: req.Cards[e.intn(len(req.Cards))], outcome: Fallback, reason: "no matching filename, random card"}
	}
	return CardResult{
		Meta: Meta{Outcome: m.outcome, Reason: m.reason, Raw: raw, Confidence: e.Confidence(req.Personality, KindCard, raw)},
		Card: m.card,
	}
}

// CastVote asks the model to vote among the submissions not owned by req.PlayerID.
func (e *Engine) CastVote(ctx context.Context, req VoteRequest) (res VoteResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = VoteResult{Meta: Meta{Outcome: Failure, Reason: "panic", Err: fmt.Errorf("panic: %v", r)}}
		}
		res.Duration = time.Since(start)
		e.record(KindVote, req.Actor, req.Round, res.Meta, res.TargetID)
	}()

	eligible := make([]game.Submission, 0, len(req.Submissions))
	for _, s := range req.Submissions {
		if s.PlayerID != req.PlayerID {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return VoteResult{Meta: Meta{Outcome: Failure, Reason: "nothing to vote for"}}
	}
	raw, err := e.call(ctx, req.Personality, votePrompt(req, eligible))
	if err != nil {
		return VoteResult{Meta: Meta{Outcome: Failure, Reason: "model call failed", Err: err}}
	}
	meta := Meta{Outcome: Success, Raw: raw, Confidence: e.Confidence(req.Personality, KindVote, raw)}
	i, ok := parseVoteIndex(raw, len(eligible))
	if !ok {
		i = e.intn(len(eligible))
		meta.Outcome = Fallback
		meta.Reason = "no valid index, random vote"
	}
	return VoteResult{Meta: meta, TargetID: eligible[i].PlayerID}
}

// GenerateChatMessage asks for one in-character chat line. A SKIP answer is
// a Success with Skipped set.
func (e *Engine) GenerateChatMessage(ctx context.Context, req ChatRequest) (res ChatResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = ChatResult{Meta: Meta{Outcome: Failure, Reason: "panic", Err: fmt.Errorf("panic: %v", r)}}
		}
		res.Duration = time.Since(start)
		e.record(KindChat, req.Actor, req.Round, res.Meta, res.Message)
	}()

	raw, err := e.call(ctx, req.Personality, chatPrompt(req))
	if err != nil {
		return ChatResult{Meta: Meta{Outcome: Failure, Reason: "model call failed", Err: err}}
	}
	if isSkip(raw) {
		return ChatResult{Meta: Meta{Outcome: Success, Reason: "skipped", Raw: raw}, Skipped: true}
	}
	msg := cleanChat(raw, req.Personality)
	switch {
	case msg == "":
		return ChatResult{Meta: Meta{Outcome: Failure, Reason: "empty message", Raw: raw}}
	case len([]rune(msg)) > MaxChatLength:
		return ChatResult{Meta: Meta{Outcome: Failure, Reason: "message too long", Raw: raw}}
	case req.Personality != nil && req.Personality.Traits.HumorStyle == personality.HumorWholesome && containsBannedWord(msg):
		return ChatResult{Meta: Meta{Outcome: Failure, Reason: "banned word", Raw: raw}}
	}
	return ChatResult{
		Meta:    Meta{Outcome: Success, Raw: raw, Confidence: e.Confidence(req.Personality, KindChat, raw)},
		Message: msg,
	}
}

// ChatProbability is the chance that p says something in phase. Voting and
// results are chattier, and so are long situations.
func ChatProbability(p *personality.Personality, phase game.Phase, situation string) float64 {
	if p == nil {
		return 0
	}
	var prob float64
	switch p.Traits.ChatFrequency {
	case personality.ChatLow:
		prob = 0.1
	case personality.ChatMedium:
		prob = 0.3
	case personality.ChatHigh:
		prob = 0.5
	}
	if phase == game.PhaseVoting || phase == game.PhaseResults {
		prob *= 1.5
	}
	if len(situation) > 100 {
		prob += 0.1
	}
	if prob > maxChatChance {
		prob = maxChatChance
	}
	return prob
}

// ShouldChat rolls ChatProbability. It costs no model call.
func (e *Engine) ShouldChat(p *personality.Personality, phase game.Phase, situation string) bool {
	return e.float() < ChatProbability(p, phase, situation)
}

// Confidence scores a raw answer in [0,1]: short decisive answers score
// higher, rambling ones lower, weighted by the personality's trait for kind.
func (e *Engine) Confidence(p *personality.Personality, kind Kind, raw string) float64 {
	c := baseConfidence
	switch n := len(strings.TrimSpace(raw)); {
	case n == 0:
		c -= 0.3
	case n <= 40:
		c += 0.2
	case n > 200:
		c -= 0.2
	}
	if p != nil {
		switch kind {
		case KindCard:
			c += (personality.MemePreferenceWeight(p.Traits.MemePreference) - 0.5) * 0.5
		case KindVote:
			c += (personality.VotingStyleWeight(p.Traits.VotingStyle) - 0.5) * 0.5
		}
	}
	c += (e.float()*2 - 1) * jitter
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// call runs one completion bounded by the engine timeout. The result is
// abandoned if the provider does not honour cancellation in time.
func (e *Engine) call(ctx context.Context, p *personality.Personality, prompt string) (string, error) {
	if e.provider == nil {
		return "", ErrNoProvider
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	sys := systemPrompt(e.systemPrompt, p)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		text, err := e.provider.CompleteWithSystem(ctx, e.model, sys, prompt)
		ch <- reply{text: text, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTimeout, r.err)
		}
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
}

func (e *Engine) record(kind Kind, a Actor, round int, m Meta, choice string) {
	ev := log.Debug()
	if m.Outcome == Failure {
		ev = log.Warn().Err(m.Err)
	}
	ev.Str("kind", string(kind)).Str("code", a.LobbyCode).Str("playerId", a.PlayerID).
		Str("outcome", string(m.Outcome)).Str("reason", m.Reason).Dur("dur", m.Duration).Msg("ai decision")

	if e.recorder == nil {
		return
	}
	r := Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		LobbyCode:  a.LobbyCode,
		PlayerID:   a.PlayerID,
		Round:      round,
		Outcome:    m.Outcome,
		Reason:     m.Reason,
		Choice:     choice,
		Confidence: m.Confidence,
		Duration:   m.Duration,
		Raw:        m.Raw,
		At:         time.Now().UTC(),
	}
	if a.Personality != nil {
		r.PersonalityID = a.Personality.ID
	}
	if m.Err != nil {
		r.Error = m.Err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := e.recorder.Record(ctx, r); err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("failed to record ai decision")
	}
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

func (e *Engine) float() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}
