package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/memebattles/internal/aiplayer"
	"github.com/kiliankoe/memebattles/internal/game"
)

const requestTimeout = 5 * time.Second

// ConnCtx is what a socket knows about its owner once it joined a lobby.
type ConnCtx struct {
	Code     string
	Token    string
	PlayerID string
}

type Server struct {
	RM *game.RoomManager
	AI *aiplayer.Driver

	mu      sync.RWMutex
	members map[string]map[string]socketio.Conn // lobby code -> socket id -> conn
	io      *socketio.Server
}

// New wires the server into the room manager's observers. Call before Mount.
func New(rm *game.RoomManager, driver *aiplayer.Driver) *Server {
	srv := &Server{RM: rm, AI: driver, members: make(map[string]map[string]socketio.Conn)}
	rm.OnChange(func(s *game.Session) { srv.emitStateTo(s.Code()) })
	rm.OnPhase(srv.onPhase)
	rm.OnRemoved(srv.dropLobby)
	if driver != nil {
		driver.OnChat(srv.broadcastChat)
	}
	return srv
}

type createPayload struct {
	Name       string         `json:"name"`
	Avatar     string         `json:"avatar"`
	MaxPlayers int            `json:"maxPlayers"`
	Settings   *game.Settings `json:"settings"`
}

type joinPayload struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type resumePayload struct {
	Code  string `json:"code"`
	Token string `json:"token"`
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "lobby:create", func(s socketio.Conn, payload createPayload) map[string]any {
		settings := srv.defaultSettings()
		if payload.Settings != nil {
			settings = *payload.Settings
		}
		if err := srv.validateAI(settings.AI); err != nil {
			return srv.err(s, err)
		}
		if payload.MaxPlayers == 0 {
			payload.MaxPlayers = 6
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess, host, token, err := srv.RM.CreateLobby(ctx, payload.Name, payload.Avatar, payload.MaxPlayers, settings)
		if err != nil {
			return srv.err(s, err)
		}
		srv.attach(s, sess.Code(), token, host.ID)
		srv.rebalance(sess)
		log.Info().Str("sid", s.ID()).Str("code", sess.Code()).Msg("lobby:create")
		srv.emitStateTo(sess.Code())
		return map[string]any{"code": sess.Code(), "playerId": host.ID, "token": token}
	})

	io.OnEvent("/", "lobby:join", func(s socketio.Conn, payload joinPayload) map[string]any {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess, p, token, err := srv.RM.Join(ctx, payload.Code, payload.Name, payload.Avatar)
		if err != nil {
			return srv.err(s, err)
		}
		srv.attach(s, sess.Code(), token, p.ID)
		srv.rebalance(sess)
		log.Info().Str("sid", s.ID()).Str("code", sess.Code()).Str("playerId", p.ID).Msg("lobby:join")
		srv.emitStateTo(sess.Code())
		return map[string]any{"code": sess.Code(), "playerId": p.ID, "token": token}
	})

	// reconnection with the token handed out on create/join
	io.OnEvent("/", "lobby:resume", func(s socketio.Conn, payload resumePayload) map[string]any {
		sess, err := srv.RM.Get(payload.Code)
		if err != nil {
			return srv.err(s, err)
		}
		id, ok := sess.Authenticate(payload.Token)
		if !ok {
			return srv.errCode(s, "unauthorized", "Invalid player token")
		}
		srv.attach(s, sess.Code(), payload.Token, id)
		sess.SetOnline(id, true)
		log.Info().Str("sid", s.ID()).Str("code", sess.Code()).Str("playerId", id).Msg("lobby:resume")
		srv.emitTo(s, sess)
		return map[string]any{"ok": true, "playerId": id}
	})

	io.OnEvent("/", "lobby:leave", func(s socketio.Conn) map[string]any {
		cc, sess, errAck := srv.session(s)
		if errAck != nil {
			return errAck
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := srv.RM.Leave(ctx, cc.Code, cc.PlayerID); err != nil {
			return srv.err(s, err)
		}
		srv.removeMember(cc.Code, s)
		s.Leave(cc.Code)
		s.SetContext(&ConnCtx{})
		if _, err := srv.RM.Get(cc.Code); err == nil {
			srv.rebalance(sess)
		}
		log.Info().Str("code", cc.Code).Str("playerId", cc.PlayerID).Msg("lobby:leave")
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "lobby:kick", func(s socketio.Conn, payload struct {
		PlayerID string `json:"playerId"`
	}) map[string]any {
		cc, sess, errAck := srv.session(s)
		if errAck != nil {
			return errAck
		}
		target, _ := sess.Snapshot().Player(payload.PlayerID)
		if err := sess.Kick(cc.PlayerID, payload.PlayerID); err != nil {
			return srv.err(s, err)
		}
		if target.IsAI {
			srv.AI.Manager().RemoveAIPlayer(cc.Code, target.ID, "kicked")
		} else {
			srv.kickConns(cc.Code, target.ID)
			srv.rebalance(sess)
		}
		log.Info().Str("code", cc.Code).Str("playerId", payload.PlayerID).Msg("lobby:kick")
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "lobby:settings", func(s socketio.Conn, payload struct {
		Settings game.Settings `json:"settings"`
	}) map[string]any {
		cc, sess, errAck := srv.session(s)
		if errAck != nil {
			return errAck
		}
		if err := srv.validateAI(payload.Settings.AI); err != nil {
			return srv.err(s, err)
		}
		if err := sess.UpdateSettings(cc.PlayerID, payload.Settings); err != nil {
			return srv.err(s, err)
		}
		srv.rebalance(sess)
		log.Info().Str("code", cc.Code).Msg("lobby:settings")
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "game:start", func(s socketio.Conn) map[string]any {
		cc, _, errAck := srv.session(s)
		if errAck != nil {
			return errAck
		}
		if err := srv.RM.Start(cc.Code, cc.PlayerID); err != nil {
			return srv.err(s, err)
		}
		log.Info().Str("code", cc.Code).Msg("game:start")
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "game:submit", func(s socketio.Conn, payload struct {
		CardID string `json:"cardId"`
	}) map[string]any {
		cc, sess, errAck := srv.session(s)
		if errAck != nil {
			return errAck
		}
		if err := sess.Submit(cc.PlayerID, payload.CardID); err != nil {
			return srv.err(s, err)
		}
		log.Info().Str("code", cc.Code).Str("playerId", cc.PlayerID).Msg("game:submit")
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "game:vote", func(s socketio.Conn, payload struct {
		PlayerID string `json:"playerId"`
	}) map[string]any {
		cc, sess, errAck := srv.session(s)
		if errAck != nil {
			return errAck
		}
		if err := sess.Vote(cc.PlayerID, payload.PlayerID); err != nil {
			return srv.err(s, err)
		}
		log.Info().Str("code", cc.Code).Str("playerId", cc.PlayerID).Msg("game:vote")
		return map[string]any{"ok": true}
	})

	io.OnEvent("/", "chat:send", func(s socketio.Conn, payload struct {
		Text string `json:"text"`
	}) map[string]any {
		cc, sess, errAck := srv.session(s)
		if errAck != nil {
			return errAck
		}
		msg, err := sess.Chat(cc.PlayerID, payload.Text)
		if err != nil {
			return srv.err(s, err)
		}
		srv.broadcastChat(cc.Code, msg)
		return map[string]any{"ok": true, "id": msg.ID}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if cc, ok := s.Context().(*ConnCtx); ok && cc.Code != "" {
			srv.removeMember(cc.Code, s)
			if sess, err := srv.RM.Get(cc.Code); err == nil && !srv.connected(cc.Code, cc.PlayerID) {
				sess.SetOnline(cc.PlayerID, false)
			}
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) defaultSettings() game.Settings {
	s := game.DefaultSettings()
	if srv.AI != nil {
		s.AI = srv.AI.Manager().DefaultAISettings()
	}
	return s
}

func (srv *Server) validateAI(s game.AISettings) error {
	if srv.AI == nil || !s.Enabled {
		return nil
	}
	if err := srv.AI.Manager().ValidateAISettings(s); err != nil {
		return err
	}
	return nil
}

func (srv *Server) rebalance(sess *game.Session) {
	if srv.AI == nil {
		return
	}
	if err := srv.AI.Rebalance(sess); err != nil {
		log.Warn().Err(err).Str("code", sess.Code()).Msg("AI rebalance failed")
	}
}

// session resolves the lobby of a joined socket, or returns the error ack.
func (srv *Server) session(s socketio.Conn) (*ConnCtx, *game.Session, map[string]any) {
	cc, ok := s.Context().(*ConnCtx)
	if !ok || cc.Code == "" {
		return nil, nil, srv.errCode(s, "not_joined", "Join a lobby first")
	}
	sess, err := srv.RM.Get(cc.Code)
	if err != nil {
		return nil, nil, srv.err(s, err)
	}
	return cc, sess, nil
}

func (srv *Server) attach(s socketio.Conn, code, token, playerID string) {
	s.SetContext(&ConnCtx{Code: code, Token: token, PlayerID: playerID})
	s.Join(code)
	srv.mu.Lock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][s.ID()] = s
	srv.mu.Unlock()
}

func (srv *Server) removeMember(code string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[code]; m != nil {
		delete(m, c.ID())
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
}

func (srv *Server) conns(code string) []socketio.Conn {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	out := make([]socketio.Conn, 0, len(srv.members[code]))
	for _, c := range srv.members[code] {
		out = append(out, c)
	}
	return out
}

func (srv *Server) connected(code, playerID string) bool {
	for _, c := range srv.conns(code) {
		if cc, ok := c.Context().(*ConnCtx); ok && cc.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (srv *Server) kickConns(code, playerID string) {
	for _, c := range srv.conns(code) {
		if cc, ok := c.Context().(*ConnCtx); ok && cc.PlayerID == playerID {
			c.Emit("lobby:kicked", map[string]any{"code": code})
			srv.removeMember(code, c)
			c.Leave(code)
			c.SetContext(&ConnCtx{})
		}
	}
}

func (srv *Server) dropLobby(code string) {
	for _, c := range srv.conns(code) {
		c.Emit("lobby:closed", map[string]any{"code": code})
		c.Leave(code)
		c.SetContext(&ConnCtx{})
	}
	srv.mu.Lock()
	delete(srv.members, code)
	srv.mu.Unlock()
}

// emitStateTo sends every member the lobby state with their own hand.
func (srv *Server) emitStateTo(code string) {
	sess, err := srv.RM.Get(code)
	if err != nil {
		return
	}
	for _, c := range srv.conns(code) {
		srv.emitTo(c, sess)
	}
}

func (srv *Server) emitTo(c socketio.Conn, sess *game.Session) {
	cc, _ := c.Context().(*ConnCtx)
	if cc == nil {
		return
	}
	c.Emit("game:state", statePayload(sess.Snapshot(), cc.PlayerID, sess.Hand(cc.PlayerID)))
}

func (srv *Server) onPhase(sess *game.Session, pc game.PhaseChange) {
	srv.broadcast(pc.Code, "game:phase", pc)
	if pc.To == game.PhaseLeaderboard {
		if res := sess.Snapshot().State.LastRound; res != nil {
			srv.broadcast(pc.Code, "game:results", res)
		}
	}
}

func (srv *Server) broadcastChat(code string, msg game.ChatMessage) {
	srv.broadcast(code, "chat:message", msg)
}

func (srv *Server) broadcast(code, event string, payload any) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", code, event, payload)
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	code, message := errorCode(err)
	return srv.errCode(s, code, message)
}

func (srv *Server) errCode(s socketio.Conn, code, message string) map[string]any {
	s.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message, "code": code}
}

// statePayload is the game:state event as one player sees it. Other
// players' hands are never included. During submission only the fact that
// others have submitted is shown; from voting on, submissions are keyed by
// player id with their cards, since votes name the player they go to.
func statePayload(snap game.Snapshot, playerID string, hand []game.Card) map[string]any {
	state := snap.State
	if state.Phase == game.PhaseSubmission {
		subs := make(map[string]game.Submission, len(state.Submissions))
		for id, sub := range state.Submissions {
			if id == playerID {
				subs[id] = sub
			} else {
				subs[id] = game.Submission{PlayerID: id, SubmittedAt: sub.SubmittedAt}
			}
		}
		state.Submissions = subs
	}
	if hand == nil {
		hand = []game.Card{}
	}
	you := map[string]any{"playerId": playerID, "isHost": playerID != "" && snap.Lobby.HostID == playerID}
	return map[string]any{
		"lobby": snap.Lobby,
		"state": state,
		"hand":  hand,
		"you":   you,
	}
}

// errorCode maps domain errors to the short codes clients switch on.
func errorCode(err error) (string, string) {
	var se *aiplayer.SettingsError
	switch {
	case errors.As(err, &se):
		return "invalid_settings", se.Error()
	case errors.Is(err, game.ErrInvalidInviteCode):
		return "invalid_code", "Invalid invite code"
	case errors.Is(err, game.ErrLobbyNotFound):
		return "lobby_not_found", "Lobby not found"
	case errors.Is(err, game.ErrPlayerNotFound):
		return "player_not_found", "Player not found"
	case errors.Is(err, game.ErrNotHost):
		return "not_host", "Only the host can do that"
	case errors.Is(err, game.ErrLobbyFull):
		return "lobby_full", "Lobby is full"
	case errors.Is(err, game.ErrGameStarted):
		return "game_started", "Game already started"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players", "Not enough players to start"
	case errors.Is(err, game.ErrInvalidSettings):
		return "invalid_settings", err.Error()
	case errors.Is(err, game.ErrInvalidPhase), errors.Is(err, game.ErrStaleAction):
		return "invalid_phase", "Not possible right now"
	case errors.Is(err, game.ErrAlreadySubmitted), errors.Is(err, game.ErrAlreadyVoted),
		errors.Is(err, game.ErrSelfVote), errors.Is(err, game.ErrNoSubmission),
		errors.Is(err, game.ErrCardNotInHand), errors.Is(err, game.ErrEmptyMessage),
		errors.Is(err, game.ErrCannotKickSelf):
		return "bad_request", err.Error()
	}
	log.Error().Err(err).Msg("unexpected socket error")
	return "internal", "Something went wrong"
}
