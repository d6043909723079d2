package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/memebattles/internal/ai/decision"
	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

// lobbyHistory is implemented by audit stores that can filter by lobby.
type lobbyHistory interface {
	ForLobby(ctx context.Context, code string, limit int) ([]decision.Record, error)
}

// API serves the read-only HTTP endpoints next to the socket server.
type API struct {
	Rooms   *game.RoomManager
	Catalog *personality.Catalog
	History decision.History
}

func (a *API) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC(), "lobbies": len(a.Rooms.Sessions())})
	})
	r.GET("/api/personalities", a.personalities)
	r.GET("/api/invite/:code", a.invite)
	r.GET("/api/lobbies/:code", a.lobby)
	r.GET("/api/ai/decisions", a.decisions)
}

func (a *API) personalities(c *gin.Context) {
	list := a.Catalog.All()
	if style := c.Query("humorStyle"); style != "" {
		list = a.Catalog.ByHumorStyle(personality.HumorStyle(style))
	}
	c.JSON(http.StatusOK, gin.H{"personalities": list})
}

// invite validates an invite code and tells whether the lobby can be joined.
func (a *API) invite(c *gin.Context) {
	code, err := game.NormalizeInviteCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "invalid_code"})
		return
	}
	sess, err := a.Rooms.Get(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"valid": true, "exists": false, "code": code})
		return
	}
	l := sess.Snapshot().Lobby
	joinable := l.Status == game.LobbyWaiting
	if joinable && len(l.Players) >= l.MaxPlayers {
		joinable = false
		for _, p := range l.Players {
			if p.IsAI {
				joinable = true
				break
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"exists":     true,
		"code":       code,
		"joinable":   joinable,
		"players":    len(l.Players),
		"maxPlayers": l.MaxPlayers,
	})
}

func (a *API) lobby(c *gin.Context) {
	sess, err := a.Rooms.Get(c.Param("code"))
	switch {
	case errors.Is(err, game.ErrInvalidInviteCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_code"})
		return
	case err != nil:
		c.JSON(http.StatusNotFound, gin.H{"error": "lobby_not_found"})
		return
	}
	snap := sess.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"lobby":   snap.Lobby,
		"phase":   snap.State.Phase,
		"round":   snap.State.RoundNumber,
		"total":   snap.State.TotalRounds,
		"streaks": game.Streaks(snap.State.PlayerStreaks),
	})
}

func (a *API) decisions(c *gin.Context) {
	if a.History == nil {
		c.JSON(http.StatusOK, gin.H{"decisions": []decision.Record{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var (
		recs []decision.Record
		err  error
	)
	if code := c.Query("lobby"); code != "" {
		lh, ok := a.History.(lobbyHistory)
		if !ok {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "lobby filter needs a persistent audit log"})
			return
		}
		recs, err = lh.ForLobby(c.Request.Context(), code, limit)
	} else {
		recs, err = a.History.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to read AI decisions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	if recs == nil {
		recs = []decision.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"decisions": recs})
}
