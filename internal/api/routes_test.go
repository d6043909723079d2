package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kiliankoe/memebattles/internal/ai/decision"
	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

func newTestRouter(t *testing.T, history decision.History) (*gin.Engine, *game.RoomManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rm := game.NewRoomManager()
	t.Cleanup(rm.Close)
	r := gin.New()
	(&API{Rooms: rm, Catalog: personality.Default(), History: history}).Register(r)
	return r, rm
}

func get(t *testing.T, r http.Handler, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: invalid JSON %q: %v", path, w.Body.String(), err)
	}
	return w.Code, body
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	code, body := get(t, r, "/health")
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("unexpected health response %d %v", code, body)
	}
}

func TestPersonalities(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	code, body := get(t, r, "/api/personalities")
	list, _ := body["personalities"].([]any)
	if code != http.StatusOK || len(list) != personality.Default().Count() {
		t.Fatalf("expected the whole catalog, got %d %d entries", code, len(list))
	}
	_, body = get(t, r, "/api/personalities?humorStyle=wholesome")
	list, _ = body["personalities"].([]any)
	if len(list) == 0 {
		t.Fatal("expected at least one wholesome personality")
	}
	for _, p := range list {
		if p.(map[string]any)["traits"].(map[string]any)["humorStyle"] != "wholesome" {
			t.Fatalf("filter let through %v", p)
		}
	}
}

func TestInvite(t *testing.T) {
	r, rm := newTestRouter(t, nil)
	sess, _, _, err := rm.CreateLobby(context.Background(), "Alice", "", 4, game.Settings{Rounds: 1})
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}

	code, body := get(t, r, "/api/invite/"+sess.Code())
	if code != http.StatusOK || body["exists"] != true || body["joinable"] != true || body["players"] != float64(1) {
		t.Fatalf("unexpected invite response %d %v", code, body)
	}
	if code, _ := get(t, r, "/api/invite/AB"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed code, got %d", code)
	}
	if code, body := get(t, r, "/api/invite/ZZZZZ"); code != http.StatusNotFound || body["valid"] != true {
		t.Fatalf("expected 404 for unknown lobby, got %d %v", code, body)
	}
}

func TestLobby(t *testing.T) {
	r, rm := newTestRouter(t, nil)
	sess, _, _, _ := rm.CreateLobby(context.Background(), "Alice", "", 4, game.Settings{Rounds: 3})
	code, body := get(t, r, "/api/lobbies/"+sess.Code())
	if code != http.StatusOK || body["phase"] != string(game.PhaseWaiting) || body["total"] != float64(3) {
		t.Fatalf("unexpected lobby response %d %v", code, body)
	}
	if code, _ := get(t, r, "/api/lobbies/ZZZZZ"); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestDecisions(t *testing.T) {
	rec := decision.NewMemoryRecorder(10)
	_ = rec.Record(context.Background(), decision.Record{ID: "1", Kind: decision.KindVote, LobbyCode: "ABCDE"})
	_ = rec.Record(context.Background(), decision.Record{ID: "2", Kind: decision.KindCard, LobbyCode: "ABCDE"})
	r, _ := newTestRouter(t, rec)

	code, body := get(t, r, "/api/ai/decisions?limit=1")
	list, _ := body["decisions"].([]any)
	if code != http.StatusOK || len(list) != 1 || list[0].(map[string]any)["id"] != "2" {
		t.Fatalf("unexpected decisions %d %v", code, body)
	}
	if code, _ := get(t, r, "/api/ai/decisions?lobby=ABCDE"); code != http.StatusNotImplemented {
		t.Fatalf("memory recorder cannot filter by lobby, got %d", code)
	}

	r, _ = newTestRouter(t, nil)
	if _, body := get(t, r, "/api/ai/decisions"); body["decisions"] == nil {
		t.Fatal("decisions should be an empty list without history")
	}
}
