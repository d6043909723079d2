package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiliankoe/memebattles/internal/ai"
	"github.com/kiliankoe/memebattles/internal/ai/decision"
	"github.com/kiliankoe/memebattles/internal/game"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit", "decisions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, code := range []string{"AAAAA", "BBBBB", "AAAAA"} {
		err := s.Record(ctx, decision.Record{
			ID:         string(rune('a' + i)),
			Kind:       decision.KindVote,
			LobbyCode:  code,
			Round:      i + 1,
			Outcome:    decision.Fallback,
			Confidence: 0.42,
			Duration:   1500 * time.Millisecond,
			At:         base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "b" {
		t.Fatalf("unexpected order %+v", recs)
	}
	r := recs[0]
	if r.Kind != decision.KindVote || r.Outcome != decision.Fallback || r.Duration != 1500*time.Millisecond || !r.At.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("record did not round-trip: %+v", r)
	}

	recs, err = s.ForLobby(ctx, "AAAAA", 10)
	if err != nil || len(recs) != 2 {
		t.Fatalf("expected 2 records for lobby, got %d (%v)", len(recs), err)
	}

	n, err := s.Prune(ctx, base.Add(90*time.Second))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 pruned, got %d (%v)", n, err)
	}
}

func TestEngineWritesToStore(t *testing.T) {
	s := newTestStore(t)
	e := decision.New(ai.ProviderFunc(func(ctx context.Context, model, system, prompt string) (string, error) {
		return "stonks.jpg", nil
	}), decision.WithRecorder(s))

	res := e.SelectMemeCard(context.Background(), decision.CardRequest{
		Actor: decision.Actor{LobbyCode: "ABCDE", PlayerID: "ai-1"},
		Cards: []game.Card{{ID: "c1", Name: "stonks.jpg"}},
		Round: 2,
	})
	if res.Outcome != decision.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	recs, err := s.Recent(context.Background(), 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected one record, got %d (%v)", len(recs), err)
	}
	if recs[0].Choice != "stonks.jpg" || recs[0].Round != 2 || recs[0].LobbyCode != "ABCDE" {
		t.Fatalf("unexpected record %+v", recs[0])
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := NewSQLiteStore("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
