package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportRound(t *testing.T) {
	tl := newTestLobby(t, 1, "Bob")
	alice, bob := tl.players[0], tl.players[1]
	tl.startAndReachSubmission(t)
	tl.submitFirstCard(t, alice)
	bobCard := tl.submitFirstCard(t, bob)
	if err := tl.sess.Vote(alice.ID, bob.ID); err != nil {
		t.Fatalf("vote should be accepted: %v", err)
	}
	if err := tl.sess.Vote(bob.ID, alice.ID); err != nil {
		t.Fatalf("vote should be accepted: %v", err)
	}
	tl.sess.Tick() // results -> leaderboard

	file := filepath.Join(t.TempDir(), "out", "results.txt")
	if err := ExportRound(file, tl.sess.Snapshot()); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	out := string(b)
	for _, want := range []string{"Lobby " + tl.sess.Code(), "Round 1/1", bobCard.Name, "Winner(s): Alice, Bob", "Streaks:", "Alice x1", "Bob x1", "Game ended"} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}
}

func TestExportRoundNeedsScoredRound(t *testing.T) {
	tl := newTestLobby(t, 1, "Bob")
	if err := ExportRound(filepath.Join(t.TempDir(), "r.txt"), tl.sess.Snapshot()); err == nil {
		t.Fatal("expected error before any round is scored")
	}
}
