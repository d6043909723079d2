package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExportRound appends the scored round in snap to a plain-text results file.
// It expects snap to be taken while the lobby shows the leaderboard.
func ExportRound(filename string, snap Snapshot) error {
	res := snap.State.LastRound
	if res == nil {
		return fmt.Errorf("round %d has not been scored", snap.State.RoundNumber)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	names := make(map[string]string, len(snap.Lobby.Players))
	for _, p := range snap.Lobby.Players {
		names[p.ID] = p.Name
		if p.IsAI {
			names[p.ID] = p.Name + " (AI)"
		}
	}
	nameOf := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return "Unknown"
	}

	var sb strings.Builder
	if res.RoundNumber == 1 {
		fmt.Fprintf(&sb, "Meme Battles - Lobby %s\n", snap.Lobby.Code)
		fmt.Fprintf(&sb, "Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")
		sb.WriteString("Players:\n")
		for _, p := range snap.Lobby.Players {
			fmt.Fprintf(&sb, "- %s\n", nameOf(p.ID))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Round %d/%d: %q\n", res.RoundNumber, snap.State.TotalRounds, snap.State.CurrentSituation)
	sb.WriteString(strings.Repeat("-", 40) + "\n")

	owners := make([]string, 0, len(snap.State.Submissions))
	for id := range snap.State.Submissions {
		owners = append(owners, id)
	}
	sort.Strings(owners)
	for _, id := range owners {
		fmt.Fprintf(&sb, "- %s played %s (%d vote(s))\n", nameOf(id), snap.State.Submissions[id].CardName, res.VoteCounts[id])
	}

	if len(res.Winners) > 0 {
		winners := make([]string, len(res.Winners))
		for i, id := range res.Winners {
			winners[i] = nameOf(id)
		}
		fmt.Fprintf(&sb, "\nWinner(s): %s\n", strings.Join(winners, ", "))
	}

	sb.WriteString("\nScores after this round:\n")
	for _, e := range res.Entries {
		line := fmt.Sprintf("- %s: %d points (+%d)", nameOf(e.PlayerID), e.TotalScore, e.RoundScore)
		if e.StreakBonus > 0 {
			line += fmt.Sprintf(" incl. streak bonus %d", e.StreakBonus)
		}
		sb.WriteString(line + "\n")
	}
	if streaks := Streaks(res.Streaks); len(streaks) > 0 {
		sb.WriteString("Streaks:")
		for _, st := range streaks {
			fmt.Fprintf(&sb, " %s x%d", nameOf(st.PlayerID), st.CurrentStreak)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if res.RoundNumber >= snap.State.TotalRounds {
		fmt.Fprintf(&sb, "Game ended at %s\n", time.Now().Format("2006-01-02 15:04:05"))
		sb.WriteString(strings.Repeat("=", 50) + "\n")
	}

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
