package decision

import (
	"fmt"
	"strings"

	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

func systemPrompt(base string, p *personality.Personality) string {
	var sb strings.Builder
	sb.WriteString(base)
	if p == nil {
		return sb.String()
	}
	t := p.Traits
	fmt.Fprintf(&sb, "\n\nYou are %s, a player in the party game Meme Battles.", p.Name)
	if p.Description != "" {
		sb.WriteString(" " + p.Description)
	}
	fmt.Fprintf(&sb, "\nHumor style: %s. Favourite memes: %s. When voting you pick the %s option.",
		t.HumorStyle, t.MemePreference, votingPhrase(t.VotingStyle))
	return sb.String()
}

func votingPhrase(v personality.VotingStyle) string {
	switch v {
	case personality.VoteFunniest:
		return "funniest"
	case personality.VoteStrategic:
		return "cleverest"
	case personality.VoteLoyal:
		return "most familiar"
	}
	return "first that catches your eye"
}

func cardPrompt(req CardRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %d. The situation is:\n%q\n\n", req.Round, req.Situation)
	sb.WriteString("Your hand of meme images (by filename):\n")
	for _, c := range req.Cards {
		fmt.Fprintf(&sb, "- %s\n", c.Name)
	}
	sb.WriteString("\nPick the meme that reacts best to the situation in your style. ")
	sb.WriteString("Answer with the exact filename only, nothing else.")
	return sb.String()
}

func votePrompt(req VoteRequest, eligible []game.Submission) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %d. The situation was:\n%q\n\n", req.Round, req.Situation)
	sb.WriteString("The other players submitted these memes:\n")
	for i, s := range eligible {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s.CardName)
	}
	fmt.Fprintf(&sb, "\nVote for the best one. Answer with its number (1-%d) only.", len(eligible))
	return sb.String()
}

func chatPrompt(req ChatRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The game is in the %s phase of round %d.", req.Phase, req.Round)
	if req.Situation != "" {
		fmt.Fprintf(&sb, " The situation is: %q.", req.Situation)
	}
	if len(req.Recent) > 0 {
		sb.WriteString("\nRecent chat:\n")
		for _, m := range req.Recent {
			fmt.Fprintf(&sb, "%s: %s\n", m.Name, m.Text)
		}
	}
	if req.Trigger != "" {
		fmt.Fprintf(&sb, "\nYou are about to comment on: %s.", req.Trigger)
	}
	fmt.Fprintf(&sb, "\nWrite one short chat message in character (max %d characters). ", MaxChatLength)
	sb.WriteString("If you have nothing to say, answer SKIP.")
	return sb.String()
}
