package decision

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
)

const (
	// MaxFuzzyDistance is the largest edit distance still accepted as a card name.
	MaxFuzzyDistance = 3
	MaxChatLength    = 120
)

var (
	firstInt = regexp.MustCompile(`-?\d+`)

	// bannedWords are rejected in chat from wholesome personalities.
	bannedWords = map[string]bool{
		"hate": true, "stupid": true, "idiot": true, "dumb": true, "kill": true,
		"damn": true, "hell": true, "sucks": true, "loser": true, "trash": true,
		"shut": true, "crap": true,
	}
)

type cardMatch struct {
	card    game.Card
	outcome Outcome
	reason  string
	found   bool
}

// matchCard resolves a model answer to one of cards: an exact filename (with
// or without extension, case-insensitive) or the nearest name within
// MaxFuzzyDistance edits and less than half its length. found is false when
// neither applies.
func matchCard(raw string, cards []game.Card) cardMatch {
	tokens := answerTokens(raw)
	if len(tokens) == 0 {
		return cardMatch{}
	}
	for _, c := range cards {
		name := strings.ToLower(c.Name)
		base := strings.TrimSuffix(name, path.Ext(name))
		for _, tok := range tokens {
			if tok == name || tok == base {
				return cardMatch{card: c, outcome: Success, reason: "exact match", found: true}
			}
		}
	}

	best, bestDist := -1, MaxFuzzyDistance+1
	for i, c := range cards {
		name := strings.ToLower(c.Name)
		base := strings.TrimSuffix(name, path.Ext(name))
		for _, tok := range tokens {
			for _, cand := range []string{name, base} {
				// short names would match almost anything
				if d := levenshtein.ComputeDistance(tok, cand); d < bestDist && d*2 < len(cand) {
					best, bestDist = i, d
				}
			}
		}
	}
	if best >= 0 {
		return cardMatch{card: cards[best], outcome: Fallback, reason: "fuzzy match, distance " + strconv.Itoa(bestDist), found: true}
	}
	return cardMatch{}
}

// answerTokens returns the whole trimmed answer followed by its words, lowercased.
func answerTokens(raw string) []string {
	const cutset = "\"'`.,;:!?()[]{}*<> \t\r\n"
	whole := strings.ToLower(strings.Trim(raw, cutset))
	if whole == "" {
		return nil
	}
	out := []string{whole}
	for _, f := range strings.Fields(whole) {
		if f = strings.Trim(f, cutset); f != "" && f != whole {
			out = append(out, f)
		}
	}
	return out
}

// parseVoteIndex extracts the first integer of raw as a 1-based index into
// n options and returns it 0-based.
func parseVoteIndex(raw string, n int) (int, bool) {
	m := firstInt.FindString(raw)
	if m == "" {
		return 0, false
	}
	i, err := strconv.Atoi(m)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func isSkip(raw string) bool {
	return strings.EqualFold(strings.Trim(raw, "\"'`.!* \t\r\n"), "skip")
}

// cleanChat strips quoting and a leading "Name:" the model sometimes echoes.
func cleanChat(raw string, p *personality.Personality) string {
	msg := strings.TrimSpace(raw)
	if p != nil {
		if rest, ok := strings.CutPrefix(msg, p.Name+":"); ok {
			msg = strings.TrimSpace(rest)
		}
	}
	if len(msg) >= 2 && (msg[0] == '"' && msg[len(msg)-1] == '"' || msg[0] == '\'' && msg[len(msg)-1] == '\'') {
		msg = strings.TrimSpace(msg[1 : len(msg)-1])
	}
	return msg
}

func containsBannedWord(msg string) bool {
	words := strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if bannedWords[w] {
			return true
		}
	}
	return false
}
