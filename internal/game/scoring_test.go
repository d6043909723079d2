package game

import (
	"testing"
)

func threePlayers() []PlayerRef {
	return []PlayerRef{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}, {ID: "p3", Name: "Charlie"}}
}

func threeSubmissions() map[string]Submission {
	return map[string]Submission{
		"p1": {PlayerID: "p1", CardID: "A", CardName: "a.jpg"},
		"p2": {PlayerID: "p2", CardID: "B", CardName: "b.jpg"},
		"p3": {PlayerID: "p3", CardID: "C", CardName: "c.jpg"},
	}
}

func entryFor(t *testing.T, res RoundResult, id string) RoundScore {
	t.Helper()
	for _, e := range res.Entries {
		if e.PlayerID == id {
			return e
		}
	}
	t.Fatalf("no entry for %s", id)
	return RoundScore{}
}

func TestScoreRoundSingleWinner(t *testing.T) {
	// p1 plays A, p2 plays B, p3 plays C; p1->B, p2->C, p3->B
	res := ScoreRound(RoundInput{
		Players:     threePlayers(),
		Submissions: threeSubmissions(),
		Votes:       map[string]string{"p1": "p2", "p2": "p3", "p3": "p2"},
		RoundNumber: 1,
	})

	if res.VoteCounts["p2"] != 2 || res.VoteCounts["p3"] != 1 || res.VoteCounts["p1"] != 0 {
		t.Fatalf("unexpected vote counts: %v", res.VoteCounts)
	}
	if len(res.Winners) != 1 || res.Winners[0] != "p2" {
		t.Fatalf("expected p2 as only winner, got %v", res.Winners)
	}
	for _, e := range res.Entries {
		if e.IsWinner != (e.PlayerID == "p2") {
			t.Fatalf("unexpected winner flag for %s: %v", e.PlayerID, e.IsWinner)
		}
	}
	b := entryFor(t, res, "p2")
	if b.RoundScore != ParticipationPoints+2*VotePoints {
		t.Fatalf("expected %d for Bob, got %d", ParticipationPoints+2*VotePoints, b.RoundScore)
	}
	if res.Entries[0].PlayerID != "p2" {
		t.Fatalf("expected entries sorted by round score, first is %s", res.Entries[0].PlayerID)
	}
	if res.Streaks["p2"] != 1 || res.Streaks["p1"] != 0 {
		t.Fatalf("unexpected streaks: %v", res.Streaks)
	}
}

func TestScoreRoundIgnoresSelfVotes(t *testing.T) {
	res := ScoreRound(RoundInput{
		Players:     threePlayers(),
		Submissions: threeSubmissions(),
		Votes:       map[string]string{"p1": "p1", "p2": "p1", "p3": "p3"},
	})
	if res.VoteCounts["p1"] != 1 {
		t.Fatalf("self vote counted: p1 has %d votes", res.VoteCounts["p1"])
	}
	if res.VoteCounts["p3"] != 0 {
		t.Fatalf("self vote counted: p3 has %d votes", res.VoteCounts["p3"])
	}
	if len(res.Winners) != 1 || res.Winners[0] != "p1" {
		t.Fatalf("expected p1 to win, got %v", res.Winners)
	}
}

func TestScoreRoundAllAbstain(t *testing.T) {
	res := ScoreRound(RoundInput{
		Players:     threePlayers(),
		Submissions: threeSubmissions(),
		Votes:       map[string]string{},
		Streaks:     map[string]int{"p1": 2},
	})
	if len(res.Winners) != 0 {
		t.Fatalf("expected no winners, got %v", res.Winners)
	}
	sum := 0
	for _, e := range res.Entries {
		if e.RoundScore != ParticipationPoints {
			t.Fatalf("expected participation only for %s, got %d", e.PlayerID, e.RoundScore)
		}
		sum += e.RoundScore
	}
	if sum < 0 {
		t.Fatalf("negative round total %d", sum)
	}
	if res.Streaks["p1"] != 0 {
		t.Fatalf("streak should reset without a win, got %d", res.Streaks["p1"])
	}
}

func TestScoreRoundEmptySubmissions(t *testing.T) {
	res := ScoreRound(RoundInput{Players: threePlayers()})
	if len(res.Entries) != 3 {
		t.Fatalf("expected an entry per player, got %d", len(res.Entries))
	}
	for _, e := range res.Entries {
		if e.RoundScore != 0 || e.IsWinner {
			t.Fatalf("expected zero entry, got %+v", e)
		}
	}
}

func TestScoreRoundTieMakesAllWinners(t *testing.T) {
	res := ScoreRound(RoundInput{
		Players:     threePlayers(),
		Submissions: threeSubmissions(),
		Votes:       map[string]string{"p1": "p2", "p2": "p1", "p3": "p1"},
	})
	if len(res.Winners) != 1 {
		t.Fatalf("expected single winner p1, got %v", res.Winners)
	}
	res = ScoreRound(RoundInput{
		Players:     threePlayers(),
		Submissions: threeSubmissions(),
		Votes:       map[string]string{"p1": "p2", "p2": "p1"},
	})
	if len(res.Winners) != 2 {
		t.Fatalf("expected p1 and p2 to tie, got %v", res.Winners)
	}
}

func TestScoreRoundStreakBonus(t *testing.T) {
	in := RoundInput{
		Players:     threePlayers(),
		Submissions: threeSubmissions(),
		Votes:       map[string]string{"p1": "p2", "p3": "p2"},
		Scores:      map[string]int{"p2": 100},
		Streaks:     map[string]int{"p2": 1},
	}
	res := ScoreRound(in)
	b := entryFor(t, res, "p2")
	if b.StreakBonus != StreakBonusPoints {
		t.Fatalf("expected streak bonus %d, got %d", StreakBonusPoints, b.StreakBonus)
	}
	if res.Streaks["p2"] != 2 {
		t.Fatalf("expected streak 2, got %d", res.Streaks["p2"])
	}
	if res.Scores["p2"] != 100+b.RoundScore || b.TotalScore != res.Scores["p2"] {
		t.Fatalf("cumulative score not merged: %d", res.Scores["p2"])
	}
	// inputs untouched
	if in.Scores["p2"] != 100 || in.Streaks["p2"] != 1 {
		t.Fatal("ScoreRound mutated its input")
	}

	in.Streaks = map[string]int{"p2": 10}
	res = ScoreRound(in)
	if got := entryFor(t, res, "p2").StreakBonus; got != StreakBonusPoints*MaxStreakMultiplier {
		t.Fatalf("expected capped streak bonus, got %d", got)
	}
}

func TestScoreRoundIgnoresVotesForNonSubmitters(t *testing.T) {
	subs := threeSubmissions()
	delete(subs, "p3")
	res := ScoreRound(RoundInput{
		Players:     threePlayers(),
		Submissions: subs,
		Votes:       map[string]string{"p1": "p3", "p2": "p3"},
	})
	if len(res.Winners) != 0 {
		t.Fatalf("votes for a non-submitter must not count, winners %v", res.Winners)
	}
	if entryFor(t, res, "p3").RoundScore != 0 {
		t.Fatal("non-submitter should score 0")
	}
}

func TestStreaksListing(t *testing.T) {
	got := Streaks(map[string]int{"a": 1, "b": 3, "c": 0})
	if len(got) != 2 || got[0].PlayerID != "b" || got[1].PlayerID != "a" {
		t.Fatalf("unexpected streak list %+v", got)
	}
}
