package game

import (
	"sort"
)

const (
	ParticipationPoints = 10
	VotePoints          = 20
	StreakBonusPoints   = 15
	MaxStreakMultiplier = 3
)

type PlayerRef struct {
	ID   string
	Name string
}

type RoundInput struct {
	Players     []PlayerRef
	Submissions map[string]Submission // playerID -> submission
	Votes       map[string]string     // voterID -> voted-for playerID
	RoundNumber int
	Scores      map[string]int
	Streaks     map[string]int
}

type ScoreBreakdown struct {
	Participation int `json:"participation"`
	VoteBonus     int `json:"voteBonus"`
	StreakBonus   int `json:"streakBonus"`
}

type RoundScore struct {
	PlayerID    string         `json:"playerId"`
	PlayerName  string         `json:"playerName"`
	RoundScore  int            `json:"roundScore"`
	TotalScore  int            `json:"totalScore"`
	Votes       int            `json:"votes"`
	IsWinner    bool           `json:"isWinner"`
	StreakBonus int            `json:"streakBonus"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
}

type RoundResult struct {
	RoundNumber int            `json:"roundNumber"`
	Entries     []RoundScore   `json:"entries"`
	Winners     []string       `json:"winners"`
	VoteCounts  map[string]int `json:"voteCounts"`
	Scores      map[string]int `json:"scores"`
	Streaks     map[string]int `json:"streaks"`
}

// ScoreRound tallies the votes of one round and folds the result into the
// cumulative scores and win streaks. Inputs are not modified.
func ScoreRound(in RoundInput) RoundResult {
	scores := copyCounts(in.Scores)
	streaks := copyCounts(in.Streaks)

	players := in.Players
	known := make(map[string]bool, len(players))
	for _, p := range players {
		known[p.ID] = true
	}
	// submitters that already left still get scored
	for id := range in.Submissions {
		if !known[id] {
			players = append(players, PlayerRef{ID: id, Name: id})
			known[id] = true
		}
	}

	voteCounts := make(map[string]int, len(in.Submissions))
	for voter, target := range in.Votes {
		if voter == target {
			continue
		}
		if _, ok := in.Submissions[target]; !ok {
			continue
		}
		voteCounts[target]++
	}

	maxVotes := 0
	for _, n := range voteCounts {
		if n > maxVotes {
			maxVotes = n
		}
	}
	winners := []string{}
	if maxVotes > 0 {
		for _, p := range players {
			if voteCounts[p.ID] == maxVotes {
				winners = append(winners, p.ID)
			}
		}
	}
	isWinner := make(map[string]bool, len(winners))
	for _, id := range winners {
		isWinner[id] = true
	}

	entries := make([]RoundScore, 0, len(players))
	for _, p := range players {
		e := RoundScore{PlayerID: p.ID, PlayerName: p.Name, Votes: voteCounts[p.ID], IsWinner: isWinner[p.ID]}
		if _, submitted := in.Submissions[p.ID]; submitted {
			e.Breakdown.Participation = ParticipationPoints
			e.Breakdown.VoteBonus = VotePoints * voteCounts[p.ID]
		}
		prev := streaks[p.ID]
		if e.IsWinner {
			if prev >= 1 {
				mult := prev
				if mult > MaxStreakMultiplier {
					mult = MaxStreakMultiplier
				}
				e.Breakdown.StreakBonus = StreakBonusPoints * mult
			}
			streaks[p.ID] = prev + 1
		} else {
			streaks[p.ID] = 0
		}
		e.StreakBonus = e.Breakdown.StreakBonus
		e.RoundScore = e.Breakdown.Participation + e.Breakdown.VoteBonus + e.Breakdown.StreakBonus
		scores[p.ID] += e.RoundScore
		e.TotalScore = scores[p.ID]
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RoundScore > entries[j].RoundScore
	})

	return RoundResult{
		RoundNumber: in.RoundNumber,
		Entries:     entries,
		Winners:     winners,
		VoteCounts:  voteCounts,
		Scores:      scores,
		Streaks:     streaks,
	}
}

// Streaks lists the non-zero streaks, longest first.
func Streaks(streaks map[string]int) []PlayerStreak {
	out := make([]PlayerStreak, 0, len(streaks))
	for id, n := range streaks {
		if n > 0 {
			out = append(out, PlayerStreak{PlayerID: id, CurrentStreak: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentStreak != out[j].CurrentStreak {
			return out[i].CurrentStreak > out[j].CurrentStreak
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
