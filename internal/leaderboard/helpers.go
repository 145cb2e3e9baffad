package leaderboard

import "github.com/gokatarajesh/trivia-arena/internal/round"

func toEntries(standings []round.Standing) []Entry {
	result := make([]Entry, len(standings))
	for i, s := range standings {
		result[i] = Entry{
			Rank:   i + 1,
			Player: s.Player,
			Score:  s.Score,
			Wins:   s.Wins,
			Rounds: s.Rounds,
		}
	}
	return result
}
