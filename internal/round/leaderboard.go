package round

import "sort"

// buildLeaderboard orders players by score desc, then wins desc, then name.
func buildLeaderboard(stats map[string]*PlayerStats) []Standing {
	entries := make([]Standing, 0, len(stats))
	for player, s := range stats {
		entries = append(entries, Standing{
			Player: player,
			Score:  s.Score,
			Wins:   s.Wins,
			Rounds: s.Rounds,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		return entries[i].Player < entries[j].Player
	})
	return entries
}
