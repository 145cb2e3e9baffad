package round

import (
	"math"
	"time"

	"github.com/gokatarajesh/trivia-arena/pkg/protocol"
)

// Message renders the announcement as a question message.
func (a Announcement) Message() protocol.Question {
	return protocol.Question{
		QID:          a.QID,
		Question:     a.Prompt,
		Choices:      a.Choices,
		TimeLimitSec: int(math.Ceil(a.TimeLimit.Seconds())),
		ServerTime:   UnixSeconds(a.StartedAt),
	}
}

// Message renders the result as a round_result message.
func (r Result) Message() protocol.RoundResult {
	msg := protocol.RoundResult{
		QID:           r.QID,
		CorrectAnswer: r.CorrectAnswer,
		Details:       make([]protocol.ResultDetail, 0, len(r.Details)),
		Leaderboard:   Entries(r.Leaderboard),
	}
	if r.HasWinner() {
		winner := r.Winner
		msg.Winner = &winner
	}
	for _, d := range r.Details {
		msg.Details = append(msg.Details, protocol.ResultDetail{
			Player:  d.Player,
			Answer:  d.Answer,
			TimeSec: d.TimeSec,
			Late:    d.Late,
			Correct: d.Correct,
			Points:  d.Points,
			Bonus:   d.Bonus,
		})
	}
	return msg
}

// Entries converts standings to wire leaderboard rows.
func Entries(standings []Standing) []protocol.LeaderboardEntry {
	out := make([]protocol.LeaderboardEntry, 0, len(standings))
	for _, s := range standings {
		out = append(out, protocol.LeaderboardEntry{
			Player: s.Player,
			Score:  s.Score,
			Wins:   s.Wins,
			Rounds: s.Rounds,
		})
	}
	return out
}

// UnixSeconds is the server_time representation of t.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
