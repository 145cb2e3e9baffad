package round

import (
	"errors"
	"time"
)

// Protocol-visible rejection reasons.
var (
	ErrRoundNotActive  = errors.New("round_not_active")
	ErrAlreadyAnswered = errors.New("already_answered")
	ErrNoActiveRound   = errors.New("no_active_round")
	ErrRoundActive     = errors.New("round_already_active")
	ErrBankExhausted   = errors.New("game_over")
)

// Announcement is the payload broadcast when a round opens.
type Announcement struct {
	QID       string
	Prompt    string
	Choices   []string
	TimeLimit time.Duration
	StartedAt time.Time
}

// Ack acknowledges an accepted answer.
type Ack struct {
	OK      bool
	Elapsed float64 // seconds, 3 decimals
	Late    bool
}

// AnswerRecord is the first (and only) answer a player gave for a question.
type AnswerRecord struct {
	Player  string
	Choice  string
	Elapsed time.Duration
	Late    bool
	seq     int
}

// Detail is one scored line of a round result.
type Detail struct {
	Player  string
	Answer  string
	TimeSec float64
	Late    bool
	Correct bool
	Points  int
	Bonus   int
}

// Result is returned when a round closes.
type Result struct {
	QID           string
	CorrectAnswer string
	Winner        string // empty when nobody answered correctly in time
	Details       []Detail
	Leaderboard   []Standing
}

// HasWinner reports whether someone won the round.
func (r Result) HasWinner() bool {
	return r.Winner != ""
}

// PlayerStats accumulates per-player totals until a full reset.
type PlayerStats struct {
	Score  int
	Wins   int
	Rounds int
}

// Standing is one leaderboard row.
type Standing struct {
	Player string
	Score  int
	Wins   int
	Rounds int
}

// Status is a read-only view of the machine for health and leaderboard endpoints.
type Status struct {
	Active       bool
	QID          string
	Issued       int
	Total        int
	Participants int
}
