package game

import (
	"errors"

	"github.com/gokatarajesh/trivia-arena/internal/round"
	"github.com/gokatarajesh/trivia-arena/pkg/protocol"
)

func gameOverMessage(standings []round.Standing) protocol.GameOver {
	return protocol.GameOver{Leaderboard: round.Entries(standings)}
}

// rejectionReason maps machine errors onto answer_ack reason codes.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, round.ErrRoundNotActive):
		return protocol.ReasonRoundNotActive
	case errors.Is(err, round.ErrAlreadyAnswered):
		return protocol.ReasonAlreadyAnswered
	default:
		return protocol.ReasonInternalError
	}
}
