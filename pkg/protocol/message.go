package protocol

// MessageType constants for the line protocol.
const (
	// Client -> Server
	TypeJoin    = "join"
	TypeStart   = "start"
	TypeAnswer  = "answer"
	TypePing    = "ping"
	TypeCurrent = "current"

	// Server -> Client
	TypeWelcome     = "welcome"
	TypeQuestion    = "question"
	TypeAnswerAck   = "answer_ack"
	TypeRoundResult = "round_result"
	TypeGameOver    = "game_over"
	TypeError       = "error"
	TypePong        = "pong"
)

// Roles a connection can join with.
const (
	RoleParticipant = "participant"
	RoleObserver    = "observer"
)

// requiredFields lists, per message type, the keys that must be present.
var requiredFields = map[string][]string{
	TypeJoin:    {"name"},
	TypeStart:   nil,
	TypeAnswer:  {"qid", "answer"},
	TypePing:    nil,
	TypeCurrent: nil,

	TypeWelcome:     {"player"},
	TypeQuestion:    {"qid", "question", "choices", "time_limit_sec", "server_time"},
	TypeAnswerAck:   {"ok"},
	TypeRoundResult: {"qid", "correct_answer", "winner", "details", "leaderboard"},
	TypeGameOver:    nil,
	TypeError:       {"reason"},
	TypePong:        nil,
}

// Message is implemented by every protocol variant.
type Message interface {
	MessageType() string
}

// Client Messages (incoming)

type Join struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type Start struct{}

type Answer struct {
	QID    string `json:"qid"`
	Answer string `json:"answer"`
}

type Ping struct{}

type Current struct{}

// Server Messages (outgoing)

type Welcome struct {
	Player string `json:"player"`
	Role   string `json:"role,omitempty"`
}

type Question struct {
	QID          string   `json:"qid"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	TimeLimitSec int      `json:"time_limit_sec"`
	ServerTime   float64  `json:"server_time"`
}

type AnswerAck struct {
	OK      bool     `json:"ok"`
	Elapsed *float64 `json:"elapsed,omitempty"`
	Late    *bool    `json:"late,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

type RoundResult struct {
	QID           string             `json:"qid"`
	CorrectAnswer string             `json:"correct_answer"`
	Winner        *string            `json:"winner"`
	Details       []ResultDetail     `json:"details"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
}

type ResultDetail struct {
	Player  string  `json:"player"`
	Answer  string  `json:"answer"`
	TimeSec float64 `json:"time_sec"`
	Late    bool    `json:"late"`
	Correct bool    `json:"correct"`
	Points  int     `json:"points"`
	Bonus   int     `json:"bonus"`
}

type LeaderboardEntry struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
	Wins   int    `json:"wins"`
	Rounds int    `json:"rounds"`
}

type GameOver struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
}

type Error struct {
	Reason string `json:"reason"`
}

type Pong struct {
	ServerTime float64 `json:"server_time"`
}

func (Join) MessageType() string        { return TypeJoin }
func (Start) MessageType() string       { return TypeStart }
func (Answer) MessageType() string      { return TypeAnswer }
func (Ping) MessageType() string        { return TypePing }
func (Current) MessageType() string     { return TypeCurrent }
func (Welcome) MessageType() string     { return TypeWelcome }
func (Question) MessageType() string    { return TypeQuestion }
func (AnswerAck) MessageType() string   { return TypeAnswerAck }
func (RoundResult) MessageType() string { return TypeRoundResult }
func (GameOver) MessageType() string    { return TypeGameOver }
func (Error) MessageType() string       { return TypeError }
func (Pong) MessageType() string        { return TypePong }

// Accepted builds a positive acknowledgment.
func Accepted(elapsed float64, late bool) AnswerAck {
	return AnswerAck{OK: true, Elapsed: &elapsed, Late: &late}
}

// Rejected builds a negative acknowledgment with a reason code.
func Rejected(reason string) AnswerAck {
	return AnswerAck{OK: false, Reason: reason}
}

// NormalizeRole maps client supplied roles onto the two known roles.
// "player" and "watcher" are accepted as aliases; anything else is a participant.
func NormalizeRole(role string) string {
	switch role {
	case RoleObserver, "watcher", "viewer":
		return RoleObserver
	default:
		return RoleParticipant
	}
}
