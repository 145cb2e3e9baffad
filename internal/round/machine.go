package round

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/internal/question"
	"github.com/gokatarajesh/trivia-arena/internal/round/scoring"
)

// Options configures a Machine.
type Options struct {
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// RewindOnReset restarts the bank from the first question after a full reset.
	RewindOnReset bool
}

// Machine owns the round lifecycle, the answer table and player stats.
// Every method takes the same lock, so answer submission never interleaves
// with a round transition.
type Machine struct {
	mu     sync.Mutex
	bank   *question.Bank
	engine *scoring.Engine
	clock  clockwork.Clock
	rewind bool
	logger zerolog.Logger

	next int // index of the next unissued question

	active    bool
	current   question.Question
	startedAt time.Time
	credited  map[string]struct{}

	eligible map[string]struct{}
	answers  map[string]map[string]*AnswerRecord // qid -> player -> record
	seq      int
	stats    map[string]*PlayerStats
}

// NewMachine creates an idle machine over an already validated bank.
func NewMachine(bank *question.Bank, opts Options, logger zerolog.Logger) *Machine {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Machine{
		bank: bank,
		engine: scoring.NewEngine(scoring.ScoringConfig{
			BaseScore: bank.BaseScore,
			MaxBonus:  bank.FastBonusMax,
			TimeLimit: bank.TimeLimit,
		}),
		clock:    clock,
		rewind:   opts.RewindOnReset,
		logger:   logger.With().Str("component", "round_machine").Logger(),
		eligible: make(map[string]struct{}),
	}
	m.clearLocked()
	return m
}

// TimeLimit is the per-question limit from the bank.
func (m *Machine) TimeLimit() time.Duration {
	return m.bank.TimeLimit
}

// Enroll marks a participant as eligible for credit from the next round on.
func (m *Machine) Enroll(player string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eligible[player] = struct{}{}
}

// Withdraw removes a participant from future credited sets. Recorded answers
// and stats are kept.
func (m *Machine) Withdraw(player string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.eligible, player)
}

// ParticipantCount returns the number of eligible participants.
func (m *Machine) ParticipantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.eligible)
}

// HasNext reports whether an unissued question remains.
func (m *Machine) HasNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next < m.bank.Len()
}

// StartRound issues the next question in bank order.
func (m *Machine) StartRound() (Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return Announcement{}, ErrRoundActive
	}
	q, ok := m.bank.At(m.next)
	if !ok {
		return Announcement{}, ErrBankExhausted
	}
	m.next++

	m.active = true
	m.current = q
	m.startedAt = m.clock.Now()
	m.credited = make(map[string]struct{}, len(m.eligible))
	for player := range m.eligible {
		m.credited[player] = struct{}{}
	}
	if _, ok := m.answers[q.ID]; !ok {
		m.answers[q.ID] = make(map[string]*AnswerRecord)
	}

	m.logger.Info().
		Str("qid", q.ID).
		Int("credited", len(m.credited)).
		Int("remaining", m.bank.Len()-m.next).
		Msg("round started")

	return m.announcementLocked(), nil
}

// Active reports whether a round is open.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Current returns the in-progress announcement, if a round is open.
func (m *Machine) Current() (Announcement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return Announcement{}, false
	}
	return m.announcementLocked(), true
}

// SubmitAnswer records the first answer of player for qid.
// Late answers are stored but never scored.
func (m *Machine) SubmitAnswer(player, qid, choice string) (Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active || qid != m.current.ID {
		return Ack{}, ErrRoundNotActive
	}

	table := m.answers[qid]
	if _, exists := table[player]; exists {
		return Ack{}, ErrAlreadyAnswered
	}

	elapsed := m.clock.Since(m.startedAt)
	late := elapsed > m.bank.TimeLimit

	m.seq++
	table[player] = &AnswerRecord{
		Player:  player,
		Choice:  choice,
		Elapsed: elapsed,
		Late:    late,
		seq:     m.seq,
	}
	m.ensurePlayerLocked(player)

	return Ack{OK: true, Elapsed: seconds3(elapsed), Late: late}, nil
}

// EndRoundAndScore closes the open round, scores it and returns the result.
func (m *Machine) EndRoundAndScore() (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return Result{}, ErrNoActiveRound
	}

	q := m.current
	records := make([]*AnswerRecord, 0, len(m.answers[q.ID]))
	for _, rec := range m.answers[q.ID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	var winner *AnswerRecord
	details := make([]Detail, 0, len(records))
	for _, rec := range records {
		correct := question.Matches(rec.Choice, q.Answer)
		points, bonus := m.engine.Points(correct, rec.Late, rec.Elapsed)
		if correct && !rec.Late {
			m.ensurePlayerLocked(rec.Player).Score += points
			// records are in recording order, so strict < keeps the earliest on ties
			if winner == nil || rec.Elapsed < winner.Elapsed {
				winner = rec
			}
		}
		details = append(details, Detail{
			Player:  rec.Player,
			Answer:  rec.Choice,
			TimeSec: seconds3(rec.Elapsed),
			Late:    rec.Late,
			Correct: correct,
			Points:  points,
			Bonus:   bonus,
		})
	}

	result := Result{
		QID:           q.ID,
		CorrectAnswer: q.Answer,
		Details:       details,
	}
	if winner != nil {
		m.stats[winner.Player].Wins++
		result.Winner = winner.Player
	}
	for player := range m.credited {
		m.ensurePlayerLocked(player).Rounds++
	}

	m.active = false
	m.current = question.Question{}
	m.startedAt = time.Time{}
	m.credited = nil

	result.Leaderboard = buildLeaderboard(m.stats)

	m.logger.Info().
		Str("qid", q.ID).
		Str("winner", result.Winner).
		Int("answers", len(details)).
		Msg("round scored")

	return result, nil
}

// Leaderboard recomputes the standings from current stats.
func (m *Machine) Leaderboard() []Standing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return buildLeaderboard(m.stats)
}

// Stats returns a copy of one player's stats.
func (m *Machine) Stats(player string) (PlayerStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[player]
	if !ok {
		return PlayerStats{}, false
	}
	return *s, true
}

// Answer returns the stored record for (qid, player).
func (m *Machine) Answer(qid, player string) (AnswerRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.answers[qid][player]
	if !ok {
		return AnswerRecord{}, false
	}
	return *rec, true
}

// Status returns a consistent snapshot of round progress.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Active:       m.active,
		QID:          m.current.ID,
		Issued:       m.next,
		Total:        m.bank.Len(),
		Participants: len(m.eligible),
	}
}

// Reset clears the round, every answer and all player stats. The eligible set
// is cleared as well: reset happens once nobody is connected.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
	m.eligible = make(map[string]struct{})
	if m.rewind {
		m.next = 0
	}
	m.logger.Info().Bool("rewound", m.rewind).Msg("game reset")
}

func (m *Machine) clearLocked() {
	m.active = false
	m.current = question.Question{}
	m.startedAt = time.Time{}
	m.credited = nil
	m.answers = make(map[string]map[string]*AnswerRecord)
	m.seq = 0
	m.stats = make(map[string]*PlayerStats)
}

func (m *Machine) ensurePlayerLocked(player string) *PlayerStats {
	s, ok := m.stats[player]
	if !ok {
		s = &PlayerStats{}
		m.stats[player] = s
	}
	return s
}

func (m *Machine) announcementLocked() Announcement {
	return Announcement{
		QID:       m.current.ID,
		Prompt:    m.current.Prompt,
		Choices:   append([]string(nil), m.current.Choices...),
		TimeLimit: m.bank.TimeLimit,
		StartedAt: m.startedAt,
	}
}

func seconds3(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
