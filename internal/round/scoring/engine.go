package scoring

import (
	"math"
	"time"
)

// ScoringConfig holds configurable scoring constants (defaults match the bank defaults).
type ScoringConfig struct {
	BaseScore int           // default: 100
	MaxBonus  int           // default: 50
	TimeLimit time.Duration // default: 10s
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore: 100,
		MaxBonus:  50,
		TimeLimit: 10 * time.Second,
	}
}

// Engine computes time-weighted points. It holds no mutable state.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	return &Engine{config: config}
}

// Config returns the engine's constants.
func (e *Engine) Config() ScoringConfig {
	return e.config
}

// Bonus returns the speed bonus for an answer given after elapsed.
// It decays linearly from MaxBonus at zero to 0 at the time limit and is
// rounded to the nearest integer, halves to even.
func (e *Engine) Bonus(elapsed time.Duration) int {
	if elapsed <= 0 {
		return e.config.MaxBonus
	}
	if e.config.TimeLimit <= 0 || elapsed >= e.config.TimeLimit {
		return 0
	}
	ratio := 1.0 - elapsed.Seconds()/e.config.TimeLimit.Seconds()
	return int(math.RoundToEven(float64(e.config.MaxBonus) * ratio))
}

// Points computes base + bonus for a correct, on-time answer and 0 otherwise.
// The bonus is returned separately for result details.
func (e *Engine) Points(correct, late bool, elapsed time.Duration) (points int, bonus int) {
	if !correct || late {
		return 0, 0
	}
	bonus = e.Bonus(elapsed)
	return e.config.BaseScore + bonus, bonus
}
