package game

import "time"

// Answer outcomes reported to the Recorder.
const (
	OutcomeAccepted = "accepted"
	OutcomeLate     = "late"
)

// Recorder collects gameplay metrics.
type Recorder interface {
	RoundCompleted(duration time.Duration, answers int)
	AnswerRecorded(outcome string)
	SessionOpened(role string)
	SessionClosed(role string)
	ValidationFailed(reason string)
	GameReset()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RoundCompleted(time.Duration, int) {}
func (NopRecorder) AnswerRecorded(string)             {}
func (NopRecorder) SessionOpened(string)              {}
func (NopRecorder) SessionClosed(string)              {}
func (NopRecorder) ValidationFailed(string)           {}
func (NopRecorder) GameReset()                        {}
