package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/internal/round"
	"github.com/gokatarajesh/trivia-arena/pkg/protocol"
)

const exportTimeout = 2 * time.Second

// Broadcaster fans a message out to every joined connection.
type Broadcaster interface {
	Broadcast(msg protocol.Message) error
}

// ResultSink receives scored rounds, e.g. the Redis leaderboard exporter.
type ResultSink interface {
	RecordRound(ctx context.Context, res round.Result) error
	Clear(ctx context.Context) error
}

// Timing controls the pauses of the round loop.
type Timing struct {
	// QuestionWait overrides the bank time limit when > 0.
	QuestionWait time.Duration
	// ResultPause is the gap between a result and the next question.
	ResultPause time.Duration
}

// DefaultTiming waits the full time limit and pauses 3s between rounds.
func DefaultTiming() Timing {
	return Timing{ResultPause: 3 * time.Second}
}

// DriverOptions configures a Driver.
type DriverOptions struct {
	Timing   Timing
	Clock    clockwork.Clock
	Sink     ResultSink
	Recorder Recorder
}

// Driver runs the round loop: announce, wait, score, publish, pause.
// Only one game runs at a time.
type Driver struct {
	machine  *round.Machine
	out      Broadcaster
	sink     ResultSink
	recorder Recorder
	clock    clockwork.Clock
	timing   Timing
	logger   zerolog.Logger

	// startCh carries the epoch a start was requested in.
	startCh chan uint64

	// mu orders Start, Reset and the driver's round transitions. Reset runs
	// under the registry lock, so mu is taken after it and before the machine.
	mu      sync.Mutex
	running bool
	epoch   uint64
	stop    context.CancelFunc
}

// NewDriver creates an idle driver. Call Run to service start requests.
func NewDriver(machine *round.Machine, out Broadcaster, opts DriverOptions, logger zerolog.Logger) *Driver {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Driver{
		machine:  machine,
		out:      out,
		sink:     opts.Sink,
		recorder: recorder,
		clock:    clock,
		timing:   opts.Timing,
		logger:   logger.With().Str("component", "round_driver").Logger(),
		startCh:  make(chan uint64, 1),
	}
}

// Start requests a game. It is a no-op, returning false, while one is running.
func (d *Driver) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return false
	}
	select {
	case d.startCh <- d.epoch:
		d.running = true
		return true
	default:
		return false
	}
}

// Running reports whether a game is in progress.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Run services start requests until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case epoch := <-d.startCh:
			gameCtx, cancel := context.WithCancel(ctx)
			if !d.begin(epoch, cancel) {
				cancel()
				continue
			}
			d.play(gameCtx)
			d.finish(epoch)
			cancel()
		}
	}
}

// begin claims a start request. Requests made before the last reset are stale.
func (d *Driver) begin(epoch uint64, cancel context.CancelFunc) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if epoch != d.epoch || !d.running {
		return false
	}
	d.stop = cancel
	return true
}

func (d *Driver) finish(epoch uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if epoch == d.epoch {
		d.running = false
		d.stop = nil
	}
}

// Reset wipes the game after the last connection left and stops the running
// game, if any. A new game needs a fresh Start. It runs under the registry
// lock and must not call back into the registry.
func (d *Driver) Reset() {
	d.mu.Lock()
	d.epoch++
	d.running = false
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	select {
	case <-d.startCh:
	default:
	}
	d.machine.Reset()
	d.mu.Unlock()

	d.recorder.GameReset()
	if d.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		if err := d.sink.Clear(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("failed to clear exported leaderboard")
		}
	}()
}

func (d *Driver) play(ctx context.Context) {
	d.logger.Info().Msg("game loop started")
	defer d.logger.Info().Msg("game loop stopped")

	for {
		opened := d.clock.Now()
		ann, err := d.openRound(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, errNoParticipants) {
			d.logger.Info().Msg("no participants, going idle")
			return
		}
		if errors.Is(err, round.ErrBankExhausted) {
			d.broadcast(gameOverMessage(d.machine.Leaderboard()))
			d.logger.Info().Msg("question bank exhausted")
			return
		}
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to start round")
			return
		}
		d.broadcast(ann.Message())

		if !d.wait(ctx, d.questionWait()) {
			d.logger.Info().Str("qid", ann.QID).Msg("game stopped mid-round")
			return
		}

		res, err := d.closeRound(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, round.ErrNoActiveRound) {
			d.logger.Info().Str("qid", ann.QID).Msg("round discarded by reset")
			return
		}
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to score round")
			return
		}
		d.recorder.RoundCompleted(d.clock.Since(opened), len(res.Details))
		d.broadcast(res.Message())
		d.export(ctx, res)

		if !d.wait(ctx, d.timing.ResultPause) {
			return
		}
	}
}

var errNoParticipants = errors.New("no participants")

// openRound starts the next round unless the game was reset. Holding mu keeps
// a concurrent Reset from slipping between the checks and the transition.
func (d *Driver) openRound(ctx context.Context) (round.Announcement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return round.Announcement{}, err
	}
	if d.machine.ParticipantCount() == 0 {
		return round.Announcement{}, errNoParticipants
	}
	return d.machine.StartRound()
}

func (d *Driver) closeRound(ctx context.Context) (round.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return round.Result{}, err
	}
	return d.machine.EndRoundAndScore()
}

func (d *Driver) questionWait() time.Duration {
	if d.timing.QuestionWait > 0 {
		return d.timing.QuestionWait
	}
	return d.machine.TimeLimit()
}

// wait sleeps on the driver clock. It returns false if ctx ended first.
func (d *Driver) wait(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	timer := d.clock.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func (d *Driver) broadcast(msg protocol.Message) {
	if err := d.out.Broadcast(msg); err != nil {
		d.logger.Error().Err(err).Str("type", msg.MessageType()).Msg("broadcast failed")
	}
}

func (d *Driver) export(ctx context.Context, res round.Result) {
	if d.sink == nil {
		return
	}
	exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	if err := d.sink.RecordRound(exportCtx, res); err != nil {
		d.logger.Warn().Err(err).Str("qid", res.QID).Msg("leaderboard export failed")
	}
}
