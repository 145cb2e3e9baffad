package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/internal/logging"
	"github.com/gokatarajesh/trivia-arena/internal/round"
	"github.com/gokatarajesh/trivia-arena/internal/session"
	"github.com/gokatarajesh/trivia-arena/pkg/protocol"
)

// HandlerOptions tunes per-connection behaviour.
type HandlerOptions struct {
	// AutoStart begins the game as soon as a participant joins.
	AutoStart bool
	// IdentifyTimeout bounds the wait for the first line.
	IdentifyTimeout time.Duration
	// ReadTimeout closes idle connections when > 0.
	ReadTimeout time.Duration
	SendQueue   int
	Clock       clockwork.Clock
	Recorder    Recorder
}

// Handler serves one client connection at a time: identify, welcome, then
// dispatch of start, answer, ping and current requests.
type Handler struct {
	machine  *round.Machine
	registry *session.Registry
	driver   *Driver
	opts     HandlerOptions
	clock    clockwork.Clock
	recorder Recorder
	logger   zerolog.Logger
}

// NewHandler wires a handler to the shared game state.
func NewHandler(machine *round.Machine, registry *session.Registry, driver *Driver, opts HandlerOptions, logger zerolog.Logger) *Handler {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if opts.IdentifyTimeout <= 0 {
		opts.IdentifyTimeout = 30 * time.Second
	}
	return &Handler{
		machine:  machine,
		registry: registry,
		driver:   driver,
		opts:     opts,
		clock:    clock,
		recorder: recorder,
		logger:   logger.With().Str("component", "session_handler").Logger(),
	}
}

// Serve runs the session until the peer disconnects or misbehaves. It blocks.
func (h *Handler) Serve(ctx context.Context, transport session.Transport) {
	conn := session.NewConnection(transport, h.opts.SendQueue, h.logger)
	go conn.WritePump()
	defer conn.Close()

	logger := conn.Logger()

	line, err := conn.ReadLine(h.opts.IdentifyTimeout)
	if err != nil {
		logger.Debug().Err(err).Msg("connection closed before identify")
		return
	}
	join, err := protocol.DecodeIdentify(line)
	if err != nil {
		h.rejectMessage(conn, err)
		return
	}

	member, err := h.registry.JoinAndGreet(join.Name, join.Role, conn, h.greet)
	if err != nil {
		reason := protocol.ReasonInternalError
		switch {
		case errors.Is(err, session.ErrEmptyName):
			reason = protocol.ReasonEmptyName
		case errors.Is(err, session.ErrNameTaken):
			reason = protocol.ReasonNameTaken
		}
		logger.Info().Str("player", join.Name).Str("reason", reason).Msg("join rejected")
		_ = conn.Send(protocol.Error{Reason: reason})
		return
	}
	h.recorder.SessionOpened(member.Role)
	defer func() {
		h.registry.Leave(member)
		h.recorder.SessionClosed(member.Role)
	}()

	logger = logger.With().Str("player", member.Name).Str("role", member.Role).Logger()
	ctx = logging.IntoContext(ctx, logger)

	if h.opts.AutoStart && member.IsParticipant() && h.driver.Start() {
		logger.Info().Msg("game auto-started")
	}

	conn.ReadPump(h.opts.ReadTimeout, func(line []byte) error {
		return h.dispatch(ctx, member, line)
	})
}

// greet queues welcome and the in-progress question, if any. It runs inside
// the registry join, before any broadcast can reach the member.
func (h *Handler) greet(m *session.Member) string {
	if err := m.Conn.Send(protocol.Welcome{Player: m.Name, Role: m.Role}); err != nil {
		return ""
	}
	ann, ok := h.machine.Current()
	if !ok {
		return ""
	}
	if err := m.Conn.Send(ann.Message()); err != nil {
		return ""
	}
	return ann.QID
}

// dispatch handles one inbound line. A returned error ends the session.
func (h *Handler) dispatch(ctx context.Context, m *session.Member, line []byte) (err error) {
	logger := logging.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("panic while handling message")
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	msg, err := protocol.Decode(line)
	if err != nil {
		return h.rejectMessage(m.Conn, err)
	}

	switch msg := msg.(type) {
	case protocol.Start:
		if h.driver.Start() {
			logger.Info().Msg("game started")
		}
		return nil
	case protocol.Answer:
		return h.handleAnswer(ctx, m, msg)
	case protocol.Ping:
		return m.Conn.Send(protocol.Pong{ServerTime: round.UnixSeconds(h.clock.Now())})
	case protocol.Current:
		ann, ok := h.machine.Current()
		if !ok {
			return m.Conn.Send(protocol.Error{Reason: protocol.ReasonRoundNotActive})
		}
		return m.Conn.Send(ann.Message())
	default:
		logger.Debug().Str("type", msg.MessageType()).Msg("unexpected message from client")
		return m.Conn.Send(protocol.Error{Reason: protocol.ReasonUnexpected})
	}
}

func (h *Handler) handleAnswer(ctx context.Context, m *session.Member, msg protocol.Answer) error {
	if !m.IsParticipant() {
		h.recorder.AnswerRecorded(protocol.ReasonObserverCannotAnswer)
		return m.Conn.Send(protocol.Rejected(protocol.ReasonObserverCannotAnswer))
	}

	ack, err := h.machine.SubmitAnswer(m.Name, msg.QID, msg.Answer)
	if err != nil {
		reason := rejectionReason(err)
		h.recorder.AnswerRecorded(reason)
		logger := logging.FromContext(ctx)
		logger.Debug().Str("qid", msg.QID).Str("reason", reason).Msg("answer rejected")
		return m.Conn.Send(protocol.Rejected(reason))
	}

	outcome := OutcomeAccepted
	if ack.Late {
		outcome = OutcomeLate
	}
	h.recorder.AnswerRecorded(outcome)
	return m.Conn.Send(protocol.Accepted(ack.Elapsed, ack.Late))
}

// rejectMessage answers a structurally invalid message with error{reason}.
// The connection stays open.
func (h *Handler) rejectMessage(conn *session.Connection, err error) error {
	var vErr *protocol.ValidationError
	if !errors.As(err, &vErr) {
		return err
	}
	h.recorder.ValidationFailed(vErr.Code())
	logger := conn.Logger()
	logger.Debug().Err(err).Msg("invalid message")
	return conn.Send(protocol.Error{Reason: vErr.Code()})
}
