package game

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-arena/internal/round"
	"github.com/gokatarajesh/trivia-arena/internal/session"
)

type fixture struct {
	ctx      context.Context
	machine  *round.Machine
	registry *session.Registry
	driver   *Driver
	handler  *Handler
}

func newFixture(t *testing.T, questions int, timing Timing, opts HandlerOptions) *fixture {
	t.Helper()
	machine := round.NewMachine(testBank(t, questions), round.Options{RewindOnReset: true}, zerolog.Nop())
	registry := session.NewRegistry(machine, zerolog.Nop())
	driver := NewDriver(machine, registry, DriverOptions{Timing: timing}, zerolog.Nop())
	registry.OnEmpty(driver.Reset)
	handler := NewHandler(machine, registry, driver, opts, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = driver.Run(ctx) }()

	return &fixture{ctx: ctx, machine: machine, registry: registry, driver: driver, handler: handler}
}

type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (f *fixture) connect(t *testing.T) *testClient {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	go f.handler.Serve(f.ctx, session.NewLineTransport(server))
	return &testClient{conn: client, reader: bufio.NewReader(client)}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, c.conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *testClient) next(t *testing.T) map[string]any {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.reader.ReadBytes('\n')
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(line, &msg))
	return msg
}

// expect skips messages until one of type typ arrives.
func (c *testClient) expect(t *testing.T, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := c.next(t)
		if msg["type"] == typ {
			return msg
		}
	}
	t.Fatalf("no %s message received", typ)
	return nil
}

func (c *testClient) join(t *testing.T, line string) map[string]any {
	t.Helper()
	c.send(t, line)
	return c.next(t)
}

func slowTiming() Timing {
	return Timing{QuestionWait: 500 * time.Millisecond, ResultPause: 10 * time.Millisecond}
}

func TestIdentifyWithBareName(t *testing.T) {
	f := newFixture(t, 1, slowTiming(), HandlerOptions{})
	c := f.connect(t)

	welcome := c.join(t, "alice")
	assert.Equal(t, "welcome", welcome["type"])
	assert.Equal(t, "alice", welcome["player"])
	assert.Equal(t, "participant", welcome["role"])
	assert.Equal(t, 1, f.machine.ParticipantCount())
}

func TestIdentifyRejections(t *testing.T) {
	f := newFixture(t, 1, slowTiming(), HandlerOptions{})
	first := f.connect(t)
	require.Equal(t, "welcome", first.join(t, `{"type":"join","name":"alice"}`)["type"])

	dup := f.connect(t)
	msg := dup.join(t, `{"type":"join","name":"alice","role":"watcher"}`)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "name_taken", msg["reason"])

	empty := f.connect(t)
	msg = empty.join(t, `{"type":"join","name":"   "}`)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "empty_name", msg["reason"])

	assert.Equal(t, 1, f.registry.Len())
}

func TestInvalidMessageKeepsConnection(t *testing.T) {
	f := newFixture(t, 1, slowTiming(), HandlerOptions{})
	c := f.connect(t)
	c.join(t, "alice")

	c.send(t, "not json")
	msg := c.next(t)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "invalid_message", msg["reason"])

	c.send(t, `{"type":"dance"}`)
	msg = c.next(t)
	assert.Equal(t, "unknown_message_type", msg["reason"])

	c.send(t, `{"type":"answer","qid":"q1"}`)
	msg = c.next(t)
	assert.Equal(t, "invalid_message", msg["reason"])

	c.send(t, `{"type":"ping"}`)
	pong := c.next(t)
	assert.Equal(t, "pong", pong["type"])
	assert.NotZero(t, pong["server_time"])
}

func TestAnswerOutsideRoundIsRejected(t *testing.T) {
	f := newFixture(t, 1, slowTiming(), HandlerOptions{})
	c := f.connect(t)
	c.join(t, "alice")

	c.send(t, `{"type":"answer","qid":"q1","answer":"TCP"}`)
	ack := c.next(t)
	assert.Equal(t, "answer_ack", ack["type"])
	assert.Equal(t, false, ack["ok"])
	assert.Equal(t, "round_not_active", ack["reason"])

	c.send(t, `{"type":"current"}`)
	msg := c.next(t)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "round_not_active", msg["reason"])
}

func TestObserverCannotAnswer(t *testing.T) {
	f := newFixture(t, 1, slowTiming(), HandlerOptions{})
	player := f.connect(t)
	player.join(t, "alice")
	watcher := f.connect(t)
	welcome := watcher.join(t, `{"type":"join","name":"olga","role":"observer"}`)
	assert.Equal(t, "observer", welcome["role"])
	assert.Equal(t, 1, f.machine.ParticipantCount())

	player.send(t, `{"type":"start"}`)
	q := watcher.expect(t, "question")

	watcher.send(t, `{"type":"answer","qid":"`+q["qid"].(string)+`","answer":"TCP"}`)
	ack := watcher.expect(t, "answer_ack")
	assert.Equal(t, false, ack["ok"])
	assert.Equal(t, "observer_cannot_answer", ack["reason"])
}

func TestFullGameOverLineProtocol(t *testing.T) {
	f := newFixture(t, 2, Timing{QuestionWait: 200 * time.Millisecond, ResultPause: 10 * time.Millisecond}, HandlerOptions{})
	alice := f.connect(t)
	alice.join(t, "alice")
	bob := f.connect(t)
	bob.join(t, "bob")

	alice.send(t, `{"type":"start"}`)

	q := alice.expect(t, "question")
	assert.Equal(t, "q1", q["qid"])
	assert.Equal(t, float64(10), q["time_limit_sec"])
	bob.expect(t, "question")

	alice.send(t, `{"type":"answer","qid":"q1","answer":" tcp "}`)
	ack := alice.expect(t, "answer_ack")
	assert.Equal(t, true, ack["ok"])
	assert.Equal(t, false, ack["late"])

	alice.send(t, `{"type":"answer","qid":"q1","answer":"UDP"}`)
	dup := alice.expect(t, "answer_ack")
	assert.Equal(t, false, dup["ok"])
	assert.Equal(t, "already_answered", dup["reason"])

	bob.send(t, `{"type":"answer","qid":"q1","answer":"UDP"}`)
	bob.expect(t, "answer_ack")

	result := bob.expect(t, "round_result")
	assert.Equal(t, "q1", result["qid"])
	assert.Equal(t, "TCP", result["correct_answer"])
	assert.Equal(t, "alice", result["winner"])
	details := result["details"].([]any)
	require.Len(t, details, 2)
	assert.Equal(t, "alice", details[0].(map[string]any)["player"])

	over := alice.expect(t, "game_over")
	board := over["leaderboard"].([]any)
	require.Len(t, board, 2)
	top := board[0].(map[string]any)
	assert.Equal(t, "alice", top["player"])
	assert.GreaterOrEqual(t, top["score"].(float64), float64(100))
	assert.Equal(t, float64(2), top["rounds"])
	second := board[1].(map[string]any)
	assert.Equal(t, "bob", second["player"])
	assert.Equal(t, float64(0), second["score"])
}

func TestLateJoinerReceivesCurrentQuestion(t *testing.T) {
	f := newFixture(t, 1, slowTiming(), HandlerOptions{})
	alice := f.connect(t)
	alice.join(t, "alice")
	alice.send(t, `{"type":"start"}`)
	q := alice.expect(t, "question")

	bob := f.connect(t)
	assert.Equal(t, "welcome", bob.join(t, "bob")["type"])
	replay := bob.next(t)
	assert.Equal(t, "question", replay["type"])
	assert.Equal(t, q["qid"], replay["qid"])

	bob.send(t, `{"type":"current"}`)
	again := bob.next(t)
	assert.Equal(t, q["qid"], again["qid"])

	bob.send(t, `{"type":"answer","qid":"q1","answer":"TCP"}`)
	ack := bob.expect(t, "answer_ack")
	assert.Equal(t, true, ack["ok"])

	bob.expect(t, "round_result")
	stats, ok := f.machine.Stats("bob")
	require.True(t, ok)
	assert.GreaterOrEqual(t, stats.Score, 100)
	assert.Equal(t, 0, stats.Rounds, "a mid-round joiner is not credited for that round")
}

func TestAutoStartBeginsOnFirstParticipant(t *testing.T) {
	f := newFixture(t, 1, slowTiming(), HandlerOptions{AutoStart: true})
	watcher := f.connect(t)
	watcher.join(t, `{"type":"join","name":"olga","role":"watcher"}`)
	assert.False(t, f.driver.Running())

	alice := f.connect(t)
	alice.join(t, "alice")
	q := alice.expect(t, "question")
	assert.Equal(t, "q1", q["qid"])
}

func TestLastLeaveResetsGame(t *testing.T) {
	f := newFixture(t, 2, slowTiming(), HandlerOptions{})
	alice := f.connect(t)
	alice.join(t, "alice")
	alice.send(t, `{"type":"start"}`)
	alice.expect(t, "question")
	require.Equal(t, 1, f.machine.Status().Issued)

	require.NoError(t, alice.conn.Close())

	assert.Eventually(t, func() bool {
		st := f.machine.Status()
		return f.registry.Len() == 0 && st.Issued == 0 && !st.Active
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !f.driver.Running() }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, f.machine.Leaderboard())
}
