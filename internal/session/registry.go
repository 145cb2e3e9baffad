package session

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/pkg/protocol"
)

var (
	ErrEmptyName    = errors.New(protocol.ReasonEmptyName)
	ErrNameTaken    = errors.New(protocol.ReasonNameTaken)
	ErrNotConnected = errors.New("player not connected")
)

// Roster receives participant membership changes. The round machine implements it.
type Roster interface {
	Enroll(player string)
	Withdraw(player string)
}

// Member is a joined connection.
type Member struct {
	Name     string
	Role     string
	Conn     *Connection
	JoinedAt time.Time

	// replayed is the question already queued by the greeter; its broadcast
	// is not delivered a second time.
	replayed string
}

// IsParticipant reports whether the member answers and accrues stats.
func (m *Member) IsParticipant() bool {
	return m.Role == protocol.RoleParticipant
}

// Registry tracks joined connections by unique display name and fans out
// messages to them.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*Member
	roster  Roster
	onEmpty func()
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry feeding participant changes into roster.
func NewRegistry(roster Roster, logger zerolog.Logger) *Registry {
	return &Registry{
		members: make(map[string]*Member),
		roster:  roster,
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// OnEmpty installs the hook run when the last connection leaves. It runs with
// the registry lock held, so it must not call back into the registry.
func (r *Registry) OnEmpty(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEmpty = fn
}

// Join registers conn under name. Names are unique across all roles.
func (r *Registry) Join(name, role string, conn *Connection) (*Member, error) {
	return r.JoinAndGreet(name, role, conn, nil)
}

// JoinAndGreet is Join with a greeter that runs before the member becomes
// visible to Broadcast, so whatever it queues reaches the client first.
// greet returns the qid of a question it replayed, or "".
func (r *Registry) JoinAndGreet(name, role string, conn *Connection, greet func(m *Member) string) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	role = protocol.NormalizeRole(role)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.members[name]; taken {
		return nil, ErrNameTaken
	}

	m := &Member{Name: name, Role: role, Conn: conn, JoinedAt: time.Now()}
	if greet != nil {
		m.replayed = greet(m)
	}
	r.members[name] = m
	if m.IsParticipant() && r.roster != nil {
		r.roster.Enroll(name)
	}

	r.logger.Info().
		Str("player", name).
		Str("role", role).
		Int("connected", len(r.members)).
		Msg("joined")
	return m, nil
}

// Leave removes m. When nobody is left the OnEmpty hook runs. Returns the
// number of connections still joined.
func (r *Registry) Leave(m *Member) int {
	if m == nil {
		return r.Len()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[m.Name]
	if !ok || current != m {
		return len(r.members)
	}
	delete(r.members, m.Name)
	if m.IsParticipant() && r.roster != nil {
		r.roster.Withdraw(m.Name)
	}

	remaining := len(r.members)
	r.logger.Info().
		Str("player", m.Name).
		Int("connected", remaining).
		Msg("left")

	if remaining == 0 && r.onEmpty != nil {
		r.onEmpty()
	}
	return remaining
}

// Len returns the number of joined connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Counts returns joined participants and observers.
func (r *Registry) Counts() (participants, observers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.IsParticipant() {
			participants++
		} else {
			observers++
		}
	}
	return participants, observers
}

// Names lists joined names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Broadcast encodes msg once and queues it on every joined connection.
// Connections that cannot accept it are closed; their read loops then leave.
// A question is skipped for members that already got it on join.
func (r *Registry) Broadcast(msg protocol.Message) error {
	line, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	replay := ""
	if q, ok := msg.(protocol.Question); ok {
		replay = q.QID
	}

	r.mu.RLock()
	targets := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		if replay != "" && m.replayed == replay {
			continue
		}
		targets = append(targets, m)
	}
	r.mu.RUnlock()

	for _, m := range targets {
		if err := m.Conn.SendRaw(line); err != nil {
			r.logger.Warn().Err(err).Str("player", m.Name).Msg("broadcast send failed")
			m.Conn.Close()
		}
	}
	return nil
}

// SendTo delivers msg to a single joined player.
func (r *Registry) SendTo(name string, msg protocol.Message) error {
	r.mu.RLock()
	m, ok := r.members[name]
	r.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return m.Conn.Send(msg)
}
