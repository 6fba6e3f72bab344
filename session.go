package main

import (
	"github.com/google/uuid"
)

const (
	maxUsernameLength = 20
	backpackCapacity  = 3
)

// PlayerSession is the host-side record of one controller. Sessions are
// never deleted once created: a disconnect only flips the flag, so a
// reconnecting player gets their position, backpack and allergies back.
type PlayerSession struct {
	ID           string
	Username     string
	LobbyIndex   int
	Disconnected bool

	transport Transport

	Allergies map[int]bool
	Backpack  []Item

	X, Y         float64
	moveX, moveY float64
	Vehicle      int // index into the level's vehicles, -1 when on foot

	nearKind  entityKind
	nearIndex int
}

// isVIP reports whether this controller holds the start/restart controls.
func (p *PlayerSession) isVIP() bool {
	return p.LobbyIndex == 0
}

func (p *PlayerSession) send(msg any) {
	if p.Disconnected || p.transport == nil {
		return
	}
	p.transport.Send(msg)
}

// SessionRegistry owns the connected controller sessions of one room, in
// join order.
type SessionRegistry struct {
	order    []string
	sessions map[string]*PlayerSession
}

func newSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*PlayerSession),
	}
}

func (r *SessionRegistry) len() int {
	return len(r.order)
}

func (r *SessionRegistry) get(username string) *PlayerSession {
	return r.sessions[username]
}

// list returns sessions in lobby order.
func (r *SessionRegistry) list() []*PlayerSession {
	out := make([]*PlayerSession, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sessions[name])
	}
	return out
}

// addOrReconnect either revives a disconnected session with a matching
// username, swapping in the new transport, or allocates a fresh session
// with the next lobby index.
func (r *SessionRegistry) addOrReconnect(username string, t Transport) (*PlayerSession, bool) {
	if existing, ok := r.sessions[username]; ok && existing.Disconnected {
		existing.transport = t
		existing.Disconnected = false
		return existing, true
	}

	session := &PlayerSession{
		ID:         uuid.NewString(),
		Username:   username,
		LobbyIndex: len(r.order),
		transport:  t,
		Allergies:  make(map[int]bool),
		Vehicle:    -1,
		nearKind:   entityNone,
		nearIndex:  -1,
	}
	r.order = append(r.order, username)
	r.sessions[username] = session
	return session, false
}

// markDisconnected keeps the session around for reconnection.
func (r *SessionRegistry) markDisconnected(session *PlayerSession) {
	session.Disconnected = true
	session.transport = nullTransport{}
	session.moveX, session.moveY = 0, 0
}

func (r *SessionRegistry) anyDisconnected() bool {
	for _, s := range r.sessions {
		if s.Disconnected {
			return true
		}
	}
	return false
}

func (r *SessionRegistry) broadcast(msg any) {
	for _, name := range r.order {
		r.sessions[name].send(msg)
	}
}

// sendLobbyState tells every controller its own lobby slot; index 0 learns
// it holds the start controls.
func (r *SessionRegistry) sendLobbyState() {
	for _, name := range r.order {
		s := r.sessions[name]
		s.send(lobbyMessage{Type: "lobby", Ind: s.LobbyIndex})
	}
}

func (r *SessionRegistry) sendRestartNotice() {
	r.broadcast(simpleMessage{Type: "game-restart"})
}
