package main

import (
	"crypto/rand"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	roomCodeLength  = 4
	roomCodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLetters   = "0123456789"
)

// randomCode generates n characters from letters using crypto/rand with
// rejection sampling, so the distribution stays uniform.
func randomCode(letters string, n int) string {
	max := byte(255 - (256 % len(letters)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, letters[int(b)%len(letters)])
				if len(out) == n {
					return string(out)
				}
			}
		}
	}
}

// Client is one websocket connection: a host (created a room) or a
// controller (joined one). The buffered send channel plus write pump is
// how every message leaves the server.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any

	username string
	room     *Room
}

// Send implements Transport. A client whose send buffer stays full is
// dropped rather than allowed to stall the room.
func (c *Client) Send(msg any) {
	select {
	case c.send <- msg:
	default:
		_ = c.conn.Close()
	}
}

type joinRequest struct {
	client   *Client
	env      clientEnvelope
	accepted chan bool
}

type clientMessage struct {
	client *Client
	env    clientEnvelope
}

// Room pairs one host connection with its controllers and the simulation
// they share. All room state is owned by the run goroutine; the registry
// only ever touches lastActive through the mutex.
type Room struct {
	id       string
	cfg      *Config
	registry *RoomRegistry

	host        *Client
	game        *Game
	gameStarted bool

	controllers map[*Client]*PlayerSession
	byUsername  map[string]*Client

	joins      chan joinRequest
	inbound    chan clientMessage
	unregister chan *Client

	done chan struct{}
	once sync.Once

	mu         sync.RWMutex
	lastActive time.Time
}

func newRoom(cfg *Config, registry *RoomRegistry, code string, host *Client) *Room {
	return &Room{
		id:          code,
		cfg:         cfg,
		registry:    registry,
		host:        host,
		game:        newGame(cfg, code, defaultLevel(), host),
		controllers: make(map[*Client]*PlayerSession),
		byUsername:  make(map[string]*Client),
		joins:       make(chan joinRequest),
		inbound:     make(chan clientMessage, 64),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		lastActive:  time.Now(),
	}
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.mu.Unlock()
}

func (r *Room) idleSince() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActive
}

func (r *Room) stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *Room) run() {
	ticker := time.NewTicker(r.cfg.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			r.teardown()
			return

		case jr := <-r.joins:
			jr.accepted <- r.handleJoin(jr.client, jr.env)

		case cm := <-r.inbound:
			r.handleMessage(cm.client, cm.env)

		case c := <-r.unregister:
			if c == r.host {
				r.stop()
				r.teardown()
				return
			}
			r.dropController(c)

		case <-ticker.C:
			r.game.Tick(r.cfg.tickRate)
		}
	}
}

// handleJoin resolves a username and hands the controller to the game.
// Before the game starts, colliding usernames get random suffixes; after,
// only reconnects of disconnected players are allowed.
func (r *Room) handleJoin(c *Client, env clientEnvelope) bool {
	r.touch()

	username := env.Username
	if runes := []rune(username); len(runes) > maxUsernameLength {
		username = string(runes[:maxUsernameLength])
	}
	if username == "" {
		username = "player"
	}

	if r.gameStarted {
		existing := r.game.registry.get(username)
		if existing == nil || !existing.Disconnected {
			c.Send(errorMessage{Type: "error", Val: errNoPlayer})
			return false
		}
	} else {
		// Only names held by live connections collide; a disconnected lobby
		// player rejoining under their own name gets their session back.
		for {
			existing := r.game.registry.get(username)
			if existing == nil || existing.Disconnected {
				break
			}
			username += randomCode(suffixLetters, 1)
		}
	}

	session, _ := r.game.Join(username, c)
	c.username = username
	r.controllers[c] = session
	r.byUsername[username] = c

	// Forward the handshake payload, annotated with the resolved
	// username, without looking inside it.
	r.host.Send(offerMessage{
		Type:           "offer",
		ClientUsername: username,
		Offer:          env.Offer,
	})
	return true
}

func (r *Room) handleMessage(c *Client, env clientEnvelope) {
	r.touch()

	if c == r.host {
		switch env.Type {
		case "offerResponse":
			if target, ok := r.byUsername[env.ClientUsername]; ok {
				target.Send(answerMessage{Type: "answer", Response: env.Response})
			}
		case "startGame":
			r.gameStarted = true
			logf(r.cfg, "ROOMS: game started in %s", r.id)
		}
		return
	}

	session, ok := r.controllers[c]
	if !ok {
		return
	}
	r.game.OnIntent(session, env)
	if r.game.Started() {
		r.gameStarted = true
	}
}

func (r *Room) dropController(c *Client) {
	session, ok := r.controllers[c]
	if !ok {
		return
	}
	delete(r.controllers, c)
	delete(r.byUsername, c.username)
	// Detach the session's transport before the channel closes, so no
	// late simulation message hits a closed channel.
	r.game.OnTransportClosed(session)
	close(c.send)
}

// teardown ends the room: the host is gone (or the reaper fired), which is
// fatal to every controller session.
func (r *Room) teardown() {
	r.registry.remove(r.id)
	for c := range r.controllers {
		close(c.send)
		_ = c.conn.Close()
	}
	r.controllers = make(map[*Client]*PlayerSession)
	close(r.host.send)
	_ = r.host.conn.Close()
	logf(r.cfg, "ROOMS: room %s closed", r.id)
}

// RoomRegistry owns the live room-code table. Different rooms share no
// other mutable state.
type RoomRegistry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	cfg   *Config
}

func newRoomRegistry(cfg *Config) *RoomRegistry {
	reg := &RoomRegistry{
		rooms: make(map[string]*Room),
		cfg:   cfg,
	}
	if cfg.sessionTimeout > 0 {
		go reg.reaperLoop()
	}
	return reg
}

// createRoom issues a collision-checked 4-letter code and starts the room
// loop with the requesting connection as host.
func (reg *RoomRegistry) createRoom(host *Client) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for {
		code := randomCode(roomCodeLetters, roomCodeLength)
		if _, exists := reg.rooms[code]; exists {
			continue
		}

		room := newRoom(reg.cfg, reg, code, host)
		reg.rooms[code] = room
		go room.run()
		logf(reg.cfg, "ROOMS: created room %s", code)
		return room
	}
}

func (reg *RoomRegistry) lookup(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[code]
}

func (reg *RoomRegistry) remove(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, code)
}

func (reg *RoomRegistry) count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// reaperLoop periodically stops rooms that have been idle longer than the
// configured session timeout.
func (reg *RoomRegistry) reaperLoop() {
	ticker := time.NewTicker(reg.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-reg.cfg.sessionTimeout)

		reg.mu.Lock()
		stale := make([]*Room, 0)
		for _, room := range reg.rooms {
			if room.idleSince().Before(cutoff) {
				stale = append(stale, room)
			}
		}
		reg.mu.Unlock()

		for _, room := range stale {
			room.stop()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades a connection and runs its pumps. The first message
// decides the connection's role: createRoom makes it a host, joinRoom a
// controller.
func serveWS(cfg *Config, reg *RoomRegistry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, 32),
		}

		logf(cfg, "SERVE: websocket %s connected from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(cfg, reg)
	}
}

func (c *Client) readPump(cfg *Config, reg *RoomRegistry) {
	defer func() {
		if room := c.room; room != nil {
			select {
			case room.unregister <- c:
			case <-room.done:
			}
		} else {
			// Never attached to a room, so no unregister path will close the
			// send channel; close it here or the write pump blocks forever.
			close(c.send)
		}
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env clientEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if c.room == nil {
			c.handleUnattached(cfg, reg, env)
			continue
		}

		select {
		case c.room.inbound <- clientMessage{client: c, env: env}:
		case <-c.room.done:
			return
		}
	}
}

// handleUnattached processes the two messages a connection may send before
// it belongs to a room.
func (c *Client) handleUnattached(cfg *Config, reg *RoomRegistry, env clientEnvelope) {
	switch env.Type {
	case "createRoom":
		room := reg.createRoom(c)
		c.room = room
		c.Send(confirmRoomMessage{Type: "confirmRoom", Room: room.id})

	case "joinRoom":
		room := reg.lookup(env.Room)
		if room == nil {
			c.Send(errorMessage{Type: "error", Val: errWrongRoom})
			return
		}

		jr := joinRequest{client: c, env: env, accepted: make(chan bool, 1)}
		select {
		case room.joins <- jr:
		case <-room.done:
			c.Send(errorMessage{Type: "error", Val: errWrongRoom})
			return
		}

		select {
		case ok := <-jr.accepted:
			if ok {
				c.room = room
			}
		case <-room.done:
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
