package main

import (
	"net/http/httptest"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func newRelayServer(t *testing.T) (*httptest.Server, *RoomRegistry) {
	t.Helper()

	cfg := &Config{tickRate: 20 * time.Millisecond}
	reg := newRoomRegistry(cfg)

	mux := httprouter.New()
	mux.GET("/ws", serveWS(cfg, reg))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readType reads until a message of the wanted type arrives, skipping the
// periodic host state snapshots and other chatter.
func readType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if m["type"] == want {
			return m
		}
	}
}

func createTestRoom(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	host := dialWS(t, srv)
	sendJSON(t, host, map[string]any{"type": "createRoom"})
	m := readType(t, host, "confirmRoom")
	code, _ := m["room"].(string)
	if code == "" {
		t.Fatalf("confirmRoom carried no room code: %v", m)
	}
	return host, code
}

func joinTestRoom(t *testing.T, srv *httptest.Server, code, username string) *websocket.Conn {
	t.Helper()

	conn := dialWS(t, srv)
	sendJSON(t, conn, map[string]any{
		"type":     "joinRoom",
		"room":     code,
		"username": username,
		"offer":    map[string]any{"sdp": "x"},
	})
	return conn
}

func TestRandomCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z]{4}$`)
	for i := 0; i < 100; i++ {
		code := randomCode(roomCodeLetters, roomCodeLength)
		if !pattern.MatchString(code) {
			t.Fatalf("room code %q is not four uppercase letters", code)
		}
	}
	for i := 0; i < 100; i++ {
		s := randomCode(suffixLetters, 1)
		if len(s) != 1 || s[0] < '0' || s[0] > '9' {
			t.Fatalf("username suffix %q is not a digit", s)
		}
	}
}

func TestCreateRoom(t *testing.T) {
	srv, reg := newRelayServer(t)

	_, code := createTestRoom(t, srv)
	if !regexp.MustCompile(`^[A-Z]{4}$`).MatchString(code) {
		t.Fatalf("unexpected room code %q", code)
	}
	if reg.count() != 1 {
		t.Fatalf("expected one live room, got %d", reg.count())
	}
}

func TestJoinForwardsOfferToHost(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	sam := joinTestRoom(t, srv, code, "Sam")

	offer := readType(t, host, "offer")
	if offer["clientUsername"] != "Sam" {
		t.Fatalf("expected offer annotated with username, got %v", offer)
	}
	if payload, ok := offer["offer"].(map[string]any); !ok || payload["sdp"] != "x" {
		t.Fatalf("expected handshake payload forwarded untouched, got %v", offer["offer"])
	}

	lobby := readType(t, sam, "lobby")
	if lobby["ind"] != float64(0) {
		t.Fatalf("expected first joiner at lobby index 0, got %v", lobby)
	}
}

func TestJoinWrongRoom(t *testing.T) {
	srv, _ := newRelayServer(t)

	conn := joinTestRoom(t, srv, "QQQQ", "Sam")
	errMsg := readType(t, conn, "error")
	if errMsg["val"] != errWrongRoom {
		t.Fatalf("expected %q, got %v", errWrongRoom, errMsg)
	}
}

func TestUsernameCollisionGetsSuffix(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	joinTestRoom(t, srv, code, "Sam")
	readType(t, host, "offer")

	joinTestRoom(t, srv, code, "Sam")
	second := readType(t, host, "offer")

	name, _ := second["clientUsername"].(string)
	if name == "Sam" || !strings.HasPrefix(name, "Sam") {
		t.Fatalf("expected suffixed username, got %q", name)
	}
	if suffix := name[len("Sam"):]; len(suffix) == 0 || suffix[0] < '0' || suffix[0] > '9' {
		t.Fatalf("expected digit suffix, got %q", name)
	}
}

func TestUsernameTruncated(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	long := strings.Repeat("a", 30)
	joinTestRoom(t, srv, code, long)

	offer := readType(t, host, "offer")
	name, _ := offer["clientUsername"].(string)
	if len(name) != maxUsernameLength {
		t.Fatalf("expected username truncated to %d, got %d (%q)", maxUsernameLength, len(name), name)
	}

	// Truncation counts runes, so multi-byte names are never cut mid-rune.
	joinTestRoom(t, srv, code, strings.Repeat("é", 30))
	offer = readType(t, host, "offer")
	name, _ = offer["clientUsername"].(string)
	if !utf8.ValidString(name) {
		t.Fatalf("truncation produced invalid UTF-8: %q", name)
	}
	if utf8.RuneCountInString(name) != maxUsernameLength || name != strings.Repeat("é", maxUsernameLength) {
		t.Fatalf("expected 20 runes preserved, got %q", name)
	}
}

func TestLobbyRejoinRevivesSession(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	sam := joinTestRoom(t, srv, code, "Sam")
	readType(t, host, "offer")
	readType(t, sam, "lobby")
	sam.Close()

	// Wait for the room to process the disconnect before rejoining.
	deadline := time.Now().Add(3 * time.Second)
	for {
		state := readType(t, host, "state")
		players, _ := state["players"].([]any)
		if len(players) == 1 {
			if p, _ := players[0].(map[string]any); p["offline"] == true {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("host state never showed the disconnect")
		}
	}

	again := joinTestRoom(t, srv, code, "Sam")
	offer := readType(t, host, "offer")
	if offer["clientUsername"] != "Sam" {
		t.Fatalf("lobby rejoin must revive the old session, got username %v", offer["clientUsername"])
	}
	lobby := readType(t, again, "lobby")
	if lobby["ind"] != float64(0) {
		t.Fatalf("expected original lobby slot back, got %v", lobby)
	}

	// The revived VIP can start the round, and it runs unpaused.
	sendJSON(t, again, map[string]any{"type": "start-game", "difficulty": 1})
	deadline = time.Now().Add(3 * time.Second)
	for {
		state := readType(t, host, "state")
		if state["started"] == true {
			if state["paused"] == true {
				t.Fatalf("round started paused with every player connected")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("round never started after rejoin")
		}
	}
}

func TestRejectedClientsDoNotLeak(t *testing.T) {
	srv, _ := newRelayServer(t)

	before := runtime.NumGoroutine()
	for i := 0; i < 30; i++ {
		conn := dialWS(t, srv)
		sendJSON(t, conn, map[string]any{"type": "joinRoom", "room": "QQQQ", "username": "Sam"})
		readType(t, conn, "error")
		conn.Close()
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if runtime.NumGoroutine() <= before+3 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("goroutines leaked for rejected clients: before=%d after=%d",
				before, runtime.NumGoroutine())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestOfferResponseRelayedToController(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	sam := joinTestRoom(t, srv, code, "Sam")
	readType(t, host, "offer")

	sendJSON(t, host, map[string]any{
		"type":           "offerResponse",
		"clientUsername": "Sam",
		"response":       map[string]any{"sdp": "y"},
	})

	answer := readType(t, sam, "answer")
	if payload, ok := answer["response"].(map[string]any); !ok || payload["sdp"] != "y" {
		t.Fatalf("expected response payload relayed, got %v", answer)
	}
}

func TestNoNewPlayersAfterStart(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	sam := joinTestRoom(t, srv, code, "Sam")
	readType(t, host, "offer")

	// startGame then an answer round-trip through Sam: both host messages
	// travel the same inbound channel, so once the answer arrives the room
	// loop has definitely processed the start.
	sendJSON(t, host, map[string]any{"type": "startGame"})
	sendJSON(t, host, map[string]any{
		"type":           "offerResponse",
		"clientUsername": "Sam",
		"response":       map[string]any{},
	})
	readType(t, sam, "answer")

	late := joinTestRoom(t, srv, code, "Zoe")
	errMsg := readType(t, late, "error")
	if errMsg["val"] != errNoPlayer {
		t.Fatalf("expected %q for a new name after start, got %v", errNoPlayer, errMsg)
	}
}

func TestReconnectAfterStart(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	sam := joinTestRoom(t, srv, code, "Sam")
	readType(t, host, "offer")
	readType(t, sam, "lobby")

	sendJSON(t, host, map[string]any{"type": "startGame"})
	sendJSON(t, host, map[string]any{
		"type":           "offerResponse",
		"clientUsername": "Sam",
		"response":       map[string]any{},
	})
	readType(t, sam, "answer")

	sam.Close()

	// The disconnect lands asynchronously; keep retrying the rejoin until
	// the room has marked the session reconnectable.
	deadline := time.Now().Add(3 * time.Second)
	for {
		again := joinTestRoom(t, srv, code, "Sam")
		_ = again.SetReadDeadline(time.Now().Add(time.Second))
		var m map[string]any
		if err := again.ReadJSON(&m); err != nil {
			t.Fatalf("rejoin read: %v", err)
		}
		if m["type"] == "lobby" {
			if m["ind"] != float64(0) {
				t.Fatalf("expected original lobby slot restored, got %v", m)
			}
			return
		}
		again.Close()
		if time.Now().After(deadline) {
			t.Fatalf("rejoin never accepted, last message %v", m)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHostLeavingClosesRoom(t *testing.T) {
	srv, reg := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	sam := joinTestRoom(t, srv, code, "Sam")
	readType(t, host, "offer")

	host.Close()

	deadline := time.Now().Add(3 * time.Second)
	for reg.count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("room survived its host, %d still registered", reg.count())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The controller connection is torn down with the room.
	_ = sam.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var m map[string]any
		if err := sam.ReadJSON(&m); err != nil {
			return
		}
	}
}

func TestChatRelayedToOthers(t *testing.T) {
	srv, _ := newRelayServer(t)
	host, code := createTestRoom(t, srv)

	sam := joinTestRoom(t, srv, code, "Sam")
	pat := joinTestRoom(t, srv, code, "Pat")
	readType(t, sam, "lobby")
	readType(t, pat, "lobby")

	sendJSON(t, sam, map[string]any{"type": "msg", "value": "hello"})

	got := readType(t, pat, "msg")
	if got["value"] != "hello" || got["from"] != "Sam" {
		t.Fatalf("expected chat relayed with sender, got %v", got)
	}
	hostGot := readType(t, host, "msg")
	if hostGot["value"] != "hello" {
		t.Fatalf("expected chat relayed to host, got %v", hostGot)
	}
}
