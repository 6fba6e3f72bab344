package main

import "testing"

func TestRegistryAddOrReconnect(t *testing.T) {
	r := newSessionRegistry()

	ann, reconnect := r.addOrReconnect("Ann", &recorder{})
	if reconnect {
		t.Fatalf("first join must be a fresh session")
	}
	if ann.LobbyIndex != 0 || !ann.isVIP() {
		t.Fatalf("expected first joiner at lobby index 0 with VIP rights")
	}

	ben, _ := r.addOrReconnect("Ben", &recorder{})
	if ben.LobbyIndex != 1 || ben.isVIP() {
		t.Fatalf("expected second joiner at lobby index 1 without VIP rights")
	}

	r.markDisconnected(ben)
	if !ben.Disconnected {
		t.Fatalf("expected disconnect flag set")
	}
	if r.len() != 2 {
		t.Fatalf("disconnect must not shrink the registry, len %d", r.len())
	}
	if !r.anyDisconnected() {
		t.Fatalf("expected anyDisconnected to see Ben")
	}

	rec := &recorder{}
	revived, reconnect := r.addOrReconnect("Ben", rec)
	if !reconnect || revived != ben {
		t.Fatalf("expected Ben's original session revived")
	}
	if revived.Disconnected {
		t.Fatalf("expected disconnect flag cleared on revival")
	}
	revived.send(simpleMessage{Type: "ping"})
	if len(rec.msgs) != 1 {
		t.Fatalf("expected revived session to use the new transport")
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := newSessionRegistry()
	names := []string{"Zoe", "Ann", "Mel"}
	for _, n := range names {
		r.addOrReconnect(n, &recorder{})
	}

	for i, s := range r.list() {
		if s.Username != names[i] {
			t.Fatalf("expected join order preserved, got %q at %d", s.Username, i)
		}
		if s.LobbyIndex != i {
			t.Fatalf("expected lobby index %d for %q, got %d", i, s.Username, s.LobbyIndex)
		}
	}
}

func TestDisconnectedSessionDropsMessages(t *testing.T) {
	r := newSessionRegistry()
	rec := &recorder{}
	s, _ := r.addOrReconnect("Ann", rec)
	r.markDisconnected(s)

	sent := len(rec.msgs)
	r.broadcast(simpleMessage{Type: "ping"})
	s.send(simpleMessage{Type: "ping"})
	if len(rec.msgs) != sent {
		t.Fatalf("messages to a disconnected session must be dropped")
	}
}

func TestSendLobbyState(t *testing.T) {
	r := newSessionRegistry()
	recs := []*recorder{{}, {}}
	r.addOrReconnect("Ann", recs[0])
	r.addOrReconnect("Ben", recs[1])

	r.sendLobbyState()
	for i, rec := range recs {
		var last lobbyMessage
		found := false
		for _, m := range rec.msgs {
			if l, ok := m.(lobbyMessage); ok {
				last = l
				found = true
			}
		}
		if !found || last.Ind != i {
			t.Fatalf("expected controller %d told its lobby slot, got %+v", i, last)
		}
	}
}
