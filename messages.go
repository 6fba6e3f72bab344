package main

import "encoding/json"

// Relay-level errors, sent once to the requesting connection.
const (
	errWrongRoom = "wrong room"
	errNoPlayer  = "no player"
)

// clientEnvelope is the union of everything a websocket client may send:
// relay handshake messages and in-game intents share one connection, so the
// read pump sniffs the type and routes accordingly.
type clientEnvelope struct {
	Type string `json:"type"`

	// Relay protocol fields.
	Room           string          `json:"room,omitempty"`
	Username       string          `json:"username,omitempty"`
	Offer          json.RawMessage `json:"offer,omitempty"`
	ClientUsername string          `json:"clientUsername,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`

	// Simulation intent fields.
	Vec        []float64 `json:"vec,omitempty"`
	Ing        int       `json:"ing,omitempty"`
	Difficulty int       `json:"difficulty,omitempty"`
	Value      string    `json:"value,omitempty"`
}

// Relay → client messages.

type confirmRoomMessage struct {
	Type string `json:"type"` // "confirmRoom"
	Room string `json:"room"`
}

type errorMessage struct {
	Type string `json:"type"` // "error"
	Val  string `json:"val"`
}

// offerMessage relays a controller's handshake payload to the host,
// annotated with the resolved username.
type offerMessage struct {
	Type           string          `json:"type"` // "offer"
	ClientUsername string          `json:"clientUsername"`
	Offer          json.RawMessage `json:"offer"`
}

// answerMessage relays the host's handshake response to one controller.
type answerMessage struct {
	Type     string          `json:"type"` // "answer"
	Response json.RawMessage `json:"response"`
}

// Host → controller messages.

type simpleMessage struct {
	Type string `json:"type"`
}

type lobbyMessage struct {
	Type string `json:"type"` // "lobby"
	Ind  int    `json:"ind"`
}

type noticeMessage struct {
	Type  string `json:"type"` // "msg"
	Value string `json:"value"`
	From  string `json:"from,omitempty"`
}

type gameEndMessage struct {
	Type   string `json:"type"` // "game-end"
	Win    bool   `json:"win"`
	Reason string `json:"reason"`
}

type allergiesMessage struct {
	Type string `json:"type"` // "allergies"
	Val  []int  `json:"val"`
}

type ingOfferMessage struct {
	Type  string `json:"type"` // "ing"
	Ing   int    `json:"ing"`
	Price int    `json:"price"`
}

type tableMessage struct {
	Type     string  `json:"type"` // "table"
	IsOven   bool    `json:"isOven"`
	Content  int     `json:"content"`
	Heat     float64 `json:"heat"`
	Backpack []Item  `json:"backpack"`
}

type areaMessage struct {
	Type   string `json:"type"` // "area"
	Status string `json:"status"`
	Order  int    `json:"order,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// Host display snapshot, sent to the room's host connection so the shared
// screen can render without owning any simulation state.

type statePlayer struct {
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Vehicle  int     `json:"vehicle"`
	Offline  bool    `json:"offline"`
}

type stateTable struct {
	IsOven  bool    `json:"isOven"`
	Content int     `json:"content"`
	Heat    float64 `json:"heat"`
}

type stateBuilding struct {
	Status string `json:"status"`
	Order  int    `json:"order"`
	Count  int    `json:"count"`
}

type stateMessage struct {
	Type      string          `json:"type"` // "state"
	Started   bool            `json:"started"`
	Paused    bool            `json:"paused"`
	Over      bool            `json:"over"`
	Balance   int             `json:"balance"`
	Strikes   int             `json:"strikes"`
	Remaining int64           `json:"remaining"`
	Players   []statePlayer   `json:"players"`
	Tables    []stateTable    `json:"tables"`
	Buildings []stateBuilding `json:"buildings"`
}
