package main

import (
	"math"
	"math/rand"
	"time"
)

const (
	playerSpeed  = 160.0 // pixels per second
	vehicleSpeed = 320.0
)

// Table is a surface content can rest on. Ovens heat; regular tables cool
// when heat variation is enabled.
type Table struct {
	Oven    bool
	Content Item // Mask 0 when empty
}

// Vehicle carries at most one player and doubles their speed.
type Vehicle struct {
	X, Y   float64
	Driver *PlayerSession
}

// Game is the authoritative simulation for one room. It owns no goroutines
// and takes no locks: the room loop serializes every call, so intents and
// scheduled events always run to completion before the next one starts.
type Game struct {
	cfg   *Config
	code  string
	level *Level

	registry  *SessionRegistry
	scheduler *EventScheduler
	ledger    *EconomyLedger
	profile   DifficultyProfile

	tables     []Table
	buildings  []Building
	vehicles   []Vehicle
	shopOffers []int

	outstanding int
	started     bool
	paused      bool
	over        bool

	simTime float64 // pausable simulation clock, ms since round start
	rng     *rand.Rand

	host Transport
}

func newGame(cfg *Config, code string, level *Level, host Transport) *Game {
	if host == nil {
		host = nullTransport{}
	}
	return &Game{
		cfg:       cfg,
		code:      code,
		level:     level,
		registry:  newSessionRegistry(),
		scheduler: &EventScheduler{},
		ledger:    &EconomyLedger{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		host:      host,
	}
}

func (g *Game) now() int64 {
	return int64(g.simTime)
}

func (g *Game) Started() bool {
	return g.started
}

// Join registers a controller, or revives a disconnected session with the
// same username. The relay has already enforced who may join when.
func (g *Game) Join(username string, t Transport) (*PlayerSession, bool) {
	session, reconnect := g.registry.addOrReconnect(username, t)

	if reconnect {
		session.send(lobbyMessage{Type: "lobby", Ind: session.LobbyIndex})
		if g.profile.Allergies {
			session.send(allergiesMessage{Type: "allergies", Val: allergyList(session.Allergies)})
		}
		session.nearKind, session.nearIndex = entityNone, -1
		if g.paused && !g.registry.anyDisconnected() {
			g.paused = false
		}
		logf(g.cfg, "ROOMS: %q reconnected to %s", username, g.code)
		return session, true
	}

	session.X, session.Y = g.level.SpawnX, g.level.SpawnY
	session.send(lobbyMessage{Type: "lobby", Ind: session.LobbyIndex})
	logf(g.cfg, "ROOMS: %q joined %s as player %d", username, g.code, session.LobbyIndex)
	return session, false
}

// OnTransportClosed marks a controller as gone without deleting anything,
// so a later join with the same username restores it. A mid-round
// disconnect pauses the simulation clock until the player returns.
func (g *Game) OnTransportClosed(session *PlayerSession) {
	if session == nil {
		return
	}
	if session.Vehicle >= 0 {
		g.vehicles[session.Vehicle].Driver = nil
		session.Vehicle = -1
	}
	g.registry.markDisconnected(session)
	if g.started && !g.over {
		g.paused = true
	}
	logf(g.cfg, "ROOMS: %q disconnected from %s", session.Username, g.code)
}

// OnIntent validates and applies one controller message. Action errors
// abort the mutation and answer only the originating player; they are
// never silently dropped.
func (g *Game) OnIntent(p *PlayerSession, env clientEnvelope) {
	switch env.Type {
	case "msg":
		g.relayChat(p, env.Value)
		return
	case "start-game":
		g.handleStart(p, env.Difficulty, false)
		return
	case "restart-game":
		g.handleStart(p, env.Difficulty, true)
		return
	}

	if !g.started || g.over || g.paused {
		return
	}

	switch env.Type {
	case "move":
		g.handleMove(p, env.Vec)
	case "buy":
		g.handleBuy(p)
	case "table-pickup":
		g.handleTablePickup(p)
	case "table-drop":
		g.handleTableDrop(p, env.Ing)
	case "take-order":
		g.handleOrderIntent(p, g.takeOrder)
	case "deliver-order":
		g.handleOrderIntent(p, g.deliverOrder)
	case "enter-vehicle":
		g.handleEnterVehicle(p)
	case "leave-vehicle":
		g.handleLeaveVehicle(p)
	default:
		// unknown intents are ignored
	}
}

func (g *Game) relayChat(p *PlayerSession, value string) {
	if value == "" {
		return
	}
	msg := noticeMessage{Type: "msg", Value: value, From: p.Username}
	for _, other := range g.registry.list() {
		if other != p {
			other.send(msg)
		}
	}
	g.host.Send(msg)
}

func (g *Game) handleStart(p *PlayerSession, difficulty int, restart bool) {
	if !p.isVIP() {
		p.send(noticeMessage{Type: "msg", Value: "Only the first player can start the game."})
		return
	}
	if restart {
		if !g.over {
			return
		}
		g.registry.sendRestartNotice()
	} else if g.started && !g.over {
		return
	}
	g.startRound(difficulty)
}

func (g *Game) handleMove(p *PlayerSession, vec []float64) {
	if len(vec) != 2 {
		return
	}
	x, y := vec[0], vec[1]
	if mag := math.Hypot(x, y); mag > 1 {
		x /= mag
		y /= mag
	}
	p.moveX, p.moveY = x, y
}

func (g *Game) handleBuy(p *PlayerSession) {
	shop, ok := g.nearEntity(p, entityShop)
	if !ok {
		p.send(noticeMessage{Type: "msg", Value: "You are not at a shop."})
		return
	}

	offer := g.shopOffers[shop]
	if len(p.Backpack) >= backpackCapacity {
		p.send(noticeMessage{Type: "msg", Value: "Your backpack is full."})
		return
	}
	if isAllergic(p.Allergies, 1<<offer, g.registry.len()) {
		p.send(noticeMessage{Type: "msg", Value: "You are allergic to " + ingredientNames[offer] + "!"})
		return
	}
	if g.ledger.apply(-ingredientPrices[offer], false) == ledgerRejected {
		p.send(noticeMessage{Type: "msg", Value: "Not enough money."})
		return
	}

	p.Backpack = append(p.Backpack, Item{Mask: 1 << offer})
	g.shopOffers[shop] = g.rng.Intn(ingredientTotal)
	g.refreshShop(shop)
}

func (g *Game) handleTablePickup(p *PlayerSession) {
	idx, ok := g.nearEntity(p, entityTable)
	if !ok {
		p.send(noticeMessage{Type: "msg", Value: "You are not at a table."})
		return
	}

	t := &g.tables[idx]
	if t.Content.Mask == 0 {
		p.send(noticeMessage{Type: "msg", Value: "There is nothing on this table."})
		return
	}
	if len(p.Backpack) >= backpackCapacity {
		p.send(noticeMessage{Type: "msg", Value: "Your backpack is full."})
		return
	}
	if isAllergic(p.Allergies, t.Content.Mask, g.registry.len()) {
		p.send(noticeMessage{Type: "msg", Value: "You are allergic to something on this table!"})
		return
	}

	p.Backpack = append(p.Backpack, t.Content)
	t.Content = Item{}
	g.refreshTable(idx)
}

func (g *Game) handleTableDrop(p *PlayerSession, slot int) {
	idx, ok := g.nearEntity(p, entityTable)
	if !ok {
		p.send(noticeMessage{Type: "msg", Value: "You are not at a table."})
		return
	}
	if slot < 0 || slot >= len(p.Backpack) {
		return
	}

	t := &g.tables[idx]
	item := p.Backpack[slot]

	switch {
	case t.Content.Mask == 0:
		t.Content = item
	case t.Oven:
		p.send(noticeMessage{Type: "msg", Value: "This oven is already occupied."})
		return
	default:
		merged, valid := combine(t.Content.Mask, item.Mask)
		if !valid {
			p.send(noticeMessage{Type: "msg", Value: "Those ingredients do not combine. Start with dough!"})
			return
		}
		t.Content.Mask = merged
		t.Content.Heat = math.Max(t.Content.Heat, item.Heat)
	}

	p.Backpack = append(p.Backpack[:slot], p.Backpack[slot+1:]...)
	g.refreshTable(idx)
}

func (g *Game) handleOrderIntent(p *PlayerSession, act func(*PlayerSession, int)) {
	idx, ok := g.nearEntity(p, entityBuilding)
	if !ok {
		p.send(noticeMessage{Type: "msg", Value: "You are not at a building."})
		return
	}
	act(p, idx)
}

func (g *Game) handleEnterVehicle(p *PlayerSession) {
	if p.Vehicle >= 0 {
		return
	}
	idx, ok := g.nearEntity(p, entityVehicle)
	if !ok {
		p.send(noticeMessage{Type: "msg", Value: "There is no vehicle here."})
		return
	}
	v := &g.vehicles[idx]
	if v.Driver != nil {
		p.send(noticeMessage{Type: "msg", Value: "Someone else is using that vehicle."})
		return
	}
	v.Driver = p
	p.Vehicle = idx
	p.send(simpleMessage{Type: "vehicle-active"})
}

func (g *Game) handleLeaveVehicle(p *PlayerSession) {
	if p.Vehicle < 0 {
		p.send(noticeMessage{Type: "msg", Value: "You are not in a vehicle."})
		return
	}
	g.vehicles[p.Vehicle].Driver = nil
	p.Vehicle = -1
	// Force a proximity rescan so the parked vehicle is offered again.
	p.nearKind, p.nearIndex = entityNone, -1
}

// startRound resets all round state under the chosen difficulty preset and
// arms the order generator.
func (g *Game) startRound(difficulty int) {
	g.profile = difficultyPreset(difficulty)
	g.ledger = &EconomyLedger{
		Balance:    g.profile.StartBalance,
		MaxStrikes: g.profile.MaxStrikes,
	}
	g.scheduler = &EventScheduler{}
	g.simTime = 0
	g.outstanding = 0
	g.over = false
	g.started = true
	g.paused = g.registry.anyDisconnected()

	g.tables = make([]Table, len(g.level.Tables))
	for i, tp := range g.level.Tables {
		g.tables[i].Oven = tp.Oven
	}
	g.buildings = make([]Building, len(g.level.Buildings))
	g.vehicles = make([]Vehicle, len(g.level.Vehicles))
	for i, vp := range g.level.Vehicles {
		g.vehicles[i] = Vehicle{X: vp.X, Y: vp.Y}
	}
	g.shopOffers = make([]int, len(g.level.Shops))
	for i := range g.shopOffers {
		g.shopOffers[i] = g.rng.Intn(ingredientTotal)
	}

	for _, p := range g.registry.list() {
		p.X, p.Y = g.level.SpawnX, g.level.SpawnY
		p.moveX, p.moveY = 0, 0
		p.Backpack = nil
		p.Vehicle = -1
		p.nearKind, p.nearIndex = entityNone, -1
		p.Allergies = make(map[int]bool)
		if g.profile.Allergies {
			// One random topping each; dough is never an allergen.
			allergen := 1 + g.rng.Intn(ingredientTotal-1)
			p.Allergies[allergen] = true
			p.send(allergiesMessage{Type: "allergies", Val: []int{allergen}})
		}
	}

	g.scheduleNextGeneration()
	logf(g.cfg, "GAMES: round started in %s (%s, %d players)", g.code, g.profile.Name, g.registry.len())
}

func (g *Game) gameOver(win bool, reason string) {
	if g.over {
		return
	}
	g.over = true
	msg := gameEndMessage{Type: "game-end", Win: win, Reason: reason}
	g.registry.broadcast(msg)
	g.host.Send(msg)
	logf(g.cfg, "GAMES: round over in %s (win=%t, %s)", g.code, win, reason)
}

// Tick advances the simulation by one frame: drain due scheduler events,
// then per-player and per-table housekeeping. The clock does not move
// while the round is paused for a disconnected player.
func (g *Game) Tick(elapsed time.Duration) {
	defer g.sendHostState()

	if !g.started || g.over || g.paused {
		return
	}

	dt := float64(elapsed) / float64(time.Millisecond)
	g.simTime += dt

	if g.simTime >= float64(g.profile.RoundMillis) {
		g.gameOver(true, "time is up")
		return
	}

	g.scheduler.advance(g.now(), g.fireEvent)
	if g.over {
		return
	}

	for _, p := range g.registry.list() {
		if p.Disconnected {
			continue
		}
		g.updatePlayer(p, dt)
	}

	for i := range g.tables {
		t := &g.tables[i]
		if t.Content.Mask == 0 {
			continue
		}
		before := t.Content.Mask
		t.Content.applyHeat(dt, t.Oven, g.profile.HeatVariation)
		if t.Content.Mask != before {
			g.refreshTable(i)
		}
	}
}

func (g *Game) fireEvent(kind eventKind, payload eventPayload) {
	if g.over {
		return
	}
	switch kind {
	case eventGenerateOrder:
		g.generateOrder()
	case eventAlmostFailed:
		g.almostFailed(payload)
	case eventOrderFailed:
		g.orderFailed(payload)
	}
}

func (g *Game) updatePlayer(p *PlayerSession, dt float64) {
	speed := playerSpeed
	if p.Vehicle >= 0 {
		speed = vehicleSpeed
	}
	p.X += p.moveX * speed * dt / 1000
	p.Y += p.moveY * speed * dt / 1000
	p.X, p.Y = g.level.clamp(p.X, p.Y)

	if p.Vehicle >= 0 {
		g.vehicles[p.Vehicle].X = p.X
		g.vehicles[p.Vehicle].Y = p.Y
	}

	for i := range p.Backpack {
		p.Backpack[i].applyHeat(dt, false, g.profile.HeatVariation)
	}

	g.updateProximity(p)
}

// updateProximity tracks which interactable the player is standing at and
// emits the matching open/close messages on transitions.
func (g *Game) updateProximity(p *PlayerSession) {
	kind, idx := g.scanNearest(p)
	if kind == p.nearKind && idx == p.nearIndex {
		return
	}

	g.sendCloseMessage(p, p.nearKind)
	p.nearKind, p.nearIndex = kind, idx
	g.sendOpenMessage(p, kind, idx)
}

func (g *Game) scanNearest(p *PlayerSession) (entityKind, int) {
	for i, s := range g.level.Shops {
		if g.level.within(p.X, p.Y, s.X, s.Y) {
			return entityShop, i
		}
	}
	for i, t := range g.level.Tables {
		if g.level.within(p.X, p.Y, t.X, t.Y) {
			return entityTable, i
		}
	}
	for i, b := range g.level.Buildings {
		if g.level.within(p.X, p.Y, b.X, b.Y) {
			return entityBuilding, i
		}
	}
	if p.Vehicle < 0 {
		for i := range g.vehicles {
			v := &g.vehicles[i]
			if v.Driver == nil && g.level.within(p.X, p.Y, v.X, v.Y) {
				return entityVehicle, i
			}
		}
	}
	return entityNone, -1
}

func (g *Game) sendOpenMessage(p *PlayerSession, kind entityKind, idx int) {
	switch kind {
	case entityShop:
		p.send(ingOfferMessage{
			Type:  "ing",
			Ing:   g.shopOffers[idx],
			Price: ingredientPrices[g.shopOffers[idx]],
		})
	case entityTable:
		t := g.tables[idx]
		p.send(tableMessage{
			Type:     "table",
			IsOven:   t.Oven,
			Content:  t.Content.Mask,
			Heat:     t.Content.Heat,
			Backpack: append([]Item(nil), p.Backpack...),
		})
	case entityBuilding:
		b := g.buildings[idx]
		p.send(areaMessage{
			Type:   "area",
			Status: b.Status.String(),
			Order:  b.Mask,
			Count:  b.Count,
		})
	case entityVehicle:
		p.send(simpleMessage{Type: "vehicle"})
	}
}

func (g *Game) sendCloseMessage(p *PlayerSession, kind entityKind) {
	switch kind {
	case entityShop:
		p.send(simpleMessage{Type: "ing-end"})
	case entityTable:
		p.send(simpleMessage{Type: "table-end"})
	case entityBuilding:
		p.send(simpleMessage{Type: "area-end"})
	case entityVehicle:
		p.send(simpleMessage{Type: "vehicle-end"})
	}
}

// refreshTable re-sends the table view to every player standing at it, so
// shared state stays consistent across controllers.
func (g *Game) refreshTable(idx int) {
	for _, p := range g.registry.list() {
		if !p.Disconnected && p.nearKind == entityTable && p.nearIndex == idx {
			g.sendOpenMessage(p, entityTable, idx)
		}
	}
}

func (g *Game) refreshBuilding(idx int) {
	for _, p := range g.registry.list() {
		if !p.Disconnected && p.nearKind == entityBuilding && p.nearIndex == idx {
			g.sendOpenMessage(p, entityBuilding, idx)
		}
	}
}

func (g *Game) refreshShop(idx int) {
	for _, p := range g.registry.list() {
		if !p.Disconnected && p.nearKind == entityShop && p.nearIndex == idx {
			g.sendOpenMessage(p, entityShop, idx)
		}
	}
}

func (g *Game) nearEntity(p *PlayerSession, kind entityKind) (int, bool) {
	if p.nearKind != kind {
		return 0, false
	}
	return p.nearIndex, true
}

func (g *Game) sendHostState() {
	players := make([]statePlayer, 0, g.registry.len())
	for _, p := range g.registry.list() {
		players = append(players, statePlayer{
			Username: p.Username,
			X:        p.X,
			Y:        p.Y,
			Vehicle:  p.Vehicle,
			Offline:  p.Disconnected,
		})
	}

	tables := make([]stateTable, len(g.tables))
	for i, t := range g.tables {
		tables[i] = stateTable{IsOven: t.Oven, Content: t.Content.Mask, Heat: t.Content.Heat}
	}

	buildings := make([]stateBuilding, len(g.buildings))
	for i, b := range g.buildings {
		buildings[i] = stateBuilding{Status: b.Status.String(), Order: b.Mask, Count: b.Count}
	}

	remaining := int64(0)
	if g.started {
		remaining = g.profile.RoundMillis - g.now()
		if remaining < 0 {
			remaining = 0
		}
	}

	g.host.Send(stateMessage{
		Type:      "state",
		Started:   g.started,
		Paused:    g.paused,
		Over:      g.over,
		Balance:   g.ledger.Balance,
		Strikes:   g.ledger.Strikes,
		Remaining: remaining,
		Players:   players,
		Tables:    tables,
		Buildings: buildings,
	})
}

func allergyList(allergies map[int]bool) []int {
	out := make([]int, 0, len(allergies))
	for i := 0; i < ingredientTotal; i++ {
		if allergies[i] {
			out = append(out, i)
		}
	}
	return out
}
