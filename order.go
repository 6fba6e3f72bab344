package main

import "fmt"

type orderStatus int

const (
	orderNone orderStatus = iota
	orderOrdering
	orderWaiting
)

func (s orderStatus) String() string {
	switch s {
	case orderOrdering:
		return "ordering"
	case orderWaiting:
		return "waiting"
	default:
		return "none"
	}
}

// Building holds the order state machine for one delivery address.
// SequenceID increments whenever a new order lands on the building, so
// in-flight timeout events can detect that they are stale.
type Building struct {
	Status     orderStatus
	Mask       int
	Count      int
	SequenceID int
}

func (b *Building) clear() {
	b.Status = orderNone
	b.Mask = 0
	b.Count = 0
}

// Order pacing and payout constants, in simulation milliseconds.
const (
	orderGenBaseDelayMs = 2000
	orderGenJitterMs    = 2000

	pickupTimeoutMs               = 30000
	deliverTimeoutPerIngredientMs = 20000
	bakingTimeoutBonusMs          = 30000

	pickupGraceMs  = 15000
	deliverGraceMs = 30000

	rewardPerIngredient = 5
	rewardBase          = 5
	orderFailPenalty    = 10

	// One extra outstanding order is allowed 10% of the time.
	extraOrderChance = 0.10
)

func (g *Game) scheduleNextGeneration() {
	delay := int64(orderGenBaseDelayMs) + g.rng.Int63n(orderGenJitterMs)
	g.scheduler.schedule(g.now(), delay, eventGenerateOrder, eventPayload{})
}

func (g *Game) maxOrders() int {
	limit := g.registry.len()
	if g.rng.Float64() < extraOrderChance {
		limit++
	}
	return limit
}

// generateOrder is the recurring generator: pick an idle building, roll an
// order for it, and start the pickup countdown. It always re-schedules
// itself, whether or not an order was placed.
func (g *Game) generateOrder() {
	defer g.scheduleNextGeneration()

	if g.outstanding >= g.maxOrders() {
		return
	}

	eligible := make([]int, 0, len(g.buildings))
	for i := range g.buildings {
		if g.buildings[i].Status == orderNone {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return
	}

	idx := eligible[g.rng.Intn(len(eligible))]
	b := &g.buildings[idx]

	b.Mask, b.Count = g.randomOrderMask()
	b.Status = orderOrdering
	b.SequenceID++
	g.outstanding++

	if g.profile.AutoOrders {
		// Orders are taken on the players' behalf; no pickup window.
		g.beginDelivery(idx)
		g.refreshBuilding(idx)
		return
	}

	g.scheduler.schedule(g.now(), pickupTimeoutMs, eventAlmostFailed, eventPayload{
		building:    idx,
		sequenceID:  b.SequenceID,
		statusCheck: orderOrdering,
	})
	g.refreshBuilding(idx)
}

// randomOrderMask rolls dough plus one topping, or up to four when combined
// orders are enabled.
func (g *Game) randomOrderMask() (int, int) {
	toppings := 1
	if g.profile.CombinedOrders {
		toppings = 1 + g.rng.Intn(ingredientTotal-1)
	}

	mask := maskDough
	for _, t := range g.rng.Perm(ingredientTotal - 1)[:toppings] {
		mask |= 1 << (1 + t)
	}
	return mask, ingredientCount(mask)
}

// beginDelivery moves a building into the waiting phase and arms the
// delivery countdown, scaled by order size and the baking requirement.
func (g *Game) beginDelivery(idx int) {
	b := &g.buildings[idx]
	b.Status = orderWaiting

	delay := int64(b.Count) * deliverTimeoutPerIngredientMs
	if g.profile.BakingRequired {
		delay += bakingTimeoutBonusMs
	}
	g.scheduler.schedule(g.now(), delay, eventAlmostFailed, eventPayload{
		building:    idx,
		sequenceID:  b.SequenceID,
		statusCheck: orderWaiting,
	})
}

func (g *Game) takeOrder(p *PlayerSession, idx int) {
	b := &g.buildings[idx]
	if b.Status != orderOrdering {
		p.send(noticeMessage{Type: "msg", Value: "There is no order to take here."})
		return
	}

	g.beginDelivery(idx)
	g.refreshBuilding(idx)
	logf(g.cfg, "GAMES: %q took order %d at building %d in %s", p.Username, b.SequenceID, idx, g.code)
}

func (g *Game) deliverOrder(p *PlayerSession, idx int) {
	b := &g.buildings[idx]
	if b.Status != orderWaiting {
		p.send(noticeMessage{Type: "msg", Value: "Nobody here is waiting for a delivery."})
		return
	}

	match := -1
	undercooked := false
	for i, item := range p.Backpack {
		if item.Mask != b.Mask {
			continue
		}
		if g.profile.BakingRequired && item.Heat < bakedThreshold {
			undercooked = true
			continue
		}
		match = i
		break
	}

	if match == -1 {
		if undercooked {
			p.send(noticeMessage{Type: "msg", Value: "That pizza is undercooked. Bake it some more!"})
		} else {
			p.send(noticeMessage{Type: "msg", Value: "You are not carrying this order."})
		}
		return
	}

	p.Backpack = append(p.Backpack[:match], p.Backpack[match+1:]...)

	reward := b.Count*rewardPerIngredient + rewardBase
	g.ledger.apply(reward, false)

	b.clear()
	g.outstanding--
	g.refreshBuilding(idx)

	p.send(noticeMessage{Type: "msg", Value: fmt.Sprintf("Delivered! Earned %d coins.", reward)})
	logf(g.cfg, "GAMES: %q delivered at building %d in %s for %d", p.Username, idx, g.code, reward)
}

// almostFailed fires when an order has lingered. A stale sequence id or
// status means the order was taken, delivered or replaced since this event
// was scheduled, and the event silently no-ops.
func (g *Game) almostFailed(payload eventPayload) {
	b := &g.buildings[payload.building]
	if b.SequenceID != payload.sequenceID || b.Status != payload.statusCheck {
		return
	}

	grace := int64(pickupGraceMs)
	warning := fmt.Sprintf("A customer is about to give up on ordering! (building %d)", payload.building)
	if payload.statusCheck == orderWaiting {
		grace = deliverGraceMs
		warning = fmt.Sprintf("A customer is about to cancel their delivery! (building %d)", payload.building)
	}

	g.registry.broadcast(noticeMessage{Type: "msg", Value: warning})
	g.scheduler.schedule(g.now(), grace, eventOrderFailed, payload)
}

// orderFailed ends an order that ran out the clock: strike, optional money
// penalty (doubled when the failure happened during the delivery phase),
// and possibly the whole round.
func (g *Game) orderFailed(payload eventPayload) {
	b := &g.buildings[payload.building]
	if b.SequenceID != payload.sequenceID || b.Status != payload.statusCheck {
		return
	}

	b.clear()
	g.outstanding--
	g.refreshBuilding(payload.building)
	g.registry.broadcast(noticeMessage{Type: "msg", Value: "An order failed. The customer walked away angry."})
	logf(g.cfg, "GAMES: order %d failed at building %d in %s", payload.sequenceID, payload.building, g.code)

	if g.profile.MoneyPenalty {
		penalty := orderFailPenalty
		if payload.statusCheck == orderWaiting {
			penalty *= 2
		}
		if g.ledger.apply(-penalty, true) == ledgerExhausted {
			g.gameOver(false, "no money")
			return
		}
	}

	if g.ledger.strike() {
		g.gameOver(false, "too many failed orders")
	}
}
