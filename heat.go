package main

// Heat moves linearly: cold to fully baked over 25 simulated seconds,
// fully baked back to cold over 150.
const (
	heatPerMilli = 1.0 / 25000.0
	coolPerMilli = 1.0 / 150000.0

	// bakedThreshold is the minimum heat a pizza needs before a customer
	// accepts it, when the baking rule is active.
	bakedThreshold = 7.0 / 9.0

	// heatSafetyCap bounds heating when heat variation is disabled:
	// content approaches but never reaches it, so burning is impossible.
	heatSafetyCap = 0.98
)

// Item is one carried or placed piece of content: an ingredient mask plus
// its current heat, always within [0,1].
type Item struct {
	Mask int     `json:"ing"`
	Heat float64 `json:"heat"`
}

// applyHeat advances an item's heat by elapsed simulation milliseconds.
// Heating applies inside ovens; cooling applies everywhere else, but only
// when heat variation is enabled. An item that entered the update already
// at full heat burns: its content is replaced by the ruined marker and its
// heat pins at 1.
func (it *Item) applyHeat(elapsedMs float64, heating, variation bool) {
	if it.Mask == 0 || elapsedMs <= 0 {
		return
	}
	if it.Mask == maskBurned {
		it.Heat = 1
		return
	}

	if heating {
		if it.Heat >= 1 {
			it.Mask = maskBurned
			it.Heat = 1
			return
		}
		it.Heat += elapsedMs * heatPerMilli
		if variation {
			if it.Heat > 1 {
				it.Heat = 1
			}
			return
		}
		if it.Heat >= heatSafetyCap {
			it.Heat = heatSafetyCap - heatPerMilli
		}
		return
	}

	if !variation {
		return
	}
	it.Heat -= elapsedMs * coolPerMilli
	if it.Heat < 0 {
		it.Heat = 0
	}
}
