package main

// DifficultyProfile selects which optional rules are active for a round.
type DifficultyProfile struct {
	Name string

	Allergies      bool
	AutoOrders     bool
	CombinedOrders bool
	BakingRequired bool
	HeatVariation  bool
	MoneyPenalty   bool

	MaxStrikes   int
	StartBalance int
	RoundMillis  int64
}

// The four fixed presets, selected by index 0-3 at game start.
var difficultyPresets = [4]DifficultyProfile{
	{
		Name:         "Training Wheels",
		AutoOrders:   true,
		MaxStrikes:   6,
		StartBalance: 30,
		RoundMillis:  10 * 60 * 1000,
	},
	{
		Name:           "Amateur Hour",
		CombinedOrders: true,
		BakingRequired: true,
		MaxStrikes:     5,
		StartBalance:   25,
		RoundMillis:    9 * 60 * 1000,
	},
	{
		Name:           "Rush Hour",
		Allergies:      true,
		CombinedOrders: true,
		BakingRequired: true,
		HeatVariation:  true,
		MaxStrikes:     4,
		StartBalance:   20,
		RoundMillis:    8 * 60 * 1000,
	},
	{
		Name:           "Pizza Legend",
		Allergies:      true,
		CombinedOrders: true,
		BakingRequired: true,
		HeatVariation:  true,
		MoneyPenalty:   true,
		MaxStrikes:     3,
		StartBalance:   20,
		RoundMillis:    7 * 60 * 1000,
	},
}

// difficultyPreset clamps an arbitrary client-supplied index to a preset.
func difficultyPreset(level int) DifficultyProfile {
	if level < 0 {
		level = 0
	}
	if level >= len(difficultyPresets) {
		level = len(difficultyPresets) - 1
	}
	return difficultyPresets[level]
}
