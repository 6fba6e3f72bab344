package main

import "math/bits"

// The five base ingredients, encoded as bits of an order mask.
// Bit 0 is dough; every multi-ingredient combination needs it.
const (
	ingredientDough = iota
	ingredientTomato
	ingredientCheese
	ingredientMushroom
	ingredientPepper
	ingredientTotal
)

const (
	maskDough = 1 << ingredientDough
	maskFull  = 1<<ingredientTotal - 1

	// maskBurned marks content ruined by overheating. It sits outside the
	// valid mask range so it can never match an order.
	maskBurned = -1
)

var ingredientNames = [ingredientTotal]string{
	"dough",
	"tomato",
	"cheese",
	"mushroom",
	"pepper",
}

var ingredientPrices = [ingredientTotal]int{3, 5, 5, 5, 5}

func decompose(mask int) [ingredientTotal]bool {
	var flags [ingredientTotal]bool
	for i := range flags {
		flags[i] = mask&(1<<i) != 0
	}
	return flags
}

func compose(flags [ingredientTotal]bool) int {
	mask := 0
	for i, set := range flags {
		if set {
			mask |= 1 << i
		}
	}
	return mask
}

func ingredientCount(mask int) int {
	if mask < 0 {
		return 0
	}
	return bits.OnesCount(uint(mask))
}

// maskValid reports whether a mask describes something a player may hold:
// at least one ingredient, and dough underneath anything composite.
func maskValid(mask int) bool {
	if mask <= 0 || mask > maskFull {
		return false
	}
	if ingredientCount(mask) > 1 && mask&maskDough == 0 {
		return false
	}
	return true
}

// combine merges two held masks into one. The result is rejected unless it
// is a single loose ingredient or a dough-based combination.
func combine(existing, added int) (int, bool) {
	merged := existing | added
	if existing < 0 || added < 0 || !maskValid(merged) {
		return 0, false
	}
	return merged, true
}

// isAllergic reports whether any ingredient in mask appears in the allergy
// set. Two exemptions keep every order deliverable by someone: in games of
// three or fewer players, combinations never trigger allergies, and in
// games of more than four players, a fully-loaded pizza never does.
func isAllergic(allergies map[int]bool, mask int, playerCount int) bool {
	if len(allergies) == 0 || mask <= 0 {
		return false
	}

	count := ingredientCount(mask)
	if playerCount <= 3 && count > 1 {
		return false
	}
	if playerCount > 4 && count == ingredientTotal {
		return false
	}

	for i, set := range decompose(mask) {
		if set && allergies[i] {
			return true
		}
	}
	return false
}
