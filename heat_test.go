package main

import "testing"

func TestHeatFullBakeDuration(t *testing.T) {
	item := Item{Mask: maskDough}

	item.applyHeat(25000, true, true)
	if item.Heat < 0.999 || item.Heat > 1 {
		t.Fatalf("expected full heat after 25s in an oven, got %f", item.Heat)
	}
	if item.Mask != maskDough {
		t.Fatalf("content should not burn on the tick it reaches full heat")
	}
}

func TestHeatBurnsOncePinned(t *testing.T) {
	item := Item{Mask: maskDough, Heat: 1}

	item.applyHeat(100, true, true)
	if item.Mask != maskBurned {
		t.Fatalf("expected content already at full heat to burn, got mask %d", item.Mask)
	}
	if item.Heat != 1 {
		t.Fatalf("expected burned heat pinned at 1, got %f", item.Heat)
	}

	// Stays burned and pinned forever after.
	item.applyHeat(100000, true, true)
	if item.Mask != maskBurned || item.Heat != 1 {
		t.Fatalf("expected burned content to stay pinned, got mask %d heat %f", item.Mask, item.Heat)
	}
}

func TestHeatCapWithoutVariation(t *testing.T) {
	item := Item{Mask: maskDough}

	item.applyHeat(10*60*1000, true, false)
	if item.Heat >= heatSafetyCap || item.Heat < bakedThreshold {
		t.Fatalf("expected heat held just below %f without variation, got %f", heatSafetyCap, item.Heat)
	}
	if item.Mask != maskDough {
		t.Fatalf("burning must never occur with heat variation disabled")
	}

	// Even repeated updates never reach the cap, let alone burn.
	for i := 0; i < 100; i++ {
		item.applyHeat(1000, true, false)
		if item.Heat >= heatSafetyCap {
			t.Fatalf("heat reached the cap on iteration %d: %f", i, item.Heat)
		}
	}
	if item.Mask != maskDough {
		t.Fatalf("expected content unburned, got mask %d", item.Mask)
	}
}

func TestHeatCoolingNeedsVariation(t *testing.T) {
	item := Item{Mask: maskDough, Heat: 0.5}

	item.applyHeat(10000, false, false)
	if item.Heat != 0.5 {
		t.Fatalf("expected no cooling with variation disabled, got %f", item.Heat)
	}

	item.applyHeat(150000, false, true)
	if item.Heat != 0 {
		t.Fatalf("expected full cool-down after 150s, got %f", item.Heat)
	}

	item.applyHeat(1000, false, true)
	if item.Heat < 0 {
		t.Fatalf("heat must never go below zero, got %f", item.Heat)
	}
}

func TestHeatRange(t *testing.T) {
	item := Item{Mask: maskDough}

	for i := 0; i < 1000; i++ {
		item.applyHeat(500, i%2 == 0, true)
		if item.Heat < 0 || item.Heat > 1 {
			t.Fatalf("heat escaped [0,1]: %f", item.Heat)
		}
	}
}
