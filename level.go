package main

type entityKind int

const (
	entityNone entityKind = iota
	entityShop
	entityTable
	entityBuilding
	entityVehicle
)

type place struct {
	X, Y float64
}

type tablePlace struct {
	X, Y float64
	Oven bool
}

// Level provides the static geometry the simulation references opaquely:
// where shops, tables, buildings and vehicles sit, and how close a player
// must be to interact with them. Map generation and rendering live outside
// the core; tests inject tiny layouts.
type Level struct {
	Width, Height  float64
	SpawnX, SpawnY float64
	InteractRadius float64

	Shops     []place
	Tables    []tablePlace
	Buildings []place
	Vehicles  []place
}

func defaultLevel() *Level {
	return &Level{
		Width:          800,
		Height:         600,
		SpawnX:         400,
		SpawnY:         300,
		InteractRadius: 30,
		Shops: []place{
			{X: 120, Y: 120},
		},
		Tables: []tablePlace{
			{X: 240, Y: 120},
			{X: 300, Y: 120},
			{X: 360, Y: 120},
			{X: 240, Y: 200, Oven: true},
			{X: 300, Y: 200, Oven: true},
		},
		Buildings: []place{
			{X: 120, Y: 480},
			{X: 320, Y: 480},
			{X: 520, Y: 480},
			{X: 680, Y: 360},
			{X: 680, Y: 160},
		},
		Vehicles: []place{
			{X: 460, Y: 300},
			{X: 520, Y: 300},
		},
	}
}

func (l *Level) within(px, py, x, y float64) bool {
	dx := px - x
	dy := py - y
	r := l.InteractRadius
	return dx*dx+dy*dy <= r*r
}

func (l *Level) clamp(x, y float64) (float64, float64) {
	if x < 0 {
		x = 0
	}
	if x > l.Width {
		x = l.Width
	}
	if y < 0 {
		y = 0
	}
	if y > l.Height {
		y = l.Height
	}
	return x, y
}
