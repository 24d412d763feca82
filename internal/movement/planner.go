// Package movement converts pixel distances into key-hold durations and
// drives the keyboard to execute them.
//
// Timing model: the character runs at a calibrated pixel rate (by default
// 117 px per 0.5 s, i.e. 234 px/s). A move toward a target stops short by
// an offset so the character ends within attack range:
//
//	hold = max(0, |dx| - offset) / rate
//
// The offset is the stopping distance (30 px) when the character already
// faces the target and 16 px when it must turn first.
package movement

import (
	"time"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
)

// Direction is a horizontal direction.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Toward returns the direction from x to target.
func Toward(x, target int) Direction {
	switch {
	case target < x:
		return Left
	case target > x:
		return Right
	default:
		return None
	}
}

// Facing returns the direction the character faces.
func Facing(facingLeft bool) Direction {
	if facingLeft {
		return Left
	}
	return Right
}

// ParseDirection maps "left"/"right" to a Direction.
func ParseDirection(s string) Direction {
	switch s {
	case "left":
		return Left
	case "right":
		return Right
	default:
		return None
	}
}

// Plan is one directional hold.
type Plan struct {
	Direction Direction
	Hold      time.Duration
}

// Params calibrates the timing model.
type Params struct {
	// PixelRate is pixels covered per second of held movement.
	PixelRate     float64
	AlignedOffset int
	OpposedOffset int
}

// ParamsFrom builds Params from configuration.
func ParamsFrom(m config.MovementConfig) Params {
	return Params{
		PixelRate:     m.PixelRate(),
		AlignedOffset: m.AlignedOffset,
		OpposedOffset: m.OpposedOffset,
	}
}

// HoldFor returns the hold needed to close dist pixels minus offset.
func (p Params) HoldFor(dist, offset int) time.Duration {
	remaining := dist - offset
	if remaining <= 0 || p.PixelRate <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / p.PixelRate * float64(time.Second))
}

// PlanMove plans a move from charX toward targetX. dx == 0 yields no
// direction and no hold.
func PlanMove(charX, targetX int, facingLeft bool, p Params) Plan {
	dir := Toward(charX, targetX)
	if dir == None {
		return Plan{}
	}
	offset := p.OpposedOffset
	if dir == Facing(facingLeft) {
		offset = p.AlignedOffset
	}
	return Plan{Direction: dir, Hold: p.HoldFor(geom.Abs(targetX-charX), offset)}
}

// RopeParams configures the rope approach.
type RopeParams struct {
	AlignRange int
	ClimbHold  time.Duration
}

// RopePlan is either a climb (tap toward the rope, then hold climb keys) or
// a plain move toward a rope that is still too far away.
type RopePlan struct {
	Climb bool
	// Tap is the alignment tap before climbing; None when already aligned.
	Tap       Direction
	ClimbHold time.Duration
	Move      Plan
}

// PlanRope plans the approach to a rope at ropeX.
func PlanRope(charX, ropeX int, facingLeft bool, p Params, r RopeParams) RopePlan {
	if geom.Abs(ropeX-charX) <= r.AlignRange {
		return RopePlan{Climb: true, Tap: Toward(charX, ropeX), ClimbHold: r.ClimbHold}
	}
	return RopePlan{Move: PlanMove(charX, ropeX, facingLeft, p)}
}
