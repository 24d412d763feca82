// Package targeting picks which monster to fight and which rope to climb.
//
// Selection is purely horizontal: among candidates inside the configured
// window around the character, the one with the smallest |dx| wins and
// ties go to the candidate enumerated first.
package targeting

import (
	"mapleland-bot/internal/geom"
	"mapleland-bot/internal/perception"
)

// MonsterParams bounds the monster search window.
type MonsterParams struct {
	XRange int
	YRange int
	// HandleOppositeFacing keeps candidates behind the character. When false,
	// candidates strictly on the side opposite the facing are dropped.
	HandleOppositeFacing bool
}

// RopeParams bounds the rope search window.
type RopeParams struct {
	// XRange of 0 leaves horizontal distance unlimited.
	XRange int
	YBand  int
}

// SelectMonster returns the closest monster candidate in the window.
func SelectMonster(cands []perception.Candidate, pose perception.Pose, p MonsterParams) (perception.Candidate, bool) {
	return closest(cands, func(c perception.Candidate) bool {
		dx, dy := c.X-pose.X, c.Y-pose.Y
		if geom.Abs(dy) >= p.YRange || geom.Abs(dx) >= p.XRange {
			return false
		}
		if !p.HandleOppositeFacing && behind(dx, pose.FacingLeft) {
			return false
		}
		return true
	}, pose.X)
}

// SelectRope returns the closest rope candidate in the window. Facing does
// not matter for ropes.
func SelectRope(cands []perception.Candidate, pose perception.Pose, p RopeParams) (perception.Candidate, bool) {
	return closest(cands, func(c perception.Candidate) bool {
		dx, dy := c.X-pose.X, c.Y-pose.Y
		if geom.Abs(dy) >= p.YBand {
			return false
		}
		return p.XRange == 0 || geom.Abs(dx) < p.XRange
	}, pose.X)
}

// behind reports whether dx points strictly against the facing.
func behind(dx int, facingLeft bool) bool {
	if facingLeft {
		return dx > 0
	}
	return dx < 0
}

func closest(cands []perception.Candidate, keep func(perception.Candidate) bool, x int) (perception.Candidate, bool) {
	var (
		best  perception.Candidate
		bestD = -1
	)
	for _, c := range cands {
		if !keep(c) {
			continue
		}
		d := geom.Abs(c.X - x)
		if bestD < 0 || d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD >= 0
}
