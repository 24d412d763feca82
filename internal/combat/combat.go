// Package combat runs the approach-and-attack key sequence.
package combat

import (
	"time"

	"go.uber.org/zap"

	"mapleland-bot/internal/movement"
	"mapleland-bot/internal/perception"
)

// Timings configures one attack.
type Timings struct {
	// StoppingDistance is subtracted from |dx| regardless of facing.
	StoppingDistance int
	AttackHold       time.Duration
	SkillDelay       time.Duration
}

// Executor attacks a target through a movement Coordinator.
type Executor struct {
	mc  *movement.Coordinator
	log *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(mc *movement.Coordinator, log *zap.Logger) *Executor {
	return &Executor{mc: mc, log: log.Named("combat")}
}

// Attack approaches target and attacks it. The sequence is strictly ordered
// and runs to completion:
//
//	run down, direction down, sleep(hold), direction up,
//	attack down, sleep(attack hold), attack up, sleep(skill delay), run up
//
// The run key stays down through the attack. When the target is in the
// character's column the approach uses the facing direction with no hold.
func (e *Executor) Attack(target perception.Candidate, charX int, facingLeft bool, pixelRate float64, t Timings) {
	dir := movement.Toward(charX, target.X)
	if dir == movement.None {
		dir = movement.Facing(facingLeft)
	}
	dx := target.X - charX
	if dx < 0 {
		dx = -dx
	}
	hold := movement.Params{PixelRate: pixelRate}.HoldFor(dx, t.StoppingDistance)

	keys := e.mc.Hotkeys()
	dirKey := e.mc.DirectionKey(dir)
	e.log.Debug("attack",
		zap.Int("target_x", target.X),
		zap.Int("char_x", charX),
		zap.Stringer("direction", dir),
		zap.Duration("hold", hold))

	e.mc.HoldKey(keys.Run)
	e.mc.HoldKey(dirKey)
	e.mc.Wait(hold)
	e.mc.ReleaseKey(dirKey)

	e.mc.HoldKey(keys.Attack)
	e.mc.Wait(t.AttackHold)
	e.mc.ReleaseKey(keys.Attack)
	e.mc.Wait(t.SkillDelay)
	e.mc.ReleaseKey(keys.Run)
}
