package movement

import (
	"time"

	"go.uber.org/zap"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/platform"
)

// ActionLogger receives a short description of every input action.
type ActionLogger interface {
	LogAction(message string)
}

// Coordinator executes movement primitives on the keyboard.
//
// Every key event is followed by the configured settle delay so the client
// registers it. Sleeps go through Clock.Sleep and are never interrupted:
// a sequence that has started always runs to completion and releases
// whatever it pressed.
//
// Not thread-safe. Each loop goroutine owns its own Coordinator.
type Coordinator struct {
	kb      platform.Keyboard
	clock   platform.Clock
	keys    config.HotkeysConfig
	actions ActionLogger
	log     *zap.Logger

	nudges int
	route  int
}

// NewCoordinator creates a coordinator. actions may be nil.
func NewCoordinator(kb platform.Keyboard, clock platform.Clock, keys config.HotkeysConfig, actions ActionLogger, log *zap.Logger) *Coordinator {
	return &Coordinator{
		kb:      kb,
		clock:   clock,
		keys:    keys,
		actions: actions,
		log:     log.Named("movement"),
	}
}

// SetHotkeys swaps the key bindings, used after a configuration reload.
func (c *Coordinator) SetHotkeys(keys config.HotkeysConfig) {
	c.keys = keys
}

// Hotkeys returns the current key bindings.
func (c *Coordinator) Hotkeys() config.HotkeysConfig {
	return c.keys
}

func (c *Coordinator) send(key string, mode platform.KeyMode) {
	if key == "" {
		return
	}
	if err := c.kb.SendKey(key, mode); err != nil {
		c.log.Warn("key event failed", zap.String("key", key), zap.Stringer("mode", mode), zap.Error(err))
	}
	if c.keys.KeySettle > 0 {
		c.clock.Sleep(c.keys.KeySettle)
	}
}

func (c *Coordinator) logAction(msg string) {
	if c.actions != nil {
		c.actions.LogAction(msg)
	}
}

// PressKey presses a single key
func (c *Coordinator) PressKey(key string) {
	c.send(key, platform.KeyPress)
	c.logAction("Press key: " + key)
}

// HoldKey holds a key down
func (c *Coordinator) HoldKey(key string) {
	c.send(key, platform.KeyHold)
}

// ReleaseKey releases a held key
func (c *Coordinator) ReleaseKey(key string) {
	c.send(key, platform.KeyRelease)
}

// HoldKeys holds multiple keys simultaneously
func (c *Coordinator) HoldKeys(keys []string) {
	for _, key := range keys {
		c.HoldKey(key)
	}
}

// ReleaseKeys releases multiple held keys in reverse order.
func (c *Coordinator) ReleaseKeys(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		c.ReleaseKey(keys[i])
	}
}

// Wait waits for specified duration
func (c *Coordinator) Wait(d time.Duration) {
	if d > 0 {
		c.clock.Sleep(d)
	}
}

// HoldFor holds keys for d, then releases them.
func (c *Coordinator) HoldFor(keys []string, d time.Duration) {
	c.HoldKeys(keys)
	c.Wait(d)
	c.ReleaseKeys(keys)
}

// Tap holds key for the configured tap duration.
func (c *Coordinator) Tap(key string) {
	c.HoldFor([]string{key}, c.keys.TapHold)
}

// DirectionKey returns the bound key for dir.
func (c *Coordinator) DirectionKey(dir Direction) string {
	switch dir {
	case Left:
		return c.keys.Left
	case Right:
		return c.keys.Right
	default:
		return ""
	}
}

// Move executes a plan: run key and direction key held together for the
// plan's hold. A plan without direction does nothing.
func (c *Coordinator) Move(p Plan) {
	if p.Direction == None {
		return
	}
	c.logAction("Move " + p.Direction.String() + " " + p.Hold.String())
	c.HoldFor([]string{c.keys.Run, c.DirectionKey(p.Direction)}, p.Hold)
}

// Climb executes a rope plan.
func (c *Coordinator) Climb(p RopePlan, climbKey, modifierKey string) {
	if !p.Climb {
		c.Move(p.Move)
		return
	}
	if p.Tap != None {
		c.Tap(c.DirectionKey(p.Tap))
	}
	c.logAction("Climb rope")
	c.HoldFor([]string{climbKey, modifierKey}, p.ClimbHold)
}

// Nudge performs one step of the lost-character recovery. Successive calls
// alternate left and right.
func (c *Coordinator) Nudge(hold time.Duration) {
	dir := Left
	if c.nudges%2 == 1 {
		dir = Right
	}
	c.nudges++
	c.logAction("Nudge " + dir.String())
	c.HoldFor([]string{c.DirectionKey(dir)}, hold)
}

// Patrol holds the next route step. An empty route alternates left and
// right with defaultHold.
func (c *Coordinator) Patrol(routes []config.RouteStep, defaultHold time.Duration) {
	step := config.RouteStep{Direction: "left", Hold: defaultHold}
	if len(routes) > 0 {
		step = routes[c.route%len(routes)]
		if step.Hold <= 0 {
			step.Hold = defaultHold
		}
	} else if c.route%2 == 1 {
		step.Direction = "right"
	}
	c.route++
	c.logAction("Patrol " + step.Direction)
	c.HoldFor([]string{c.keys.Run, c.DirectionKey(ParseDirection(step.Direction))}, step.Hold)
}

// ReleaseAll releases every bound key.
func (c *Coordinator) ReleaseAll(extra ...string) {
	keys := append(c.keys.Bound(), extra...)
	for _, key := range keys {
		if err := c.kb.SendKey(key, platform.KeyRelease); err != nil {
			c.log.Warn("release failed", zap.String("key", key), zap.Error(err))
		}
	}
}
