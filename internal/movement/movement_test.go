package movement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/platform"
)

var defaultParams = Params{PixelRate: 234, AlignedOffset: 30, OpposedOffset: 16}

func TestPlanMove(t *testing.T) {
	tests := []struct {
		name       string
		char, tgt  int
		facingLeft bool
		want       Plan
	}{
		{"aligned right", 100, 364, false, Plan{Right, time.Second}},
		{"opposed right", 100, 350, true, Plan{Right, time.Second}},
		{"aligned left", 500, 266, true, Plan{Left, 871794871 * time.Nanosecond}},
		{"inside stopping distance", 100, 125, false, Plan{Right, 0}},
		{"same column", 100, 100, true, Plan{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanMove(tt.char, tt.tgt, tt.facingLeft, defaultParams)
			assert.Equal(t, tt.want.Direction, got.Direction)
			assert.InDelta(t, float64(tt.want.Hold), float64(got.Hold), float64(time.Microsecond))
		})
	}
}

func TestParamsFromConfig(t *testing.T) {
	p := ParamsFrom(config.Default().Movement)
	assert.Equal(t, defaultParams, p)
}

func TestPlanMoveProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		char := rapid.IntRange(0, 2000).Draw(t, "char")
		d1 := rapid.IntRange(0, 2000).Draw(t, "d1")
		d2 := rapid.IntRange(d1, 2000).Draw(t, "d2")
		left := rapid.Bool().Draw(t, "toLeft")
		facingLeft := rapid.Bool().Draw(t, "facingLeft")

		sign := 1
		if left {
			sign = -1
		}
		p1 := PlanMove(char, char+sign*d1, facingLeft, defaultParams)
		p2 := PlanMove(char, char+sign*d2, facingLeft, defaultParams)

		if p1.Hold < 0 || p2.Hold < 0 {
			t.Fatalf("negative hold")
		}
		if p1.Hold > p2.Hold {
			t.Fatalf("hold not monotone: |dx|=%d -> %s, |dx|=%d -> %s", d1, p1.Hold, d2, p2.Hold)
		}
		if d1 == 0 && (p1.Direction != None || p1.Hold != 0) {
			t.Fatalf("dx=0 planned %v", p1)
		}
		if d2 > 0 && p2.Direction != Toward(char, char+sign*d2) {
			t.Fatalf("direction mismatch %v", p2)
		}
	})
}

func TestPlanRope(t *testing.T) {
	r := RopeParams{AlignRange: 40, ClimbHold: 3500 * time.Millisecond}

	got := PlanRope(500, 530, false, defaultParams, r)
	assert.Equal(t, RopePlan{Climb: true, Tap: Right, ClimbHold: 3500 * time.Millisecond}, got)

	got = PlanRope(500, 460, false, defaultParams, r)
	assert.Equal(t, RopePlan{Climb: true, Tap: Left, ClimbHold: 3500 * time.Millisecond}, got)

	got = PlanRope(500, 500, true, defaultParams, r)
	assert.Equal(t, RopePlan{Climb: true, Tap: None, ClimbHold: 3500 * time.Millisecond}, got)

	got = PlanRope(500, 800, false, defaultParams, r)
	assert.False(t, got.Climb)
	assert.Equal(t, PlanMove(500, 800, false, defaultParams), got.Move)
}

func newCoordinator(t *testing.T) (*Coordinator, *platform.Simulator) {
	t.Helper()
	sim := platform.NewSimulator()
	clock := platform.NewManualClock(time.Unix(0, 0), sim)
	keys := config.Default().Hotkeys
	keys.KeySettle = 0
	return NewCoordinator(sim, clock, keys, nil, zap.NewNop()), sim
}

func TestCoordinatorMove(t *testing.T) {
	c, sim := newCoordinator(t)
	c.Move(Plan{Direction: Left, Hold: time.Second})

	var got []string
	for _, e := range sim.Events() {
		got = append(got, e.String())
	}
	assert.Equal(t, []string{"hold z", "hold left", "sleep 1s", "release left", "release z"}, got)

	sim.Reset()
	c.Move(Plan{})
	assert.Empty(t, sim.Events())
}

func TestCoordinatorClimb(t *testing.T) {
	c, sim := newCoordinator(t)
	c.Climb(RopePlan{Climb: true, Tap: Right, ClimbHold: 3500 * time.Millisecond}, "up", "alt")
	assert.Equal(t, []string{
		"hold right", "release right",
		"hold up", "hold alt", "release alt", "release up",
	}, sim.KeyEvents())

	sim.Reset()
	c.Climb(RopePlan{Climb: true, ClimbHold: time.Second}, "up", "alt")
	assert.Equal(t, []string{"hold up", "hold alt", "release alt", "release up"}, sim.KeyEvents())
}

func TestCoordinatorNudgeAlternates(t *testing.T) {
	c, sim := newCoordinator(t)
	for i := 0; i < 4; i++ {
		c.Nudge(200 * time.Millisecond)
	}
	assert.Equal(t, []string{
		"hold left", "release left",
		"hold right", "release right",
		"hold left", "release left",
		"hold right", "release right",
	}, sim.KeyEvents())
}

func TestCoordinatorPatrolCyclesRoutes(t *testing.T) {
	c, sim := newCoordinator(t)
	routes := []config.RouteStep{{Direction: "right", Hold: 2 * time.Second}, {Direction: "left"}}
	for i := 0; i < 3; i++ {
		c.Patrol(routes, time.Second)
	}
	var sleeps []time.Duration
	for _, e := range sim.Events() {
		if e.Kind == platform.EventSleep {
			sleeps = append(sleeps, e.Dur)
		}
	}
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second, 2 * time.Second}, sleeps)
	keys := sim.KeyEvents()
	require.Len(t, keys, 12)
	assert.Equal(t, "hold right", keys[1])
	assert.Equal(t, "hold left", keys[5])
}

func TestCoordinatorReleaseAll(t *testing.T) {
	c, sim := newCoordinator(t)
	c.HoldKeys([]string{"z", "left", "ctrl"})
	c.ReleaseAll("delete")
	for _, k := range []string{"z", "left", "ctrl"} {
		assert.False(t, sim.Held(k), k)
	}
	assert.Contains(t, sim.KeyEvents(), "release delete")
}

type recorder struct{ msgs []string }

func (r *recorder) LogAction(m string) { r.msgs = append(r.msgs, m) }

func TestCoordinatorLogsActions(t *testing.T) {
	sim := platform.NewSimulator()
	rec := &recorder{}
	c := NewCoordinator(sim, platform.NewManualClock(time.Unix(0, 0), nil), config.Default().Hotkeys, rec, zap.NewNop())
	c.PressKey("delete")
	c.Move(Plan{Direction: Right, Hold: time.Second})
	assert.Equal(t, []string{"Press key: delete", "Move right 1s"}, rec.msgs)
}
