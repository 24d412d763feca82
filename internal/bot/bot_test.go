package bot

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mapleland-bot/internal/alarm"
	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
	"mapleland-bot/internal/perception"
	"mapleland-bot/internal/platform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeMatcher answers by template path. It is shared between loops.
type fakeMatcher struct {
	mu     sync.Mutex
	best   map[string]perception.Match
	all    map[string][]perception.Match
	panics atomic.Int32
}

func (f *fakeMatcher) FindAll(_ *image.RGBA, tmpl string, threshold float64) ([]perception.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []perception.Match
	for _, m := range f.all[tmpl] {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMatcher) Best(_ *image.RGBA, tmpl string) (perception.Match, bool, error) {
	if f.panics.Load() > 0 {
		f.panics.Add(-1)
		panic("matcher exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.best[tmpl]
	return m, ok, nil
}

// fakeReader returns texts in order, cycling; with no texts it fails.
type fakeReader struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (f *fakeReader) ReadText(image.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return "", errors.New("no text")
	}
	t := f.texts[f.calls%len(f.texts)]
	f.calls++
	return t, nil
}

func (f *fakeReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	bot     *Bot
	sim     *platform.Simulator
	clock   *platform.ManualClock
	matcher *fakeMatcher
	reader  *fakeReader
	shared  *Shared
}

func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.Vision.TemplateDir = ""
	cfg.Misc.DetectEnemy = false
	cfg.Misc.DetectLieDetector = false
	cfg.Misc.DetectChat = false
	cfg.Misc.DetectForeignPlayer = false
	cfg.Misc.Maintenance = nil
	cfg.Hotkeys.KeySettle = 0
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config, log *zap.Logger) *harness {
	t.Helper()
	if log == nil {
		log = zap.NewNop()
	}
	sim := platform.NewSimulator()
	clock := platform.NewManualClock(time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC), sim)
	h := &harness{
		sim:     sim,
		clock:   clock,
		matcher: &fakeMatcher{best: map[string]perception.Match{}, all: map[string][]perception.Match{}},
		reader:  &fakeReader{},
		shared:  NewShared(config.NewStore(cfg), alarm.NewLatches(nil)),
	}
	h.bot = New(h.shared, Options{
		Driver:  sim,
		Clock:   clock,
		Matcher: h.matcher,
		Reader:  h.reader,
		Log:     log,
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.bot.Start(context.Background()))
	t.Cleanup(func() { _ = h.bot.Stop() })
}

func (h *harness) waitKeys(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.sim.KeyEvents()) >= n }, 5*time.Second, time.Millisecond)
	require.NoError(t, h.bot.Stop())
	return h.sim.KeyEvents()[:n]
}

func (h *harness) characterAt(x, y int) {
	h.matcher.best["character_right.png"] = perception.Match{Center: geom.Pt(x, y), Score: 0.95}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Stopped", StateStopped.String())
	assert.Equal(t, "EmergencyStopped", StateEmergencyStopped.String())
	assert.Equal(t, "Unknown", State(42).String())
}

func TestStartFailsPreconditions(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	h.sim.SetHost("linux", 1280, 720)

	err := h.bot.Start(context.Background())
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{
		"OS must be Windows",
		"Resolution must be 1920x1080 (got 1280x720)",
	}, pe.Issues)
	assert.Equal(t, StateIdle, h.bot.State())
	assert.False(t, h.shared.Running())
}

func TestSimulationModeSkipsPreconditions(t *testing.T) {
	cfg := quietConfig()
	cfg.Debug.SimulationMode = true
	h := newHarness(t, cfg, nil)
	h.sim.SetHost("linux", 1280, 720)

	require.NoError(t, h.bot.Start(context.Background()))
	assert.Equal(t, StateRunning, h.bot.State())
	assert.True(t, h.shared.Running())
	assert.NotEmpty(t, h.bot.Session())

	require.NoError(t, h.bot.Stop())
	assert.Equal(t, StateStopped, h.bot.State())
	assert.False(t, h.shared.Running())
}

func TestStartWhileRunning(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	h.start(t)
	assert.ErrorIs(t, h.bot.Start(context.Background()), ErrAlreadyRunning)
}

func TestStopWithoutStart(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	assert.NoError(t, h.bot.Stop())
	assert.Equal(t, StateIdle, h.bot.State())
}

func TestAttacksClosestMonster(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	h.characterAt(500, 500)
	h.matcher.all["monster.png"] = []perception.Match{
		{Center: geom.Pt(100, 500), Score: 0.9},
		{Center: geom.Pt(764, 500), Score: 0.9},
	}
	h.start(t)

	assert.Equal(t, []string{
		"hold z",
		"hold right",
		"release right",
		"hold ctrl",
		"release ctrl",
		"release z",
	}, h.waitKeys(t, 6))

	var sleeps []time.Duration
	for _, e := range h.sim.Events() {
		if e.Kind == platform.EventSleep {
			sleeps = append(sleeps, e.Dur)
		}
	}
	require.GreaterOrEqual(t, len(sleeps), 3)
	assert.InDelta(t, float64(time.Second), float64(sleeps[0]), float64(time.Microsecond))
	assert.Equal(t, 4500*time.Millisecond, sleeps[1])
	assert.Equal(t, 500*time.Millisecond, sleeps[2])
}

func TestClimbsRopeWhenNoMonster(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	h.characterAt(500, 500)
	h.matcher.all["rope.png"] = []perception.Match{{Center: geom.Pt(520, 420), Score: 0.9}}
	h.start(t)

	assert.Equal(t, []string{
		"hold right",
		"release right",
		"hold up",
		"hold alt",
		"release alt",
		"release up",
	}, h.waitKeys(t, 6))
}

func TestPatrolsWhenNothingInRange(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	h.characterAt(500, 500)
	h.matcher.all["monster.png"] = []perception.Match{{Center: geom.Pt(1500, 500), Score: 0.9}}
	h.start(t)

	assert.Equal(t, []string{
		"hold z", "hold left", "release left", "release z",
		"hold z", "hold right", "release right", "release z",
	}, h.waitKeys(t, 8))
}

func TestNudgesWhenCharacterLost(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	h.start(t)

	assert.Equal(t, []string{
		"hold left", "release left",
		"hold right", "release right",
	}, h.waitKeys(t, 4))
	snap := h.bot.Board().Snapshot()
	assert.False(t, snap.HasPose)
}

func TestEmergencyStopOnEnemy(t *testing.T) {
	cfg := quietConfig()
	cfg.Misc.DetectEnemy = true
	cfg.Debug.EvidenceDir = t.TempDir()
	h := newHarness(t, cfg, nil)
	h.characterAt(500, 500)
	h.matcher.all["monster.png"] = []perception.Match{{Center: geom.Pt(600, 500), Score: 0.9}}
	h.matcher.best["enemy.png"] = perception.Match{Center: geom.Pt(10, 10), Score: 0.99}

	require.NoError(t, h.bot.Start(context.Background()))
	select {
	case <-h.bot.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loops did not end after the hazard")
	}

	assert.Equal(t, StateEmergencyStopped, h.bot.State())
	assert.False(t, h.shared.Running())
	assert.True(t, h.shared.Latches.Active(perception.HazardEnemy))
	for _, k := range h.sim.KeyEvents() {
		assert.True(t, strings.HasPrefix(k, "release "), "only releases after an enemy trip, got %q", k)
	}
	assert.False(t, h.sim.Held("z"))

	files, err := filepath.Glob(filepath.Join(cfg.Debug.EvidenceDir, "*_enemy.png"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	assert.ErrorIs(t, h.bot.Start(context.Background()), ErrAlarmLatched)
	assert.NoError(t, h.bot.Stop())
	assert.Equal(t, StateEmergencyStopped, h.bot.State(), "stop keeps the emergency state")

	h.bot.DismissAlarms()
	assert.False(t, h.shared.Latches.AnyActive())
}

func TestLieDetectorPausesAndKeepsRunning(t *testing.T) {
	cfg := quietConfig()
	cfg.Misc.DetectLieDetector = true
	h := newHarness(t, cfg, nil)
	h.characterAt(500, 500)
	h.matcher.best["lie_detector.png"] = perception.Match{Score: 0.9}
	h.start(t)

	require.Eventually(t, func() bool { return h.clock.Waits() > 10 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, StateRunning, h.bot.State())
	assert.True(t, h.shared.Running())
	assert.True(t, h.shared.Latches.Active(perception.HazardLieDetector))
	assert.Empty(t, h.sim.KeyEvents())
	assert.Equal(t, "Lie detector pause", h.bot.Board().Snapshot().Action)
}

func TestIterationPanicIsContained(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	cfg := quietConfig()
	cfg.Misc.DetectEnemy = true
	h := newHarness(t, cfg, zap.New(core))
	h.matcher.panics.Store(1)
	h.start(t)

	h.waitKeys(t, 2)
	assert.Equal(t, 1, logs.FilterMessage("iteration failed").Len())
}

func TestCaptureErrorBacksOff(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := newHarness(t, quietConfig(), zap.New(core))
	h.sim.SetCaptureError(errors.New("display gone"))
	h.start(t)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("iteration failed").Len() >= 3
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, StateRunning, h.bot.State())
	require.NoError(t, h.bot.Stop())
	assert.Empty(t, nonRelease(h.sim.KeyEvents()))
}

func TestResourceLoopPressesOncePerCrossing(t *testing.T) {
	h := newHarness(t, quietConfig(), nil)
	h.reader.texts = []string{"20/100", "[80/100]"}
	h.start(t)

	require.Eventually(t, func() bool { return h.reader.Calls() >= 8 }, 5*time.Second, time.Millisecond)
	require.NoError(t, h.bot.Stop())

	var hp, mp int
	for _, k := range h.sim.KeyEvents() {
		switch k {
		case "press delete":
			hp++
		case "press end":
			mp++
		}
	}
	assert.Equal(t, 1, hp)
	assert.Equal(t, 0, mp)

	snap := h.bot.Board().Snapshot()
	assert.True(t, snap.HasHP)
	assert.Equal(t, perception.Vital{Current: 80, Max: 100}, snap.MP)
}

func nonRelease(keys []string) []string {
	var out []string
	for _, k := range keys {
		if !strings.HasPrefix(k, "release ") {
			out = append(out, k)
		}
	}
	return out
}
