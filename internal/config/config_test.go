package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"mapleland-bot/internal/geom"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "z", cfg.Hotkeys.Run)
	assert.Equal(t, "ctrl", cfg.Hotkeys.Attack)
	assert.Equal(t, 4500*time.Millisecond, cfg.Combat.AttackHold)
	assert.Equal(t, 500*time.Millisecond, cfg.Combat.SkillDelay)
	assert.Equal(t, 30, cfg.Combat.StoppingDistance)
	assert.Equal(t, 50.0, cfg.Potion.HPThreshold)
	assert.Equal(t, 30.0, cfg.Potion.MPThreshold)
	assert.Equal(t, "delete", cfg.Potion.HPKey)
	assert.Equal(t, "end", cfg.Potion.MPKey)
	assert.Equal(t, time.Duration(0), cfg.Potion.RepeatInterval)
	assert.Equal(t, 0.75, cfg.Vision.Threshold)
	assert.Equal(t, geom.NewBounds(230, 1040, 120, 20), cfg.Vision.HPRegion)
	assert.Equal(t, 234.0, cfg.Movement.PixelRate())
	assert.Equal(t, 30, cfg.Movement.AlignedOffset)
	assert.Equal(t, 16, cfg.Movement.OpposedOffset)
	assert.Equal(t, 40, cfg.Rope.AlignRange)
	assert.Equal(t, 3500*time.Millisecond, cfg.Rope.ClimbHold)
	assert.Equal(t, 3*time.Second, cfg.Safety.LiePause)
	assert.Equal(t, time.Second, cfg.Misc.ErrorBackoff)
	assert.Equal(t, "windows", cfg.Preconditions.OS)
	assert.Equal(t, 1920, cfg.Preconditions.Width)
	assert.Equal(t, 1080, cfg.Preconditions.Height)

	require.Len(t, cfg.Misc.Maintenance, 2)
	assert.Equal(t, 10*time.Minute, cfg.Misc.Maintenance[0].Every)
	assert.Equal(t, 30*time.Minute, cfg.Misc.Maintenance[1].Every)

	require.Len(t, cfg.Routes, 2)
	assert.Equal(t, RouteStep{Direction: "left", Hold: time.Second}, cfg.Routes[0])

	require.Len(t, cfg.Vision.Chat.Colors, 2)
	assert.Equal(t, "whisper", cfg.Vision.Chat.Colors[0].Label)
	assert.Equal(t, geom.NewColor(255, 136, 255), cfg.Vision.Chat.Colors[0].Color)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeFile(t, "bot.yaml", `
hotkeys:
  attack: shift
potion:
  hp_threshold: 65
  repeat_interval: 2s
monster:
  handle_opposite_facing: false
routes:
  - direction: right
    hold: 500ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shift", cfg.Hotkeys.Attack)
	assert.Equal(t, "z", cfg.Hotkeys.Run, "unset keys keep their defaults")
	assert.Equal(t, 65.0, cfg.Potion.HPThreshold)
	assert.Equal(t, 2*time.Second, cfg.Potion.RepeatInterval)
	assert.False(t, cfg.Monster.HandleOppositeFacing)
	assert.Equal(t, []RouteStep{{Direction: "right", Hold: 500 * time.Millisecond}}, cfg.Routes)
}

func TestLoadFromJSON(t *testing.T) {
	path := writeFile(t, "bot.json", `{
  "combat": {"attack_hold": "3s"},
  "vision": {"hp_region": {"x": 10, "y": 20, "w": 30, "h": 40}},
  "channel": {"channels": [{"x": 1, "y": 2}]}
}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Combat.AttackHold)
	assert.Equal(t, geom.NewBounds(10, 20, 30, 40), cfg.Vision.HPRegion)
	assert.Equal(t, []geom.Point{geom.Pt(1, 2)}, cfg.Channel.Channels)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MAPLEBOT_LOGGING_LEVEL", "debug")
	t.Setenv("MAPLEBOT_POTION_MP_KEY", "pagedown")
	path := writeFile(t, "bot.yaml", "logging:\n  format: json\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "pagedown", cfg.Potion.MPKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidReportsEveryIssue(t *testing.T) {
	path := writeFile(t, "bot.yaml", `
potion:
  hp_threshold: 150
logging:
  level: verbose
platform:
  driver: browser
`)
	_, err := Load(path)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 3)
	assert.Contains(t, err.Error(), "potion.hp_threshold")
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "platform.browser_url")
}

func TestValidateRejectsBadRoutesAndBuffs(t *testing.T) {
	cfg := Default()
	cfg.Routes = []RouteStep{{Direction: "up", Hold: time.Second}}
	cfg.Buffs = []Buff{{Name: "haste", Interval: 0}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routes[0].direction")
	assert.Contains(t, err.Error(), "buffs[0].key")
	assert.Contains(t, err.Error(), "buffs[0].interval")
}

func TestValidateChannelsRequiredWhenRotating(t *testing.T) {
	cfg := Default()
	cfg.Misc.ChannelRotation = true
	cfg.Channel.Channels = nil
	assert.ErrorContains(t, cfg.Validate(), "channel.channels")
}

func TestPotionThresholdProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hp := rapid.Float64Range(-200, 200).Draw(t, "hp")
		cfg := Default()
		cfg.Potion.HPThreshold = hp
		err := cfg.Validate()
		if hp < 0 || hp > 100 {
			if err == nil {
				t.Fatalf("threshold %v accepted", hp)
			}
		} else if err != nil {
			t.Fatalf("threshold %v rejected: %v", hp, err)
		}
	})
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefault(&buf))
	assert.Contains(t, buf.String(), "hotkeys:")

	path := writeFile(t, "bot.yaml", buf.String())
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Hotkeys, cfg.Hotkeys)
	assert.Equal(t, def.Potion, cfg.Potion)
	assert.Equal(t, def.Movement, cfg.Movement)
	assert.Equal(t, def.Vision.Chat, cfg.Vision.Chat)
	assert.Equal(t, def.Misc.Maintenance, cfg.Misc.Maintenance)
	assert.Equal(t, def.Routes, cfg.Routes)
}

func TestTemplatePath(t *testing.T) {
	cfg := Default()
	cfg.Vision.TemplateDir = "assets"
	assert.Equal(t, filepath.Join("assets", "rope.png"), cfg.TemplatePath("rope.png"))
	assert.Equal(t, "", cfg.TemplatePath(""))
	abs := filepath.Join(t.TempDir(), "x.png")
	assert.Equal(t, abs, cfg.TemplatePath(abs))
}

func TestStoreReplace(t *testing.T) {
	first := Default()
	s := NewStore(first)
	assert.Same(t, first, s.Load())

	bad := Default()
	bad.Logging.Format = "xml"
	assert.Error(t, s.Replace(bad))
	assert.Same(t, first, s.Load(), "invalid document must not be published")

	next := Default()
	next.Potion.HPThreshold = 70
	require.NoError(t, s.Replace(next))
	assert.Same(t, next, s.Load())
}

func TestStoreReload(t *testing.T) {
	path := writeFile(t, "bot.yaml", "potion:\n  mp_threshold: 40\n")
	s := NewStore(Default())

	cfg, err := s.Reload(path)
	require.NoError(t, err)
	assert.Equal(t, 40.0, cfg.Potion.MPThreshold)
	assert.Same(t, cfg, s.Load())
}

func TestStoreWatchReplacesWholeDocument(t *testing.T) {
	path := writeFile(t, "bot.yaml", "potion:\n  hp_threshold: 40\n")
	initial, err := Load(path)
	require.NoError(t, err)
	s := NewStore(initial)

	reloaded := make(chan *Config, 4)
	require.NoError(t, s.Watch(path, func(c *Config) { reloaded <- c }, nil))

	require.NoError(t, os.WriteFile(path, []byte("potion:\n  hp_threshold: 60\n"), 0o644))

	require.Eventually(t, func() bool {
		return s.Load().Potion.HPThreshold == 60
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotSame(t, initial, s.Load())
}
