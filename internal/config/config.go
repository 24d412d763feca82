// Package config provides the validated run configuration for the bot.
//
// The document is read once at start (JSON or YAML, chosen by file
// extension) through Viper, overlaid on the defaults enumerated in
// setDefaults, and checked by Validate. At runtime the whole document may be
// replaced (see Store and Watch); components never mutate a published Config.
//
// Sections:
//   - hotkeys: key bindings and input timing
//   - combat: stopping distance and attack timings
//   - potion: HP/MP thresholds, keys, poll interval
//   - vision: thresholds, template paths, OCR regions, chat colours
//   - movement: speed calibration, facing offsets, patrol hold
//   - monster / rope: targeting ranges
//   - safety / channel: hazard pause, channel-rotation script
//   - misc: detector switches, maintenance tasks, loop pacing
//   - preconditions: expected OS and resolution
//   - routes / buffs: structured lists
//   - platform / logging / debug: driver selection and diagnostics
package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mapleland-bot/internal/geom"
)

// HotkeysConfig holds key bindings (robotgo key names) and input timing.
type HotkeysConfig struct {
	Left   string `mapstructure:"left"`
	Right  string `mapstructure:"right"`
	Up     string `mapstructure:"up"`
	Down   string `mapstructure:"down"`
	Run    string `mapstructure:"run"`
	Attack string `mapstructure:"attack"`
	Jump   string `mapstructure:"jump"`
	// KeySettle is the pause after every key event so the client registers it.
	KeySettle time.Duration `mapstructure:"key_settle"`
	// TapHold is how long a "brief tap" keeps the key down.
	TapHold time.Duration `mapstructure:"tap_hold"`
}

// Bound returns every non-empty bound key, in a stable order.
func (h HotkeysConfig) Bound() []string {
	var keys []string
	for _, k := range []string{h.Left, h.Right, h.Up, h.Down, h.Run, h.Attack, h.Jump} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// CombatConfig holds the attack sequence timings.
type CombatConfig struct {
	StoppingDistance int           `mapstructure:"stopping_distance"`
	AttackHold       time.Duration `mapstructure:"attack_hold"`
	SkillDelay       time.Duration `mapstructure:"skill_delay"`
}

// PotionConfig drives the resource loop.
type PotionConfig struct {
	HPThreshold  float64       `mapstructure:"hp_threshold"`
	MPThreshold  float64       `mapstructure:"mp_threshold"`
	HPKey        string        `mapstructure:"hp_key"`
	MPKey        string        `mapstructure:"mp_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// RepeatInterval re-presses while still below threshold; 0 disables.
	RepeatInterval time.Duration `mapstructure:"repeat_interval"`
}

// ChatColor maps a chat label to the text colour that identifies it.
type ChatColor struct {
	Label string     `mapstructure:"label"`
	Color geom.Color `mapstructure:"color"`
}

// ChatConfig configures the chat-event detector.
type ChatConfig struct {
	Region    geom.Bounds `mapstructure:"region"`
	Colors    []ChatColor `mapstructure:"colors"`
	Tolerance uint8       `mapstructure:"tolerance"`
	MinRatio  float64     `mapstructure:"min_ratio"`
}

// HazardTemplates names the overlay templates, relative to TemplateDir.
type HazardTemplates struct {
	Enemy         string `mapstructure:"enemy"`
	LieDetector   string `mapstructure:"lie_detector"`
	ForeignPlayer string `mapstructure:"foreign_player"`
	ChannelUser   string `mapstructure:"channel_user"`
}

// VisionConfig configures perception.
type VisionConfig struct {
	TemplateDir        string          `mapstructure:"template_dir"`
	Threshold          float64         `mapstructure:"threshold"`
	CharacterThreshold float64         `mapstructure:"character_threshold"`
	HazardThreshold    float64         `mapstructure:"hazard_threshold"`
	CharacterLeft      string          `mapstructure:"character_left"`
	CharacterRight     string          `mapstructure:"character_right"`
	Monsters           []string        `mapstructure:"monsters"`
	Ropes              []string        `mapstructure:"ropes"`
	Templates          HazardTemplates `mapstructure:"templates"`
	HPRegion           geom.Bounds     `mapstructure:"hp_region"`
	MPRegion           geom.Bounds     `mapstructure:"mp_region"`
	// OCRScale upscales vital crops before recognition.
	OCRScale int        `mapstructure:"ocr_scale"`
	Chat     ChatConfig `mapstructure:"chat"`
}

// MovementConfig holds the pixel-rate calibration.
type MovementConfig struct {
	PixelsPerSecond float64       `mapstructure:"pixels_per_second"`
	SpeedFactor     float64       `mapstructure:"speed_factor"`
	AlignedOffset   int           `mapstructure:"aligned_offset"`
	OpposedOffset   int           `mapstructure:"opposed_offset"`
	PatrolHold      time.Duration `mapstructure:"patrol_hold"`
	NudgeHold       time.Duration `mapstructure:"nudge_hold"`
}

// PixelRate is the effective pixels per second of held movement.
func (m MovementConfig) PixelRate() float64 {
	return m.PixelsPerSecond / m.SpeedFactor
}

// MonsterConfig holds monster targeting ranges.
type MonsterConfig struct {
	XRange               int     `mapstructure:"x_range"`
	YRange               int     `mapstructure:"y_range"`
	RecognitionRate      float64 `mapstructure:"recognition_rate"`
	HandleOppositeFacing bool    `mapstructure:"handle_opposite_facing"`
}

// RopeConfig holds rope targeting and the climb plan.
type RopeConfig struct {
	// XRange of 0 leaves horizontal distance unlimited.
	XRange      int           `mapstructure:"x_range"`
	YBand       int           `mapstructure:"y_band"`
	AlignRange  int           `mapstructure:"align_range"`
	ClimbHold   time.Duration `mapstructure:"climb_hold"`
	ClimbKey    string        `mapstructure:"climb_key"`
	ModifierKey string        `mapstructure:"modifier_key"`
}

// SafetyConfig holds hazard reaction timings.
type SafetyConfig struct {
	LiePause time.Duration `mapstructure:"lie_pause"`
}

// ChannelConfig is the channel-change script.
type ChannelConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	PreDelay      time.Duration `mapstructure:"pre_delay"`
	StepDelay     time.Duration `mapstructure:"step_delay"`
	LoadDelay     time.Duration `mapstructure:"load_delay"`
	MenuKey       string        `mapstructure:"menu_key"`
	ChangeButton  geom.Point    `mapstructure:"change_button"`
	Channels      []geom.Point  `mapstructure:"channels"`
	ConfirmButton geom.Point    `mapstructure:"confirm_button"`
}

// MaintenanceTask presses Key once every time the wall clock enters a new
// Every-sized bucket (e.g. :00, :10, :20 for 10m).
type MaintenanceTask struct {
	Name  string        `mapstructure:"name"`
	Key   string        `mapstructure:"key"`
	Every time.Duration `mapstructure:"every"`
}

// MiscConfig holds detector switches and loop pacing.
type MiscConfig struct {
	DetectEnemy         bool              `mapstructure:"detect_enemy"`
	DetectLieDetector   bool              `mapstructure:"detect_lie_detector"`
	DetectChat          bool              `mapstructure:"detect_chat"`
	DetectForeignPlayer bool              `mapstructure:"detect_foreign_player"`
	ChannelRotation     bool              `mapstructure:"channel_rotation"`
	Maintenance         []MaintenanceTask `mapstructure:"maintenance"`
	LoopInterval        time.Duration     `mapstructure:"loop_interval"`
	ErrorBackoff        time.Duration     `mapstructure:"error_backoff"`
}

// PreconditionsConfig is checked before the loops start.
type PreconditionsConfig struct {
	OS     string `mapstructure:"os"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

// RouteStep is one patrol move.
type RouteStep struct {
	Direction string        `mapstructure:"direction"`
	Hold      time.Duration `mapstructure:"hold"`
}

// Buff is a periodically cast skill.
type Buff struct {
	Name        string        `mapstructure:"name"`
	Key         string        `mapstructure:"key"`
	Interval    time.Duration `mapstructure:"interval"`
	RandomRange time.Duration `mapstructure:"random_range"`
	DownTime    time.Duration `mapstructure:"down_time"`
	Active      bool          `mapstructure:"active"`
}

// PlatformConfig selects the input/capture driver.
type PlatformConfig struct {
	// Driver is "desktop", "browser" or "simulator".
	Driver     string `mapstructure:"driver"`
	BrowserURL string `mapstructure:"browser_url"`
	Headless   bool   `mapstructure:"headless"`
	// SimulatorFrame is a PNG served as every capture by the simulator.
	SimulatorFrame string `mapstructure:"simulator_frame"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is "json" or "console".
	Format string `mapstructure:"format"`
	// File, when set, is truncated on start and receives every record.
	File string `mapstructure:"file"`
}

// DebugConfig holds diagnostics switches.
type DebugConfig struct {
	SimulationMode bool   `mapstructure:"simulation_mode"`
	EvidenceDir    string `mapstructure:"evidence_dir"`
}

// Config is the top-level run configuration.
type Config struct {
	Hotkeys       HotkeysConfig       `mapstructure:"hotkeys"`
	Combat        CombatConfig        `mapstructure:"combat"`
	Potion        PotionConfig        `mapstructure:"potion"`
	Vision        VisionConfig        `mapstructure:"vision"`
	Movement      MovementConfig      `mapstructure:"movement"`
	Monster       MonsterConfig       `mapstructure:"monster"`
	Rope          RopeConfig          `mapstructure:"rope"`
	Safety        SafetyConfig        `mapstructure:"safety"`
	Channel       ChannelConfig       `mapstructure:"channel"`
	Misc          MiscConfig          `mapstructure:"misc"`
	Preconditions PreconditionsConfig `mapstructure:"preconditions"`
	Routes        []RouteStep         `mapstructure:"routes"`
	Buffs         []Buff              `mapstructure:"buffs"`
	Platform      PlatformConfig      `mapstructure:"platform"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Debug         DebugConfig         `mapstructure:"debug"`
}

// TemplatePath resolves a template name against the template directory.
func (c *Config) TemplatePath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Vision.TemplateDir, name)
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("config: defaults are invalid: %v", err))
	}
	return cfg
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault encodes the default document as YAML.
func WriteDefault(w io.Writer) error {
	v := viper.New()
	setDefaults(v)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v.AllSettings()); err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	return enc.Close()
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		v.SetConfigType(ext)
	}

	// Environment variable overrides with MAPLEBOT_ prefix
	v.SetEnvPrefix("MAPLEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hotkeys.left", "left")
	v.SetDefault("hotkeys.right", "right")
	v.SetDefault("hotkeys.up", "up")
	v.SetDefault("hotkeys.down", "down")
	v.SetDefault("hotkeys.run", "z")
	v.SetDefault("hotkeys.attack", "ctrl")
	v.SetDefault("hotkeys.jump", "alt")
	v.SetDefault("hotkeys.key_settle", "10ms")
	v.SetDefault("hotkeys.tap_hold", "100ms")

	v.SetDefault("combat.stopping_distance", 30)
	v.SetDefault("combat.attack_hold", "4.5s")
	v.SetDefault("combat.skill_delay", "500ms")

	v.SetDefault("potion.hp_threshold", 50)
	v.SetDefault("potion.mp_threshold", 30)
	v.SetDefault("potion.hp_key", "delete")
	v.SetDefault("potion.mp_key", "end")
	v.SetDefault("potion.poll_interval", "1s")
	v.SetDefault("potion.repeat_interval", "0s")

	v.SetDefault("vision.template_dir", "assets")
	v.SetDefault("vision.threshold", 0.75)
	v.SetDefault("vision.character_threshold", 0.8)
	v.SetDefault("vision.hazard_threshold", 0.8)
	v.SetDefault("vision.character_left", "character_left.png")
	v.SetDefault("vision.character_right", "character_right.png")
	v.SetDefault("vision.monsters", []string{"monster.png"})
	v.SetDefault("vision.ropes", []string{"rope.png"})
	v.SetDefault("vision.templates.enemy", "enemy.png")
	v.SetDefault("vision.templates.lie_detector", "lie_detector.png")
	v.SetDefault("vision.templates.foreign_player", "foreign_player.png")
	v.SetDefault("vision.templates.channel_user", "channel_user.png")
	v.SetDefault("vision.hp_region", map[string]any{"x": 230, "y": 1040, "w": 120, "h": 20})
	v.SetDefault("vision.mp_region", map[string]any{"x": 400, "y": 1040, "w": 120, "h": 20})
	v.SetDefault("vision.ocr_scale", 4)
	v.SetDefault("vision.chat.region", map[string]any{"x": 0, "y": 860, "w": 560, "h": 160})
	v.SetDefault("vision.chat.colors", []map[string]any{
		{"label": "whisper", "color": map[string]any{"r": 255, "g": 136, "b": 255}},
		{"label": "gm", "color": map[string]any{"r": 255, "g": 255, "b": 0}},
	})
	v.SetDefault("vision.chat.tolerance", 12)
	v.SetDefault("vision.chat.min_ratio", 0.002)

	v.SetDefault("movement.pixels_per_second", 117.0)
	v.SetDefault("movement.speed_factor", 0.5)
	v.SetDefault("movement.aligned_offset", 30)
	v.SetDefault("movement.opposed_offset", 16)
	v.SetDefault("movement.patrol_hold", "1s")
	v.SetDefault("movement.nudge_hold", "200ms")

	v.SetDefault("monster.x_range", 400)
	v.SetDefault("monster.y_range", 60)
	v.SetDefault("monster.recognition_rate", 0.7)
	v.SetDefault("monster.handle_opposite_facing", true)

	v.SetDefault("rope.x_range", 0)
	v.SetDefault("rope.y_band", 200)
	v.SetDefault("rope.align_range", 40)
	v.SetDefault("rope.climb_hold", "3.5s")
	v.SetDefault("rope.climb_key", "up")
	v.SetDefault("rope.modifier_key", "alt")

	v.SetDefault("safety.lie_pause", "3s")

	v.SetDefault("channel.poll_interval", "5s")
	v.SetDefault("channel.pre_delay", "3s")
	v.SetDefault("channel.step_delay", "1s")
	v.SetDefault("channel.load_delay", "10s")
	v.SetDefault("channel.menu_key", "esc")
	v.SetDefault("channel.change_button", map[string]any{"x": 960, "y": 540})
	v.SetDefault("channel.channels", []map[string]any{
		{"x": 800, "y": 400}, {"x": 900, "y": 400}, {"x": 1000, "y": 400},
	})
	v.SetDefault("channel.confirm_button", map[string]any{"x": 960, "y": 620})

	v.SetDefault("misc.detect_enemy", true)
	v.SetDefault("misc.detect_lie_detector", true)
	v.SetDefault("misc.detect_chat", true)
	v.SetDefault("misc.detect_foreign_player", true)
	v.SetDefault("misc.channel_rotation", false)
	v.SetDefault("misc.maintenance", []map[string]any{
		{"name": "pet_food", "key": "f11", "every": "10m"},
		{"name": "hyper_buff", "key": "f12", "every": "30m"},
	})
	v.SetDefault("misc.loop_interval", "100ms")
	v.SetDefault("misc.error_backoff", "1s")

	v.SetDefault("preconditions.os", "windows")
	v.SetDefault("preconditions.width", 1920)
	v.SetDefault("preconditions.height", 1080)

	v.SetDefault("routes", []map[string]any{
		{"direction": "left", "hold": "1s"},
		{"direction": "right", "hold": "1s"},
	})
	v.SetDefault("buffs", []map[string]any{})

	v.SetDefault("platform.driver", "desktop")
	v.SetDefault("platform.browser_url", "")
	v.SetDefault("platform.headless", false)
	v.SetDefault("platform.simulator_frame", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	v.SetDefault("debug.simulation_mode", false)
	v.SetDefault("debug.evidence_dir", "")
}
