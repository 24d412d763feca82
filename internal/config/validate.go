package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError lists every violated constraint of a document.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed: %s", strings.Join(e.Issues, "; "))
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or a *ValidationError
// describing all violations.
func (c Config) Validate() error {
	var errs []string
	errs = append(errs, validateHotkeys(c.Hotkeys)...)
	errs = append(errs, validateCombat(c.Combat)...)
	errs = append(errs, validatePotion(c.Potion)...)
	errs = append(errs, validateVision(c.Vision)...)
	errs = append(errs, validateMovement(c.Movement)...)
	errs = append(errs, validateTargeting(c.Monster, c.Rope)...)
	errs = append(errs, validateChannel(c.Channel, c.Misc.ChannelRotation)...)
	errs = append(errs, validateMisc(c.Misc)...)
	errs = append(errs, validateRoutes(c.Routes)...)
	errs = append(errs, validateBuffs(c.Buffs)...)
	errs = append(errs, validatePlatform(c.Platform)...)
	errs = append(errs, validateLogging(c.Logging)...)
	if c.Safety.LiePause < 0 {
		errs = append(errs, "safety.lie_pause must not be negative")
	}

	if len(errs) > 0 {
		return &ValidationError{Issues: errs}
	}
	return nil
}

func validateHotkeys(h HotkeysConfig) []string {
	var errs []string
	for name, key := range map[string]string{
		"left": h.Left, "right": h.Right, "run": h.Run, "attack": h.Attack,
	} {
		if key == "" {
			errs = append(errs, fmt.Sprintf("hotkeys.%s must not be empty", name))
		}
	}
	if h.KeySettle < 0 {
		errs = append(errs, "hotkeys.key_settle must not be negative")
	}
	if h.TapHold <= 0 {
		errs = append(errs, fmt.Sprintf("hotkeys.tap_hold must be positive, got %s", h.TapHold))
	}
	// map iteration order is random; keep messages deterministic
	slices.Sort(errs)
	return errs
}

func validateCombat(c CombatConfig) []string {
	var errs []string
	if c.StoppingDistance < 0 {
		errs = append(errs, fmt.Sprintf("combat.stopping_distance must be >= 0, got %d", c.StoppingDistance))
	}
	if c.AttackHold < 0 || c.SkillDelay < 0 {
		errs = append(errs, "combat.attack_hold and combat.skill_delay must not be negative")
	}
	return errs
}

func validatePotion(p PotionConfig) []string {
	var errs []string
	if p.HPThreshold < 0 || p.HPThreshold > 100 {
		errs = append(errs, fmt.Sprintf("potion.hp_threshold must be 0-100, got %v", p.HPThreshold))
	}
	if p.MPThreshold < 0 || p.MPThreshold > 100 {
		errs = append(errs, fmt.Sprintf("potion.mp_threshold must be 0-100, got %v", p.MPThreshold))
	}
	if p.HPKey == "" || p.MPKey == "" {
		errs = append(errs, "potion.hp_key and potion.mp_key must not be empty")
	}
	if p.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("potion.poll_interval must be positive, got %s", p.PollInterval))
	}
	if p.RepeatInterval < 0 {
		errs = append(errs, "potion.repeat_interval must not be negative")
	}
	return errs
}

func validateVision(v VisionConfig) []string {
	var errs []string
	for name, t := range map[string]float64{
		"threshold":           v.Threshold,
		"character_threshold": v.CharacterThreshold,
		"hazard_threshold":    v.HazardThreshold,
	} {
		if t <= 0 || t > 1 {
			errs = append(errs, fmt.Sprintf("vision.%s must be in (0, 1], got %v", name, t))
		}
	}
	slices.Sort(errs)
	if v.CharacterLeft == "" || v.CharacterRight == "" {
		errs = append(errs, "vision.character_left and vision.character_right must not be empty")
	}
	if v.OCRScale < 1 {
		errs = append(errs, fmt.Sprintf("vision.ocr_scale must be >= 1, got %d", v.OCRScale))
	}
	if v.Chat.MinRatio < 0 || v.Chat.MinRatio > 1 {
		errs = append(errs, fmt.Sprintf("vision.chat.min_ratio must be 0-1, got %v", v.Chat.MinRatio))
	}
	for i, c := range v.Chat.Colors {
		if c.Label == "" {
			errs = append(errs, fmt.Sprintf("vision.chat.colors[%d].label must not be empty", i))
		}
	}
	return errs
}

func validateMovement(m MovementConfig) []string {
	var errs []string
	if m.PixelsPerSecond <= 0 {
		errs = append(errs, fmt.Sprintf("movement.pixels_per_second must be positive, got %v", m.PixelsPerSecond))
	}
	if m.SpeedFactor <= 0 {
		errs = append(errs, fmt.Sprintf("movement.speed_factor must be positive, got %v", m.SpeedFactor))
	}
	if m.AlignedOffset < 0 || m.OpposedOffset < 0 {
		errs = append(errs, "movement offsets must not be negative")
	}
	if m.PatrolHold < 0 || m.NudgeHold < 0 {
		errs = append(errs, "movement.patrol_hold and movement.nudge_hold must not be negative")
	}
	return errs
}

func validateTargeting(m MonsterConfig, r RopeConfig) []string {
	var errs []string
	if m.XRange <= 0 || m.YRange <= 0 {
		errs = append(errs, fmt.Sprintf("monster.x_range and monster.y_range must be positive, got %d/%d", m.XRange, m.YRange))
	}
	if r.XRange < 0 {
		errs = append(errs, fmt.Sprintf("rope.x_range must be >= 0, got %d", r.XRange))
	}
	if r.YBand <= 0 {
		errs = append(errs, fmt.Sprintf("rope.y_band must be positive, got %d", r.YBand))
	}
	if r.AlignRange < 0 {
		errs = append(errs, fmt.Sprintf("rope.align_range must be >= 0, got %d", r.AlignRange))
	}
	if r.ClimbKey == "" {
		errs = append(errs, "rope.climb_key must not be empty")
	}
	return errs
}

func validateChannel(c ChannelConfig, enabled bool) []string {
	var errs []string
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("channel.poll_interval must be positive, got %s", c.PollInterval))
	}
	for name, d := range map[string]time.Duration{
		"pre_delay": c.PreDelay, "step_delay": c.StepDelay, "load_delay": c.LoadDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Sprintf("channel.%s must not be negative", name))
		}
	}
	if enabled && len(c.Channels) == 0 {
		errs = append(errs, "channel.channels must not be empty when misc.channel_rotation is set")
	}
	return errs
}

func validateMisc(m MiscConfig) []string {
	var errs []string
	if m.LoopInterval < 0 {
		errs = append(errs, "misc.loop_interval must not be negative")
	}
	if m.ErrorBackoff <= 0 {
		errs = append(errs, fmt.Sprintf("misc.error_backoff must be positive, got %s", m.ErrorBackoff))
	}
	for i, t := range m.Maintenance {
		if t.Key == "" {
			errs = append(errs, fmt.Sprintf("misc.maintenance[%d].key must not be empty", i))
		}
		if t.Every <= 0 {
			errs = append(errs, fmt.Sprintf("misc.maintenance[%d].every must be positive, got %s", i, t.Every))
		}
	}
	return errs
}

func validateRoutes(routes []RouteStep) []string {
	var errs []string
	for i, r := range routes {
		if r.Direction != "left" && r.Direction != "right" {
			errs = append(errs, fmt.Sprintf("routes[%d].direction must be one of [left, right], got %q", i, r.Direction))
		}
		if r.Hold < 0 {
			errs = append(errs, fmt.Sprintf("routes[%d].hold must not be negative", i))
		}
	}
	return errs
}

func validateBuffs(buffs []Buff) []string {
	var errs []string
	for i, b := range buffs {
		if b.Key == "" {
			errs = append(errs, fmt.Sprintf("buffs[%d].key must not be empty", i))
		}
		if b.Interval <= 0 {
			errs = append(errs, fmt.Sprintf("buffs[%d].interval must be positive, got %s", i, b.Interval))
		}
		if b.RandomRange < 0 || b.DownTime < 0 {
			errs = append(errs, fmt.Sprintf("buffs[%d] durations must not be negative", i))
		}
	}
	return errs
}

func validatePlatform(p PlatformConfig) []string {
	switch p.Driver {
	case "desktop", "simulator":
		return nil
	case "browser":
		if p.BrowserURL == "" {
			return []string{"platform.browser_url must be set for the browser driver"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("platform.driver must be one of [desktop, browser, simulator], got %q", p.Driver)}
	}
}

func validateLogging(l LoggingConfig) []string {
	var errs []string
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	if l.Format != "json" && l.Format != "console" {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", l.Format))
	}
	return errs
}
