// Package safety scans each frame for hazards in a fixed priority order.
//
// Order and reaction:
//  1. enemy overlay:   stop, critical alarm
//  2. lie detector:    warning alarm, brief pause, keep running
//  3. chat event:      stop, critical alarm
//  4. foreign player:  stop, critical alarm
//
// A detector that stops the bot short-circuits the scan, so lower priority
// detectors are not evaluated on that frame. Disabled detectors report
// inactive.
package safety

import (
	"go.uber.org/zap"

	"mapleland-bot/internal/alarm"
	"mapleland-bot/internal/config"
	"mapleland-bot/internal/perception"
)

// Perceiver is the slice of perception the scanner needs.
type Perceiver interface {
	ScanHazard(frame perception.Frame, template string, threshold float64) bool
	ScanChat(cfg *config.Config, frame perception.Frame) (string, bool)
}

// Flags records which detectors fired.
type Flags struct {
	Enemy         bool
	LieDetector   bool
	Chat          bool
	ChatLabel     string
	ForeignPlayer bool
}

// Result is the outcome of one scan.
type Result struct {
	Flags Flags
	// Tripped is the highest priority hazard that fired, HazardNone if clear.
	Tripped perception.HazardKind
	// Stop is set when Tripped requires an emergency stop.
	Stop bool
}

// Pause reports whether the scan asks for a lie-detector pause.
func (r Result) Pause() bool {
	return r.Tripped == perception.HazardLieDetector
}

// Scanner runs the detectors and latches alarms.
type Scanner struct {
	p       Perceiver
	latches *alarm.Latches
	log     *zap.Logger
}

// NewScanner creates a Scanner.
func NewScanner(p Perceiver, latches *alarm.Latches, log *zap.Logger) *Scanner {
	return &Scanner{p: p, latches: latches, log: log.Named("safety")}
}

// Scan evaluates frame against the enabled detectors.
func (s *Scanner) Scan(cfg *config.Config, frame perception.Frame) Result {
	var res Result
	thr := cfg.Vision.HazardThreshold
	tmpl := cfg.Vision.Templates

	if cfg.Misc.DetectEnemy && s.p.ScanHazard(frame, cfg.TemplatePath(tmpl.Enemy), thr) {
		res.Flags.Enemy = true
		return s.trip(res, perception.HazardEnemy, "enemy overlay")
	}

	if cfg.Misc.DetectLieDetector && s.p.ScanHazard(frame, cfg.TemplatePath(tmpl.LieDetector), thr) {
		res.Flags.LieDetector = true
		res = s.trip(res, perception.HazardLieDetector, "lie detector")
	}

	if cfg.Misc.DetectChat {
		if label, ok := s.p.ScanChat(cfg, frame); ok {
			res.Flags.Chat = true
			res.Flags.ChatLabel = label
			return s.trip(res, perception.HazardChat, label)
		}
	}

	if cfg.Misc.DetectForeignPlayer && s.p.ScanHazard(frame, cfg.TemplatePath(tmpl.ForeignPlayer), thr) {
		res.Flags.ForeignPlayer = true
		return s.trip(res, perception.HazardForeignPlayer, "foreign player")
	}
	return res
}

// trip records kind as the result's hazard unless a higher priority one is
// already set, and latches its alarm.
func (s *Scanner) trip(res Result, kind perception.HazardKind, detail string) Result {
	if res.Tripped == perception.HazardNone || alarm.SeverityOf(kind) == alarm.Critical {
		res.Tripped = kind
	}
	if alarm.SeverityOf(kind) == alarm.Critical {
		res.Stop = true
	}
	if s.latches.Trigger(kind, detail) {
		s.log.Warn("hazard detected", zap.Stringer("kind", kind), zap.String("detail", detail))
	} else {
		s.log.Debug("hazard still present", zap.Stringer("kind", kind))
	}
	return res
}
