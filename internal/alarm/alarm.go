// Package alarm holds the per-hazard alarm latches and the notification
// interface presentation layers implement.
//
// A latch is set on the first detection of its hazard and stays set until
// explicitly dismissed. Only the false-to-true transition notifies; repeated
// detections while latched are silent.
package alarm

import (
	"sync/atomic"

	"go.uber.org/zap"

	"mapleland-bot/internal/perception"
)

// Severity ranks an alarm.
type Severity int

const (
	Warning Severity = iota
	Critical
)

func (s Severity) String() string {
	if s == Critical {
		return "critical"
	}
	return "warning"
}

// SeverityOf returns the severity of a hazard kind. Only the lie detector
// is a warning; everything else stops the bot.
func SeverityOf(kind perception.HazardKind) Severity {
	if kind == perception.HazardLieDetector {
		return Warning
	}
	return Critical
}

// Kinds lists every latchable hazard in scan order.
var Kinds = []perception.HazardKind{
	perception.HazardEnemy,
	perception.HazardLieDetector,
	perception.HazardChat,
	perception.HazardForeignPlayer,
}

// Notifier receives bot status and alarm transitions.
type Notifier interface {
	StatusChanged(status string)
	AlarmTriggered(kind perception.HazardKind, severity Severity, detail string)
	AlarmDismissed(kind perception.HazardKind)
}

// Latches is the shared alarm state.
type Latches struct {
	enemy         atomic.Bool
	lieDetector   atomic.Bool
	chat          atomic.Bool
	foreignPlayer atomic.Bool

	notify Notifier
}

// NewLatches creates cleared latches reporting to n (nil is allowed).
func NewLatches(n Notifier) *Latches {
	return &Latches{notify: n}
}

func (l *Latches) latch(kind perception.HazardKind) *atomic.Bool {
	switch kind {
	case perception.HazardEnemy:
		return &l.enemy
	case perception.HazardLieDetector:
		return &l.lieDetector
	case perception.HazardChat:
		return &l.chat
	case perception.HazardForeignPlayer:
		return &l.foreignPlayer
	default:
		return nil
	}
}

// Trigger sets the latch for kind. It returns true and notifies only when
// the latch was previously clear.
func (l *Latches) Trigger(kind perception.HazardKind, detail string) bool {
	b := l.latch(kind)
	if b == nil || !b.CompareAndSwap(false, true) {
		return false
	}
	if l.notify != nil {
		l.notify.AlarmTriggered(kind, SeverityOf(kind), detail)
	}
	return true
}

// Active reports whether kind is latched.
func (l *Latches) Active(kind perception.HazardKind) bool {
	b := l.latch(kind)
	return b != nil && b.Load()
}

// AnyActive reports whether any latch is set.
func (l *Latches) AnyActive() bool {
	for _, k := range Kinds {
		if l.Active(k) {
			return true
		}
	}
	return false
}

// Dismiss clears the latch for kind. Dismissing a clear latch is a no-op.
func (l *Latches) Dismiss(kind perception.HazardKind) {
	b := l.latch(kind)
	if b == nil || !b.CompareAndSwap(true, false) {
		return
	}
	if l.notify != nil {
		l.notify.AlarmDismissed(kind)
	}
}

// DismissAll clears every latch.
func (l *Latches) DismissAll() {
	for _, k := range Kinds {
		l.Dismiss(k)
	}
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) StatusChanged(status string) {
	n.Log.Info("status changed", zap.String("status", status))
}

func (n LogNotifier) AlarmTriggered(kind perception.HazardKind, severity Severity, detail string) {
	n.Log.Warn("alarm triggered",
		zap.Stringer("kind", kind),
		zap.Stringer("severity", severity),
		zap.String("detail", detail))
}

func (n LogNotifier) AlarmDismissed(kind perception.HazardKind) {
	n.Log.Info("alarm dismissed", zap.Stringer("kind", kind))
}

// Multi fans notifications out to several notifiers.
type Multi []Notifier

func (m Multi) StatusChanged(status string) {
	for _, n := range m {
		n.StatusChanged(status)
	}
}

func (m Multi) AlarmTriggered(kind perception.HazardKind, severity Severity, detail string) {
	for _, n := range m {
		n.AlarmTriggered(kind, severity, detail)
	}
}

func (m Multi) AlarmDismissed(kind perception.HazardKind) {
	for _, n := range m {
		n.AlarmDismissed(kind)
	}
}
