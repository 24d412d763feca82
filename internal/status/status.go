// Package status keeps the latest bot snapshot and a short action history
// for presentation (tray tooltip, CLI status line, logs).
package status

import (
	"sync"
	"time"

	"mapleland-bot/internal/perception"
	"mapleland-bot/internal/safety"
)

// historySize is how many actions the board remembers.
const historySize = 10

// ActionLog represents a recorded input action.
type ActionLog struct {
	Message   string
	Timestamp time.Time
}

// Snapshot is the state published after each iteration.
type Snapshot struct {
	State   string
	Action  string
	Pose    perception.Pose
	HasPose bool
	HP      perception.Vital
	HasHP   bool
	MP      perception.Vital
	HasMP   bool
	Threat  safety.Flags
	At      time.Time
}

// Board is safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	now      func() time.Time
	snap     Snapshot
	actions  []ActionLog
	watchers []func(Snapshot)
}

// NewBoard creates an empty board. now supplies action timestamps.
func NewBoard(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{now: now, actions: make([]ActionLog, 0, historySize)}
}

// LogAction logs an action (keeps the last ten).
func (b *Board) LogAction(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.actions = append(b.actions, ActionLog{Message: message, Timestamp: b.now()})
	if len(b.actions) > historySize {
		b.actions = b.actions[len(b.actions)-historySize:]
	}
	b.snap.Action = message
}

// Actions returns recent actions, oldest first.
func (b *Board) Actions() []ActionLog {
	b.mu.RLock()
	defer b.mu.RUnlock()

	logs := make([]ActionLog, len(b.actions))
	copy(logs, b.actions)
	return logs
}

// Update applies fn to the current snapshot, stamps it, and notifies
// watchers with the result.
func (b *Board) Update(fn func(*Snapshot)) {
	b.mu.Lock()
	fn(&b.snap)
	b.snap.At = b.now()
	snap := b.snap
	watchers := append([]func(Snapshot){}, b.watchers...)
	b.mu.Unlock()

	for _, w := range watchers {
		w(snap)
	}
}

// Snapshot returns the current snapshot.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Watch registers fn to be called after every Update.
func (b *Board) Watch(fn func(Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers = append(b.watchers, fn)
}
