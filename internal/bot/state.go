package bot

import (
	"sync/atomic"

	"mapleland-bot/internal/alarm"
	"mapleland-bot/internal/config"
)

// State is the bot lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateEmergencyStopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateEmergencyStopped:
		return "EmergencyStopped"
	default:
		return "Unknown"
	}
}

// Shared is the state every loop sees: the run flag, the alarm latches and
// the configuration store. It is built once and handed to the bot; nothing
// in this package keeps it in a global.
type Shared struct {
	running atomic.Bool
	Latches *alarm.Latches
	Store   *config.Store
}

// NewShared creates the shared state with the run flag cleared.
func NewShared(store *config.Store, latches *alarm.Latches) *Shared {
	return &Shared{Latches: latches, Store: store}
}

// Running reports the run flag.
func (s *Shared) Running() bool {
	return s.running.Load()
}
