package platform

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/vcaesar/imgo"

	"mapleland-bot/internal/geom"
)

// EventKind identifies a recorded simulator event.
type EventKind int

const (
	EventKey EventKind = iota
	EventClick
	EventSleep
)

// Event is one recorded platform interaction.
type Event struct {
	Kind EventKind
	Key  string
	Mode KeyMode
	At   geom.Point
	// Dur is the requested duration of an EventSleep.
	Dur time.Duration
}

func (e Event) String() string {
	switch e.Kind {
	case EventKey:
		return fmt.Sprintf("%s %s", e.Mode, e.Key)
	case EventClick:
		return fmt.Sprintf("click %v", e.At)
	case EventSleep:
		return fmt.Sprintf("sleep %s", e.Dur)
	default:
		return "unknown"
	}
}

// Simulator is an in-memory Driver. It records every key and click, serves
// a configurable frame for captures, and reports a configurable host.
//
// Safe for concurrent use.
type Simulator struct {
	mu     sync.Mutex
	frame  *image.RGBA
	width  int
	height int
	os     string
	events []Event
	held   map[string]bool
	// captureErr, when set, is returned by every Capture.
	captureErr error
}

// NewSimulator returns a simulator reporting a 1920x1080 Windows host and a
// blank frame of that size.
func NewSimulator() *Simulator {
	return &Simulator{
		frame:  image.NewRGBA(image.Rect(0, 0, 1920, 1080)),
		width:  1920,
		height: 1080,
		os:     "windows",
		held:   make(map[string]bool),
	}
}

// LoadSimulatorFrame reads a screenshot to serve as the simulator frame.
func LoadSimulatorFrame(path string) (*image.RGBA, error) {
	img, err := imgo.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulator frame %s: %w", path, err)
	}
	return ToRGBA(img), nil
}

// SetFrame replaces the frame served by Capture.
func (s *Simulator) SetFrame(frame *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
}

// SetHost sets the reported OS and resolution.
func (s *Simulator) SetHost(os string, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.os, s.width, s.height = os, width, height
}

// SetCaptureError makes every Capture fail with err (nil clears it).
func (s *Simulator) SetCaptureError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureErr = err
}

func (s *Simulator) SendKey(key string, mode KeyMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch mode {
	case KeyHold:
		s.held[key] = true
	case KeyRelease:
		delete(s.held, key)
	}
	s.events = append(s.events, Event{Kind: EventKey, Key: key, Mode: mode})
	return nil
}

func (s *Simulator) Click(p geom.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Kind: EventClick, At: p})
	return nil
}

func (s *Simulator) Capture(region geom.Bounds) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	return Crop(s.frame, region), nil
}

func (s *Simulator) Size() (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height, nil
}

func (s *Simulator) OS() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.os, nil
}

func (s *Simulator) Close() error { return nil }

// Events returns a copy of every recorded event.
func (s *Simulator) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// KeyEvents returns the recorded key events rendered as "mode key" strings.
func (s *Simulator) KeyEvents() []string {
	var out []string
	for _, e := range s.Events() {
		if e.Kind == EventKey {
			out = append(out, e.String())
		}
	}
	return out
}

// Held returns whether key is currently held down.
func (s *Simulator) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[key]
}

// Reset clears recorded events.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// record lets a ManualClock interleave sleeps with input events.
func (s *Simulator) record(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// ManualClock is a Clock whose time only moves when the bot sleeps or waits,
// or when Advance is called. Sleeps are recorded on the attached Simulator
// (if any) so tests can assert the exact interleaving of keys and delays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
	sim *Simulator
	// waits counts Wait calls, including cancelled ones.
	waits int
}

// NewManualClock starts at start. sim may be nil.
func NewManualClock(start time.Time, sim *Simulator) *ManualClock {
	return &ManualClock{now: start, sim: sim}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(d)
	if c.sim != nil {
		c.sim.record(Event{Kind: EventSleep, Dur: d})
	}
}

// Wait advances the clock by d unless ctx is already done. It yields the
// processor so goroutines blocked on real channels can make progress.
func (c *ManualClock) Wait(ctx context.Context, d time.Duration) bool {
	c.mu.Lock()
	c.waits++
	c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.Advance(d)
	// keep tight test loops from spinning without giving Stop a chance
	time.Sleep(time.Millisecond)
	return ctx.Err() == nil
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Waits returns the number of Wait calls so far.
func (c *ManualClock) Waits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waits
}
