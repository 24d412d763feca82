// Package platform abstracts the machine the bot drives.
//
// Every side effect the control loop performs goes through the interfaces in
// this file, so the same loop can run against the real desktop, a browser
// client, or the in-memory Simulator used by tests and simulation mode.
//
// Drivers:
//   - Desktop: robotgo input, kbinani/screenshot capture, gopsutil host info
//   - Browser: chromedp screenshots and DevTools input events
//   - Simulator: records every event, serves a fixed frame
package platform

import (
	"context"
	"fmt"
	"image"
	"time"

	"mapleland-bot/internal/geom"
)

// KeyMode represents keyboard action type
type KeyMode int

const (
	KeyPress   KeyMode = iota // Press and release
	KeyHold                   // Hold down
	KeyRelease                // Release held key
)

func (m KeyMode) String() string {
	switch m {
	case KeyPress:
		return "press"
	case KeyHold:
		return "hold"
	case KeyRelease:
		return "release"
	default:
		return fmt.Sprintf("KeyMode(%d)", int(m))
	}
}

// Keyboard sends key events. Key names follow robotgo's vocabulary
// ("left", "ctrl", "delete", "f11", "z", ...).
type Keyboard interface {
	SendKey(key string, mode KeyMode) error
}

// Mouse clicks at screen coordinates.
type Mouse interface {
	Click(p geom.Point) error
}

// Screen captures frames.
type Screen interface {
	// Capture grabs region; an empty region grabs the whole screen.
	Capture(region geom.Bounds) (*image.RGBA, error)
	// Size is the current screen resolution.
	Size() (width, height int, err error)
}

// Environment reports facts about the host.
type Environment interface {
	// OS returns the operating system identity, lower case ("windows").
	OS() (string, error)
}

// Driver bundles everything the bot needs from the platform.
type Driver interface {
	Keyboard
	Mouse
	Screen
	Environment
	Close() error
}

// Clock is the time source for the bot. Sleep is used inside key sequences
// and is never interrupted; Wait is used between iterations and returns
// false when ctx is cancelled first.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	Wait(ctx context.Context, d time.Duration) bool
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

func (SystemClock) Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Crop copies region out of frame, clipped to the frame bounds. An empty
// region returns frame itself.
func Crop(frame *image.RGBA, region geom.Bounds) *image.RGBA {
	if frame == nil || region.Empty() {
		return frame
	}
	r := region.Rect().Intersect(frame.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		src := frame.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()*4], frame.Pix[src:src+r.Dx()*4])
	}
	return out
}

// ToRGBA converts any image to *image.RGBA with its origin at (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return rgba
}
