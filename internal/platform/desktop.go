package platform

import (
	"fmt"
	"image"
	"strings"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
	"github.com/shirou/gopsutil/v4/host"
	"go.uber.org/zap"

	"mapleland-bot/internal/geom"
)

// Desktop drives the native game client through OS-level input injection.
//
// Captures come from the primary display; coordinates are screen absolute.
type Desktop struct {
	log *zap.Logger
}

// NewDesktop creates the native driver.
func NewDesktop(log *zap.Logger) *Desktop {
	return &Desktop{log: log.Named("desktop")}
}

// SendKey simulates a keyboard event via robotgo.
func (d *Desktop) SendKey(key string, mode KeyMode) error {
	var err error
	switch mode {
	case KeyPress:
		err = robotgo.KeyTap(key)
	case KeyHold:
		err = robotgo.KeyToggle(key, "down")
	case KeyRelease:
		err = robotgo.KeyToggle(key, "up")
	default:
		return fmt.Errorf("unsupported key mode: %d", mode)
	}
	if err != nil {
		return fmt.Errorf("key %s %s: %w", mode, key, err)
	}
	d.log.Debug("key sent", zap.String("key", key), zap.Stringer("mode", mode))
	return nil
}

// Click moves the cursor to p and clicks the left button.
func (d *Desktop) Click(p geom.Point) error {
	robotgo.Move(p.X, p.Y)
	robotgo.Click("left")
	d.log.Debug("mouse click", zap.Stringer("at", p))
	return nil
}

// Capture grabs region from the primary display.
func (d *Desktop) Capture(region geom.Bounds) (*image.RGBA, error) {
	rect := screenshot.GetDisplayBounds(0)
	if !region.Empty() {
		rect = region.Rect()
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capturing %v: %w", rect, err)
	}
	return img, nil
}

// Size returns the primary display resolution.
func (d *Desktop) Size() (int, int, error) {
	if screenshot.NumActiveDisplays() < 1 {
		return 0, 0, fmt.Errorf("no active display")
	}
	b := screenshot.GetDisplayBounds(0)
	return b.Dx(), b.Dy(), nil
}

// OS reports the host operating system via gopsutil.
func (d *Desktop) OS() (string, error) {
	info, err := host.Info()
	if err != nil {
		return "", fmt.Errorf("reading host info: %w", err)
	}
	return strings.ToLower(info.OS), nil
}

// Close is a no-op; robotgo holds no per-driver resources.
func (d *Desktop) Close() error { return nil }
