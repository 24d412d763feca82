package platform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"mapleland-bot/internal/geom"
)

// Browser drives a game client running in a Chromium page.
//
// The Browser uses nested contexts for proper resource management:
//   - allocCtx: Allocator context for browser process management
//   - ctx: Browser context for page operations
//
// Timeout Strategy:
//   - Navigation: 60 seconds (slow network tolerance)
//   - Screenshot: 5 seconds (prevent hanging)
//   - Input: 2 seconds per event
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCtx    context.Context
	allocCancel context.CancelFunc
	log         *zap.Logger
}

// NewBrowser starts Chromium and navigates to url.
func NewBrowser(url string, headless bool, log *zap.Logger) (*Browser, error) {
	log = log.Named("browser")
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)

	b := &Browser{log: log}
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.ctx, b.cancel = chromedp.NewContext(b.allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	navCtx, navCancel := context.WithTimeout(b.ctx, 60*time.Second)
	defer navCancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		b.Close()
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	log.Info("navigation completed", zap.String("url", url))
	return b, nil
}

func (b *Browser) alive() error {
	if b.ctx == nil || b.ctx.Err() != nil {
		return fmt.Errorf("browser context is invalid")
	}
	return nil
}

// SendKey dispatches DevTools key events to the focused page.
func (b *Browser) SendKey(key string, mode KeyMode) error {
	if err := b.alive(); err != nil {
		return err
	}
	def := domKey(key)
	down := input.DispatchKeyEvent(input.KeyRawDown).
		WithKey(def.key).WithCode(def.code).
		WithWindowsVirtualKeyCode(def.vk).WithNativeVirtualKeyCode(def.vk)
	up := input.DispatchKeyEvent(input.KeyUp).
		WithKey(def.key).WithCode(def.code).
		WithWindowsVirtualKeyCode(def.vk).WithNativeVirtualKeyCode(def.vk)

	var actions []chromedp.Action
	switch mode {
	case KeyPress:
		actions = []chromedp.Action{down, up}
	case KeyHold:
		actions = []chromedp.Action{down}
	case KeyRelease:
		actions = []chromedp.Action{up}
	default:
		return fmt.Errorf("unsupported key mode: %d", mode)
	}

	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("key %s %s: %w", mode, key, err)
	}
	b.log.Debug("key sent", zap.String("key", key), zap.Stringer("mode", mode))
	return nil
}

// Click clicks at page coordinates.
func (b *Browser) Click(p geom.Point) error {
	if err := b.alive(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.MouseClickXY(float64(p.X), float64(p.Y))); err != nil {
		return fmt.Errorf("click at %v: %w", p, err)
	}
	b.log.Debug("mouse click", zap.Stringer("at", p))
	return nil
}

// Capture takes a screenshot of the viewport and crops it to region.
func (b *Browser) Capture(region geom.Bounds) (*image.RGBA, error) {
	if err := b.alive(); err != nil {
		return nil, err
	}
	var buf []byte
	ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return Crop(ToRGBA(img), region), nil
}

// Size returns the viewport size.
func (b *Browser) Size() (int, int, error) {
	if err := b.alive(); err != nil {
		return 0, 0, err
	}
	var dims []int
	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims)); err != nil {
		return 0, 0, fmt.Errorf("reading viewport: %w", err)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("unexpected viewport %v", dims)
	}
	return dims[0], dims[1], nil
}

// OS reports the page's platform string ("windows" for Win32).
func (b *Browser) OS() (string, error) {
	if err := b.alive(); err != nil {
		return "", err
	}
	var platform string
	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.Evaluate(`navigator.platform`, &platform)); err != nil {
		return "", fmt.Errorf("reading platform: %w", err)
	}
	platform = strings.ToLower(platform)
	if strings.HasPrefix(platform, "win") {
		return "windows", nil
	}
	return platform, nil
}

// Close cancels the page and browser contexts.
func (b *Browser) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

type keyDef struct {
	key  string
	code string
	vk   int64
}

var namedKeys = map[string]keyDef{
	"left":     {"ArrowLeft", "ArrowLeft", 37},
	"right":    {"ArrowRight", "ArrowRight", 39},
	"up":       {"ArrowUp", "ArrowUp", 38},
	"down":     {"ArrowDown", "ArrowDown", 40},
	"ctrl":     {"Control", "ControlLeft", 17},
	"alt":      {"Alt", "AltLeft", 18},
	"shift":    {"Shift", "ShiftLeft", 16},
	"space":    {" ", "Space", 32},
	"enter":    {"Enter", "Enter", 13},
	"esc":      {"Escape", "Escape", 27},
	"delete":   {"Delete", "Delete", 46},
	"end":      {"End", "End", 35},
	"home":     {"Home", "Home", 36},
	"insert":   {"Insert", "Insert", 45},
	"pageup":   {"PageUp", "PageUp", 33},
	"pagedown": {"PageDown", "PageDown", 34},
}

// domKey maps a robotgo key name to its DOM key, code and virtual key code.
func domKey(name string) keyDef {
	name = strings.ToLower(name)
	if def, ok := namedKeys[name]; ok {
		return def
	}
	// f1..f12
	if len(name) >= 2 && name[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(name[1:], "%d", &n); err == nil && n >= 1 && n <= 12 {
			label := fmt.Sprintf("F%d", n)
			return keyDef{label, label, int64(111 + n)}
		}
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return keyDef{name, "Key" + strings.ToUpper(name), int64(c - 'a' + 'A')}
		case c >= '0' && c <= '9':
			return keyDef{name, "Digit" + name, int64(c)}
		}
	}
	return keyDef{key: name, code: name}
}
