package perception

import (
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
)

// Vital is one "current/max" readout.
type Vital struct {
	Current int
	Max     int
}

// Percent returns Current as a percentage of Max; 0 when Max is 0.
func (v Vital) Percent() float64 {
	if v.Max <= 0 {
		return 0
	}
	return float64(v.Current) * 100 / float64(v.Max)
}

func (v Vital) String() string {
	return fmt.Sprintf("%d/%d", v.Current, v.Max)
}

// OCR output around the ratio is noisy: brackets, parentheses and stray
// separators show up depending on the font rendering.
var vitalPattern = regexp.MustCompile(`[\[(]?\s*(\d+)\s*/\s*(\d+)\s*[\])]?`)

// ParseVital extracts "current/max" from OCR text.
func ParseVital(text string) (Vital, bool) {
	m := vitalPattern.FindStringSubmatch(text)
	if m == nil {
		return Vital{}, false
	}
	cur, err := strconv.Atoi(m[1])
	if err != nil {
		return Vital{}, false
	}
	mx, err := strconv.Atoi(m[2])
	if err != nil || mx <= 0 {
		return Vital{}, false
	}
	return Vital{Current: cur, Max: mx}, true
}

// ReadVitals captures and reads the configured HP and MP regions.
func (a *Adapter) ReadVitals(cfg *config.Config) (hp Vital, hpOK bool, mp Vital, mpOK bool) {
	hp, hpOK = a.readVital("hp", cfg.Vision.HPRegion)
	mp, mpOK = a.readVital("mp", cfg.Vision.MPRegion)
	return hp, hpOK, mp, mpOK
}

func (a *Adapter) readVital(name string, region geom.Bounds) (Vital, bool) {
	if region.Empty() {
		return Vital{}, false
	}
	img, err := a.screen.Capture(region)
	if err != nil {
		a.log.Warn("vital capture failed", zap.String("vital", name), zap.Error(err))
		return Vital{}, false
	}
	text, err := a.reader.ReadText(img)
	if err != nil {
		a.log.Debug("ocr failed", zap.String("vital", name), zap.Error(err))
		return Vital{}, false
	}
	v, ok := ParseVital(text)
	if !ok {
		a.log.Debug("unreadable vital", zap.String("vital", name), zap.String("text", text))
	}
	return v, ok
}
