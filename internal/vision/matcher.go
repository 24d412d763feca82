// Package vision provides the concrete template matcher (OpenCV through
// gocv) and text reader (tesseract through gosseract) that back package
// perception.
//
// Templates are loaded lazily from disk on first use and cached as
// gocv.Mat for the life of the Matcher. Close releases them.
package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"mapleland-bot/internal/geom"
	"mapleland-bot/internal/perception"
)

// Matcher runs normalised cross-correlation template matching.
type Matcher struct {
	mu        sync.Mutex
	templates map[string]gocv.Mat
}

// NewMatcher creates a Matcher with an empty template cache.
func NewMatcher() *Matcher {
	return &Matcher{templates: make(map[string]gocv.Mat)}
}

// Preload reads every path into the cache so missing files surface at start.
func (m *Matcher) Preload(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := m.template(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) template(path string) (gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.templates[path]; ok {
		return t, nil
	}
	t := gocv.IMRead(path, gocv.IMReadColor)
	if t.Empty() {
		t.Close()
		return gocv.Mat{}, fmt.Errorf("loading template %s: unreadable or missing", path)
	}
	m.templates[path] = t
	return t, nil
}

// match returns the TM_CCOEFF_NORMED score map for template on frame, and
// the template size. ok is false when the template does not fit.
func (m *Matcher) match(frame *image.RGBA, path string) (result gocv.Mat, tw, th int, ok bool, err error) {
	tmpl, err := m.template(path)
	if err != nil {
		return gocv.Mat{}, 0, 0, false, err
	}
	if frame == nil {
		return gocv.Mat{}, 0, 0, false, fmt.Errorf("nil frame")
	}
	fb := frame.Bounds()
	tw, th = tmpl.Cols(), tmpl.Rows()
	if tw > fb.Dx() || th > fb.Dy() {
		return gocv.Mat{}, tw, th, false, nil
	}

	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return gocv.Mat{}, 0, 0, false, fmt.Errorf("converting frame: %w", err)
	}
	defer src.Close()

	result = gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(src, tmpl, &result, gocv.TmCcoeffNormed, mask)
	return result, tw, th, true, nil
}

// FindAll returns the centre of every position scoring at least threshold,
// scanning the score map row by row.
func (m *Matcher) FindAll(frame *image.RGBA, path string, threshold float64) ([]perception.Match, error) {
	result, tw, th, ok, err := m.match(frame, path)
	if err != nil || !ok {
		return nil, err
	}
	defer result.Close()

	var out []perception.Match
	for y := 0; y < result.Rows(); y++ {
		for x := 0; x < result.Cols(); x++ {
			score := float64(result.GetFloatAt(y, x))
			if score >= threshold {
				out = append(out, perception.Match{
					Center: geom.Pt(x+tw/2, y+th/2),
					Score:  score,
				})
			}
		}
	}
	return out, nil
}

// Best returns the highest scoring position.
func (m *Matcher) Best(frame *image.RGBA, path string) (perception.Match, bool, error) {
	result, tw, th, ok, err := m.match(frame, path)
	if err != nil || !ok {
		return perception.Match{}, false, err
	}
	defer result.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return perception.Match{
		Center: geom.Pt(maxLoc.X+tw/2, maxLoc.Y+th/2),
		Score:  float64(maxVal),
	}, true, nil
}

// Close releases every cached template.
func (m *Matcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, t := range m.templates {
		t.Close()
		delete(m.templates, p)
	}
	return nil
}
