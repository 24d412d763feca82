// Package perception turns captured frames into typed game facts.
//
// It answers the questions the control loop asks every tick: where is the
// character and which way is it facing, where are monsters and ropes, what
// do the HP/MP readouts say, and is any hazard on screen. Raw template
// matching and OCR are injected through the Matcher and TextReader
// interfaces; the gocv and tesseract implementations live in package vision.
//
// Absent results (no character, unreadable vitals) are reported through
// ok flags, never as errors.
package perception

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
	"mapleland-bot/internal/platform"
)

// Match is one template hit: the centre of the matched area and its score.
type Match struct {
	Center geom.Point
	Score  float64
}

// Matcher performs template search on a frame.
type Matcher interface {
	// FindAll returns every position scoring at least threshold, in
	// row-major scan order.
	FindAll(frame *image.RGBA, template string, threshold float64) ([]Match, error)
	// Best returns the highest scoring position regardless of threshold.
	// ok is false when the template cannot fit in the frame.
	Best(frame *image.RGBA, template string) (m Match, ok bool, err error)
}

// TextReader recognises text in an image.
type TextReader interface {
	ReadText(img image.Image) (string, error)
}

// Frame is one captured image with its capture metadata.
type Frame struct {
	Image  *image.RGBA
	Region geom.Bounds
	At     time.Time
}

// Pose is the located character.
type Pose struct {
	X, Y       int
	FacingLeft bool
}

// Point returns the pose position.
func (p Pose) Point() geom.Point { return geom.Pt(p.X, p.Y) }

func (p Pose) String() string {
	facing := "right"
	if p.FacingLeft {
		facing = "left"
	}
	return fmt.Sprintf("(%d,%d) facing %s", p.X, p.Y, facing)
}

// Candidate is an entity position produced by template search.
type Candidate = geom.Point

// HazardKind names an on-screen hazard.
type HazardKind int

const (
	HazardNone HazardKind = iota
	HazardEnemy
	HazardLieDetector
	HazardChat
	HazardForeignPlayer
)

func (k HazardKind) String() string {
	switch k {
	case HazardNone:
		return "none"
	case HazardEnemy:
		return "enemy"
	case HazardLieDetector:
		return "lie_detector"
	case HazardChat:
		return "chat"
	case HazardForeignPlayer:
		return "foreign_player"
	default:
		return fmt.Sprintf("HazardKind(%d)", int(k))
	}
}

// Adapter answers perception queries against the platform screen.
type Adapter struct {
	screen  platform.Screen
	clock   platform.Clock
	matcher Matcher
	reader  TextReader
	log     *zap.Logger
}

// New creates an Adapter.
func New(screen platform.Screen, clock platform.Clock, matcher Matcher, reader TextReader, log *zap.Logger) *Adapter {
	return &Adapter{
		screen:  screen,
		clock:   clock,
		matcher: matcher,
		reader:  reader,
		log:     log.Named("perception"),
	}
}

// Capture grabs one full frame.
func (a *Adapter) Capture() (Frame, error) {
	img, err := a.screen.Capture(geom.Bounds{})
	if err != nil {
		return Frame{}, fmt.Errorf("capture: %w", err)
	}
	return Frame{Image: img, Region: geom.FromRect(img.Bounds()), At: a.clock.Now()}, nil
}

// LocateCharacter compares the best facing-left and facing-right scores.
// The winner must reach the character threshold and beat the other; an
// exact tie at or above threshold resolves to facing right.
func (a *Adapter) LocateCharacter(cfg *config.Config, frame Frame) (Pose, bool) {
	threshold := cfg.Vision.CharacterThreshold
	left, lok, err := a.matcher.Best(frame.Image, cfg.TemplatePath(cfg.Vision.CharacterLeft))
	if err != nil {
		a.log.Warn("character left match failed", zap.Error(err))
		lok = false
	}
	right, rok, err := a.matcher.Best(frame.Image, cfg.TemplatePath(cfg.Vision.CharacterRight))
	if err != nil {
		a.log.Warn("character right match failed", zap.Error(err))
		rok = false
	}
	lok = lok && left.Score >= threshold
	rok = rok && right.Score >= threshold

	switch {
	case rok && (!lok || right.Score >= left.Score):
		return Pose{X: right.Center.X, Y: right.Center.Y, FacingLeft: false}, true
	case lok:
		return Pose{X: left.Center.X, Y: left.Center.Y, FacingLeft: true}, true
	default:
		return Pose{}, false
	}
}

// LocateEntities returns the centres of every match of every template at or
// above threshold, template by template, each in row-major order. Matches
// outside region are dropped; an empty region keeps everything.
func (a *Adapter) LocateEntities(frame Frame, templates []string, threshold float64, region geom.Bounds) []Candidate {
	var out []Candidate
	for _, tmpl := range templates {
		matches, err := a.matcher.FindAll(frame.Image, tmpl, threshold)
		if err != nil {
			a.log.Warn("template search failed", zap.String("template", tmpl), zap.Error(err))
			continue
		}
		for _, m := range matches {
			if region.Empty() || region.Contains(m.Center) {
				out = append(out, m.Center)
			}
		}
	}
	return out
}

// ScanHazard reports whether the hazard template is present at threshold.
// An empty template path disables the check.
func (a *Adapter) ScanHazard(frame Frame, template string, threshold float64) bool {
	if template == "" {
		return false
	}
	m, ok, err := a.matcher.Best(frame.Image, template)
	if err != nil {
		a.log.Warn("hazard match failed", zap.String("template", template), zap.Error(err))
		return false
	}
	return ok && m.Score >= threshold
}
