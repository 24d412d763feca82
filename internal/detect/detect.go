// Package detect runs the perception pipeline offline on a saved
// screenshot and draws what it found.
//
// Usage:
//  1. Save a game screenshot as a PNG
//  2. Run: mapleland-bot detect shot.png --out result.png
//  3. Check result.png for character, monsters, ropes, target and hazards
package detect

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/vcaesar/imgo"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mapleland-bot/internal/alarm"
	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
	"mapleland-bot/internal/perception"
	"mapleland-bot/internal/platform"
	"mapleland-bot/internal/safety"
	"mapleland-bot/internal/targeting"
)

// boxSize is the side of the square drawn around each match centre.
const boxSize = 24

var (
	colorCharacter = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorMonster   = color.RGBA{R: 179, G: 23, B: 23, A: 255}
	colorTarget    = color.RGBA{R: 255, G: 128, B: 0, A: 255}
	colorRope      = color.RGBA{R: 234, G: 234, B: 149, A: 255}
	colorRegion    = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	colorText      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Report is everything perception found in one frame.
type Report struct {
	Pose      perception.Pose
	HasPose   bool
	Monsters  []perception.Candidate
	Ropes     []perception.Candidate
	Target    perception.Candidate
	HasTarget bool
	Rope      perception.Candidate
	HasRope   bool
	Threat    safety.Result
	HP, MP    perception.Vital
	HasHP     bool
	HasMP     bool
}

// Analyze runs every perception query on img the way one main loop
// iteration would, without acting on the result.
func Analyze(cfg *config.Config, img *image.RGBA, matcher perception.Matcher, reader perception.TextReader, log *zap.Logger) Report {
	sim := platform.NewSimulator()
	sim.SetFrame(img)
	adapter := perception.New(sim, platform.SystemClock{}, matcher, reader, log)
	frame := perception.Frame{Image: img, Region: geom.FromRect(img.Bounds())}

	var r Report
	r.Threat = safety.NewScanner(adapter, alarm.NewLatches(nil), log).Scan(cfg, frame)
	r.Pose, r.HasPose = adapter.LocateCharacter(cfg, frame)
	r.Monsters = adapter.LocateEntities(frame, templatePaths(cfg, cfg.Vision.Monsters), cfg.Monster.RecognitionRate, geom.Bounds{})
	r.Ropes = adapter.LocateEntities(frame, templatePaths(cfg, cfg.Vision.Ropes), cfg.Vision.Threshold, geom.Bounds{})
	if r.HasPose {
		r.Target, r.HasTarget = targeting.SelectMonster(r.Monsters, r.Pose, targeting.MonsterParams{
			XRange:               cfg.Monster.XRange,
			YRange:               cfg.Monster.YRange,
			HandleOppositeFacing: cfg.Monster.HandleOppositeFacing,
		})
		r.Rope, r.HasRope = targeting.SelectRope(r.Ropes, r.Pose, targeting.RopeParams{
			XRange: cfg.Rope.XRange,
			YBand:  cfg.Rope.YBand,
		})
	}
	r.HP, r.HasHP, r.MP, r.HasMP = adapter.ReadVitals(cfg)

	log.Info("detection finished",
		zap.Bool("character", r.HasPose),
		zap.Int("monsters", len(r.Monsters)),
		zap.Int("ropes", len(r.Ropes)),
		zap.Stringer("hazard", r.Threat.Tripped))
	return r
}

// Annotate draws the report over a copy of img.
func Annotate(img *image.RGBA, r Report, cfg *config.Config) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for i, m := range r.Monsters {
		col := colorMonster
		if r.HasTarget && m == r.Target {
			col = colorTarget
		}
		drawBox(out, m, col)
		drawLabel(out, m.X-boxSize/2, m.Y-boxSize/2-4, fmt.Sprintf("#%d", i+1), col)
	}
	for _, rope := range r.Ropes {
		drawBox(out, rope, colorRope)
	}
	if r.HasPose {
		drawBox(out, r.Pose.Point(), colorCharacter)
		drawLabel(out, r.Pose.X-boxSize/2, r.Pose.Y+boxSize/2+12, r.Pose.String(), colorCharacter)
	}

	drawRect(out, cfg.Vision.HPRegion, colorRegion)
	drawRect(out, cfg.Vision.MPRegion, colorRegion)
	drawRect(out, cfg.Vision.Chat.Region, colorRegion)

	lines := []string{
		"HP: " + vitalText(r.HP, r.HasHP),
		"MP: " + vitalText(r.MP, r.HasMP),
		fmt.Sprintf("Monsters: %d  Ropes: %d", len(r.Monsters), len(r.Ropes)),
		"Hazard: " + r.Threat.Tripped.String(),
	}
	for i, line := range lines {
		drawLabel(out, 10, 20+i*16, line, colorText)
	}
	return out
}

// Run loads the PNG at in, analyzes it and writes the annotated image to
// out.
func Run(cfg *config.Config, in, out string, matcher perception.Matcher, reader perception.TextReader, log *zap.Logger) (Report, error) {
	src, err := imgo.Read(in)
	if err != nil {
		return Report{}, fmt.Errorf("loading %s: %w", in, err)
	}
	img := platform.ToRGBA(src)
	log.Info("image loaded", zap.String("path", in), zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))

	r := Analyze(cfg, img, matcher, reader, log)
	if err := imgo.Save(out, Annotate(img, r, cfg)); err != nil {
		return r, fmt.Errorf("saving %s: %w", out, err)
	}
	log.Info("annotated image saved", zap.String("path", out))
	return r, nil
}

func vitalText(v perception.Vital, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%s (%.0f%%)", v, v.Percent())
}

func templatePaths(cfg *config.Config, names []string) []string {
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = cfg.TemplatePath(n)
	}
	return paths
}

func drawBox(img *image.RGBA, centre geom.Point, col color.RGBA) {
	drawRect(img, geom.NewBounds(centre.X-boxSize/2, centre.Y-boxSize/2, boxSize, boxSize), col)
}

// drawRect draws a one pixel rectangle outline, clipped to img.
func drawRect(img *image.RGBA, b geom.Bounds, col color.RGBA) {
	if b.Empty() {
		return
	}
	r := b.Rect()
	for x := r.Min.X; x < r.Max.X; x++ {
		setClipped(img, x, r.Min.Y, col)
		setClipped(img, x, r.Max.Y-1, col)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		setClipped(img, r.Min.X, y, col)
		setClipped(img, r.Max.X-1, y, col)
	}
}

func setClipped(img *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}

// drawLabel writes text with its baseline at (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, col color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
