package detect

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcaesar/imgo"
	"go.uber.org/zap"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
	"mapleland-bot/internal/perception"
)

type stubMatcher struct {
	best map[string]perception.Match
	all  map[string][]perception.Match
}

func (s stubMatcher) FindAll(_ *image.RGBA, tmpl string, threshold float64) ([]perception.Match, error) {
	var out []perception.Match
	for _, m := range s.all[tmpl] {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s stubMatcher) Best(_ *image.RGBA, tmpl string) (perception.Match, bool, error) {
	m, ok := s.best[tmpl]
	return m, ok, nil
}

type stubReader struct{ text string }

func (s stubReader) ReadText(image.Image) (string, error) {
	if s.text == "" {
		return "", errors.New("blank")
	}
	return s.text, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Vision.TemplateDir = ""
	return cfg
}

func scene() stubMatcher {
	return stubMatcher{
		best: map[string]perception.Match{
			"character_left.png": {Center: geom.Pt(400, 300), Score: 0.92},
		},
		all: map[string][]perception.Match{
			"monster.png": {
				{Center: geom.Pt(300, 310), Score: 0.8},
				{Center: geom.Pt(520, 300), Score: 0.9},
				{Center: geom.Pt(600, 300), Score: 0.5},
			},
			"rope.png": {{Center: geom.Pt(450, 200), Score: 0.9}},
		},
	}
}

func TestAnalyze(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	r := Analyze(testConfig(), img, scene(), stubReader{text: "[120/300]"}, zap.NewNop())

	require.True(t, r.HasPose)
	assert.True(t, r.Pose.FacingLeft)
	assert.Len(t, r.Monsters, 2, "low score match dropped")
	require.True(t, r.HasTarget)
	assert.Equal(t, geom.Pt(300, 310), r.Target)
	require.True(t, r.HasRope)
	assert.Equal(t, geom.Pt(450, 200), r.Rope)
	assert.True(t, r.HasHP)
	assert.Equal(t, perception.Vital{Current: 120, Max: 300}, r.HP)
	assert.Equal(t, perception.HazardNone, r.Threat.Tripped)
}

func TestAnalyzeWithoutCharacter(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	m := scene()
	delete(m.best, "character_left.png")
	m.best["foreign_player.png"] = perception.Match{Score: 0.99}

	r := Analyze(testConfig(), img, m, stubReader{}, zap.NewNop())
	assert.False(t, r.HasPose)
	assert.False(t, r.HasTarget)
	assert.False(t, r.HasHP)
	assert.Equal(t, perception.HazardForeignPlayer, r.Threat.Tripped)
	assert.True(t, r.Threat.Stop)
}

func TestAnnotateDrawsBoxes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	cfg := testConfig()
	r := Analyze(cfg, img, scene(), stubReader{}, zap.NewNop())

	out := Annotate(img, r, cfg)
	assert.NotSame(t, img, out)
	assert.Equal(t, color.RGBA{}, img.RGBAAt(400-boxSize/2, 300-boxSize/2), "source untouched")

	assert.Equal(t, colorCharacter, out.RGBAAt(400-boxSize/2, 300))
	assert.Equal(t, colorTarget, out.RGBAAt(300-boxSize/2, 310))
	assert.Equal(t, colorMonster, out.RGBAAt(520+boxSize/2-1, 300))
	assert.Equal(t, colorRope, out.RGBAAt(450, 200-boxSize/2))
}

func TestAnnotateClipsAtEdges(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	r := Report{Monsters: []perception.Candidate{geom.Pt(0, 0), geom.Pt(49, 49)}}
	assert.NotPanics(t, func() { Annotate(img, r, testConfig()) })
}

func TestRunWritesAnnotatedImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "shot.png")
	out := filepath.Join(dir, "result.png")
	require.NoError(t, imgo.Save(in, image.NewRGBA(image.Rect(0, 0, 800, 600))))

	r, err := Run(testConfig(), in, out, scene(), stubReader{}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, r.HasPose)

	got, err := imgo.Read(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), got.Bounds())
}

func TestRunMissingInput(t *testing.T) {
	_, err := Run(testConfig(), filepath.Join(t.TempDir(), "nope.png"), "out.png", scene(), stubReader{}, zap.NewNop())
	assert.Error(t, err)
}
