package bot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vcaesar/imgo"

	"mapleland-bot/internal/perception"
)

// saveEvidence writes the frame that tripped an emergency stop as a PNG
// named after the hazard and the capture time.
func saveEvidence(dir string, kind perception.HazardKind, frame perception.Frame) (string, error) {
	if frame.Image == nil {
		return "", fmt.Errorf("no frame to save")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating evidence dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.png", frame.At.Format("20060102_150405.000"), kind)
	path := filepath.Join(dir, name)
	if err := imgo.Save(path, frame.Image); err != nil {
		return "", fmt.Errorf("saving evidence: %w", err)
	}
	return path, nil
}
