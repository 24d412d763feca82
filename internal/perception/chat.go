package perception

import (
	"image"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
)

// ScanChat samples the chat region and returns the first configured label
// whose colour covers at least min_ratio of the region's pixels.
func (a *Adapter) ScanChat(cfg *config.Config, frame Frame) (string, bool) {
	return ScanChatColors(frame.Image, cfg.Vision.Chat)
}

// ScanChatColors is ScanChat on a bare image.
func ScanChatColors(img *image.RGBA, chat config.ChatConfig) (string, bool) {
	if img == nil || len(chat.Colors) == 0 {
		return "", false
	}
	region := clip(img, chat.Region)
	total := region.Dx() * region.Dy()
	if total == 0 {
		return "", false
	}
	for _, cc := range chat.Colors {
		n := countPixels(img, region, cc.Color, chat.Tolerance)
		if float64(n)/float64(total) >= chat.MinRatio && n > 0 {
			return cc.Label, true
		}
	}
	return "", false
}

// clip returns the scan rectangle: the region intersected with the image,
// or the whole image when the region is empty.
func clip(img *image.RGBA, region geom.Bounds) image.Rectangle {
	if region.Empty() {
		return img.Bounds()
	}
	return region.Rect().Intersect(img.Bounds())
}

// countPixels counts pixels in r matching target within tolerance.
func countPixels(img *image.RGBA, r image.Rectangle, target geom.Color, tolerance uint8) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if target.MatchesRGBA(img.RGBAAt(x, y), tolerance) {
				n++
			}
		}
	}
	return n
}
