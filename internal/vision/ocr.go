package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/nfnt/resize"
	"github.com/otiai10/gosseract"
)

// digitWhitelist keeps tesseract from hallucinating letters into vitals.
const digitWhitelist = "0123456789/[]() "

// OCR reads short single-line text with tesseract.
//
// Crops are upscaled, binarised and padded before recognition; HUD digits
// are only a few pixels tall and tesseract needs more to work with.
// The underlying client is not goroutine safe, so calls are serialised.
type OCR struct {
	mu     sync.Mutex
	client *gosseract.Client
	scale  int
}

// NewOCR creates a tesseract client upscaling crops by scale.
func NewOCR(scale int) (*OCR, error) {
	if scale < 1 {
		scale = 1
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting ocr language: %w", err)
	}
	if err := client.SetWhitelist(digitWhitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting ocr whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting ocr page mode: %w", err)
	}
	return &OCR{client: client, scale: scale}, nil
}

// ReadText recognises the text in img.
func (o *OCR) ReadText(img image.Image) (string, error) {
	buf, err := encodeForOCR(Preprocess(img, o.scale))
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.client.SetImageFromBytes(buf); err != nil {
		return "", fmt.Errorf("loading ocr image: %w", err)
	}
	text, err := o.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}

// Close releases the tesseract client.
func (o *OCR) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.client.Close()
}

// ocrPadding is the white border added around the binarised crop.
const ocrPadding = 20

// Preprocess upscales img by scale (bicubic), converts it to dark text on a
// white background and adds a white border.
func Preprocess(img image.Image, scale int) *image.Gray {
	b := img.Bounds()
	big := resize.Resize(uint(b.Dx()*scale), uint(b.Dy()*scale), img, resize.Bicubic)

	bb := big.Bounds()
	out := image.NewGray(image.Rect(0, 0, bb.Dx()+ocrPadding*2, bb.Dy()+ocrPadding*2))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	const threshold = 180
	for y := bb.Min.Y; y < bb.Max.Y; y++ {
		for x := bb.Min.X; x < bb.Max.X; x++ {
			g := color.GrayModel.Convert(big.At(x, y)).(color.Gray)
			// bright HUD text becomes black
			if g.Y > threshold {
				out.SetGray(x-bb.Min.X+ocrPadding, y-bb.Min.Y+ocrPadding, color.Gray{Y: 0})
			}
		}
	}
	return out
}

func encodeForOCR(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding ocr image: %w", err)
	}
	return buf.Bytes(), nil
}
