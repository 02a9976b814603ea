package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/revivereads/marketplace/internal/core/domain"
)

const (
	defaultMaxWidth = 1200
	defaultQuality  = 80

	// maxPixels bounds the decoded bitmap; a 40 MP RGBA image is ~160 MB.
	maxPixels = 40_000_000

	// MIMETypeJPEG is the content type of every stored image.
	MIMETypeJPEG = "image/jpeg"
)

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Compressor re-encodes uploads as JPEG, scaling down anything wider than
// MaxWidth while keeping the aspect ratio.
type Compressor struct {
	MaxWidth int
	Quality  int
}

func NewCompressor(maxWidth int) Compressor {
	if maxWidth <= 0 {
		maxWidth = defaultMaxWidth
	}
	return Compressor{MaxWidth: maxWidth, Quality: defaultQuality}
}

func (c Compressor) Compress(data []byte) ([]byte, error) {
	ctype := http.DetectContentType(data)
	if !acceptedTypes[ctype] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedImage, ctype)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the pixel limit", domain.ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > c.MaxWidth {
		height = int(float64(height) * float64(c.MaxWidth) / float64(width))
		width = c.MaxWidth
	}
	if height < 1 {
		height = 1
	}

	// JPEG has no alpha channel; flatten onto white.
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: c.Quality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return out.Bytes(), nil
}
