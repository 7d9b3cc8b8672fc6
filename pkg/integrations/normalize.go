package integrations

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// NormalizeSettings controls how fetched pages are rewritten.
type NormalizeSettings struct {
	MaxWidth  int  // 0 means unbounded
	MaxHeight int  // 0 means unbounded
	Quality   int  // JPEG quality (1-100)
	Grayscale bool // Convert to grayscale
}

// DefaultNormalizeSettings keeps the original size and re-encodes at quality 90.
func DefaultNormalizeSettings() NormalizeSettings {
	return NormalizeSettings{Quality: 90}
}

// Normalizer re-encodes page images as JPEG, since every page is stored with a .jpg name.
type Normalizer struct {
	settings NormalizeSettings
}

func NewNormalizer(settings NormalizeSettings) *Normalizer {
	if settings.Quality <= 0 || settings.Quality > 100 {
		settings.Quality = 90
	}
	return &Normalizer{settings: settings}
}

// Transform decodes a png/jpeg/gif/webp image from src and writes JPEG to dst.
func (n *Normalizer) Transform(src io.Reader, dst io.Writer) error {
	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := n.calculateDimensions(bounds.Dx(), bounds.Dy())

	// JPEG has no alpha, so transparent areas are flattened onto white.
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width != bounds.Dx() || height != bounds.Dy() {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)
	} else {
		draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Over)
	}

	var out image.Image = canvas
	if n.settings.Grayscale {
		out = toGrayscale(canvas)
	}

	if err := jpeg.Encode(dst, out, &jpeg.Options{Quality: n.settings.Quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return nil
}

// calculateDimensions fits width x height into the configured bounds, keeping the aspect ratio
func (n *Normalizer) calculateDimensions(width, height int) (int, int) {
	maxW, maxH := n.settings.MaxWidth, n.settings.MaxHeight
	if (maxW <= 0 || width <= maxW) && (maxH <= 0 || height <= maxH) {
		return width, height
	}

	scale := 1.0
	if maxW > 0 && width > maxW {
		scale = float64(maxW) / float64(width)
	}
	if maxH > 0 && height > maxH {
		if s := float64(maxH) / float64(height); s < scale {
			scale = s
		}
	}

	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return newWidth, newHeight
}

func toGrayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
