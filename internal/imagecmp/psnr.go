// Package imagecmp compares captured snapshots against reference images.
package imagecmp

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Identical is the PSNR reported for images with no differing pixel.
const Identical = 100.0

// Load decodes the image at path. PNG, JPEG, GIF, BMP, TIFF and WebP
// are recognized.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// PSNR returns the peak signal-to-noise ratio of b against a in dB, over
// the 8-bit RGB channels. The images must have the same dimensions.
func PSNR(a, b image.Image) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("size mismatch: %dx%d vs %dx%d", ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	if ab.Empty() {
		return 0, fmt.Errorf("empty image")
	}

	var sum float64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			r1, g1, b1, _ := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			sum += sq(r1, r2) + sq(g1, g2) + sq(b1, b2)
		}
	}
	mse := sum / float64(ab.Dx()*ab.Dy()*3)
	if mse == 0 {
		return Identical, nil
	}
	return 10 * math.Log10(255*255/mse), nil
}

// sq is the squared difference of two 16-bit channels scaled to 8 bits.
func sq(a, b uint32) float64 {
	d := float64(a>>8) - float64(b>>8)
	return d * d
}

// ComparePaths loads both files and returns their PSNR.
func ComparePaths(reference, candidate string) (float64, error) {
	a, err := Load(reference)
	if err != nil {
		return 0, err
	}
	b, err := Load(candidate)
	if err != nil {
		return 0, err
	}
	return PSNR(a, b)
}
