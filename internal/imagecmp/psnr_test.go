package imagecmp

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPSNR_Identical(t *testing.T) {
	a := solid(8, 8, color.RGBA{10, 20, 30, 255})
	got, err := PSNR(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if got != Identical {
		t.Errorf("PSNR = %v, want %v", got, Identical)
	}
}

func TestPSNR_KnownValue(t *testing.T) {
	a := solid(4, 4, color.RGBA{0, 0, 0, 255})
	b := solid(4, 4, color.RGBA{10, 10, 10, 255})
	got, err := PSNR(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := 10 * math.Log10(255*255/100.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("PSNR = %v, want %v", got, want)
	}
}

func TestPSNR_SizeMismatch(t *testing.T) {
	if _, err := PSNR(solid(2, 2, color.White), solid(3, 2, color.White)); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestComparePaths(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, img image.Image) string {
		p := filepath.Join(dir, name)
		f, err := os.Create(p)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		return p
	}
	a := write("ref.png", solid(5, 5, color.RGBA{200, 100, 50, 255}))
	b := write("snap.png", solid(5, 5, color.RGBA{200, 100, 50, 255}))
	got, err := ComparePaths(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got != Identical {
		t.Errorf("PSNR = %v", got)
	}
	if _, err := ComparePaths(a, filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
