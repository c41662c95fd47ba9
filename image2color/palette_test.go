package image2color

import (
	"image"
	"image/color"
	"testing"
	tbtypes "tracebycolor/type"

	"github.com/google/go-cmp/cmp"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// stripes 从左到右依次填充，宽度由 widths 给出
func stripes(h int, widths []int, cols []color.Color) *image.NRGBA {
	total := 0
	for _, w := range widths {
		total += w
	}
	img := image.NewNRGBA(image.Rect(0, 0, total, h))
	x0 := 0
	for i, w := range widths {
		for y := 0; y < h; y++ {
			for x := x0; x < x0+w; x++ {
				img.Set(x, y, cols[i])
			}
		}
		x0 += w
	}
	return img
}

func TestSelectPaletteSingleRedPixel(t *testing.T) {
	img := solid(2, 2, color.White)
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	opts := DefaultPaletteOptions()
	opts.MaxColors = 2
	got := SelectPalette(img, opts)

	want := tbtypes.Palette{{R: 255, G: 0, B: 0, A: 255}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectPalette() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectPaletteWhiteImage(t *testing.T) {
	got := SelectPalette(solid(4, 4, color.White), DefaultPaletteOptions())
	if len(got) != 0 {
		t.Errorf("SelectPalette() = %v, want empty", got)
	}
}

func TestSelectPaletteKeepWhite(t *testing.T) {
	opts := DefaultPaletteOptions()
	opts.SkipWhite = false
	got := SelectPalette(solid(4, 4, color.White), opts)
	want := tbtypes.Palette{{R: 255, G: 255, B: 255, A: 255}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectPalette() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectPaletteDominanceOrder(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	green := color.NRGBA{G: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	img := stripes(10, []int{5, 15, 10}, []color.Color{blue, red, green})

	got := SelectPalette(img, DefaultPaletteOptions())
	want := tbtypes.Palette{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectPalette() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectPaletteSkipsTransparent(t *testing.T) {
	img := stripes(4, []int{4, 4}, []color.Color{
		color.NRGBA{R: 10, G: 200, B: 30, A: 40},
		color.NRGBA{R: 90, G: 20, B: 120, A: 255},
	})
	got := SelectPalette(img, DefaultPaletteOptions())
	want := tbtypes.Palette{{R: 90, G: 20, B: 120, A: 255}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectPalette() mismatch (-want +got):\n%s", diff)
	}
}

// gradient 每个像素颜色都不同，迫使量化器工作
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}
	return img
}

func TestSelectPaletteBounds(t *testing.T) {
	img := gradient(50, 50)
	for _, method := range []PaletteMethod{MedianCut, DominantColor, KMeans} {
		for _, k := range []int{1, 3, 8} {
			opts := DefaultPaletteOptions()
			opts.Method = method
			opts.MaxColors = k
			got := SelectPalette(img, opts)
			if len(got) == 0 || len(got) > k {
				t.Errorf("%s k=%d: got %d colors", method, k, len(got))
			}
			for _, c := range got {
				if c.A < opts.AlphaThreshold {
					t.Errorf("%s k=%d: color %v below alpha threshold", method, k, c)
				}
				if IsNearWhite(c, opts.WhiteThreshold) {
					t.Errorf("%s k=%d: near-white color %v", method, k, c)
				}
			}
		}
	}
}

func TestSelectPaletteZeroColors(t *testing.T) {
	opts := DefaultPaletteOptions()
	opts.MaxColors = 0
	if got := SelectPalette(gradient(4, 4), opts); got != nil {
		t.Errorf("SelectPalette() = %v, want nil", got)
	}
}

func TestMedianCutWeights(t *testing.T) {
	img := stripes(4, []int{12, 4}, []color.Color{
		color.NRGBA{R: 200, A: 255},
		color.NRGBA{B: 200, A: 255},
	})
	got := medianCutQuantize(img, 2, 128)
	sortByWeight(got)
	want := []weightedColor{
		{Color: tbtypes.Color{R: 200, A: 255}, Weight: 48},
		{Color: tbtypes.Color{B: 200, A: 255}, Weight: 16},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("medianCutQuantize() mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePaletteMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    PaletteMethod
		wantErr bool
	}{
		{"", MedianCut, false},
		{"mediancut", MedianCut, false},
		{"Dominant", DominantColor, false},
		{"kmeans", KMeans, false},
		{"octree", MedianCut, true},
	}
	for _, tt := range tests {
		got, err := ParsePaletteMethod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePaletteMethod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePaletteMethod(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// logo 透明底上一块黑色方块，边缘有 12 个不同灰度的单像素
func logo() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	for i := 0; i < 12; i++ {
		v := uint8(50 + i*12)
		img.SetNRGBA(i*3, 39, color.NRGBA{R: v, G: v, B: v, A: 255})
	}
	return img
}

func TestSelectPaletteTransparentBackground(t *testing.T) {
	opts := DefaultPaletteOptions()
	got := SelectPalette(logo(), opts)
	if len(got) == 0 || len(got) > opts.MaxColors {
		t.Fatalf("SelectPalette() returned %d colors", len(got))
	}
	if want := (tbtypes.Color{A: 255}); got[0] != want {
		t.Errorf("most dominant color = %v, want %v (palette %v)", got[0], want, got)
	}
}

func TestMedianCutIgnoresTransparent(t *testing.T) {
	got := medianCutQuantize(logo(), 10, 128)
	var total float64
	for _, c := range got {
		if c.Color.A != 255 {
			t.Errorf("color %v carries averaged alpha", c.Color)
		}
		total += c.Weight
	}
	if total != 112 {
		t.Errorf("total weight = %v, want 112 opaque pixels", total)
	}
}

func TestExactColorsIgnoreTransparent(t *testing.T) {
	// 透明背景不占用颜色名额
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 3; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	img.SetNRGBA(0, 7, color.NRGBA{B: 255, A: 255})
	opts := DefaultPaletteOptions()
	opts.MaxColors = 2
	want := tbtypes.Palette{{R: 255, A: 255}, {B: 255, A: 255}}
	if diff := cmp.Diff(want, SelectPalette(img, opts)); diff != "" {
		t.Errorf("SelectPalette() mismatch (-want +got):\n%s", diff)
	}
}
