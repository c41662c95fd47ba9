package image2color

import (
	"cmp"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"sort"
	"strings"
	tbtypes "tracebycolor/type"

	"github.com/cenkalti/dominantcolor"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// PaletteMethod 调色板提取方式
type PaletteMethod int

const (
	MedianCut PaletteMethod = iota
	DominantColor
	KMeans
)

func (m PaletteMethod) String() string {
	switch m {
	case DominantColor:
		return "dominant"
	case KMeans:
		return "kmeans"
	default:
		return "mediancut"
	}
}

// ParsePaletteMethod 解析配置里的方法名
func ParsePaletteMethod(s string) (PaletteMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mediancut", "median-cut":
		return MedianCut, nil
	case "dominant", "dominantcolor":
		return DominantColor, nil
	case "kmeans", "k-means":
		return KMeans, nil
	}
	return MedianCut, fmt.Errorf("unknown palette method %q", s)
}

// PaletteOptions 调色板选择参数
type PaletteOptions struct {
	MaxColors      int
	Method         PaletteMethod
	SkipWhite      bool
	WhiteThreshold uint8 // 三个通道都大于该值视为近白
	AlphaThreshold uint8 // 透明度低于该值的颜色被丢弃
}

func DefaultPaletteOptions() PaletteOptions {
	return PaletteOptions{
		MaxColors:      10,
		Method:         MedianCut,
		SkipWhite:      true,
		WhiteThreshold: 220,
		AlphaThreshold: 128,
	}
}

// 中位切分时最多采样的像素数
const maxSamples = 1 << 18

type weightedColor struct {
	Color  tbtypes.Color
	Weight float64
}

// SelectPalette 返回按主导程度排序的颜色，最多 MaxColors 个
// 图像本身的颜色数不超过 MaxColors 时直接返回原色，不做量化
func SelectPalette(img image.Image, opts PaletteOptions) tbtypes.Palette {
	if img == nil || opts.MaxColors <= 0 || img.Bounds().Empty() {
		return nil
	}

	cands, ok := exactColors(img, opts.MaxColors, opts.AlphaThreshold)
	if !ok {
		switch opts.Method {
		case DominantColor:
			cands = dominantQuantize(img, opts.MaxColors)
		case KMeans:
			cands = kmeansQuantize(img, opts.MaxColors, opts.AlphaThreshold)
			if len(cands) == 0 {
				cands = medianCutQuantize(img, opts.MaxColors, opts.AlphaThreshold)
			}
		default:
			cands = medianCutQuantize(img, opts.MaxColors, opts.AlphaThreshold)
		}
	}
	return filterPalette(cands, opts)
}

// IsNearWhite 三个通道都高于阈值
func IsNearWhite(c tbtypes.Color, threshold uint8) bool {
	return c.R > threshold && c.G > threshold && c.B > threshold
}

func filterPalette(cands []weightedColor, opts PaletteOptions) tbtypes.Palette {
	sortByWeight(cands)

	out := make(tbtypes.Palette, 0, opts.MaxColors)
	for _, c := range cands {
		if c.Color.A < opts.AlphaThreshold {
			continue
		}
		if opts.SkipWhite && IsNearWhite(c.Color, opts.WhiteThreshold) {
			continue
		}
		dup := slices.ContainsFunc(out, func(p tbtypes.Color) bool {
			return p.R == c.Color.R && p.G == c.Color.G && p.B == c.Color.B
		})
		if dup {
			continue
		}
		out = append(out, c.Color)
		if len(out) == opts.MaxColors {
			break
		}
	}
	return out
}

// sortByWeight 权重降序，权重相同时按通道值保证结果稳定
func sortByWeight(cands []weightedColor) {
	slices.SortStableFunc(cands, func(a, b weightedColor) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Color.R, b.Color.R); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Color.G, b.Color.G); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Color.B, b.Color.B); c != 0 {
			return c
		}
		return cmp.Compare(a.Color.A, b.Color.A)
	})
}

// exactColors 统计不透明像素的不同颜色；超过 limit 个时返回 false
func exactColors(img image.Image, limit int, alphaThreshold uint8) ([]weightedColor, bool) {
	bounds := img.Bounds()
	counts := make(map[tbtypes.Color]int, limit+1)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := tbtypes.ColorFromRGBA(img.At(x, y))
			if c.A < alphaThreshold {
				continue
			}
			counts[c]++
			if len(counts) > limit {
				return nil, false
			}
		}
	}
	out := make([]weightedColor, 0, len(counts))
	for c, n := range counts {
		out = append(out, weightedColor{Color: c, Weight: float64(n)})
	}
	return out, true
}

// 计算盒子范围
func calculateBoxRange(box *tbtypes.Box) {
	if len(box.Pixels) == 0 {
		return
	}

	box.RMin, box.RMax = 255, 0
	box.GMin, box.GMax = 255, 0
	box.BMin, box.BMax = 255, 0

	for _, p := range box.Pixels {
		box.RMin = min(box.RMin, p.R)
		box.RMax = max(box.RMax, p.R)
		box.GMin = min(box.GMin, p.G)
		box.GMax = max(box.GMax, p.G)
		box.BMin = min(box.BMin, p.B)
		box.BMax = max(box.BMax, p.B)
	}
}

func boxRange(box *tbtypes.Box) int {
	return max(box.RMax-box.RMin, box.GMax-box.GMin, box.BMax-box.BMin)
}

// medianCutQuantize 执行中位切分颜色量化，权重为盒子像素数
// 透明度低于 alphaThreshold 的像素不参与切分
func medianCutQuantize(img image.Image, colorCount int, alphaThreshold uint8) []weightedColor {
	bounds := img.Bounds()
	step := 1
	if n := bounds.Dx() * bounds.Dy(); n > maxSamples {
		step = int(math.Sqrt(float64(n)/float64(maxSamples))) + 1
	}

	// 收集像素
	var pixels []tbtypes.Pixel
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < alphaThreshold {
				continue
			}
			pixels = append(pixels, tbtypes.Pixel{
				R: int(c.R),
				G: int(c.G),
				B: int(c.B),
				A: int(c.A),
			})
		}
	}
	if len(pixels) == 0 {
		return nil
	}

	initialBox := &tbtypes.Box{Pixels: pixels}
	calculateBoxRange(initialBox)
	boxes := []*tbtypes.Box{initialBox}

	// 不断分割范围最大的盒子
	for len(boxes) < colorCount {
		var boxToSplit *tbtypes.Box
		maxRange := 0
		for _, box := range boxes {
			if r := boxRange(box); r > maxRange {
				maxRange = r
				boxToSplit = box
			}
		}
		// 所有盒子都只剩一种颜色
		if boxToSplit == nil {
			break
		}

		rRange := boxToSplit.RMax - boxToSplit.RMin
		gRange := boxToSplit.GMax - boxToSplit.GMin
		bRange := boxToSplit.BMax - boxToSplit.BMin

		var channel func(p tbtypes.Pixel) int
		switch {
		case rRange >= gRange && rRange >= bRange:
			channel = func(p tbtypes.Pixel) int { return p.R }
		case gRange >= bRange:
			channel = func(p tbtypes.Pixel) int { return p.G }
		default:
			channel = func(p tbtypes.Pixel) int { return p.B }
		}

		sort.SliceStable(boxToSplit.Pixels, func(i, j int) bool {
			return channel(boxToSplit.Pixels[i]) < channel(boxToSplit.Pixels[j])
		})

		// 分成两半，切点不能落在同一通道值中间
		medianIndex := len(boxToSplit.Pixels) / 2
		cut := channel(boxToSplit.Pixels[medianIndex])
		for medianIndex > 0 && channel(boxToSplit.Pixels[medianIndex-1]) == cut {
			medianIndex--
		}
		if medianIndex == 0 {
			for medianIndex < len(boxToSplit.Pixels) && channel(boxToSplit.Pixels[medianIndex]) == cut {
				medianIndex++
			}
		}

		box1 := &tbtypes.Box{Pixels: append([]tbtypes.Pixel{}, boxToSplit.Pixels[:medianIndex]...)}
		box2 := &tbtypes.Box{Pixels: append([]tbtypes.Pixel{}, boxToSplit.Pixels[medianIndex:]...)}
		calculateBoxRange(box1)
		calculateBoxRange(box2)

		for i, b := range boxes {
			if b == boxToSplit {
				boxes = append(boxes[:i], append([]*tbtypes.Box{box1, box2}, boxes[i+1:]...)...)
				break
			}
		}
	}

	// 计算每个盒子的平均颜色
	result := make([]weightedColor, 0, len(boxes))
	for _, box := range boxes {
		count := len(box.Pixels)
		if count == 0 {
			continue
		}
		var rSum, gSum, bSum, aSum int
		for _, p := range box.Pixels {
			rSum += p.R
			gSum += p.G
			bSum += p.B
			aSum += p.A
		}
		result = append(result, weightedColor{
			Color: tbtypes.Color{
				R: uint8(rSum / count),
				G: uint8(gSum / count),
				B: uint8(bSum / count),
				A: uint8(aSum / count),
			},
			Weight: float64(count),
		})
	}
	return result
}

// dominantQuantize 使用 dominantcolor 的加权结果
func dominantQuantize(img image.Image, colorCount int) []weightedColor {
	found := dominantcolor.FindWeight(img, colorCount)
	out := make([]weightedColor, 0, len(found))
	for _, c := range found {
		out = append(out, weightedColor{
			Color:  tbtypes.Color{R: c.RGBA.R, G: c.RGBA.G, B: c.RGBA.B, A: 255},
			Weight: c.Weight,
		})
	}
	return out
}

// kmeansQuantize 对采样像素做 k-means，权重为簇大小
func kmeansQuantize(img image.Image, colorCount int, alphaThreshold uint8) []weightedColor {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	// 采样以保证 kmeans 速度
	const kmeansSamples = 12000
	step := 1
	if width*height > kmeansSamples {
		step = int(math.Sqrt(float64(width*height)/float64(kmeansSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, kmeansSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < alphaThreshold {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(c.R) / 255.0,
				float64(c.G) / 255.0,
				float64(c.B) / 255.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	k := min(colorCount, len(dataset))
	cc, err := kmeans.New().Partition(dataset, k)
	if err != nil {
		return nil
	}

	out := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		out = append(out, weightedColor{
			Color: tbtypes.Color{
				R: channel8(c.Center[0]),
				G: channel8(c.Center[1]),
				B: channel8(c.Center[2]),
				A: 255,
			},
			Weight: float64(len(c.Observations)),
		})
	}
	return out
}

func channel8(v float64) uint8 {
	return uint8(max(0, min(255, math.Round(v*255))))
}
