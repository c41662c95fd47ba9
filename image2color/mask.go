package image2color

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	tbtypes "tracebycolor/type"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Distance 模糊匹配使用的颜色空间
type Distance int

const (
	DistanceRGB Distance = iota
	DistanceLab
)

func (d Distance) String() string {
	if d == DistanceLab {
		return "lab"
	}
	return "rgb"
}

// ParseDistance 解析配置里的颜色空间名
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rgb":
		return DistanceRGB, nil
	case "lab":
		return DistanceLab, nil
	}
	return DistanceRGB, fmt.Errorf("unknown distance space %q", s)
}

// MaskOptions 掩码构建参数
type MaskOptions struct {
	Fuzz     float64 // 匹配容差，百分比 0-100
	Blur     float64 // 高斯模糊 sigma，<=0 不模糊
	Distance Distance
}

func DefaultMaskOptions() MaskOptions {
	return MaskOptions{
		Fuzz:     12,
		Blur:     1.5,
		Distance: DistanceRGB,
	}
}

const (
	foreground uint8 = 0
	background uint8 = 255
	// 50% 灰度，小于它为前景
	midpoint uint8 = 128
)

var rgbDiagonal = 255 * math.Sqrt(3)

// distancePercent 两个颜色的距离，0-100
func (o MaskOptions) distancePercent(a color.RGBA, b tbtypes.Color) float64 {
	if o.Distance == DistanceLab {
		ca := tbtypes.Color{R: a.R, G: a.G, B: a.B}.Colorful()
		return min(100, ca.DistanceLab(b.Colorful())*100)
	}
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr+dg*dg+db*db) / rgbDiagonal * 100
}

// Flatten 把透明部分合成到白色背景上，坐标平移到原点
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// flat 已经拍平过的图像直接复用
func flat(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Opaque() {
		return rgba
	}
	return Flatten(img)
}

func checkImage(img image.Image) error {
	if img == nil {
		return errors.New("nil image")
	}
	if img.Bounds().Empty() {
		return errors.New("empty image")
	}
	return nil
}

// BuildMask 为单个颜色生成黑白掩码：黑=该颜色，白=其他
// 分类结果先模糊再按 50% 重新二值化，得到平滑而果断的边界
func BuildMask(img image.Image, target tbtypes.Color, opts MaskOptions) (*image.Gray, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	raw := classify(flat(img), target, opts)
	return Smooth(raw, opts.Blur), nil
}

// classify 容差内的像素为前景，同色像素只算一次距离
func classify(src *image.RGBA, target tbtypes.Color, opts MaskOptions) *image.Gray {
	bounds := src.Bounds()
	mask := image.NewGray(bounds)
	memo := make(map[color.RGBA]bool)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			hit, ok := memo[c]
			if !ok {
				hit = opts.distancePercent(c, target) <= opts.Fuzz
				memo[c] = hit
			}
			v := background
			if hit {
				v = foreground
			}
			mask.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return mask
}

// Smooth 模糊后在中点重新二值化
// 模糊把前景全部抹掉时退回原始分类，平滑不能删除整个颜色
func Smooth(mask *image.Gray, sigma float64) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, mask.Rect.Dx(), mask.Rect.Dy()))
	if sigma <= 0 {
		thresholdInto(out, mask)
		return out
	}

	blurred := imaging.Blur(mask, sigma)
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			v := background
			if blurred.Pix[blurred.PixOffset(x, y)] < midpoint {
				v = foreground
			}
			out.Pix[out.PixOffset(x, y)] = v
		}
	}

	if Coverage(out) == 0 && Coverage(mask) > 0 {
		thresholdInto(out, mask)
	}
	return out
}

func thresholdInto(dst, src *image.Gray) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := background
			if src.GrayAt(b.Min.X+x, b.Min.Y+y).Y < midpoint {
				v = foreground
			}
			dst.Pix[dst.PixOffset(x, y)] = v
		}
	}
}

// Coverage 统计前景像素数
func Coverage(mask *image.Gray) int {
	n := 0
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y < midpoint {
				n++
			}
		}
	}
	return n
}

// Partition 每个像素只归属容差内最近的颜色，各图层之间不重叠
func Partition(img image.Image, palette tbtypes.Palette, opts MaskOptions) ([]*image.Gray, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	if len(palette) == 0 {
		return nil, errors.New("empty palette")
	}

	src := flat(img)
	bounds := src.Bounds()
	layers := make([]*image.Gray, len(palette))
	for i := range layers {
		layers[i] = image.NewGray(bounds)
		// 默认白色背景
		for j := range layers[i].Pix {
			layers[i].Pix[j] = background
		}
	}

	memo := make(map[color.RGBA]int)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			idx, ok := memo[c]
			if !ok {
				idx = nearest(c, palette, opts)
				memo[c] = idx
			}
			if idx >= 0 {
				layers[idx].SetGray(x, y, color.Gray{Y: foreground})
			}
		}
	}

	for i := range layers {
		layers[i] = Smooth(layers[i], opts.Blur)
	}
	return layers, nil
}

// nearest 找容差内最近的颜色，没有则返回 -1
func nearest(c color.RGBA, palette tbtypes.Palette, opts MaskOptions) int {
	bestIdx := -1
	bestDist := math.MaxFloat64
	for i, p := range palette {
		if d := opts.distancePercent(c, p); d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestDist > opts.Fuzz {
		return -1
	}
	return bestIdx
}
