package color2svg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"tracebycolor/image2color"
	tbtypes "tracebycolor/type"

	"github.com/gotranspile/gotrace"
)

// Vectorizer 把黑白掩码描成矢量轮廓，黑色为前景
type Vectorizer interface {
	Vectorize(ctx context.Context, mask *image.Gray) (tbtypes.TracedLayer, error)
}

// Options 原样转发给描边器的参数
type Options struct {
	TurdSize     int     // 面积不超过该值的斑点被忽略
	AlphaMax     float64 // 拐角平滑度
	OptTolerance float64 // 曲线简化容差
}

func DefaultOptions() Options {
	return Options{
		TurdSize:     8,
		AlphaMax:     1.2,
		OptTolerance: 0.5,
	}
}

// ParseBackend 根据名字创建描边器
func ParseBackend(name string, opts Options, potracePath string) (Vectorizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gotrace":
		return Gotrace{Options: opts}, nil
	case "potrace":
		return Potrace{Options: opts, Path: potracePath}, nil
	}
	return nil, fmt.Errorf("unknown vectorizer backend %q", name)
}

// Gotrace 进程内描边
type Gotrace struct {
	Options Options
}

// Vectorize 使用 gotrace 将 image.Gray 转 SVG
// 掩码有前景但去斑后一条路径都没有时，不去斑重描一次
func (g Gotrace) Vectorize(ctx context.Context, mask *image.Gray) (tbtypes.TracedLayer, error) {
	if mask == nil {
		return tbtypes.TracedLayer{}, errors.New("nil mask")
	}
	if err := ctx.Err(); err != nil {
		return tbtypes.TracedLayer{}, err
	}

	bm := gotrace.BitmapFromGray(mask, nil)
	paths, err := gotrace.Trace(bm, g.params(g.Options.TurdSize))
	if err != nil {
		return tbtypes.TracedLayer{}, fmt.Errorf("gotrace: %w", err)
	}
	if paths == nil && g.Options.TurdSize > 0 && image2color.Coverage(mask) > 0 {
		if paths, err = gotrace.Trace(bm, g.params(0)); err != nil {
			return tbtypes.TracedLayer{}, fmt.Errorf("gotrace: %w", err)
		}
	}

	var buf bytes.Buffer
	sz := mask.Bounds().Size()
	if err := gotrace.Render("svg", nil, &buf, paths, sz.X, sz.Y); err != nil {
		return tbtypes.TracedLayer{}, fmt.Errorf("gotrace render: %w", err)
	}
	return tbtypes.TracedLayer{SVG: buf.Bytes()}, nil
}

func (g Gotrace) params(turdSize int) *gotrace.Config {
	p := gotrace.DefaultConfig()
	p.TurdSize = turdSize
	p.AlphaMax = g.Options.AlphaMax
	p.OptTolerance = g.Options.OptTolerance
	return p
}
