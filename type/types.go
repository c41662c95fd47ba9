package tbtypes

import (
	"encoding/xml"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Color 表示一个调色板颜色，A 仅用于过滤
type Color struct {
	R, G, B, A uint8
}

// ColorFromRGBA 从 color.Color 构造 Color（去预乘）
func ColorFromRGBA(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

// RGBA 返回不透明的 color.RGBA
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Colorful 转成 go-colorful 颜色（忽略透明度）
func (c Color) Colorful() colorful.Color {
	col, _ := colorful.MakeColor(c.RGBA())
	return col
}

// Hex 返回小写 6 位十六进制，如 "#ff0000"
func (c Color) Hex() string {
	return c.Colorful().Hex()
}

func (c Color) String() string {
	return c.Hex()
}

// Palette 按主导程度排序的颜色列表，生成后只读
type Palette []Color

// Header 矢量文档的 <svg> 头
type Header struct {
	Attrs   []xml.Attr // 原样保留的属性，顺序不变
	Width   string
	Height  string
	ViewBox string
}

// TracedLayer 矢量化工具对单个掩码的原始输出
type TracedLayer struct {
	SVG []byte
}

// Geometry 单个路径，属性原样复制
type Geometry struct {
	Attrs []xml.Attr
}

// D 返回路径数据
func (g Geometry) D() string {
	for _, a := range g.Attrs {
		if a.Name.Local == "d" {
			return a.Value
		}
	}
	return ""
}

// LayerKind 标记填充色放在哪里
type LayerKind int

const (
	// Ungrouped 每个路径各自带 fill
	Ungrouped LayerKind = iota
	// Grouped 一个 <g> 同时带 transform 和 fill
	Grouped
)

func (k LayerKind) String() string {
	if k == Grouped {
		return "grouped"
	}
	return "ungrouped"
}

// NormalizedLayer 已着色、变换已解析的图层片段
type NormalizedLayer struct {
	Color      Color
	Kind       LayerKind
	Transform  string // 仅 Grouped 时有值
	Header     Header
	Geometries []Geometry
}

// Empty 没有任何几何体
func (l NormalizedLayer) Empty() bool {
	return len(l.Geometries) == 0
}

// Document 最终文档：一个头 + 按调色板顺序叠放的图层
type Document struct {
	Header Header
	Layers []NormalizedLayer
}

// Paths 统计文档里的路径数
func (d Document) Paths() int {
	n := 0
	for _, l := range d.Layers {
		n += len(l.Geometries)
	}
	return n
}

// Pixel 表示一个像素的 RGBA 值
type Pixel struct {
	R, G, B, A int
}

// Box 表示颜色盒子
type Box struct {
	Pixels     []Pixel
	RMin, RMax int
	GMin, GMax int
	BMin, BMax int
}
