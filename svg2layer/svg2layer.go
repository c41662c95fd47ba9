package svg2layer

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	tbtypes "tracebycolor/type"
)

// Normalize 把描边器的原始输出改写成带颜色的图层
// 有 transform 时包成一个 <g>，fill 只写一次；否则每个路径各自带 fill
// 没有路径或无法解析时返回 ErrEmptyLayer
func Normalize(traced tbtypes.TracedLayer, fill tbtypes.Color) (tbtypes.NormalizedLayer, error) {
	layer := tbtypes.NormalizedLayer{Color: fill}
	if len(bytes.TrimSpace(traced.SVG)) == 0 {
		return layer, tbtypes.ErrEmptyLayer
	}

	parsed, err := parse(traced.SVG)
	if err != nil {
		return layer, fmt.Errorf("%w: %w", tbtypes.ErrEmptyLayer, err)
	}
	if len(parsed.paths) == 0 {
		return layer, tbtypes.ErrEmptyLayer
	}

	layer.Header = parsed.header
	layer.Geometries = parsed.paths
	if parsed.transform != "" {
		layer.Kind = tbtypes.Grouped
		layer.Transform = parsed.transform
	}
	return layer, nil
}

type parsedSVG struct {
	header    tbtypes.Header
	transform string
	paths     []tbtypes.Geometry
}

// parse 逐个 token 读取；用 RawToken 保留属性的命名空间前缀
func parse(data []byte) (parsedSVG, error) {
	var out parsedSVG
	seenRoot, seenGroup := false, false

	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !seenRoot {
			if se.Name.Local != "svg" {
				return out, fmt.Errorf("root element is <%s>, not <svg>", se.Name.Local)
			}
			seenRoot = true
			out.header = headerFrom(se.Attr)
			continue
		}

		switch se.Name.Local {
		case "g":
			// 只取第一个 <g> 的 transform
			if !seenGroup {
				seenGroup = true
				out.transform = attrValue(se.Attr, "transform")
			}
		case "path":
			if g, ok := geometryFrom(se.Attr); ok {
				out.paths = append(out.paths, g)
			}
		}
	}

	if !seenRoot {
		return out, errors.New("no <svg> element")
	}
	return out, nil
}

func headerFrom(attrs []xml.Attr) tbtypes.Header {
	return tbtypes.Header{
		Attrs:   append([]xml.Attr(nil), attrs...),
		Width:   attrValue(attrs, "width"),
		Height:  attrValue(attrs, "height"),
		ViewBox: attrValue(attrs, "viewBox"),
	}
}

// geometryFrom 原样复制属性，描边器自带的 fill 丢掉
func geometryFrom(attrs []xml.Attr) (tbtypes.Geometry, bool) {
	if attrValue(attrs, "d") == "" {
		return tbtypes.Geometry{}, false
	}
	kept := make([]xml.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == "fill" {
			continue
		}
		kept = append(kept, a)
	}
	return tbtypes.Geometry{Attrs: kept}, true
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
