package layer2doc

import (
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	tbtypes "tracebycolor/type"

	svg "github.com/ajstarks/svgo"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// Assemble 按调色板顺序叠放图层，先出现的颜色在下面
// 头取第一个非空图层的；没有 viewBox 时用源图尺寸补上
func Assemble(layers []tbtypes.NormalizedLayer, canvas image.Point) (tbtypes.Document, error) {
	var doc tbtypes.Document
	for _, l := range layers {
		if l.Empty() {
			continue
		}
		if len(doc.Layers) == 0 {
			doc.Header = l.Header
		}
		doc.Layers = append(doc.Layers, l)
	}
	if len(doc.Layers) == 0 {
		return tbtypes.Document{}, tbtypes.ErrNoPaths
	}
	doc.Header = canonicalHeader(doc.Header, canvas)
	return doc, nil
}

// canonicalHeader 补齐 xmlns、width/height 和 viewBox
func canonicalHeader(h tbtypes.Header, canvas image.Point) tbtypes.Header {
	attrs := append([]xml.Attr(nil), h.Attrs...)
	if !hasAttr(attrs, "", "xmlns") {
		attrs = append([]xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: svgNamespace}}, attrs...)
	}

	w, hgt := canvas.X, canvas.Y
	if w <= 0 || hgt <= 0 {
		w, hgt = parseLength(h.Width), parseLength(h.Height)
	}
	if h.Width == "" && w > 0 {
		h.Width = strconv.Itoa(w)
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "width"}, Value: h.Width})
	}
	if h.Height == "" && hgt > 0 {
		h.Height = strconv.Itoa(hgt)
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "height"}, Value: h.Height})
	}
	if h.ViewBox == "" && w > 0 && hgt > 0 {
		h.ViewBox = fmt.Sprintf("0 0 %d %d", w, hgt)
		attrs = insertAfter(attrs, "height", xml.Attr{Name: xml.Name{Local: "viewBox"}, Value: h.ViewBox})
	}

	h.Attrs = attrs
	return h
}

// parseLength 解析 "598.000000pt" 这种长度，失败返回 0
func parseLength(s string) int {
	s = strings.TrimSpace(s)
	end := len(s)
	for end > 0 && (s[end-1] < '0' || s[end-1] > '9') && s[end-1] != '.' {
		end--
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int(v + 0.5)
}

func hasAttr(attrs []xml.Attr, space, local string) bool {
	for _, a := range attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return true
		}
	}
	return false
}

func insertAfter(attrs []xml.Attr, name string, attr xml.Attr) []xml.Attr {
	for i, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			out := make([]xml.Attr, 0, len(attrs)+1)
			out = append(out, attrs[:i+1]...)
			out = append(out, attr)
			return append(out, attrs[i+1:]...)
		}
	}
	return append(attrs, attr)
}

// Write 输出完整的 SVG 文档
func Write(w io.Writer, doc tbtypes.Document) error {
	if len(doc.Layers) == 0 {
		return tbtypes.ErrNoPaths
	}

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	fmt.Fprintln(canvas.Writer, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintf(canvas.Writer, "<svg%s>\n", formatAttrs(doc.Header.Attrs))

	for _, layer := range doc.Layers {
		fill := attr("fill", layer.Color.Hex())
		switch layer.Kind {
		case tbtypes.Grouped:
			canvas.Group(attr("transform", layer.Transform), fill)
			for _, g := range layer.Geometries {
				canvas.Path(g.D(), geometryAttrs(g)...)
			}
			canvas.Gend()
		default:
			for _, g := range layer.Geometries {
				canvas.Path(g.D(), append(geometryAttrs(g), fill)...)
			}
		}
	}
	canvas.End()
	return ew.err
}

// WriteFile 先写同目录临时文件再改名，失败时不留下半个文件
func WriteFile(path string, doc tbtypes.Document) (err error) {
	if len(doc.Layers) == 0 {
		return tbtypes.ErrNoPaths
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err = Write(f, doc); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// geometryAttrs 除 d 以外的属性，d 由 svgo 单独写
func geometryAttrs(g tbtypes.Geometry) []string {
	out := make([]string, 0, len(g.Attrs))
	for _, a := range g.Attrs {
		if a.Name.Space == "" && a.Name.Local == "d" {
			continue
		}
		out = append(out, attr(attrName(a.Name), a.Value))
	}
	return out
}

func formatAttrs(attrs []xml.Attr) string {
	var b strings.Builder
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(attr(attrName(a.Name), a.Value))
	}
	return b.String()
}

func attrName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func attr(name, value string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(`="`)
	xml.EscapeText(&b, []byte(value))
	b.WriteByte('"')
	return b.String()
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}
