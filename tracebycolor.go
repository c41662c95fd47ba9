package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"
	"tracebycolor/color2svg"
	"tracebycolor/image2color"
	"tracebycolor/layer2doc"
	"tracebycolor/svg2layer"
	tbtypes "tracebycolor/type"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Tracer 按颜色分层描边，再合成一个 SVG
type Tracer struct {
	cfg        Config
	palette    image2color.PaletteOptions
	mask       image2color.MaskOptions
	vectorizer color2svg.Vectorizer
	logger     *log.Logger
}

// Result 一次描边的统计
type Result struct {
	Palette tbtypes.Palette // 选出的颜色
	Used    tbtypes.Palette // 实际产生路径的颜色
	Paths   int
}

func NewTracer(cfg Config, logger *log.Logger) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vec, err := color2svg.ParseBackend(cfg.Backend, cfg.vectorizerOptions(), cfg.PotracePath)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Tracer{
		cfg:        cfg,
		palette:    cfg.paletteOptions(),
		mask:       cfg.maskOptions(),
		vectorizer: vec,
		logger:     logger,
	}, nil
}

// Trace 读取 input，写出 output；失败时不写任何文件
func (t *Tracer) Trace(ctx context.Context, input, output string) (Result, error) {
	logger := t.logger.With("run", strings.SplitN(uuid.NewString(), "-", 2)[0])

	img, err := image2color.LoadImage(ctx, input, t.cfg.FFmpeg)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("Loaded image", "path", input, "size", img.Bounds().Size())

	res, doc, err := t.traceImage(ctx, logger, img)
	if err != nil {
		return res, err
	}
	if err := layer2doc.WriteFile(output, doc); err != nil {
		return res, fmt.Errorf("write %s: %w", output, err)
	}
	logger.Infof("Wrote %s with %d paths", output, res.Paths)
	return res, nil
}

// TraceImage 对内存中的图像描边，返回组装好的文档
func (t *Tracer) TraceImage(ctx context.Context, img image.Image) (Result, tbtypes.Document, error) {
	return t.traceImage(ctx, t.logger, img)
}

func (t *Tracer) traceImage(ctx context.Context, logger *log.Logger, img image.Image) (Result, tbtypes.Document, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, tbtypes.Document{}, fmt.Errorf("%w: empty image", tbtypes.ErrInput)
	}

	palette := image2color.SelectPalette(img, t.palette)
	res := Result{Palette: palette}
	logger.Infof("Found %d colors to trace", len(palette))
	if len(palette) == 0 {
		return res, tbtypes.Document{}, fmt.Errorf("%w: no usable colors", tbtypes.ErrNoPaths)
	}

	flat := image2color.Flatten(img)

	var partition []*image.Gray
	if t.cfg.Partition {
		var err error
		if partition, err = image2color.Partition(flat, palette, t.mask); err != nil {
			return res, tbtypes.Document{}, err
		}
	}

	start := time.Now()
	layers := make([]tbtypes.NormalizedLayer, len(palette))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Parallel)
	for i, c := range palette {
		g.Go(func() error {
			var mask *image.Gray
			if partition != nil {
				mask = partition[i]
			}
			layer, err := t.traceColor(gctx, logger, i, flat, c, mask)
			if err != nil {
				// 单个颜色失败只丢弃该颜色
				if errors.Is(err, tbtypes.ErrEmptyLayer) {
					logger.Warn("Dropped color", "color", c.Hex(), "reason", err)
				} else {
					logger.Error("Error tracing color", "color", c.Hex(), "err", err)
				}
				return nil
			}
			layers[i] = layer
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, tbtypes.Document{}, err
	}
	logger.Debug("Traced layers", "elapsed", time.Since(start).Round(time.Millisecond))

	doc, err := layer2doc.Assemble(layers, flat.Bounds().Size())
	if err != nil {
		return res, tbtypes.Document{}, err
	}
	for _, l := range doc.Layers {
		res.Used = append(res.Used, l.Color)
	}
	res.Paths = doc.Paths()
	return res, doc, nil
}

// traceColor 单色流水线：掩码 -> 描边 -> 着色
// partition 模式下 mask 已预先算好
func (t *Tracer) traceColor(ctx context.Context, logger *log.Logger, idx int, img *image.RGBA, c tbtypes.Color, mask *image.Gray) (tbtypes.NormalizedLayer, error) {
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	if mask == nil {
		var err error
		if mask, err = image2color.BuildMask(img, c, t.mask); err != nil {
			return tbtypes.NormalizedLayer{}, &tbtypes.ColorError{Color: c, Stage: tbtypes.StageMask, Err: err}
		}
	}
	if t.cfg.MaskDir != "" {
		t.saveMask(logger, idx, c, mask)
	}
	if image2color.Coverage(mask) == 0 {
		return tbtypes.NormalizedLayer{}, &tbtypes.ColorError{Color: c, Stage: tbtypes.StageMask, Err: tbtypes.ErrEmptyLayer}
	}

	traced, err := t.vectorizer.Vectorize(ctx, mask)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return tbtypes.NormalizedLayer{}, &tbtypes.ColorError{Color: c, Stage: tbtypes.StageVectorize, Err: err}
	}

	layer, err := svg2layer.Normalize(traced, c)
	if err != nil {
		return tbtypes.NormalizedLayer{}, &tbtypes.ColorError{Color: c, Stage: tbtypes.StageNormalize, Err: err}
	}
	logger.Debug("Traced color", "color", c.Hex(), "paths", len(layer.Geometries), "kind", layer.Kind)
	return layer, nil
}

// saveMask 调试用，把掩码存成 PNG
func (t *Tracer) saveMask(logger *log.Logger, idx int, c tbtypes.Color, mask *image.Gray) {
	if err := os.MkdirAll(t.cfg.MaskDir, 0o755); err != nil {
		logger.Warn("Cannot create mask dir", "dir", t.cfg.MaskDir, "err", err)
		return
	}
	name := fmt.Sprintf("mask_%02d_%s.png", idx, strings.TrimPrefix(c.Hex(), "#"))
	if err := imaging.Save(mask, filepath.Join(t.cfg.MaskDir, name)); err != nil {
		logger.Warn("Cannot save mask", "file", name, "err", err)
	}
}
