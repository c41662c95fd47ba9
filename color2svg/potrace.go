package color2svg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"tracebycolor/image2color"
	tbtypes "tracebycolor/type"
)

// Potrace 调用外部 potrace 进程描边
type Potrace struct {
	Options Options
	Path    string // potrace 可执行文件，默认从 PATH 查找
}

// Vectorize 掩码写成临时 PBM，potrace 输出临时 SVG，两个文件都会被删除
func (p Potrace) Vectorize(ctx context.Context, mask *image.Gray) (tbtypes.TracedLayer, error) {
	if mask == nil {
		return tbtypes.TracedLayer{}, errors.New("nil mask")
	}

	dir, err := os.MkdirTemp("", "tracebycolor-*")
	if err != nil {
		return tbtypes.TracedLayer{}, err
	}
	defer os.RemoveAll(dir)

	pbmPath := filepath.Join(dir, "mask.pbm")
	svgPath := filepath.Join(dir, "layer.svg")
	if err := writePBMFile(pbmPath, mask); err != nil {
		return tbtypes.TracedLayer{}, err
	}

	data, err := p.run(ctx, p.Options.TurdSize, pbmPath, svgPath)
	if err != nil {
		return tbtypes.TracedLayer{}, err
	}
	if !bytes.Contains(data, []byte("<path")) && p.Options.TurdSize > 0 && image2color.Coverage(mask) > 0 {
		if data, err = p.run(ctx, 0, pbmPath, svgPath); err != nil {
			return tbtypes.TracedLayer{}, err
		}
	}
	return tbtypes.TracedLayer{SVG: data}, nil
}

func (p Potrace) run(ctx context.Context, turdSize int, pbmPath, svgPath string) ([]byte, error) {
	bin := p.Path
	if bin == "" {
		bin = "potrace"
	}
	args := []string{
		"-s",
		"-t", strconv.Itoa(turdSize),
		"-a", strconv.FormatFloat(p.Options.AlphaMax, 'f', -1, 64),
		"-O", strconv.FormatFloat(p.Options.OptTolerance, 'f', -1, 64),
		pbmPath,
		"-o", svgPath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("potrace: %w", ctxErr)
		}
		return nil, fmt.Errorf("potrace: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return os.ReadFile(svgPath)
}
