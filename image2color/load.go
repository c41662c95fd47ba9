package image2color

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	tbtypes "tracebycolor/type"

	"github.com/disintegration/imaging"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	_ "golang.org/x/image/webp"
)

// LoadImage 读取源图像并按 EXIF 方向摆正
// useFFmpeg 为 true 时，Go 无法解码的格式交给 ffmpeg 转成 PNG 再解码
func LoadImage(ctx context.Context, path string, useFFmpeg bool) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", tbtypes.ErrInput, err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if !useFFmpeg {
		return nil, fmt.Errorf("%w: decode %s: %w", tbtypes.ErrInput, path, err)
	}

	img, ffErr := decodeWithFFmpeg(ctx, path)
	if ffErr != nil {
		return nil, fmt.Errorf("%w: decode %s: %w (ffmpeg fallback: %v)", tbtypes.ErrInput, path, err, ffErr)
	}
	return img, nil
}

// decodeWithFFmpeg 取第一帧，以 PNG 形式从管道读出
func decodeWithFFmpeg(ctx context.Context, path string) (image.Image, error) {
	var out, stderr bytes.Buffer

	cmd := ffmpeg.Input(path).
		Output("pipe:1", ffmpeg.KwArgs{
			"format":   "image2pipe",
			"vcodec":   "png",
			"frames:v": 1,
		}).
		WithOutput(&out).
		WithErrorOutput(&stderr)
	cmd.Context = ctx

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	img, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg output: %w", err)
	}
	return img, nil
}
