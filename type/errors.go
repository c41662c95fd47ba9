package tbtypes

import (
	"errors"
	"fmt"
)

var (
	// ErrInput 输入图像缺失或无法读取
	ErrInput = errors.New("input image unreadable")
	// ErrNoPaths 没有任何颜色产生路径
	ErrNoPaths = errors.New("no paths generated")
	// ErrEmptyLayer 图层没有几何体或无法解析
	ErrEmptyLayer = errors.New("empty layer")
)

// Stage 单色流水线的阶段
type Stage string

const (
	StageMask      Stage = "mask"
	StageVectorize Stage = "vectorize"
	StageNormalize Stage = "normalize"
)

// ColorError 单个颜色的失败，只丢弃该颜色
type ColorError struct {
	Color Color
	Stage Stage
	Err   error
}

func (e *ColorError) Error() string {
	return fmt.Sprintf("color %s: %s: %v", e.Color.Hex(), e.Stage, e.Err)
}

func (e *ColorError) Unwrap() error {
	return e.Err
}
