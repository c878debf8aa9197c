package image

import (
	"fmt"
	stdimage "image"
)

// ColorMode 图片色彩模式
type ColorMode string

const (
	ModeRGB     ColorMode = "RGB"   // 真彩色，无透明通道
	ModeRGBA    ColorMode = "RGBA"  // 带透明通道
	ModePalette ColorMode = "P"     // 调色板索引
	ModeGray    ColorMode = "L"     // 灰度
	ModeCMYK    ColorMode = "CMYK"  // 印刷色
	ModeYCbCr   ColorMode = "YCbCr" // JPEG 解码结果，属于真彩色
)

// ResizeSpec 缩放参数，MaxWidth/MaxHeight 为 0 表示未指定
type ResizeSpec struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // 编码质量 1-100
}

// DefaultQuality 默认编码质量
const DefaultQuality = 85

// HasBounds 是否指定了任意一个边界
func (s ResizeSpec) HasBounds() bool {
	return s.MaxWidth > 0 || s.MaxHeight > 0
}

// EffectiveQuality 返回限定在 1-100 的编码质量，未指定时为默认值
func (s ResizeSpec) EffectiveQuality() int {
	switch {
	case s.Quality == 0:
		return DefaultQuality
	case s.Quality < 1:
		return 1
	case s.Quality > 100:
		return 100
	}
	return s.Quality
}

// Dimensions 图片尺寸
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizeOf 返回图片尺寸
func SizeOf(img stdimage.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{Width: b.Dx(), Height: b.Dy()}
}

// Asset 解码后的上传图片
type Asset struct {
	Image  stdimage.Image
	Format string // png / jpeg / gif / bmp / tiff
	Dimensions
}

// Mode 返回图片当前色彩模式
func (a *Asset) Mode() ColorMode {
	return ModeOf(a.Image)
}

// PreprocessingError 预处理失败，保留原始错误
type PreprocessingError struct {
	Op  string
	Err error
}

func (e *PreprocessingError) Error() string {
	return fmt.Sprintf("Error preprocessing image (%s): %v", e.Op, e.Err)
}

func (e *PreprocessingError) Unwrap() error { return e.Err }
