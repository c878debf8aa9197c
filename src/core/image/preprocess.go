package image

import (
	"fmt"
	stdimage "image"
)

// Preprocess 识别前的图片预处理：先统一色彩模式，再按需缩放
func Preprocess(img stdimage.Image, spec ResizeSpec) (out stdimage.Image, err error) {
	// 重采样对异常尺寸的图片可能 panic，统一转换为预处理错误
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &PreprocessingError{Op: "resample", Err: fmt.Errorf("%v", r)}
		}
	}()

	if img == nil {
		return nil, &PreprocessingError{Op: "normalize", Err: fmt.Errorf("图片为空")}
	}

	out = Normalize(img)
	if spec.HasBounds() {
		out = Resize(out, spec.MaxWidth, spec.MaxHeight)
	}
	return out, nil
}

// ResizeOnly 不做识别时的缩放，同样把 panic 转为预处理错误
func ResizeOnly(img stdimage.Image, spec ResizeSpec) (out stdimage.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &PreprocessingError{Op: "resample", Err: fmt.Errorf("%v", r)}
		}
	}()

	if img == nil {
		return nil, &PreprocessingError{Op: "resize", Err: fmt.Errorf("图片为空")}
	}
	return Resize(img, spec.MaxWidth, spec.MaxHeight), nil
}
