package image

import (
	stdimage "image"

	"github.com/disintegration/imaging"
)

// TargetSize 按最大宽高计算保持宽高比的目标尺寸。
// 推导出的边长直接截断取整，不做四舍五入；maxWidth/maxHeight 为 0 表示不限制。
func TargetSize(width, height, maxWidth, maxHeight int) (int, int) {
	if (maxWidth <= 0 && maxHeight <= 0) || width <= 0 || height <= 0 {
		return width, height
	}

	aspect := float64(width) / float64(height)
	var newWidth, newHeight int

	switch {
	case maxWidth > 0 && maxHeight > 0:
		if width > height {
			newWidth = min(width, maxWidth)
			newHeight = int(float64(newWidth) / aspect)
			if newHeight > maxHeight {
				newHeight = maxHeight
				newWidth = int(float64(newHeight) * aspect)
			}
		} else {
			newHeight = min(height, maxHeight)
			newWidth = int(float64(newHeight) * aspect)
			if newWidth > maxWidth {
				newWidth = maxWidth
				newHeight = int(float64(newWidth) / aspect)
			}
		}
	case maxWidth > 0:
		newWidth = min(width, maxWidth)
		newHeight = int(float64(newWidth) / aspect)
	default:
		newHeight = min(height, maxHeight)
		newWidth = int(float64(newHeight) * aspect)
	}

	// 极端宽高比时截断可能得到 0
	return max(newWidth, 1), max(newHeight, 1)
}

// Resize 保持宽高比缩放图片，未指定边界时原样返回。
// 输出始终为不透明 RGB。
func Resize(img stdimage.Image, maxWidth, maxHeight int) stdimage.Image {
	if maxWidth <= 0 && maxHeight <= 0 {
		return img
	}

	size := SizeOf(img)
	w, h := TargetSize(size.Width, size.Height, maxWidth, maxHeight)
	resized := imaging.Resize(img, w, h, imaging.Lanczos)

	if NeedsFlatten(ModeOf(resized)) {
		return toRGB(resized)
	}
	return resized
}
