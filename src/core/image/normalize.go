package image

import (
	stdimage "image"
	"image/color"
)

// ModeOf 根据像素存储类型判断色彩模式
func ModeOf(img stdimage.Image) ColorMode {
	switch m := img.(type) {
	case *stdimage.Paletted:
		return ModePalette
	case *stdimage.RGBA:
		if m.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	case *stdimage.NRGBA, *stdimage.NRGBA64, *stdimage.RGBA64, *stdimage.Alpha, *stdimage.Alpha16:
		return ModeRGBA
	case *stdimage.Gray, *stdimage.Gray16:
		return ModeGray
	case *stdimage.CMYK:
		return ModeCMYK
	case *stdimage.YCbCr:
		return ModeYCbCr
	}

	// 其他实现按颜色模型归类
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return ModeGray
	case color.CMYKModel:
		return ModeCMYK
	case color.YCbCrModel:
		return ModeYCbCr
	}
	return ModeRGBA
}

// NeedsFlatten 带透明通道或调色板的模式需要转换为 RGB
func NeedsFlatten(mode ColorMode) bool {
	return mode == ModeRGBA || mode == ModePalette
}

// Normalize 将带透明通道或调色板的图片转换为不透明 RGB，其余模式原样返回
func Normalize(img stdimage.Image) stdimage.Image {
	if !NeedsFlatten(ModeOf(img)) {
		return img
	}
	return toRGB(img)
}

// toRGB 丢弃透明通道，保留未预乘的原始颜色
func toRGB(img stdimage.Image) *stdimage.RGBA {
	b := img.Bounds()
	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := dst.PixOffset(0, y-b.Min.Y)
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
			i += 4
		}
	}
	return dst
}
