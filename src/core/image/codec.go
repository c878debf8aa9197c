package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"io"
	"path/filepath"
	"strings"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // 注册BMP解码器
	_ "golang.org/x/image/tiff" // 注册TIFF解码器
)

// Decode 解码上传的图片字节，失败时返回 PreprocessingError
func Decode(data []byte) (*Asset, error) {
	img, format, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &PreprocessingError{Op: "decode", Err: err}
	}
	return &Asset{
		Image:      img,
		Format:     format,
		Dimensions: SizeOf(img),
	}, nil
}

// MimeType 根据文件扩展名返回图片的 Content-Type
func MimeType(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}

// Encode 按文件扩展名对应的格式编码图片，quality 只对 JPEG 生效
func Encode(w io.Writer, img stdimage.Image, filename string, quality int) error {
	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		return fmt.Errorf("不支持的输出格式 %s: %w", filepath.Ext(filename), err)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return imaging.Encode(w, img, format, imaging.JPEGQuality(quality))
}

// EncodePNG 无损编码，用于识别前保存的中间图片
func EncodePNG(w io.Writer, img stdimage.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}
