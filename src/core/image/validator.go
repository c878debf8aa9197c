package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"strings"

	"imgtext-server-go/src/core/utils"
)

// DefaultMaxPixels 解码前允许的最大像素数，防止解压炸弹耗尽内存
const DefaultMaxPixels int64 = 100_000_000

// Validator 上传图片校验器
type Validator struct {
	allowedExts map[string]struct{}
	maxPixels   int64
	logger      *utils.TaggedLogger
}

// ValidationResult 图片验证结果
type ValidationResult struct {
	Format   string // 实际格式
	Width    int
	Height   int
	FileSize int64
}

// NewValidator 创建校验器，allowedExts 不带点且不区分大小写
func NewValidator(allowedExts []string, maxPixels int64, logger *utils.Logger) *Validator {
	exts := make(map[string]struct{}, len(allowedExts))
	for _, ext := range allowedExts {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Validator{
		allowedExts: exts,
		maxPixels:   maxPixels,
		logger:      logger.WithTag("validator"),
	}
}

// 图片格式魔数签名
var imageSignatures = map[string][][]byte{
	"jpeg": {{0xFF, 0xD8}},
	"png":  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	"gif":  {[]byte("GIF87a"), []byte("GIF89a")},
	"bmp":  {{0x42, 0x4D}},
	"tiff": {{0x49, 0x49, 0x2A, 0x00}, {0x4D, 0x4D, 0x00, 0x2A}},
}

// AllowedFile 文件名必须带扩展名且扩展名在白名单内
func (v *Validator) AllowedFile(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	_, ok := v.allowedExts[strings.ToLower(filename[idx+1:])]
	return ok
}

// DetectFormat 根据文件头识别格式，无法识别时返回空字符串
func DetectFormat(data []byte) string {
	for format, signatures := range imageSignatures {
		for _, sig := range signatures {
			if bytes.HasPrefix(data, sig) {
				return format
			}
		}
	}
	return ""
}

// Validate 解码图片头部信息并检查像素数限制，失败时返回 PreprocessingError
func (v *Validator) Validate(data []byte) (ValidationResult, error) {
	result := ValidationResult{FileSize: int64(len(data))}

	if len(data) == 0 {
		return result, &PreprocessingError{Op: "validate", Err: fmt.Errorf("图片数据为空")}
	}

	if DetectFormat(data) == "" {
		// 文件头不匹配时仍然尝试解码，交给解码器判断
		v.logger.Warn("文件头验证失败，但继续尝试解码", map[string]interface{}{
			"actual_header": fmt.Sprintf("%x", data[:min(len(data), 16)]),
		})
	}

	config, format, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return result, &PreprocessingError{Op: "validate", Err: fmt.Errorf("图片解码失败: %w", err)}
	}

	totalPixels := int64(config.Width) * int64(config.Height)
	if totalPixels > v.maxPixels {
		return result, &PreprocessingError{
			Op:  "validate",
			Err: fmt.Errorf("像素总数超限: %d，最大允许: %d", totalPixels, v.maxPixels),
		}
	}

	result.Format = format
	result.Width = config.Width
	result.Height = config.Height

	v.logger.Debug("图片验证成功", map[string]interface{}{
		"format": result.Format,
		"width":  result.Width,
		"height": result.Height,
		"size":   result.FileSize,
	})
	return result, nil
}
