package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"imgtext-server-go/src/core/document"
	"imgtext-server-go/src/core/image"
	"imgtext-server-go/src/core/recognition"
	"imgtext-server-go/src/core/storage"
	"imgtext-server-go/src/core/utils"

	"github.com/google/uuid"
)

// Upload 一次上传请求
type Upload struct {
	Filename string
	Body     io.Reader
	Spec     image.ResizeSpec
	HasFile  bool // 请求中是否有文件字段
}

// ExtractResult 文字识别结果
type ExtractResult struct {
	Text               string           `json:"text"`
	OriginalDimensions image.Dimensions `json:"original_dimensions"`
	NewDimensions      image.Dimensions `json:"new_dimensions"`
	DocumentFilename   string           `json:"pdf_filename"`
	Pages              int              `json:"-"`
}

// ResizeResult 缩放结果
type ResizeResult struct {
	OriginalDimensions image.Dimensions `json:"original_dimensions"`
	NewDimensions      image.Dimensions `json:"new_dimensions"`
	ImageFilename      string           `json:"resized_filename"`
}

// ValidationError 请求参数错误，由调用方修正后才能重试
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsClientError 错误是否由请求本身引起
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	errNoFile       = &ValidationError{Message: "No file part"}
	errNoFilename   = &ValidationError{Message: "No selected file"}
	errNotAllowed   = &ValidationError{Message: "File type not allowed"}
	errNoDimensions = &ValidationError{Message: "Please specify at least one dimension (width or height)"}
)

// Service 串联校验、预处理、识别、文档生成与临时文件清理
type Service struct {
	store     *storage.Manager
	validator *image.Validator
	adapter   *recognition.Adapter
	generator *document.Generator
	logger    *utils.TaggedLogger
	now       func() time.Time
}

// NewService 创建处理服务，adapter 为 nil 时只能缩放
func NewService(store *storage.Manager, validator *image.Validator, adapter *recognition.Adapter, generator *document.Generator, logger *utils.Logger) *Service {
	return &Service{
		store:     store,
		validator: validator,
		adapter:   adapter,
		generator: generator,
		logger:    logger.WithTag("pipeline"),
		now:       time.Now,
	}
}

// EngineName 当前识别引擎
func (s *Service) EngineName() string {
	if s.adapter == nil {
		return ""
	}
	return s.adapter.EngineName()
}

// Extract 识别上传图片中的文字并生成 PDF。
// 上传原图与预处理副本在返回前删除，只保留生成的文档。
func (s *Service) Extract(ctx context.Context, up Upload) (*ExtractResult, error) {
	if err := s.checkUpload(up, false); err != nil {
		return nil, err
	}
	if s.adapter == nil {
		return nil, fmt.Errorf("未配置识别引擎")
	}
	name := s.safeName(up.Filename)

	scope := s.store.NewScope()
	defer scope.Close()

	asset, saved, err := s.receive(scope, name, up.Body)
	if err != nil {
		return nil, err
	}

	processed, err := image.Preprocess(asset.Image, up.Spec)
	if err != nil {
		return nil, err
	}

	stem, _ := utils.SplitExt(saved.Name)
	processedCopy, err := s.store.Create(storage.AreaUploads, "processed_"+stem+".png", func(w io.Writer) error {
		return image.EncodePNG(w, processed)
	})
	if err != nil {
		return nil, &image.PreprocessingError{Op: "encode", Err: err}
	}
	scope.Track(processedCopy)

	fragments, err := s.adapter.Recognize(ctx, processedCopy.Path)
	if err != nil {
		return nil, err
	}
	text := recognition.Text(fragments)

	doc, err := s.generator.Generate(text, name)
	if err != nil {
		return nil, err
	}
	scope.Track(doc.Artifact)
	scope.Keep(doc.Artifact)

	result := &ExtractResult{
		Text:               text,
		OriginalDimensions: asset.Dimensions,
		NewDimensions:      image.SizeOf(processed),
		DocumentFilename:   doc.Filename,
		Pages:              len(doc.Document.Pages),
	}
	s.logger.Info("文字识别完成", map[string]interface{}{
		"file":     name,
		"mode":     asset.Mode(),
		"original": asset.Dimensions,
		"new":      result.NewDimensions,
		"chars":    len([]rune(text)),
		"document": doc.Filename,
	})
	return result, nil
}

// Resize 按边界等比缩放并以上传格式保存，至少需要一个边界
func (s *Service) Resize(ctx context.Context, up Upload) (*ResizeResult, error) {
	if err := s.checkUpload(up, true); err != nil {
		return nil, err
	}
	name := s.safeName(up.Filename)

	scope := s.store.NewScope()
	defer scope.Close()

	asset, _, err := s.receive(scope, name, up.Body)
	if err != nil {
		return nil, err
	}

	resized, err := image.ResizeOnly(asset.Image, up.Spec)
	if err != nil {
		return nil, err
	}

	outName := ResizedFilename(name, s.now())
	quality := up.Spec.EffectiveQuality()
	output, err := s.store.Create(storage.AreaImages, outName, func(w io.Writer) error {
		return image.Encode(w, resized, outName, quality)
	})
	if err != nil {
		return nil, &image.PreprocessingError{Op: "encode", Err: err}
	}
	scope.Track(output)
	scope.Keep(output)

	result := &ResizeResult{
		OriginalDimensions: asset.Dimensions,
		NewDimensions:      image.SizeOf(resized),
		ImageFilename:      output.Name,
	}
	s.logger.Info("图片缩放完成", map[string]interface{}{
		"file":     name,
		"original": asset.Dimensions,
		"new":      result.NewDimensions,
		"quality":  quality,
		"output":   output.Name,
	})
	return result, nil
}

// ResizedFilename 缩放输出文件名：主干、时间戳、随机后缀、原扩展名
func ResizedFilename(name string, now time.Time) string {
	stem, ext := utils.SplitExt(name)
	return fmt.Sprintf("%s_resized_%s_%s%s", stem, now.Format("20060102_150405"), uuid.New().String()[:8], ext)
}

// checkUpload 请求参数校验，顺序与错误信息对客户端可见
func (s *Service) checkUpload(up Upload, needBounds bool) error {
	if !up.HasFile || up.Body == nil {
		return errNoFile
	}
	if up.Filename == "" {
		return errNoFilename
	}
	if needBounds && !up.Spec.HasBounds() {
		return errNoDimensions
	}
	if !s.validator.AllowedFile(up.Filename) {
		return errNotAllowed
	}
	return nil
}

// safeName 清洗后的文件名。清洗丢掉了扩展名时用 upload 作主干补回。
func (s *Service) safeName(filename string) string {
	name := utils.SecureFilename(filename)
	if s.validator.AllowedFile(name) {
		return name
	}
	ext := strings.ToLower(filename[strings.LastIndex(filename, ".")+1:])
	return "upload." + ext
}

// receive 保存上传内容并解码，保存的原图交给 scope 清理
func (s *Service) receive(scope *storage.Scope, name string, body io.Reader) (*image.Asset, *storage.Artifact, error) {
	saved, err := s.store.Save(storage.AreaUploads, storage.UniqueName(name), body)
	if err != nil {
		return nil, nil, fmt.Errorf("保存上传文件失败: %w", err)
	}
	scope.Track(saved)

	data, err := os.ReadFile(saved.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	info, err := s.validator.Validate(data)
	if err != nil {
		return nil, nil, err
	}

	asset, err := image.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	// GIF 解码得到的是首帧，原始尺寸取逻辑屏幕大小
	asset.Dimensions = image.Dimensions{Width: info.Width, Height: info.Height}
	return asset, saved, nil
}
