package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"imgtext-server-go/src/configs"
	"imgtext-server-go/src/core/auth"
	"imgtext-server-go/src/core/image"
	"imgtext-server-go/src/core/pipeline"
	"imgtext-server-go/src/core/storage"
	"imgtext-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// multipart 解析时保留在内存中的上限，超出部分写入临时文件
const multipartMemory = 8 << 20

type DefaultImageTextService struct {
	logger        *utils.TaggedLogger
	service       *pipeline.Service
	store         *storage.Manager
	authToken     *auth.AuthToken // 为 nil 时不校验
	maxUploadSize int64
}

// NewDefaultImageTextService 构造函数
func NewDefaultImageTextService(config *configs.Config, service *pipeline.Service, store *storage.Manager, logger *utils.Logger) (*DefaultImageTextService, error) {
	s := &DefaultImageTextService{
		logger:        logger.WithTag("http"),
		service:       service,
		store:         store,
		maxUploadSize: config.Web.MaxUploadSize,
	}
	if s.maxUploadSize <= 0 {
		s.maxUploadSize = configs.DefaultMaxUploadSize
	}

	if config.Server.Auth.Enabled {
		authToken, err := auth.NewAuthToken(config.Server.Auth.Secret, config.TokenTTLDuration())
		if err != nil {
			return nil, fmt.Errorf("初始化认证失败: %w", err)
		}
		s.authToken = authToken
	}
	return s, nil
}

// Start 注册识别、缩放、下载与状态检查路由
func (s *DefaultImageTextService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	engine.POST("/recognize", s.requireAuth, s.handleRecognize)
	engine.OPTIONS("/recognize", s.handleOptions)
	engine.POST("/resize", s.requireAuth, s.handleResize)
	engine.OPTIONS("/resize", s.handleOptions)
	engine.GET("/download_pdf/:filename", s.handleDownloadDocument)
	engine.GET("/download_resized/:filename", s.handleDownloadImage)
	engine.GET("/health", s.handleHealth)
	apiGroup.GET("/health", s.handleHealth)

	s.logger.Info("HTTP 路由注册完成", map[string]interface{}{
		"auth": s.authToken != nil,
	})
	return nil
}

// handleOptions 处理OPTIONS请求（CORS）
func (s *DefaultImageTextService) handleOptions(c *gin.Context) {
	s.addCORSHeaders(c)
	c.Status(http.StatusOK)
}

// handleHealth 状态检查
func (s *DefaultImageTextService) handleHealth(c *gin.Context) {
	s.addCORSHeaders(c)

	engine := s.service.EngineName()
	resp := HealthResponse{Status: "ok", Engine: engine}
	if engine != "" {
		resp.Message = fmt.Sprintf("Image text service is running, recognition engine: %s", engine)
	} else {
		resp.Status = "degraded"
		resp.Message = "Image text service is running without a recognition engine"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *DefaultImageTextService) handleRecognize(c *gin.Context) {
	s.addCORSHeaders(c)

	up, ok := s.parseUpload(c)
	if !ok {
		return
	}
	if closer, ok := up.Body.(io.Closer); ok {
		defer closer.Close()
	}

	result, err := s.service.Extract(c.Request.Context(), up)
	if err != nil {
		s.respondPipelineError(c, "文字识别失败", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *DefaultImageTextService) handleResize(c *gin.Context) {
	s.addCORSHeaders(c)

	up, ok := s.parseUpload(c)
	if !ok {
		return
	}
	if closer, ok := up.Body.(io.Closer); ok {
		defer closer.Close()
	}

	result, err := s.service.Resize(c.Request.Context(), up)
	if err != nil {
		s.respondPipelineError(c, "图片缩放失败", err)
		return
	}
	c.JSON(http.StatusOK, ResizeResponse{Message: "Image resized successfully", ResizeResult: result})
}

func (s *DefaultImageTextService) handleDownloadDocument(c *gin.Context) {
	s.serveArtifact(c, storage.AreaDocuments, "application/pdf", "PDF file not found", "Error downloading PDF")
}

func (s *DefaultImageTextService) handleDownloadImage(c *gin.Context) {
	name := c.Param("filename")
	s.serveArtifact(c, storage.AreaImages, image.MimeType(name), "Resized image not found", "Error downloading image")
}

// serveArtifact 以附件形式返回存储区中的文件
func (s *DefaultImageTextService) serveArtifact(c *gin.Context, area storage.Area, contentType, notFound, failure string) {
	s.addCORSHeaders(c)
	name := c.Param("filename")

	file, info, err := s.store.Open(area, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(c, http.StatusNotFound, notFound)
			return
		}
		s.logger.Error("打开文件失败", map[string]interface{}{"area": area, "file": name, "error": err})
		s.respondError(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", failure, err))
		return
	}
	defer file.Close()

	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, name),
	})
}

// parseUpload 解析 multipart 表单。请求体超限返回 413，没有文件字段时交给处理服务报错。
func (s *DefaultImageTextService) parseUpload(c *gin.Context) (pipeline.Upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize)

	var up pipeline.Upload
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large, maximum is %d bytes", s.maxUploadSize))
			return up, false
		}
		s.logger.Debug("multipart 表单解析失败", map[string]interface{}{"error": err})
		return up, true
	}

	up.Spec = image.ResizeSpec{
		MaxWidth:  formInt(c.Request.MultipartForm, "resize_width"),
		MaxHeight: formInt(c.Request.MultipartForm, "resize_height"),
		Quality:   formInt(c.Request.MultipartForm, "quality"),
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return up, true
	}
	up.HasFile = true
	up.Filename = header.Filename
	up.Body = file
	return up, true
}

// formInt 读取整数表单字段，缺失、非整数或非正数都视为未指定
func formInt(form *multipart.Form, key string) int {
	if form == nil || len(form.Value[key]) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(form.Value[key][0]))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// requireAuth 开启认证时校验 Bearer token
func (s *DefaultImageTextService) requireAuth(c *gin.Context) {
	if s.authToken == nil {
		c.Next()
		return
	}

	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		s.addCORSHeaders(c)
		s.respondError(c, http.StatusUnauthorized, "Missing or invalid authorization token")
		c.Abort()
		return
	}

	ok, clientID, err := s.authToken.VerifyToken(authHeader[7:])
	if err != nil || !ok {
		s.logger.Warn("认证token验证失败", map[string]interface{}{"error": err})
		s.addCORSHeaders(c)
		s.respondError(c, http.StatusUnauthorized, "Missing or invalid authorization token")
		c.Abort()
		return
	}

	c.Set("client_id", clientID)
	c.Next()
}

// respondPipelineError 参数错误返回 400，其余返回 500
func (s *DefaultImageTextService) respondPipelineError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	if pipeline.IsClientError(err) {
		status = http.StatusBadRequest
		s.logger.Info(msg, map[string]interface{}{"error": err})
	} else {
		s.logger.Error(msg, map[string]interface{}{"error": err})
	}
	s.respondError(c, status, err.Error())
}

// addCORSHeaders 添加CORS头
func (s *DefaultImageTextService) addCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Headers", "client-id, content-type, authorization")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

// respondError 返回错误响应
func (s *DefaultImageTextService) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{Error: message})
}
