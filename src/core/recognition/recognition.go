package recognition

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"imgtext-server-go/src/configs"
	"imgtext-server-go/src/core/utils"
)

// Bounds 文本行在图片中的像素区域
type Bounds struct {
	X, Y, Width, Height int
}

// Line 识别出的一行文本，按引擎输出顺序排列
type Line struct {
	Text       string
	Bounds     Bounds
	Confidence float64 // 0-1
}

// Engine 文字识别引擎，输入为已经预处理的图片路径
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) ([]Line, error)
	Close() error
}

// Config 识别引擎配置
type Config struct {
	Type      string
	Languages []string
	PSM       int
	PoolSize  int
	ModelName string
	BaseURL   string
	APIKey    string
	MaxTokens int
	Prompt    string
	Data      map[string]interface{}
}

// RecognitionError 识别失败，不重试
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("OCR Error (%s): %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Factory 识别引擎工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (Engine, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册识别引擎工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 创建识别引擎实例，进程启动时调用一次
func Create(rc configs.RecognitionConfig, logger *utils.Logger) (Engine, error) {
	typ := strings.ToLower(rc.Type)
	factory, ok := factories[typ]
	if !ok {
		return nil, fmt.Errorf("未知的识别引擎: %s (已注册: %v)", rc.Type, GetRegisteredEngines())
	}

	config := &Config{
		Type:      typ,
		Languages: rc.Languages,
		PSM:       rc.PSM,
		PoolSize:  rc.PoolSize,
		ModelName: rc.ModelName,
		BaseURL:   rc.BaseURL,
		APIKey:    rc.APIKey,
		MaxTokens: rc.MaxTokens,
		Prompt:    rc.Prompt,
		Data:      rc.Extra,
	}

	engine, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建识别引擎失败: %w", err)
	}

	logger.Debug("识别引擎创建成功", map[string]interface{}{
		"type":      typ,
		"languages": config.Languages,
	})
	return engine, nil
}

// GetRegisteredEngines 获取已注册的引擎列表
func GetRegisteredEngines() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
