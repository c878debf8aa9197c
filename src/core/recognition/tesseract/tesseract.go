package tesseract

import (
	"context"
	"fmt"
	"strings"

	"imgtext-server-go/src/core/pool"
	"imgtext-server-go/src/core/recognition"
	"imgtext-server-go/src/core/utils"

	"github.com/otiai10/gosseract/v2"
)

// Engine 基于 gosseract 的识别引擎。
// gosseract.Client 不能并发使用，每次识别从池中借出一个独占的客户端。
type Engine struct {
	clients *pool.ResourcePool[*gosseract.Client]
	config  *recognition.Config
	logger  *utils.TaggedLogger
}

// clientFactory 按配置创建 Tesseract 客户端
type clientFactory struct {
	languages []string
	psm       gosseract.PageSegMode
	variables map[string]interface{}
}

func (f *clientFactory) Create() (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(f.languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetPageSegMode(f.psm); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	for k, v := range f.variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), fmt.Sprint(v)); err != nil {
			client.Close()
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return client, nil
}

func (f *clientFactory) Destroy(client *gosseract.Client) error {
	return client.Close()
}

// NewEngine 创建客户端池，预创建一个客户端以尽早发现语言包缺失
func NewEngine(config *recognition.Config, logger *utils.Logger) (recognition.Engine, error) {
	factory := &clientFactory{
		languages: config.Languages,
		psm:       gosseract.PSM_AUTO,
		variables: config.Data,
	}
	if len(factory.languages) == 0 {
		factory.languages = []string{"eng"}
	}
	if config.PSM > 0 {
		factory.psm = gosseract.PageSegMode(config.PSM)
	}
	size := config.PoolSize
	if size < 1 {
		size = 1
	}

	clients, err := pool.NewResourcePool[*gosseract.Client](factory, pool.PoolConfig{MinSize: 1, MaxSize: size}, logger)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		clients: clients,
		config:  config,
		logger:  logger.WithTag("tesseract"),
	}
	engine.logger.Info(fmt.Sprintf("Tesseract %s 初始化成功", gosseract.Version()), map[string]interface{}{
		"languages": factory.languages,
		"psm":       int(factory.psm),
		"pool_size": size,
	})
	return engine, nil
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize 按文本行返回识别结果，顺序为 Tesseract 的版面迭代顺序
func (e *Engine) Recognize(ctx context.Context, imagePath string) ([]recognition.Line, error) {
	client, err := e.clients.Get(ctx)
	if err != nil {
		return nil, err
	}

	lines, err := recognize(client, imagePath)
	if err != nil {
		// 失败后客户端状态不确定，换一个新的
		e.clients.Discard(client)
		return nil, err
	}
	e.clients.Put(client)
	return lines, nil
}

func recognize(client *gosseract.Client, imagePath string) ([]recognition.Line, error) {
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("set image %s: %w", imagePath, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	lines := make([]recognition.Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, recognition.Line{
			Text: text,
			Bounds: recognition.Bounds{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return lines, nil
}

// Close 释放所有 Tesseract 客户端
func (e *Engine) Close() error {
	e.clients.Close()
	return nil
}

func init() {
	recognition.Register("tesseract", NewEngine)
}
