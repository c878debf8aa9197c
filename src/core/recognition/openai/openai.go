package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"imgtext-server-go/src/core/recognition"
	"imgtext-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

const defaultPrompt = "Transcribe all text visible in this image. " +
	"Output one line of text per line as it appears, top to bottom, with no commentary. " +
	"If there is no text, output nothing."

// Engine 通过 OpenAI 兼容的视觉模型做文字识别
type Engine struct {
	client *openai.Client
	config *recognition.Config
	logger *utils.TaggedLogger
}

// NewEngine 创建 OpenAI 视觉识别引擎
func NewEngine(config *recognition.Config, logger *utils.Logger) (recognition.Engine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if config.ModelName == "" {
		config.ModelName = openai.GPT4oMini
	}
	if config.Prompt == "" {
		config.Prompt = defaultPrompt
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	engine := &Engine{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger.WithTag("openai-ocr"),
	}
	engine.logger.Info("OpenAI 识别引擎初始化成功", map[string]interface{}{
		"model":    config.ModelName,
		"base_url": clientConfig.BaseURL,
	})
	return engine, nil
}

func (e *Engine) Name() string { return "openai" }

// Recognize 把图片作为 data URL 发送给视觉模型，按回复的行拆分
func (e *Engine) Recognize(ctx context.Context, imagePath string) ([]recognition.Line, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	message := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: e.config.Prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(imagePath, data),
					Detail: openai.ImageURLDetailHigh,
				},
			},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     e.config.ModelName,
		Messages:  []openai.ChatCompletionMessage{message},
		MaxTokens: e.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model %s", e.config.ModelName)
	}

	e.logger.Debug("视觉模型回复完成", map[string]interface{}{
		"model":  resp.Model,
		"tokens": resp.Usage.TotalTokens,
	})
	return splitLines(resp.Choices[0].Message.Content), nil
}

func (e *Engine) Close() error { return nil }

func dataURL(path string, data []byte) string {
	format := "png"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
		format = "jpeg"
	}
	return fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(data))
}

// splitLines 去掉模型常见的代码块包裹和空行
func splitLines(content string) []recognition.Line {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```text")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var lines []recognition.Line
	for _, raw := range strings.Split(content, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lines = append(lines, recognition.Line{Text: text, Confidence: 1})
	}
	return lines
}

func init() {
	recognition.Register("openai", NewEngine)
}
