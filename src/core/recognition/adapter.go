package recognition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imgtext-server-go/src/core/utils"
)

// Adapter 把引擎输出整理为有序的文本片段
type Adapter struct {
	engine Engine
	logger *utils.TaggedLogger
}

// NewAdapter 包装一个长期存活的识别引擎
func NewAdapter(engine Engine, logger *utils.Logger) *Adapter {
	return &Adapter{
		engine: engine,
		logger: logger.WithTag("recognition"),
	}
}

// EngineName 当前引擎名称
func (a *Adapter) EngineName() string {
	return a.engine.Name()
}

// Recognize 对预处理后的图片做一次阻塞识别，返回引擎输出顺序的文本片段。
// 图片不会再做任何变换。
func (a *Adapter) Recognize(ctx context.Context, imagePath string) ([]string, error) {
	start := time.Now()
	lines, err := a.engine.Recognize(ctx, imagePath)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("识别失败: %v", err), map[string]interface{}{
			"engine": a.engine.Name(),
			"path":   imagePath,
		})
		return nil, &RecognitionError{Engine: a.engine.Name(), Err: err}
	}

	fragments := make([]string, 0, len(lines))
	for _, line := range lines {
		fragments = append(fragments, line.Text)
	}

	a.logger.Info("识别完成", map[string]interface{}{
		"engine":   a.engine.Name(),
		"lines":    len(fragments),
		"duration": time.Since(start).String(),
	})
	return fragments, nil
}

// Text 每个片段一行拼接为完整文本
func Text(fragments []string) string {
	return strings.Join(fragments, "\n")
}

// Close 释放引擎资源
func (a *Adapter) Close() error {
	return a.engine.Close()
}
