package web

import "imgtext-server-go/src/core/pipeline"

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// ResizeResponse 缩放成功响应
type ResizeResponse struct {
	Message string `json:"message"`
	*pipeline.ResizeResult
}

// HealthResponse 状态检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Message string `json:"message"`
}
