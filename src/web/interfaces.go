package web

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Service HTTP 服务模块接口
type Service interface {
	// 将路由注册到 engine 与 apiGroup
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}
