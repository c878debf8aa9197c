package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"imgtext-server-go/src/core/document"
	"imgtext-server-go/src/core/image"
	"imgtext-server-go/src/core/pipeline"
	"imgtext-server-go/src/core/recognition"
	"imgtext-server-go/src/core/storage"
	"imgtext-server-go/src/web"

	// 导入识别引擎以确保init函数被调用
	_ "imgtext-server-go/src/core/recognition/openai"
	_ "imgtext-server-go/src/core/recognition/tesseract"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the periodic retention sweep",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newStorage() (*storage.Manager, error) {
	return storage.NewManager(storage.Dirs{
		Uploads:   config.Storage.UploadDir,
		Documents: config.Storage.DocumentDir,
		Images:    config.Storage.ImageDir,
	}, config.Storage.RetentionDuration(), logger)
}

// newRecognitionAdapter 在开始服务前创建识别引擎，引擎不可用时直接失败
func newRecognitionAdapter() (*recognition.Adapter, error) {
	name, rc := config.SelectedRecognition()
	if rc.Type == "" {
		return nil, fmt.Errorf("识别引擎 %s 未配置", name)
	}
	engine, err := recognition.Create(rc, logger)
	if err != nil {
		return nil, fmt.Errorf("创建识别引擎 %s 失败: %w", name, err)
	}
	logger.Info("识别引擎初始化成功", map[string]interface{}{
		"name":      name,
		"type":      rc.Type,
		"available": recognition.GetRegisteredEngines(),
	})
	return recognition.NewAdapter(engine, logger), nil
}

func runServe(ctx context.Context) error {
	store, err := newStorage()
	if err != nil {
		return err
	}

	adapter, err := newRecognitionAdapter()
	if err != nil {
		return err
	}
	defer adapter.Close()

	service := pipeline.NewService(
		store,
		image.NewValidator(config.Web.AllowedExts, image.DefaultMaxPixels, logger),
		adapter,
		document.NewGenerator(store, logger),
		logger,
	)

	g, groupCtx := errgroup.WithContext(ctx)

	if err := startHttpServer(groupCtx, g, service, store); err != nil {
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	sweeper := storage.NewSweeper(store, config.Storage.SweepIntervalDuration())
	g.Go(func() error {
		return sweeper.Run(groupCtx)
	})

	err = g.Wait()
	logger.Info("所有服务已关闭")
	return err
}

func startHttpServer(groupCtx context.Context, g *errgroup.Group, service *pipeline.Service, store *storage.Manager) error {
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.SetTrustedProxies([]string{"0.0.0.0"})
	router.MaxMultipartMemory = 8 << 20

	// API路由挂载到/api前缀下，页面接口保持原路径
	apiGroup := router.Group("/api")

	httpService, err := web.NewDefaultImageTextService(config, service, store, logger)
	if err != nil {
		return err
	}
	if err := httpService.Start(groupCtx, router, apiGroup); err != nil {
		return err
	}

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://%s", addr))

		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", err)
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP 服务启动失败", err)
			return err
		}
		return nil
	})
	return nil
}
