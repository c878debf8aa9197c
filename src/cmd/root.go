package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"imgtext-server-go/src/configs"
	"imgtext-server-go/src/core/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version 程序版本
const Version = "0.1.0"

var (
	configPath string
	// 子命令共享的配置与日志，在 PersistentPreRunE 中初始化
	config *configs.Config
	logger *utils.Logger
)

var rootCmd = &cobra.Command{
	Use:     "imgtext-server",
	Short:   "Image text recognition and resize server",
	Version: Version,
	// 不带子命令时直接启动服务
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := LoadConfigAndLogger(); err != nil {
			return err
		}
		// 一次性命令的标准输出只留给命令结果
		if cmd.HasParent() && cmd.Name() != "serve" {
			logger.SetConsole(cmd.ErrOrStderr())
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

// LoadConfigAndLogger 加载 .env、配置文件并初始化日志系统
func LoadConfigAndLogger() error {
	// .env 中的变量要在读取配置前生效
	envErr := godotenv.Load()

	var err error
	var path string
	if configPath != "" {
		config, path, err = configs.LoadConfigFile(configPath)
	} else {
		config, path, err = configs.LoadConfig()
	}
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err = utils.NewLogger(config)
	if err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	logger.Info("日志系统初始化成功", map[string]interface{}{"config": path})
	if envErr != nil {
		logger.Debug("未找到 .env 文件，使用系统环境变量")
	}
	return nil
}

func Execute() {
	// Ctrl+C 或 SIGTERM 时取消命令的 context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认依次查找 .config.yaml、config.yaml）")
}
