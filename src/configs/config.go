package configs

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
		Auth struct {
			Enabled bool   `yaml:"enabled"`
			Secret  string `yaml:"secret"`
			// TokenTTL 签发token的有效期，如 "1h"
			TokenTTL string `yaml:"token_ttl"`
		} `yaml:"auth"`
	} `yaml:"server"`

	Log struct {
		LogLevel string `yaml:"log_level"`
		LogDir   string `yaml:"log_dir"`
		LogFile  string `yaml:"log_file"`
	} `yaml:"log"`

	Web struct {
		MaxUploadSize int64    `yaml:"max_upload_size"` // 请求体上限（字节）
		AllowedExts   []string `yaml:"allowed_exts"`
	} `yaml:"web"`

	Storage StorageConfig `yaml:"storage"`

	SelectedModule map[string]string `yaml:"selected_module"`

	Recognition map[string]RecognitionConfig `yaml:"Recognition"`
}

// StorageConfig 三个存储区及保留策略
type StorageConfig struct {
	UploadDir     string `yaml:"upload_dir"`
	DocumentDir   string `yaml:"document_dir"`
	ImageDir      string `yaml:"image_dir"`
	Retention     string `yaml:"retention"`      // 文件保留时长，默认 1h
	SweepInterval string `yaml:"sweep_interval"` // 定时清理间隔，"0" 表示关闭
}

// RecognitionConfig 文字识别引擎配置
type RecognitionConfig struct {
	Type      string                 `yaml:"type"` // tesseract / openai
	Languages []string               `yaml:"languages"`
	PSM       int                    `yaml:"psm"`
	PoolSize  int                    `yaml:"pool_size"` // 并发识别的客户端数量
	ModelName string                 `yaml:"model_name"`
	BaseURL   string                 `yaml:"url"`
	APIKey    string                 `yaml:"api_key"`
	MaxTokens int                    `yaml:"max_tokens"`
	Prompt    string                 `yaml:"prompt"`
	Extra     map[string]interface{} `yaml:",inline"`
}

const (
	DefaultMaxUploadSize = 16 * 1024 * 1024
	DefaultRetention     = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// LoadConfig 从文件加载配置
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	return LoadConfigFile(path)
}

// LoadConfigFile 加载指定路径的配置，文件不存在时使用默认配置
func LoadConfigFile(path string) (*Config, string, error) {
	config := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, path, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, path, err
		}
	}

	config.applyEnv()
	config.ensureDefaults()
	return config, path, nil
}

// applyEnv 环境变量覆盖文件配置
func (c *Config) applyEnv() {
	if v := os.Getenv("IMGTEXT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("IMGTEXT_AUTH_SECRET"); v != "" {
		c.Server.Auth.Secret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		for name, rc := range c.Recognition {
			if rc.Type == "openai" && rc.APIKey == "" {
				rc.APIKey = v
				c.Recognition[name] = rc
			}
		}
	}
}

func (c *Config) ensureDefaults() {
	if c.Server.IP == "" {
		c.Server.IP = "0.0.0.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 5000
	}
	if c.Server.Auth.TokenTTL == "" {
		c.Server.Auth.TokenTTL = "1h"
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "info"
	}
	if c.Log.LogDir == "" {
		c.Log.LogDir = "logs"
	}
	if c.Log.LogFile == "" {
		c.Log.LogFile = "server.log"
	}
	if c.Web.MaxUploadSize <= 0 {
		c.Web.MaxUploadSize = DefaultMaxUploadSize
	}
	if len(c.Web.AllowedExts) == 0 {
		c.Web.AllowedExts = []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff"}
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
	if c.Storage.DocumentDir == "" {
		c.Storage.DocumentDir = "pdfs"
	}
	if c.Storage.ImageDir == "" {
		c.Storage.ImageDir = "resized"
	}
	if c.SelectedModule == nil {
		c.SelectedModule = map[string]string{}
	}
	if c.SelectedModule["Recognition"] == "" {
		c.SelectedModule["Recognition"] = "tesseract"
	}
	if c.Recognition == nil {
		c.Recognition = map[string]RecognitionConfig{}
	}
	if _, ok := c.Recognition["tesseract"]; !ok {
		c.Recognition["tesseract"] = RecognitionConfig{Type: "tesseract", Languages: []string{"eng"}}
	}
}

// RetentionDuration 解析文件保留时长
func (s StorageConfig) RetentionDuration() time.Duration {
	return parseDuration(s.Retention, DefaultRetention)
}

// SweepIntervalDuration 解析定时清理间隔，0 表示不启动定时清理
func (s StorageConfig) SweepIntervalDuration() time.Duration {
	return parseDuration(s.SweepInterval, DefaultSweepInterval)
}

// TokenTTLDuration 解析token有效期
func (c *Config) TokenTTLDuration() time.Duration {
	return parseDuration(c.Server.Auth.TokenTTL, time.Hour)
}

// SelectedRecognition 返回当前选择的识别引擎名称及配置
func (c *Config) SelectedRecognition() (string, RecognitionConfig) {
	name := c.SelectedModule["Recognition"]
	return name, c.Recognition[name]
}

func parseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
