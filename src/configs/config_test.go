package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFileDefaults(t *testing.T) {
	config, _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if config.Server.Port != 5000 || config.Web.MaxUploadSize != DefaultMaxUploadSize {
		t.Errorf("server defaults = %d %d", config.Server.Port, config.Web.MaxUploadSize)
	}
	if config.Storage.RetentionDuration() != time.Hour || config.Storage.SweepIntervalDuration() != 10*time.Minute {
		t.Errorf("storage defaults = %+v", config.Storage)
	}
	name, rc := config.SelectedRecognition()
	if name != "tesseract" || rc.Type != "tesseract" || len(rc.Languages) != 1 {
		t.Errorf("recognition default = %s %+v", name, rc)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 8080
  auth:
    enabled: true
    secret: from-file
    token_ttl: 30m
log:
  log_format: json
  log_level: debug
storage:
  retention: 2h
  sweep_interval: "0"
selected_module:
  Recognition: vision
Recognition:
  vision:
    type: openai
    model_name: gpt-4o-mini
    url: http://localhost:8000/v1
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMGTEXT_AUTH_SECRET", "from-env")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("IMGTEXT_PORT", "")

	config, _, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.Server.Port != 8080 || config.Server.Auth.Secret != "from-env" || config.TokenTTLDuration() != 30*time.Minute {
		t.Errorf("server = %+v", config.Server)
	}
	// 旧配置里的 log_format 忽略即可
	if config.Log.LogLevel != "debug" {
		t.Errorf("log = %+v", config.Log)
	}
	if config.Storage.RetentionDuration() != 2*time.Hour || config.Storage.SweepIntervalDuration() != 0 {
		t.Errorf("storage = %+v", config.Storage)
	}
	name, rc := config.SelectedRecognition()
	if name != "vision" || rc.APIKey != "sk-test" || rc.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("recognition = %s %+v", name, rc)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Hour},
		{"0", 0},
		{"90s", 90 * time.Second},
		{"abc", time.Hour},
		{"-5m", time.Hour},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Hour); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("server: [unclosed"), 0644)
	if _, _, err := LoadConfigFile(path); err == nil {
		t.Error("expected parse error")
	}
}
