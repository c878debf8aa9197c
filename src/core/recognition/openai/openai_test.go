package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgtext-server-go/src/core/recognition"
	"imgtext-server-go/src/core/utils"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "普通多行", content: "Hello\nWorld", want: []string{"Hello", "World"}},
		{name: "去掉空行", content: "\nA\n\n  B  \n", want: []string{"A", "B"}},
		{name: "代码块包裹", content: "```text\nfoo\nbar\n```", want: []string{"foo", "bar"}},
		{name: "空回复", content: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := splitLines(tt.content)
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d", len(lines), len(tt.want))
			}
			for i, l := range lines {
				if l.Text != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, l.Text, tt.want[i])
				}
			}
		})
	}
}

func TestEngineRecognize(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		_ = json.Unmarshal(body, &req)
		gotModel, _ = req["model"].(string)
		if !strings.Contains(string(body), "data:image/png;base64,") {
			t.Errorf("request does not carry the image as a data URL")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"test-vision",
			"choices":[{"index":0,"message":{"role":"assistant","content":"INVOICE 42\nTotal: 10.00"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	imgPath := filepath.Join(t.TempDir(), "processed.png")
	if err := os.WriteFile(imgPath, []byte("fake png bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	engine, err := NewEngine(&recognition.Config{
		APIKey:    "test-key",
		BaseURL:   srv.URL + "/v1",
		ModelName: "test-vision",
	}, utils.NewConsoleLogger(io.Discard, "info"))
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}

	lines, err := engine.Recognize(context.Background(), imgPath)
	if err != nil {
		t.Fatalf("Recognize error: %v", err)
	}
	if gotModel != "test-vision" {
		t.Errorf("model = %q", gotModel)
	}
	if len(lines) != 2 || lines[0].Text != "INVOICE 42" || lines[1].Text != "Total: 10.00" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestNewEngineRequiresKey(t *testing.T) {
	if _, err := NewEngine(&recognition.Config{}, utils.NewConsoleLogger(io.Discard, "info")); err == nil {
		t.Errorf("expected error without api key")
	}
}
