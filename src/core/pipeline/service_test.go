package pipeline

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imgtext-server-go/src/core/document"
	"imgtext-server-go/src/core/image"
	"imgtext-server-go/src/core/recognition"
	"imgtext-server-go/src/core/storage"
	"imgtext-server-go/src/core/utils"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type fakeEngine struct {
	lines    []recognition.Line
	err      error
	seenPath string
	existed  bool
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, imagePath string) ([]recognition.Line, error) {
	f.seenPath = imagePath
	_, err := os.Stat(imagePath)
	f.existed = err == nil
	return f.lines, f.err
}

func (f *fakeEngine) Close() error { return nil }

type fixture struct {
	service *Service
	store   *storage.Manager
	engine  *fakeEngine
}

func newFixture(t *testing.T, engine *fakeEngine) *fixture {
	t.Helper()
	logger := utils.NewConsoleLogger(io.Discard, "debug")
	root := t.TempDir()
	store, err := storage.NewManager(storage.Dirs{
		Uploads:   filepath.Join(root, "uploads"),
		Documents: filepath.Join(root, "pdfs"),
		Images:    filepath.Join(root, "resized"),
	}, 0, logger)
	if err != nil {
		t.Fatal(err)
	}
	validator := image.NewValidator([]string{"png", "jpg", "jpeg", "gif", "bmp", "tiff"}, 0, logger)
	generator := document.NewGenerator(store, logger)
	service := NewService(store, validator, recognition.NewAdapter(engine, logger), generator, logger)
	return &fixture{service: service, store: store, engine: engine}
}

func (f *fixture) files(t *testing.T, area storage.Area) []string {
	t.Helper()
	entries, err := os.ReadDir(f.store.Dir(area))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func upload(name string, data []byte, spec image.ResizeSpec) Upload {
	return Upload{Filename: name, Body: bytes.NewReader(data), Spec: spec, HasFile: true}
}

func TestExtract(t *testing.T) {
	engine := &fakeEngine{lines: []recognition.Line{{Text: "Hello"}, {Text: "World"}}}
	f := newFixture(t, engine)

	data := pngBytes(t, 1000, 500, color.NRGBA{R: 200, G: 10, B: 10, A: 128})
	result, err := f.service.Extract(context.Background(), upload("scan.png", data, image.ResizeSpec{MaxWidth: 500}))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if result.Text != "Hello\nWorld" {
		t.Errorf("text = %q", result.Text)
	}
	if result.OriginalDimensions != (image.Dimensions{Width: 1000, Height: 500}) {
		t.Errorf("original = %+v", result.OriginalDimensions)
	}
	if result.NewDimensions != (image.Dimensions{Width: 500, Height: 250}) {
		t.Errorf("new = %+v", result.NewDimensions)
	}
	if !engine.existed || filepath.Ext(engine.seenPath) != ".png" {
		t.Errorf("engine saw %s (existed=%v)", engine.seenPath, engine.existed)
	}

	if left := f.files(t, storage.AreaUploads); len(left) != 0 {
		t.Errorf("uploads not cleaned: %v", left)
	}
	docs := f.files(t, storage.AreaDocuments)
	if len(docs) != 1 || docs[0] != result.DocumentFilename {
		t.Errorf("documents = %v, want [%s]", docs, result.DocumentFilename)
	}
}

func TestExtractBlankImage(t *testing.T) {
	f := newFixture(t, &fakeEngine{})

	data := pngBytes(t, 200, 100, color.White)
	result, err := f.service.Extract(context.Background(), upload("blank.png", data, image.ResizeSpec{}))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if result.Text != "" || result.Pages != 1 {
		t.Errorf("blank image: text=%q pages=%d", result.Text, result.Pages)
	}
	if result.NewDimensions != result.OriginalDimensions {
		t.Errorf("no bounds should keep size, got %+v", result.NewDimensions)
	}
}

func TestExtractFailures(t *testing.T) {
	good := pngBytes(t, 10, 10, color.Black)

	tests := []struct {
		name        string
		up          Upload
		engineErr   error
		clientError bool
		wantErr     interface{}
	}{
		{name: "没有文件", up: Upload{}, clientError: true},
		{name: "空文件名", up: upload("", good, image.ResizeSpec{}), clientError: true},
		{name: "扩展名不允许", up: upload("notes.txt", good, image.ResizeSpec{}), clientError: true},
		{name: "没有扩展名", up: upload("scan", good, image.ResizeSpec{}), clientError: true},
		{name: "损坏的图片", up: upload("broken.png", []byte("not an image"), image.ResizeSpec{}), wantErr: new(*image.PreprocessingError)},
		{name: "识别失败", up: upload("scan.png", good, image.ResizeSpec{}), engineErr: errors.New("tesseract crashed"), wantErr: new(*recognition.RecognitionError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeEngine{err: tt.engineErr})
			_, err := f.service.Extract(context.Background(), tt.up)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsClientError(err) != tt.clientError {
				t.Errorf("IsClientError(%v) = %v", err, !tt.clientError)
			}
			if tt.wantErr != nil && !errors.As(err, tt.wantErr) {
				t.Errorf("error = %T %v, want %T", err, err, tt.wantErr)
			}
			if left := f.files(t, storage.AreaUploads); len(left) != 0 {
				t.Errorf("uploads not cleaned after failure: %v", left)
			}
			if docs := f.files(t, storage.AreaDocuments); len(docs) != 0 {
				t.Errorf("document produced on failure: %v", docs)
			}
		})
	}
}

// 文档区不可写时生成失败，上传原图和预处理副本都要删除
func TestExtractGenerationFailure(t *testing.T) {
	engine := &fakeEngine{lines: []recognition.Line{{Text: "Hello"}}}
	f := newFixture(t, engine)
	if err := os.RemoveAll(f.store.Dir(storage.AreaDocuments)); err != nil {
		t.Fatal(err)
	}

	data := pngBytes(t, 20, 20, color.Black)
	_, err := f.service.Extract(context.Background(), upload("scan.png", data, image.ResizeSpec{}))
	var ge *document.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("error = %T %v, want GenerationError", err, err)
	}
	if IsClientError(err) {
		t.Errorf("generation failure reported as client error")
	}
	if !engine.existed || !strings.HasPrefix(filepath.Base(engine.seenPath), "processed_") {
		t.Errorf("engine saw %s (existed=%v)", engine.seenPath, engine.existed)
	}
	if left := f.files(t, storage.AreaUploads); len(left) != 0 {
		t.Errorf("uploads not cleaned after generation failure: %v", left)
	}
}

// GIF 的原始尺寸取逻辑屏幕大小而不是首帧大小
func TestExtractGIFDimensions(t *testing.T) {
	f := newFixture(t, &fakeEngine{})

	frame := stdimage.NewPaletted(stdimage.Rect(0, 0, 10, 10), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, &gif.GIF{
		Image:  []*stdimage.Paletted{frame},
		Delay:  []int{0},
		Config: stdimage.Config{Width: 40, Height: 30},
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := f.service.Extract(context.Background(), upload("anim.gif", buf.Bytes(), image.ResizeSpec{}))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if result.OriginalDimensions != (image.Dimensions{Width: 40, Height: 30}) {
		t.Errorf("original = %+v, want 40x30", result.OriginalDimensions)
	}
}

func TestResize(t *testing.T) {
	f := newFixture(t, &fakeEngine{})

	data := pngBytes(t, 1000, 500, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	result, err := f.service.Resize(context.Background(), upload("My Photo.png", data, image.ResizeSpec{MaxHeight: 100, Quality: 50}))
	if err != nil {
		t.Fatalf("Resize error: %v", err)
	}
	if result.NewDimensions != (image.Dimensions{Width: 200, Height: 100}) {
		t.Errorf("new = %+v", result.NewDimensions)
	}
	if !strings.HasPrefix(result.ImageFilename, "My_Photo_resized_") || filepath.Ext(result.ImageFilename) != ".png" {
		t.Errorf("filename = %s", result.ImageFilename)
	}

	file, err := os.Open(filepath.Join(f.store.Dir(storage.AreaImages), result.ImageFilename))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	defer file.Close()
	cfg, format, err := stdimage.DecodeConfig(file)
	if err != nil || format != "png" || cfg.Width != 200 || cfg.Height != 100 {
		t.Errorf("output = %s %dx%d (%v)", format, cfg.Width, cfg.Height, err)
	}

	if left := f.files(t, storage.AreaUploads); len(left) != 0 {
		t.Errorf("uploads not cleaned: %v", left)
	}
}

func TestResizeRequiresDimension(t *testing.T) {
	f := newFixture(t, &fakeEngine{})
	data := pngBytes(t, 10, 10, color.Black)

	_, err := f.service.Resize(context.Background(), upload("scan.png", data, image.ResizeSpec{Quality: 90}))
	if !IsClientError(err) || err.Error() != "Please specify at least one dimension (width or height)" {
		t.Errorf("error = %v", err)
	}
	if out := f.files(t, storage.AreaImages); len(out) != 0 {
		t.Errorf("output produced: %v", out)
	}
}

func TestResizeFailures(t *testing.T) {
	good := pngBytes(t, 10, 10, color.Black)

	tests := []struct {
		name        string
		data        []byte
		removeImage bool
		wantOp      string
	}{
		{name: "损坏的图片", data: []byte("not an image"), wantOp: "validate"},
		{name: "输出区不可写", data: good, removeImage: true, wantOp: "encode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeEngine{})
			if tt.removeImage {
				if err := os.RemoveAll(f.store.Dir(storage.AreaImages)); err != nil {
					t.Fatal(err)
				}
			}

			_, err := f.service.Resize(context.Background(), upload("scan.png", tt.data, image.ResizeSpec{MaxWidth: 5}))
			var pe *image.PreprocessingError
			if !errors.As(err, &pe) || pe.Op != tt.wantOp {
				t.Fatalf("error = %T %v, want PreprocessingError(%s)", err, err, tt.wantOp)
			}
			if left := f.files(t, storage.AreaUploads); len(left) != 0 {
				t.Errorf("uploads not cleaned: %v", left)
			}
			if out := f.files(t, storage.AreaImages); len(out) != 0 {
				t.Errorf("output left behind: %v", out)
			}
		})
	}
}

func TestResizedFilename(t *testing.T) {
	a := ResizedFilename("scan.jpg", fixedTime)
	b := ResizedFilename("scan.jpg", fixedTime)
	if a == b {
		t.Errorf("same-second names collided: %s", a)
	}
	if !strings.HasPrefix(a, "scan_resized_20240309_140507_") || !strings.HasSuffix(a, ".jpg") {
		t.Errorf("name = %s", a)
	}
}

func TestSafeName(t *testing.T) {
	f := newFixture(t, &fakeEngine{})
	tests := map[string]string{
		"scan.png":      "scan.png",
		"../../a b.JPG": "a_b.JPG",
		"扫描件.png":       "upload.png",
		"照片.TIFF":       "upload.tiff",
	}
	for in, want := range tests {
		if got := f.service.safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}
