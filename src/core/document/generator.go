package document

import (
	"fmt"
	"io"
	"time"

	"imgtext-server-go/src/core/storage"
	"imgtext-server-go/src/core/utils"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

// GenerationError 文档生成失败
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("Error creating PDF: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Result 生成的文档
type Result struct {
	Filename string
	Path     string
	Artifact *storage.Artifact
	Document *PaginatedDocument
}

// Generator 把识别文本渲染为分页 PDF 并写入文档存储区
type Generator struct {
	store  *storage.Manager
	logger *utils.TaggedLogger
	now    func() time.Time
}

// NewGenerator 创建文档生成器
func NewGenerator(store *storage.Manager, logger *utils.Logger) *Generator {
	return &Generator{
		store:  store,
		logger: logger.WithTag("document"),
		now:    time.Now,
	}
}

// Filename 秒级时间戳加随机后缀，同一秒内的请求不会互相覆盖
func Filename(now time.Time) string {
	return fmt.Sprintf("text_recognition_%s_%s.pdf", now.Format("20060102_150405"), uuid.New().String()[:8])
}

// Generate 排版并写入 PDF，不完整的文件由存储区删除
func (g *Generator) Generate(text, sourceLabel string) (*Result, error) {
	now := g.now()
	doc := Layout(text, sourceLabel, now)

	artifact, err := g.store.Create(storage.AreaDocuments, Filename(now), func(w io.Writer) error {
		return Render(w, doc, now)
	})
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	g.logger.Info("文档生成完成", map[string]interface{}{
		"file":  artifact.Name,
		"pages": len(doc.Pages),
		"lines": doc.LineCount(),
	})
	return &Result{Filename: artifact.Name, Path: artifact.Path, Artifact: artifact, Document: doc}, nil
}

// Render 把分页结果写成 PDF。核心字体只支持 cp1252，其余字符由转换表替换。
func Render(w io.Writer, doc *PaginatedDocument, created time.Time) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("imgtext-server-go", true)
	pdf.SetCreationDate(created)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, page := range doc.Pages {
		pdf.AddPage()
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 16)
			pdf.Text(LeftMargin, TitleOffset, tr(doc.Title))
			pdf.SetFont("Helvetica", "", 10)
			pdf.Text(LeftMargin, TimestampOffset, tr(doc.Timestamp))
		}
		pdf.SetFont("Helvetica", "", 12)
		for _, line := range page.Lines {
			// fpdf 纵坐标自顶部向下
			pdf.Text(LeftMargin, PageHeight-line.Y, tr(line.Text))
		}
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
