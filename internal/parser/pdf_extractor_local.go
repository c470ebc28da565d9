package parser

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// LocalPDFExtractor 基于 ledongthuc/pdf 逐页读取文本层，作为主PDF提取器失败时的后备
type LocalPDFExtractor struct {
	logger *log.Logger
}

// NewLocalPDFExtractor 创建本地PDF提取器
func NewLocalPDFExtractor(logger *log.Logger) *LocalPDFExtractor {
	if logger == nil {
		logger = log.New(os.Stderr, "[LocalPDF] ", log.LstdFlags)
	}
	return &LocalPDFExtractor{logger: logger}
}

// ExtractFromFile 逐页提取纯文本，单页失败时跳过该页
func (e *LocalPDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("打开PDF失败: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]string, 0, totalPages)
	skipped := 0
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	text := strings.Join(pages, "\n\n")
	metadata := map[string]interface{}{
		"source_file_path":       filePath,
		"extractor":              "local",
		"page_count":             totalPages,
		"skipped_pages":          skipped,
		"text_length":            len(text),
		"processing_duration_ms": time.Since(startTime).Milliseconds(),
	}
	e.logger.Printf("本地PDF提取完成: %s, %d 页, %d 个字符", filePath, totalPages, len(text))
	return text, metadata, nil
}
