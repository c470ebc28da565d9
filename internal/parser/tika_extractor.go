package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// 按扩展名推断上传给Tika的Content-Type，未知扩展名交给Tika自行识别
var tikaContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// 精简模式下保留的元数据字段
var importantMetadataKeys = map[string]bool{
	"Content-Type":        true,
	"xmpTPg:NPages":       true,
	"pdf:PDFVersion":      true,
	"dcterms:created":     true,
	"dc:title":            true,
	"language":            true,
	"meta:page-count":     true,
	"pdf:charsPerPage":    true,
	"pdf:docinfo:title":   true,
	"pdf:docinfo:created": true,
}

// TikaExtractor 通过Apache Tika服务提取PDF和Word（doc/docx）文档的文本，
// Word文档同时支持纯文本和HTML两种输出
type TikaExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	Client    *http.Client

	extractMetadata bool
	logger          *log.Logger
}

// TikaOption 配置选项函数
type TikaOption func(*TikaExtractor)

// WithMetadata 配置是否额外请求 /meta 提取元数据
func WithMetadata(extract bool) TikaOption {
	return func(e *TikaExtractor) {
		e.extractMetadata = extract
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(e *TikaExtractor) {
		e.logger = logger
	}
}

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		e.Client.Timeout = timeout
	}
}

// NewTikaExtractor 创建Tika提取器
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	extractor := &TikaExtractor{
		ServerURL:       strings.TrimRight(serverURL, "/"),
		Client:          &http.Client{Timeout: 60 * time.Second},
		extractMetadata: true,
		logger:          log.New(os.Stderr, "[Tika] ", log.LstdFlags),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// ExtractFromFile 提取PDF文本层
func (e *TikaExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("读取文件 %s 失败: %w", filePath, err)
	}

	metadata := map[string]interface{}{
		"source_file_path": filePath,
		"extractor":        "tika",
	}

	text, err := e.put(ctx, "/tika", "text/plain", data, filePath)
	if err != nil {
		return "", metadata, err
	}
	metadata["text_length"] = len(text)

	if e.extractMetadata {
		raw, err := e.fetchMetadata(ctx, data, filePath)
		if err != nil {
			e.logger.Printf("元数据提取失败: %v, 继续使用基本元数据", err)
		} else {
			for k, v := range raw {
				if importantMetadataKeys[k] {
					metadata[k] = v
				}
			}
		}
	}

	metadata["processing_duration_ms"] = time.Since(startTime).Milliseconds()
	e.logger.Printf("Tika提取完成: %s, %d 个字符 (用时 %.2f秒)", filePath, len(text), time.Since(startTime).Seconds())
	return text, metadata, nil
}

// ExtractRawText Word文档的纯文本输出
func (e *TikaExtractor) ExtractRawText(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("读取文件 %s 失败: %w", filePath, err)
	}
	return e.put(ctx, "/tika", "text/plain", data, filePath)
}

// ConvertToHTML Word文档的HTML输出，图片不会以内容形式出现，由调用方剥离标签
func (e *TikaExtractor) ConvertToHTML(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("读取文件 %s 失败: %w", filePath, err)
	}
	return e.put(ctx, "/tika", "text/html", data, filePath)
}

func (e *TikaExtractor) fetchMetadata(ctx context.Context, data []byte, filePath string) (map[string]interface{}, error) {
	body, err := e.put(ctx, "/meta", "application/json", data, filePath)
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(body), &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}

// put 把文档内容PUT到Tika的指定端点
func (e *TikaExtractor) put(ctx context.Context, endpoint, accept string, data []byte, filePath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	if ct, ok := tikaContentTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Tika-Resource-Name", filepath.Base(filePath))

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return string(body), nil
}
