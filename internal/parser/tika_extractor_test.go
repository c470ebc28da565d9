package parser

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 创建一个模拟的Tika服务器，文本响应中带上收到的Content-Type和资源名，便于断言
func createMockTikaServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}

		switch r.URL.Path {
		case "/tika":
			switch r.Header.Get("Accept") {
			case "text/plain":
				w.Header().Set("Content-Type", "text/plain")
				_, _ = w.Write([]byte("text of " + r.Header.Get("X-Tika-Resource-Name") + " as " + r.Header.Get("Content-Type")))
			case "text/html":
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html><body><p>JOHN SMITH</p><p>SKILLS</p></body></html>"))
			default:
				w.WriteHeader(http.StatusNotAcceptable)
			}
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"Content-Type": "application/pdf",
				"xmpTPg:NPages": 2,
				"meta:author": "测试作者",
				"dc:title": "测试简历"
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func writeTempFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewTikaExtractor(t *testing.T) {
	extractor := NewTikaExtractor("http://localhost:9998/")
	assert.Equal(t, "http://localhost:9998", extractor.ServerURL, "末尾的斜杠应被去掉")
	require.NotNil(t, extractor.Client)
	assert.Equal(t, 60*time.Second, extractor.Client.Timeout, "默认超时应为60秒")
	assert.True(t, extractor.extractMetadata, "默认应提取元数据")

	customLogger := log.New(os.Stdout, "[测试] ", log.LstdFlags)
	custom := NewTikaExtractor("http://tika:9998",
		WithMetadata(false),
		WithTikaLogger(customLogger),
		WithTimeout(10*time.Second),
	)
	assert.False(t, custom.extractMetadata)
	assert.Equal(t, customLogger, custom.logger, "应该使用提供的自定义logger")
	assert.Equal(t, 10*time.Second, custom.Client.Timeout)
}

func TestTikaExtractFromFile(t *testing.T) {
	server := createMockTikaServer(t)
	defer server.Close()

	path := writeTempFile(t, "resume.pdf", "%PDF-1.5 mock content")
	extractor := NewTikaExtractor(server.URL)

	text, metadata, err := extractor.ExtractFromFile(context.Background(), path)
	require.NoError(t, err, "PDF提取不应返回错误")
	assert.Equal(t, "text of resume.pdf as application/pdf", text)

	assert.Equal(t, path, metadata["source_file_path"])
	assert.Equal(t, "tika", metadata["extractor"])
	assert.Equal(t, float64(2), metadata["xmpTPg:NPages"], "重要元数据应保留")
	assert.NotContains(t, metadata, "meta:author", "非重要元数据应被过滤")
	assert.Contains(t, metadata, "processing_duration_ms")

	noMeta := NewTikaExtractor(server.URL, WithMetadata(false))
	_, metadata, err = noMeta.ExtractFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.NotContains(t, metadata, "xmpTPg:NPages", "关闭元数据后不应请求 /meta")
}

func TestTikaWordStrategies(t *testing.T) {
	server := createMockTikaServer(t)
	defer server.Close()

	extractor := NewTikaExtractor(server.URL)
	ctx := context.Background()

	docx := writeTempFile(t, "resume.docx", "PK mock docx")
	text, err := extractor.ExtractRawText(ctx, docx)
	require.NoError(t, err)
	assert.Equal(t, "text of resume.docx as application/vnd.openxmlformats-officedocument.wordprocessingml.document", text)

	doc := writeTempFile(t, "resume.doc", "mock doc")
	html, err := extractor.ConvertToHTML(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "JOHN SMITH\nSKILLS", StripHTML(html))
}

func TestTikaErrors(t *testing.T) {
	server := createMockTikaServer(t)
	defer server.Close()

	extractor := NewTikaExtractor(server.URL)
	ctx := context.Background()

	_, _, err := extractor.ExtractFromFile(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err, "文件不存在应返回错误")

	empty := writeTempFile(t, "empty.pdf", "")
	_, _, err = extractor.ExtractFromFile(ctx, empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422", "错误信息应包含Tika返回的状态码")

	unreachable := NewTikaExtractor("http://127.0.0.1:1", WithTimeout(time.Second))
	path := writeTempFile(t, "resume.pdf", "%PDF-1.5")
	_, err = unreachable.ExtractRawText(ctx, path)
	assert.Error(t, err, "Tika不可达时应返回错误")
}
