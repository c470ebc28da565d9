package parser

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>SKILLS</w:t></w:r></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>Go</w:t></w:r><w:r><w:t xml:space="preserve"> and Rust</w:t></w:r></w:p>
<w:p><w:r><w:drawing/></w:r></w:p>
<w:p><w:r><w:t>Plain &amp; simple</w:t></w:r><w:r><w:tab/><w:t>text</w:t></w:r></w:p>
</w:body>
</w:document>`

// writeTestDocx 在临时目录中生成一个最小的docx文件
func writeTestDocx(t *testing.T, files map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "resume.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestDocxExtractorRawText(t *testing.T) {
	path := writeTestDocx(t, map[string]string{"word/document.xml": testDocumentXML})
	extractor := NewDocxExtractor(nil)

	text, err := extractor.ExtractRawText(context.Background(), path)
	require.NoError(t, err, "提取docx纯文本不应返回错误")
	assert.Equal(t, "SKILLS\n• Go and Rust\nPlain & simple text\n", text)
}

func TestDocxExtractorHTML(t *testing.T) {
	path := writeTestDocx(t, map[string]string{"word/document.xml": testDocumentXML})
	extractor := NewDocxExtractor(nil)

	html, err := extractor.ConvertToHTML(context.Background(), path)
	require.NoError(t, err, "docx转换HTML不应返回错误")
	assert.Equal(t, "<h2>SKILLS</h2><ul><li>Go and Rust</li></ul><p>Plain &amp; simple text</p>", html)

	assert.Equal(t, "SKILLS\nGo and Rust\nPlain & simple text", StripHTML(html))
}

const textBoxDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape">
<w:body>
<w:p>
  <w:r><w:t>JOHN SMITH Senior Engineer</w:t></w:r>
  <w:r><w:drawing><wps:txbx><w:txbxContent>
    <w:p><w:r><w:t>SKILLS</w:t></w:r></w:p>
    <w:p><w:r><w:t>Go, Rust</w:t></w:r></w:p>
  </w:txbxContent></wps:txbx></w:drawing></w:r>
  <w:r><w:t>john@example.com</w:t></w:r>
</w:p>
<w:p><w:r><w:t>EDUCATION</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestDocxExtractorTextBox(t *testing.T) {
	path := writeTestDocx(t, map[string]string{"word/document.xml": textBoxDocumentXML})
	extractor := NewDocxExtractor(nil)

	text, err := extractor.ExtractRawText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "JOHN SMITH Senior Engineer\nSKILLS\nGo, Rust\njohn@example.com\nEDUCATION\n", text,
		"文本框前的外层文本不应丢失，文本框中的段落不应重复")
}

func TestDocxExtractorInvalidFiles(t *testing.T) {
	extractor := NewDocxExtractor(nil)
	ctx := context.Background()

	notZip := filepath.Join(t.TempDir(), "resume.doc")
	require.NoError(t, os.WriteFile(notZip, []byte("legacy binary word document"), 0o644))
	_, err := extractor.ExtractRawText(ctx, notZip)
	assert.ErrorIs(t, err, ErrNotDocx, "非zip文件应返回ErrNotDocx")

	noDocument := writeTestDocx(t, map[string]string{"docProps/app.xml": "<Properties/>"})
	_, err = extractor.ConvertToHTML(ctx, noDocument)
	assert.ErrorIs(t, err, ErrNotDocx, "缺少document.xml应返回ErrNotDocx")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = extractor.ExtractRawText(cancelled, noDocument)
	assert.ErrorIs(t, err, context.Canceled)
}
