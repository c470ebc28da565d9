package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// ErrNotDocx 文件不是有效的docx（zip中没有 word/document.xml）
var ErrNotDocx = errors.New("不是有效的docx文档")

// docxParagraph docx中的一个段落
type docxParagraph struct {
	Style  string
	IsList bool
	Text   string
}

// DocxExtractor 直接读取docx压缩包中的 word/document.xml，不依赖外部服务。
// 旧版 .doc 是二进制格式，这里无法处理，需要配置Tika。
type DocxExtractor struct {
	logger *log.Logger
}

// NewDocxExtractor 创建本地docx提取器
func NewDocxExtractor(logger *log.Logger) *DocxExtractor {
	if logger == nil {
		logger = log.New(os.Stderr, "[Docx] ", log.LstdFlags)
	}
	return &DocxExtractor{logger: logger}
}

// ExtractRawText 提取纯文本，每个段落一行
func (e *DocxExtractor) ExtractRawText(ctx context.Context, filePath string) (string, error) {
	paras, err := e.readParagraphs(ctx, filePath)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, p := range paras {
		if p.Text == "" {
			continue
		}
		if p.IsList {
			sb.WriteString(Bullet + " ")
		}
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ConvertToHTML 转换为简单HTML：标题样式输出 h2，列表段落输出 li，其余为 p；图片不输出
func (e *DocxExtractor) ConvertToHTML(ctx context.Context, filePath string) (string, error) {
	paras, err := e.readParagraphs(ctx, filePath)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, p := range paras {
		if p.Text == "" {
			continue
		}
		text := html.EscapeString(p.Text)
		switch {
		case isHeadingStyle(p.Style):
			sb.WriteString("<h2>" + text + "</h2>")
		case p.IsList:
			sb.WriteString("<ul><li>" + text + "</li></ul>")
		default:
			sb.WriteString("<p>" + text + "</p>")
		}
	}
	return sb.String(), nil
}

func isHeadingStyle(style string) bool {
	s := strings.ToLower(style)
	return strings.HasPrefix(s, "heading") || strings.HasPrefix(s, "title")
}

func (e *DocxExtractor) readParagraphs(ctx context.Context, filePath string) ([]docxParagraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开docx失败: %v", ErrNotDocx, err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, ErrNotDocx
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("打开 document.xml 失败: %w", err)
	}
	defer rc.Close()

	paras, err := parseDocumentXML(rc)
	if err != nil {
		return nil, fmt.Errorf("解析 document.xml 失败: %w", err)
	}

	e.logger.Printf("docx解析完成: %s, %d 个段落 (用时 %.2f秒)", filePath, len(paras), time.Since(startTime).Seconds())
	return paras, nil
}

// docxFrame 正在读取的段落。文本框（w:txbxContent）里的段落嵌套在外层段落中，所以用栈保存
type docxFrame struct {
	para docxParagraph
	text strings.Builder
}

// parseDocumentXML 逐个token扫描，w:t 为文本，w:tab/w:br 为空白，w:p 结束一个段落。
// 遇到嵌套段落时先输出外层已读到的文本，保证文档顺序且不重复。
// 图片（w:drawing / w:pict）中没有 w:t，自然被忽略。
func parseDocumentXML(r io.Reader) ([]docxParagraph, error) {
	dec := xml.NewDecoder(r)

	var (
		paras  []docxParagraph
		stack  []*docxFrame
		inText bool
	)
	top := func() *docxFrame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	emit := func(f *docxFrame) {
		para := f.para
		para.Text = strings.TrimSpace(f.text.String())
		paras = append(paras, para)
		f.text.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if outer := top(); outer != nil && strings.TrimSpace(outer.text.String()) != "" {
					emit(outer)
				}
				stack = append(stack, &docxFrame{})
			case "t":
				inText = true
			case "tab":
				if f := top(); f != nil {
					f.text.WriteString(" ")
				}
			case "br", "cr":
				if f := top(); f != nil {
					f.text.WriteString("\n")
				}
			case "pStyle":
				if f := top(); f != nil {
					f.para.Style = attrValue(t, "val")
				}
			case "numPr":
				if f := top(); f != nil {
					f.para.IsList = true
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if f := top(); f != nil {
					stack = stack[:len(stack)-1]
					emit(f)
				}
			}
		case xml.CharData:
			if f := top(); inText && f != nil {
				f.text.Write(t)
			}
		}
	}
	return paras, nil
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
