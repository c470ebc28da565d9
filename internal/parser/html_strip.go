package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	imgTagRegex = regexp.MustCompile(`(?i)<img[^>]*>`)
	// 块级标签结束处补换行，否则剥掉标签后整篇文档会变成一行
	blockEndRegex    = regexp.MustCompile(`(?i)(</(?:p|h[1-6]|li|div|tr|table|ul|ol)>|<br\s*/?>)`)
	horizontalSpaces = regexp.MustCompile(`[ \t\x{00a0}]+`)

	stripPolicy = bluemonday.StrictPolicy()
)

// StripHTML 把Word转换出的HTML还原成纯文本：去掉图片和所有标签，
// 解码实体（包括 &nbsp;），合并多余空白，保留段落换行
func StripHTML(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	content = imgTagRegex.ReplaceAllString(content, "")
	content = blockEndRegex.ReplaceAllString(content, "$1\n")
	text := html.UnescapeString(stripPolicy.Sanitize(content))

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpaces.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
