package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Bullet 规范化后的列表项前缀
const Bullet = "•"

var (
	// 多个连续空格
	multiSpaceRegex = regexp.MustCompile(` {2,}`)
	// 行首列表标记：圆点符号，或后面不跟数字的 - * +（避免误伤 +86 / -2024 之类的内容）
	leadingMarkerRegex = regexp.MustCompile(`^(?:•|[-*+](?:[^0-9]|$))`)
)

// 各类圆点符号统一替换为 •
var bulletGlyphReplacer = strings.NewReplacer(
	"●", Bullet,
	"▪", Bullet,
	"◦", Bullet,
	"‣", Bullet,
	"⁃", Bullet,
)

// 换行、制表符、换页符和不间断空格的统一替换
var whitespaceReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\t", " ",
	"\f", "\n",
	"\u00a0", " ",
)

// Normalize 规范化从文档中提取的原始文本。
// 统一换行符，合并多余空格与空行，去除每行首尾空白，并把列表标记统一为 "• " 前缀。
// 对已经规范化的文本再次调用不会产生任何变化。
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = whitespaceReplacer.Replace(text)
	text = bulletGlyphReplacer.Replace(text)

	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))
	prevBlank := true // 丢弃开头的空行
	for _, raw := range rawLines {
		line := normalizeLine(raw)
		if line == "" {
			if prevBlank {
				continue
			}
			prevBlank = true
			lines = append(lines, "")
			continue
		}
		prevBlank = false
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// normalizeLine 处理单行：圆点后补空格、合并空格、去首尾空白、统一行首列表标记
func normalizeLine(line string) string {
	line = strings.ReplaceAll(line, Bullet, Bullet+" ")
	line = multiSpaceRegex.ReplaceAllString(line, " ")
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	if leadingMarkerRegex.MatchString(line) {
		// 标记只占第一个字符，后面的内容保留
		_, size := utf8.DecodeRuneInString(line)
		rest := strings.TrimSpace(line[size:])
		if rest == "" {
			return Bullet
		}
		return Bullet + " " + rest
	}
	return line
}

// SplitLines 把规范化文本切分成去掉首尾空白的非空行
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}
