package parser

import (
	"regexp"
	"strings"

	"resume-parser-go/internal/types"
)

const (
	// 姓名只在前 maxNameScanLines 个非空行中查找
	maxNameScanLines = 15
	// 电话号码至少包含的数字个数
	minPhoneDigits = 10
)

var (
	// 常见的简历标题词和技术栈词，不可能是姓名
	nameDenyRegex    = regexp.MustCompile(`(?i)^(resume|cv|curriculum|vitae|profile|contact|personal|summary|objective|about|skills|experience|education|technical|knowledge|client|server|building|version|control|ide|html|css|javascript|react|node|mongodb|mysql|aws|npm|github|gitlab|visual|studio|code)$`)
	threeDigitsRegex = regexp.MustCompile(`\d{3}`)
	digitOrAtRegex   = regexp.MustCompile(`[0-9@]`)
	nonDigitRegex    = regexp.MustCompile(`\D`)

	// 姓名的两种形式：全大写多词，或首字母大写多词（2-5个词）
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[A-Z]+(?:\s+[A-Z]+){1,4}$`),
		regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,4}$`),
	}

	emailRegex = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6})`)

	// 电话号码模式，按优先级排列
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\+\d{1,3}[-.\s]?\d{8,14})`),      // 国际格式 +CC
		regexp.MustCompile(`(\(\d{3}\)\s*\d{3}[-.\s]?\d{4})`), // (415) 555-0199
		regexp.MustCompile(`(\d{3}[-.\s]?\d{3}[-.\s]?\d{4})`), // 415-555-0199
		regexp.MustCompile(`(\d{2}\s+\d{5}\s+\d{5})`),         // 印度格式 91 99097 52650
		regexp.MustCompile(`(\d{10,12})`),                     // 连续10-12位数字
	}

	// 地址模式，按优先级排列
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+Road,\s*[A-Z][a-z]+,\s*[A-Z][a-z]+(?:-\d+)?)`),
		regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*[A-Z][a-z]+,\s*[A-Z][a-z]+(?:-\d+)?)`),
		regexp.MustCompile(`([A-Z][a-z]+,\s*[A-Z][a-z]+,\s*[A-Z]{2}\s*\d{5})`),
		regexp.MustCompile(`([A-Z][a-z]+,\s*[A-Z][a-z]+)`),
		regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*[A-Z]{2})`),
		regexp.MustCompile(`(?i)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*India(?:-\d+)?)`),
	}
	// 技术栈词，出现在地址候选中说明匹配到了技能行
	locationStopWords = []string{"Stack", "React", "Node"}

	linkedinRegex  = regexp.MustCompile(`(?i)linkedin\.com/in/([a-zA-Z0-9-]+)`)
	githubRegex    = regexp.MustCompile(`(?i)github\.com/([a-zA-Z0-9-]+)`)
	portfolioRegex = regexp.MustCompile(`(?i)(https?://(?:www\.)?[a-zA-Z0-9-]+\.[a-zA-Z]{2,}(?:/[^\s]*)?)`)
	// 个人主页不能是这些站点
	portfolioExcludes = []string{"linkedin", "github", "gmail", "yahoo", "hotmail"}
)

// ExtractPersonalInfo 从规范化文本中提取姓名、邮箱、电话、地址和社交链接。
// 各字段互相独立，未匹配的字段保持为空。
func ExtractPersonalInfo(text string) types.PersonalInfo {
	lines := SplitLines(text)
	return types.PersonalInfo{
		Name:         ExtractName(lines),
		Email:        ExtractEmail(text),
		Phone:        ExtractPhone(text),
		Location:     ExtractLocation(text),
		LinkedinURL:  ExtractLinkedin(text),
		GithubURL:    ExtractGithub(text),
		PortfolioURL: ExtractPortfolio(text),
	}
}

// ExtractName 在前15个非空行中查找第一个形似姓名的行
func ExtractName(lines []string) string {
	limit := min(maxNameScanLines, len(lines))
	for _, raw := range lines[:limit] {
		line := strings.TrimSpace(raw)
		if skipNameCandidate(line) {
			continue
		}
		if !matchesAny(namePatterns, line) || digitOrAtRegex.MatchString(line) {
			continue
		}
		if len(strings.Split(line, " ")) > 4 {
			continue
		}
		return line
	}
	return ""
}

func skipNameCandidate(line string) bool {
	if len(line) < 3 || nameDenyRegex.MatchString(line) {
		return true
	}
	if strings.Contains(line, "@") || threeDigitsRegex.MatchString(line) {
		return true
	}
	for _, marker := range []string{"http", "www", ".com", Bullet} {
		if strings.Contains(line, marker) {
			return true
		}
	}
	lower := strings.ToLower(line)
	for _, title := range []string{"developer", "stack", "web"} {
		if strings.Contains(lower, title) {
			return true
		}
	}
	return false
}

// ExtractEmail 返回第一个邮箱地址（小写）
func ExtractEmail(text string) string {
	if m := emailRegex.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// ExtractPhone 按顺序尝试电话模式，返回第一个至少含10位数字的匹配
func ExtractPhone(text string) string {
	for _, p := range phonePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if CountDigits(m[1]) >= minPhoneDigits {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// CountDigits 统计字符串中的数字个数
func CountDigits(s string) int {
	return len(nonDigitRegex.ReplaceAllString(s, ""))
}

// ExtractLocation 按顺序尝试地址模式，跳过包含技术栈词的候选
func ExtractLocation(text string) string {
	for _, p := range locationPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil || containsAny(m[1], locationStopWords) {
			continue
		}
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractLinkedin 返回规范化的 LinkedIn 主页地址
func ExtractLinkedin(text string) string {
	if m := linkedinRegex.FindStringSubmatch(text); m != nil {
		return "https://linkedin.com/in/" + m[1]
	}
	return ""
}

// ExtractGithub 返回规范化的 GitHub 主页地址
func ExtractGithub(text string) string {
	if m := githubRegex.FindStringSubmatch(text); m != nil {
		return "https://github.com/" + m[1]
	}
	return ""
}

// ExtractPortfolio 返回第一个URL，若它属于 LinkedIn/GitHub/邮箱服务商则不算作个人主页
func ExtractPortfolio(text string) string {
	m := portfolioRegex.FindStringSubmatch(text)
	if m == nil || containsAny(m[1], portfolioExcludes) {
		return ""
	}
	return m[1]
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
