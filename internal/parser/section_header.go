package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"resume-parser-go/internal/types"
)

const (
	minHeaderLength       = 3
	maxHeaderLength       = 60
	maxShortHeaderLength  = 50 // 首字母大写的标题行长度上限
	maxSentenceHeaderWord = 6  // 不像标题的行，超过该词数直接判定为正文
)

// headerRule 单个分区类型的标题匹配规则
type headerRule struct {
	kind    types.SectionKind
	pattern *regexp.Regexp
}

// compoundRule 复合关键词规则，行内同时出现全部关键词即命中
type compoundRule struct {
	kind     types.SectionKind
	keywords []string
}

var (
	punctuationRegex = regexp.MustCompile(`[^\w\s]`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)

	// 复合标题优先于普通规则
	compoundHeaderRules = []compoundRule{
		{kind: types.SectionSkills, keywords: []string{"technical", "knowledge"}},
		{kind: types.SectionExperience, keywords: []string{"certification", "course"}},
		{kind: types.SectionInterests, keywords: []string{"interpersonal", "skills"}},
	}

	// 按顺序匹配，第一个命中的规则生效
	headerRules = []headerRule{
		{types.SectionSummary, regexp.MustCompile(`^(?:summary|profile|about|overview|career\s*objective|professional\s*summary|personal\s*statement|objective|career\s*summary|professional\s*profile)$`)},
		{types.SectionSkills, regexp.MustCompile(`^(?:(?:technical\s*)?skills|competencies|technologies|expertise|core\s*competencies|technical\s*competencies|technical\s*skills|skills\s*summary|key\s*skills|relevant\s*skills|technical\s*knowledge)$`)},
		{types.SectionExperience, regexp.MustCompile(`^(?:(?:work\s*|professional\s*)?experience|employment|work\s*history|professional\s*background|career\s*history|employment\s*history|professional\s*experience|certification\s*course)$`)},
		{types.SectionEducation, regexp.MustCompile(`^(?:education|academic\s*background|qualifications|educational\s*background|degrees|academic\s*qualifications|educational\s*qualifications)$`)},
		{types.SectionCertifications, regexp.MustCompile(`^(?:certifications?|certificates?|licenses?|awards?|achievements?|honors?|professional\s*certifications?|credentials)$`)},
		{types.SectionProjects, regexp.MustCompile(`^(?:projects?|key\s*projects?|selected\s*projects?|notable\s*projects?|personal\s*projects?|relevant\s*projects?|portfolio)$`)},
		{types.SectionLanguages, regexp.MustCompile(`^(?:languages?|language\s*skills?|foreign\s*languages?)$`)},
		{types.SectionInterests, regexp.MustCompile(`^(?:interests?|hobbies|personal\s*interests?|activities|extracurricular|other\s*interests?|interpersonal\s*skills)$`)},
		{types.SectionVolunteer, regexp.MustCompile(`^(?:volunteer|volunteering|community\s*service|volunteer\s*experience|volunteer\s*work)$`)},
		{types.SectionPublications, regexp.MustCompile(`^(?:publications?|papers?|research|articles?)$`)},
	}

	// 行首出现这些词的短行被视为标题样式的行
	headerIndicatorRegex = regexp.MustCompile(`^(?:summary|skills|experience|education|projects|certifications|languages|interests|objective|profile|about|volunteer|publications|awards|achievements|honors|technical|certification|course|interpersonal|basic|info)`)
	startsUpperRegex     = regexp.MustCompile(`^[A-Z]`)
)

// CleanHeaderLine 小写、去标点、合并空白
func CleanHeaderLine(line string) string {
	clean := strings.ToLower(line)
	clean = punctuationRegex.ReplaceAllString(clean, " ")
	clean = whitespaceRegex.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}

// DetectHeader 判断一行是否为分区标题，并返回对应的分区类型
func DetectHeader(line string) (types.SectionKind, bool) {
	clean := CleanHeaderLine(line)
	if len(clean) < minHeaderLength || len(clean) > maxHeaderLength {
		return "", false
	}

	original := strings.TrimSpace(line)
	if !headerLikelihood(original) && len(strings.Split(clean, " ")) > maxSentenceHeaderWord {
		return "", false
	}

	for _, rule := range compoundHeaderRules {
		if containsAll(clean, rule.keywords) {
			return rule.kind, true
		}
	}
	for _, rule := range headerRules {
		if rule.pattern.MatchString(clean) {
			return rule.kind, true
		}
	}
	return "", false
}

// headerLikelihood 全大写、首字母大写的短行或带冒号的行更可能是标题
func headerLikelihood(line string) bool {
	length := utf8.RuneCountInString(line)
	isAllCaps := line == strings.ToUpper(line) && length > 2
	isCapitalized := startsUpperRegex.MatchString(line)
	isShort := length < maxShortHeaderLength
	hasColon := strings.Contains(line, ":")
	return isAllCaps || (isCapitalized && isShort) || hasColon
}

// IsLikelySectionHeader 粗略判断一行是否长得像标题，用于过滤分区内容和摘要候选行
func IsLikelySectionHeader(line string) bool {
	clean := punctuationRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(line)), " ")
	return headerIndicatorRegex.MatchString(clean) && utf8.RuneCountInString(line) < maxHeaderLength
}

// FindSectionPositions 扫描所有行，按文档顺序记录每个检测到的标题
func FindSectionPositions(lines []string) []types.SectionPosition {
	var positions []types.SectionPosition
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if kind, ok := DetectHeader(line); ok {
			positions = append(positions, types.SectionPosition{
				Kind:       kind,
				StartIndex: i,
				HeaderText: line,
			})
		}
	}
	return positions
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
