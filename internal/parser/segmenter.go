package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"resume-parser-go/internal/types"
)

const (
	minSectionContentLength = 5  // 分区内容（去空白后）必须超过该长度才会保留
	maxSummaryScanLines     = 15 // 兜底摘要只看前15个非空行
	minSummarySkipLength    = 10
	minSummaryStartLength   = 30
	minSummaryFollowLength  = 20
	maxSummaryFollowLines   = 4
)

var (
	wwwPrefixRegex       = regexp.MustCompile(`^www\.`)
	leadingDigitsRegex   = regexp.MustCompile(`^\d+\s+\d+`)
	contentBulletRegex   = regexp.MustCompile(`(?m)^[•\-*+][ \t]*`)
	contentNumberRegex   = regexp.MustCompile(`(?m)^\d+\.[ \t]*`)
	contentBlankRunRegex = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
	allCapsLineRegex     = regexp.MustCompile(`^[A-Z\s]+$`)
)

// sectionParsers 各结构化分区的子解析器，其余分区原样保留
var sectionParsers = map[types.SectionKind]func(string) string{
	types.SectionSkills:         ParseSkillsSection,
	types.SectionEducation:      ParseEducationSection,
	types.SectionExperience:     ParseExperienceSection,
	types.SectionProjects:       ParseProjectsSection,
	types.SectionCertifications: ParseCertificationsSection,
}

// SegmentSections 在规范化文本中检测分区标题，把标题之间的内容交给对应的子解析器处理。
// 返回的映射中不会出现空内容的分区。
func SegmentSections(text string) map[types.SectionKind]string {
	lines := strings.Split(text, "\n")
	positions := FindSectionPositions(lines)

	sections := make(map[types.SectionKind]string)
	for i, pos := range positions {
		end := len(lines)
		if i+1 < len(positions) {
			end = positions[i+1].StartIndex
		}

		content := FilterSpanLines(lines[pos.StartIndex+1 : end])
		if len(content) == 0 {
			continue
		}

		processed := strings.TrimSpace(ProcessSectionContent(pos.Kind, strings.Join(content, "\n")))
		if utf8.RuneCountInString(processed) <= minSectionContentLength {
			continue
		}
		mergeSection(sections, pos.Kind, processed)
	}

	if len(sections) == 0 {
		if summary := ExtractPotentialSummary(text); summary != "" {
			sections[types.SectionSummary] = summary
		}
	}
	return sections
}

// mergeSection 同一分区再次出现时：纯文本分区追加（空行分隔），结构化分区以后出现的为准
func mergeSection(sections map[types.SectionKind]string, kind types.SectionKind, content string) {
	existing, ok := sections[kind]
	if !ok || kind.IsStructured() {
		sections[kind] = content
		return
	}
	sections[kind] = existing + "\n\n" + content
}

// FilterSpanLines 去掉分区内像标题的行和联系方式行（这些已作为个人信息提取）
func FilterSpanLines(lines []string) []string {
	var kept []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" ||
			IsLikelySectionHeader(line) ||
			strings.Contains(line, "@") ||
			wwwPrefixRegex.MatchString(line) ||
			leadingDigitsRegex.MatchString(line) ||
			strings.Contains(line, "linkedin.com") ||
			strings.Contains(line, "github.com") {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// ProcessSectionContent 统一列表符号、去掉编号后交给对应分区的子解析器
func ProcessSectionContent(kind types.SectionKind, content string) string {
	clean := contentBulletRegex.ReplaceAllString(content, Bullet+" ")
	clean = contentNumberRegex.ReplaceAllString(clean, "")
	clean = contentBlankRunRegex.ReplaceAllString(clean, "\n\n")
	clean = strings.TrimSpace(clean)

	if parse, ok := sectionParsers[kind]; ok {
		return parse(clean)
	}
	return clean
}

// ExtractPotentialSummary 文档中没有任何分区时，尝试把开头的第一段长文本作为摘要
func ExtractPotentialSummary(text string) string {
	lines := SplitLines(text)
	limit := min(maxSummaryScanLines, len(lines))

	for i := 0; i < limit; i++ {
		line := lines[i]
		if IsLikelySectionHeader(line) ||
			strings.Contains(line, "@") ||
			threeDigitsRegex.MatchString(line) ||
			utf8.RuneCountInString(line) < minSummarySkipLength {
			continue
		}
		if utf8.RuneCountInString(line) <= minSummaryStartLength || allCapsLineRegex.MatchString(line) {
			continue
		}

		summary := []string{line}
		for j := i + 1; j < min(i+1+maxSummaryFollowLines, len(lines)); j++ {
			next := lines[j]
			if utf8.RuneCountInString(next) <= minSummaryFollowLength || IsLikelySectionHeader(next) {
				break
			}
			summary = append(summary, next)
		}
		return strings.Join(summary, " ")
	}
	return ""
}
