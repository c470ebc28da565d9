package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// 各子解析器只做尽力而为的结构化，找不到结构时原样返回输入内容，不会失败

const (
	defaultSkillCategory   = "General"
	maxSkillItemLength     = 30
	maxEducationDetailLen  = 100
	minDescriptionLength   = 10
	minProjectTitleLength  = 5
	maxProjectTitleLength  = 100
	minCertificationLength = 3
)

var (
	bulletPrefixRegex   = regexp.MustCompile(`^•\s*`)
	skillPrefixRegex    = regexp.MustCompile(`^(?:•|V\s)\s*`) // 部分PDF把圆点识别成字母V
	skillSplitRegex     = regexp.MustCompile(`[,•\-|]\s*`)
	categoryOnlyRegex   = regexp.MustCompile(`^[^:]+:\s*$`)
	knownCategoryRegex  = regexp.MustCompile(`(?i)^(?:Client[-\s]?Side|Server[-\s]?Side|Front[-\s]?end|Back[-\s]?end|Build(?:ing)?\s*Tools?|Version\s*Control|IDE'?s?|Database|Framework|Library|Language):\s*$`)
	inlineCategoryRegex = regexp.MustCompile(`^([^:]+):\s*(.+)$`)
	colonSuffixRegex    = regexp.MustCompile(`:\s*$`)
	// 技能区里混入的 "May-2024" 之类的日期碎片
	monthYearRegex = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?[-\s/]\d{4}\b`)

	degreeRegex      = regexp.MustCompile(`(?i)^(?:Bachelor|Master|PhD|B\.S|B\.A|M\.S|M\.A|M\.B\.A|MBA|Higher\s*Secondary)`)
	institutionRegex = regexp.MustCompile(`(?i)(?:University|College|Institute|School)`)
	yearRangeRegex   = regexp.MustCompile(`\b(?:19|20)\d{2}(?:\s*-\s*(?:19|20)\d{2})?\b`)
	gradeRegex       = regexp.MustCompile(`(?i)GPA|Grade`)

	yearRegex       = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	durationRegex   = regexp.MustCompile(`(?i)\b(?:19|20)\d{2}(?:\s*-\s*(?:(?:19|20)\d{2}|present|current))?\b`)
	softSkillRegex  = regexp.MustCompile(`(?i)^(?:Quick\s*Learner|Adaptability|Multitasker|Interpersonal\s*Skills)$`)
	viewProjectText = "View Project"
)

// nonEmptyLines 切分并去掉空行，keep 返回false的行同样被丢弃
func nonEmptyLines(content string, keep func(string) bool) []string {
	var lines []string
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if keep != nil && !keep(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func isContactNoise(line string) bool {
	return strings.Contains(line, "@") ||
		strings.Contains(line, "linkedin") ||
		strings.Contains(line, "github")
}

func isBulletLine(line string) bool {
	return strings.HasPrefix(line, Bullet)
}

func stripBullet(line string) string {
	return bulletPrefixRegex.ReplaceAllString(line, "")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// ---------------------------------------------------------------------------
// 技能
// ---------------------------------------------------------------------------

// skillCategories 按首次出现顺序保存的技能分类
type skillCategories struct {
	order []string
	items map[string][]string
	all   []string
}

func newSkillCategories() *skillCategories {
	return &skillCategories{items: make(map[string][]string)}
}

// set 覆盖某个分类下的技能，分类位置保持首次出现时的顺序
func (c *skillCategories) set(name string, skills []string) {
	if _, ok := c.items[name]; !ok {
		c.order = append(c.order, name)
	}
	c.items[name] = skills
}

func (c *skillCategories) add(name string, skills []string) {
	if _, ok := c.items[name]; !ok {
		c.order = append(c.order, name)
	}
	c.items[name] = append(c.items[name], skills...)
	c.all = append(c.all, skills...)
}

func (c *skillCategories) meaningful() bool {
	return len(c.order) > 1 || (len(c.order) == 1 && len(c.items[c.order[0]]) > 2)
}

func (c *skillCategories) render() string {
	var out []string
	for _, name := range c.order {
		skills := c.items[name]
		if len(skills) == 0 {
			continue
		}
		out = append(out, name+": "+strings.Join(skills, ", "))
	}
	return strings.Join(out, "\n")
}

func isSkillNoise(line string) bool {
	return strings.Contains(line, "@") ||
		strings.Contains(line, "Road") ||
		strings.Contains(line, "India") ||
		leadingDigitsRegex.MatchString(line) ||
		strings.Contains(line, "linkedin") ||
		strings.Contains(line, "github") ||
		monthYearRegex.MatchString(line)
}

func splitSkills(s string, maxLen int) []string {
	var skills []string
	for _, part := range skillSplitRegex.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" || (maxLen > 0 && runeLen(part) >= maxLen) {
			continue
		}
		skills = append(skills, part)
	}
	return skills
}

// ParseSkillsSection 把技能区整理成 "分类: 技能, 技能" 的多行形式；
// 没有有效分类时返回逗号分隔的技能列表
func ParseSkillsSection(content string) string {
	categories := newSkillCategories()
	current := defaultSkillCategory

	for _, raw := range nonEmptyLines(content, func(l string) bool { return !isSkillNoise(l) }) {
		line := strings.TrimSpace(skillPrefixRegex.ReplaceAllString(raw, ""))

		switch {
		case categoryOnlyRegex.MatchString(line) || knownCategoryRegex.MatchString(line):
			current = strings.TrimSpace(colonSuffixRegex.ReplaceAllString(line, ""))
			categories.set(current, nil)
		case inlineCategoryRegex.MatchString(line):
			m := inlineCategoryRegex.FindStringSubmatch(line)
			current = strings.TrimSpace(m[1])
			categories.set(current, splitSkills(m[2], 0))
		case line != "" && !strings.Contains(line, "Basic Info"):
			if skills := splitSkills(line, maxSkillItemLength); len(skills) > 0 {
				categories.add(current, skills)
			}
		}
	}

	if categories.meaningful() {
		return categories.render()
	}
	if len(categories.all) > 0 {
		return strings.Join(categories.all, ", ")
	}
	return content
}

// ---------------------------------------------------------------------------
// 教育经历
// ---------------------------------------------------------------------------

// EducationEntry 一条教育经历
type EducationEntry struct {
	Degree      string
	Institution string
	Year        string
	GPA         string
	Details     string
}

func (e EducationEntry) empty() bool {
	return e == EducationEntry{}
}

func (e EducationEntry) render() string {
	var parts []string
	for _, f := range []string{e.Degree, e.Institution, e.Year, e.GPA, e.Details} {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, "\n")
}

// FoldEducation 逐行归并出教育条目，学位行开始一个新条目
func FoldEducation(lines []string) []EducationEntry {
	var entries []EducationEntry
	var cur EducationEntry

	for _, line := range lines {
		switch {
		case degreeRegex.MatchString(line):
			if !cur.empty() {
				entries = append(entries, cur)
			}
			cur = EducationEntry{Degree: line}
		case institutionRegex.MatchString(line) && cur.Institution == "":
			cur.Institution = line
		case yearRangeRegex.MatchString(line) && cur.Year == "":
			cur.Year = yearRangeRegex.FindString(line)
		case gradeRegex.MatchString(line):
			cur.GPA = line
		case cur.Details == "" && !strings.Contains(line, "Applications") && runeLen(line) < maxEducationDetailLen:
			cur.Details = line
		}
	}
	if !cur.empty() {
		entries = append(entries, cur)
	}
	return entries
}

// ParseEducationSection 按 学位/学校/年份/成绩/补充说明 的顺序输出每个条目，条目之间空行分隔
func ParseEducationSection(content string) string {
	lines := nonEmptyLines(content, func(l string) bool {
		return !isContactNoise(l) && !leadingDigitsRegex.MatchString(l)
	})
	entries := FoldEducation(lines)
	if len(entries) == 0 {
		return content
	}

	rendered := make([]string, 0, len(entries))
	for _, e := range entries {
		rendered = append(rendered, e.render())
	}
	return strings.Join(rendered, "\n\n")
}

// ---------------------------------------------------------------------------
// 工作经历 / 项目
// ---------------------------------------------------------------------------

// TimelineEntry 工作经历和项目共用的条目结构，项目没有时间段
type TimelineEntry struct {
	Title       string
	Duration    string
	Description []string
}

func (e TimelineEntry) empty() bool {
	return e.Title == "" && e.Duration == "" && len(e.Description) == 0
}

func (e TimelineEntry) render() string {
	var parts []string
	if e.Title != "" {
		parts = append(parts, e.Title)
	}
	if e.Duration != "" {
		parts = append(parts, e.Duration)
	}
	for _, d := range e.Description {
		parts = append(parts, Bullet+" "+d)
	}
	return strings.Join(parts, "\n")
}

func renderTimeline(entries []TimelineEntry) string {
	rendered := make([]string, 0, len(entries))
	for _, e := range entries {
		rendered = append(rendered, e.render())
	}
	return strings.Join(rendered, "\n\n")
}

// FoldExperience 逐行归并工作经历。
// 大写字母开头的非列表行在还没有职位时作为职位；含年份的行设置时间段；
// 列表行或职位之后的较长行作为描述。
func FoldExperience(lines []string) []TimelineEntry {
	var entries []TimelineEntry
	var cur TimelineEntry

	for _, line := range lines {
		switch {
		case startsUpperRegex.MatchString(line) && !isBulletLine(line) && cur.Title == "":
			if !cur.empty() {
				entries = append(entries, cur)
			}
			cur = TimelineEntry{Title: line}
		case yearRegex.MatchString(line) && cur.Duration == "":
			cur.Duration = durationRegex.FindString(line)
		case isBulletLine(line) || (cur.Title != "" && runeLen(line) > minDescriptionLength):
			cur.Description = append(cur.Description, stripBullet(line))
		}
	}
	if !cur.empty() {
		entries = append(entries, cur)
	}
	return entries
}

// ParseExperienceSection 输出 职位/时间段/描述列表，条目之间空行分隔
func ParseExperienceSection(content string) string {
	entries := FoldExperience(nonEmptyLines(content, nil))
	if len(entries) == 0 {
		return content
	}
	return renderTimeline(entries)
}

func isProjectTitle(line string, cur TimelineEntry) bool {
	n := runeLen(line)
	if isBulletLine(line) || n <= minProjectTitleLength || n >= maxProjectTitleLength {
		return false
	}
	if cur.Title != "" || strings.Contains(line, viewProjectText) {
		return false
	}
	return strings.Contains(line, "-") || strings.Contains(line, "(") || startsUpperRegex.MatchString(line)
}

// FoldProjects 逐行归并项目，标题规则比工作经历宽松，"View Project" 链接行不计入描述
func FoldProjects(lines []string) []TimelineEntry {
	var entries []TimelineEntry
	var cur TimelineEntry

	for _, line := range lines {
		switch {
		case isProjectTitle(line, cur):
			if !cur.empty() {
				entries = append(entries, cur)
			}
			cur = TimelineEntry{Title: line}
		case (isBulletLine(line) || (cur.Title != "" && runeLen(line) > minDescriptionLength)) &&
			!strings.Contains(line, viewProjectText):
			cur.Description = append(cur.Description, stripBullet(line))
		}
	}
	if !cur.empty() {
		entries = append(entries, cur)
	}
	return entries
}

// ParseProjectsSection 输出 项目名/描述列表，条目之间空行分隔
func ParseProjectsSection(content string) string {
	lines := nonEmptyLines(content, func(l string) bool {
		return !softSkillRegex.MatchString(l) && !isContactNoise(l)
	})
	entries := FoldProjects(lines)
	if len(entries) == 0 {
		return content
	}
	return renderTimeline(entries)
}

// ---------------------------------------------------------------------------
// 证书
// ---------------------------------------------------------------------------

// ParseCertificationsSection 每个证书一行，去掉列表符号
func ParseCertificationsSection(content string) string {
	var certs []string
	for _, line := range nonEmptyLines(content, nil) {
		line = stripBullet(line)
		if runeLen(line) > minCertificationLength {
			certs = append(certs, line)
		}
	}
	if len(certs) == 0 {
		return content
	}
	return strings.Join(certs, "\n")
}
