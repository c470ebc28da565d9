package types

import (
	"strings"
	"time"
)

// SourceFormat 上传文档的格式
type SourceFormat string

const (
	SourceFormatPDF  SourceFormat = "pdf"
	SourceFormatDOC  SourceFormat = "doc"
	SourceFormatDOCX SourceFormat = "docx"
)

// IsWord 是否为Word文档（doc或docx）
func (f SourceFormat) IsWord() bool {
	return f == SourceFormatDOC || f == SourceFormatDOCX
}

// DetectSourceFormat 根据MIME类型判断文档格式，无法识别时返回false
func DetectSourceFormat(mimeType string) (SourceFormat, bool) {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case m == "":
		return "", false
	case strings.Contains(m, "pdf"):
		return SourceFormatPDF, true
	case strings.Contains(m, "msword"):
		return SourceFormatDOC, true
	case strings.Contains(m, "wordprocessingml"),
		strings.Contains(m, "openxmlformats"),
		strings.Contains(m, "docx"),
		strings.Contains(m, "word"):
		return SourceFormatDOCX, true
	}
	return "", false
}

// SectionKind 简历分区类型（封闭枚举）
type SectionKind string

const (
	SectionSummary        SectionKind = "summary"
	SectionSkills         SectionKind = "skills"
	SectionExperience     SectionKind = "experience"
	SectionEducation      SectionKind = "education"
	SectionCertifications SectionKind = "certifications"
	SectionProjects       SectionKind = "projects"
	SectionLanguages      SectionKind = "languages"
	SectionInterests      SectionKind = "interests"
	SectionVolunteer      SectionKind = "volunteer"
	SectionPublications   SectionKind = "publications"
)

// AllSectionKinds 按检测优先级排列的全部分区类型
var AllSectionKinds = []SectionKind{
	SectionSummary,
	SectionSkills,
	SectionExperience,
	SectionEducation,
	SectionCertifications,
	SectionProjects,
	SectionLanguages,
	SectionInterests,
	SectionVolunteer,
	SectionPublications,
}

// IsStructured 该分区是否由结构化子解析器处理
func (k SectionKind) IsStructured() bool {
	switch k {
	case SectionSkills, SectionEducation, SectionExperience, SectionProjects, SectionCertifications:
		return true
	}
	return false
}

// PersonalInfo 从简历中提取的个人信息，只有匹配成功的字段才会被设置
type PersonalInfo struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Location     string `json:"location,omitempty"`
	LinkedinURL  string `json:"linkedinUrl,omitempty"`
	GithubURL    string `json:"githubUrl,omitempty"`
	PortfolioURL string `json:"portfolioUrl,omitempty"`
}

// IsEmpty 是否没有提取到任何字段
func (p PersonalInfo) IsEmpty() bool {
	return p == PersonalInfo{}
}

// Metadata 解析元数据
type Metadata struct {
	SourceFormat SourceFormat `json:"sourceFormat"`
	ExtractedAt  time.Time    `json:"extractedAt"`
	TextLength   int          `json:"textLength"`
}

// ParsedResume 一次成功解析的完整结果，创建后不再修改
type ParsedResume struct {
	RawText      string                 `json:"rawText"`
	PersonalInfo PersonalInfo           `json:"personalInfo"`
	Sections     map[SectionKind]string `json:"sections"`
	Metadata     Metadata               `json:"metadata"`
}

// SectionPosition 分段过程中记录的标题位置，仅在解析期间使用
type SectionPosition struct {
	Kind       SectionKind
	StartIndex int
	HeaderText string
}
