package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"resume-parser-go/internal/types"
	"resume-parser-go/pkg/utils"
)

// ResumeRecord 一份上传并解析成功的简历
type ResumeRecord struct {
	ID                  string         `gorm:"type:char(36);primaryKey" json:"id"`
	OriginalFilename    string         `gorm:"type:varchar(255);not null" json:"originalFilename"`
	MIMEType            string         `gorm:"type:varchar(128)" json:"mimeType"`
	FileMD5             string         `gorm:"type:char(32);index:idx_resume_records_file_md5" json:"fileMd5"`
	RawText             string         `gorm:"type:longtext" json:"rawText"`
	PersonalInfo        datatypes.JSON `gorm:"type:json" json:"personalInfo"`
	Sections            datatypes.JSON `gorm:"type:json" json:"sections"`
	Metadata            datatypes.JSON `gorm:"type:json" json:"metadata"`
	ParserVersion       string         `gorm:"type:varchar(50)" json:"parserVersion"`
	OriginalFilePathOSS string         `gorm:"type:varchar(512)" json:"originalFilePath,omitempty"`
	ParsedTextPathOSS   string         `gorm:"type:varchar(512)" json:"parsedTextPath,omitempty"`
	UploadedAt          time.Time      `gorm:"type:datetime(6);index:idx_resume_records_uploaded_at,sort:desc" json:"uploadedAt"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"-"`
}

func (ResumeRecord) TableName() string {
	return "resume_records"
}

// NewResumeRecord 由解析结果构建记录，JSON列在这里一次性序列化
func NewResumeRecord(id, filename, mimeType, fileMD5, parserVersion string, parsed *types.ParsedResume, uploadedAt time.Time) (*ResumeRecord, error) {
	if parsed == nil {
		return nil, fmt.Errorf("解析结果不能为空")
	}

	personalInfo, err := utils.ToJSON(parsed.PersonalInfo)
	if err != nil {
		return nil, fmt.Errorf("序列化个人信息失败: %w", err)
	}
	sections := parsed.Sections
	if sections == nil {
		sections = map[types.SectionKind]string{}
	}
	sectionsJSON, err := utils.ToJSON(sections)
	if err != nil {
		return nil, fmt.Errorf("序列化分区失败: %w", err)
	}
	metadata, err := utils.ToJSON(parsed.Metadata)
	if err != nil {
		return nil, fmt.Errorf("序列化元数据失败: %w", err)
	}

	return &ResumeRecord{
		ID:               id,
		OriginalFilename: filename,
		MIMEType:         mimeType,
		FileMD5:          fileMD5,
		RawText:          parsed.RawText,
		PersonalInfo:     personalInfo,
		Sections:         sectionsJSON,
		Metadata:         metadata,
		ParserVersion:    parserVersion,
		UploadedAt:       uploadedAt,
	}, nil
}

// ParsedData 把JSON列还原为解析结果
func (r *ResumeRecord) ParsedData() (*types.ParsedResume, error) {
	parsed := &types.ParsedResume{RawText: r.RawText}
	if len(r.PersonalInfo) > 0 {
		if err := json.Unmarshal(r.PersonalInfo, &parsed.PersonalInfo); err != nil {
			return nil, fmt.Errorf("反序列化个人信息失败: %w", err)
		}
	}
	if len(r.Sections) > 0 {
		if err := json.Unmarshal(r.Sections, &parsed.Sections); err != nil {
			return nil, fmt.Errorf("反序列化分区失败: %w", err)
		}
	}
	if parsed.Sections == nil {
		parsed.Sections = map[types.SectionKind]string{}
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &parsed.Metadata); err != nil {
			return nil, fmt.Errorf("反序列化元数据失败: %w", err)
		}
	}
	return parsed, nil
}

// ResumeSummary 列表接口使用的简要信息，结构与上传响应一致但 parsedData 只含个人信息和元数据
type ResumeSummary struct {
	ID               string            `json:"id"`
	OriginalFilename string            `json:"originalFilename"`
	ParsedData       SummaryParsedData `json:"parsedData"`
	UploadedAt       time.Time         `json:"uploadedAt"`
}

// SummaryParsedData 列表中的解析结果子集
type SummaryParsedData struct {
	PersonalInfo datatypes.JSON `json:"personalInfo"`
	Metadata     datatypes.JSON `json:"metadata"`
}

// Summary 返回记录的简要信息
func (r *ResumeRecord) Summary() ResumeSummary {
	return ResumeSummary{
		ID:               r.ID,
		OriginalFilename: r.OriginalFilename,
		ParsedData: SummaryParsedData{
			PersonalInfo: r.PersonalInfo,
			Metadata:     r.Metadata,
		},
		UploadedAt: r.UploadedAt,
	}
}
