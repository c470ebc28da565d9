package constants

import "time"

const (
	// ParserVersion 当前规则解析器版本，写入每条简历记录
	ParserVersion = "rules-1.0"

	// EventResumeParsed 简历解析完成事件，通过outbox发布
	EventResumeParsed = "resume.parsed"

	// DefaultParseCacheTTL 解析结果缓存的默认过期时间
	DefaultParseCacheTTL = 7 * 24 * time.Hour
)

// 允许上传的MIME类型
const (
	MIMETypePDF  = "application/pdf"
	MIMETypeDOC  = "application/msword"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Outbox 消息状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)
