package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200

	MaxSQLLength    = 500
	MaxRedisLength  = 100
	MaxHeaderLength = 100
)

// piiKeywords 属性名包含这些关键字时，属性值按个人信息掩码处理
var piiKeywords = []string{
	"email",
	"phone",
	"password",
	"address",
	"location",
	"linkedin",
	"name",
	"secret",
	"token",
	"api_key",
	"姓名",
	"地址",
}

// SafeAttributeValue 返回可以写入span的属性值：
// 敏感属性做掩码处理，其他属性超长时截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	switch {
	case length <= 1:
		return "*"
	case length == 2:
		// "张三" -> "张*"
		return string(runes[0:1]) + "*"
	case length <= 4:
		// "王小明" -> "王*明"
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	// "john@example.com" -> "jo************om"
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 截断字符串，保留首尾，中间用...连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}
