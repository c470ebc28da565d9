package processor

import (
	"io"
	"log"
	"time"
)

// 默认配置
const (
	DefaultDecodeTimeout = 60 * time.Second
	// 解码结果去除首尾空白后必须超过该长度才算成功
	DefaultMinTextLength = 10
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// WithPDFExtractors 设置PDF提取器，按顺序尝试
func WithPDFExtractors(extractors ...PDFExtractor) ComponentOpt {
	return func(c *Components) {
		c.PDFExtractors = extractors
	}
}

// WithWordExtractor 设置Word提取器
func WithWordExtractor(extractor WordExtractor) ComponentOpt {
	return func(c *Components) {
		c.WordExtractor = extractor
	}
}

// WithDecodeTimeout 设置整个解码阶段的超时时间
func WithDecodeTimeout(timeout time.Duration) SettingOpt {
	return func(s *Settings) {
		if timeout > 0 {
			s.DecodeTimeout = timeout
		}
	}
}

// WithMinTextLength 设置解码成功所需的最少字符数
func WithMinTextLength(n int) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.MinTextLength = n
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithDebug 设置调试模式
func WithDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}

// WithClock 设置时间来源，测试中用于固定 extractedAt
func WithClock(now func() time.Time) SettingOpt {
	return func(s *Settings) {
		if now != nil {
			s.Now = now
		}
	}
}

// NewComponents 根据选项组装组件
func NewComponents(opts ...ComponentOpt) *Components {
	c := &Components{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultSettings 默认设置
func DefaultSettings() *Settings {
	return &Settings{
		DecodeTimeout: DefaultDecodeTimeout,
		MinTextLength: DefaultMinTextLength,
		Logger:        log.New(io.Discard, "", 0),
		Now:           time.Now,
	}
}
