package processor // 简历解析流水线：解码 -> 规范化 -> 个人信息提取 -> 分区切分

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-parser-go/internal/parser"
	"resume-parser-go/internal/tracing"
	"resume-parser-go/internal/types"
)

var tracer = otel.Tracer("resume-parser-go/processor")

// Components 聚合解码组件依赖，便于集中管理和测试替换
type Components struct {
	PDFExtractors []PDFExtractor // 按顺序尝试，第一个得到足够文本的生效
	WordExtractor WordExtractor
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	DecodeTimeout time.Duration    // 整个解码阶段的超时
	MinTextLength int              // 解码成功所需的最少字符数
	Debug         bool             // 是否开启调试模式
	Logger        *log.Logger      // 日志记录器
	Now           func() time.Time // 时间来源
}

// ResumeProcessor 简历解析器。
// 每次解析只处理一个文件，内部没有共享的可变状态，可以被多个请求并发使用
type ResumeProcessor struct {
	PDFExtractors []PDFExtractor
	WordExtractor WordExtractor

	Config Settings
}

// NewResumeProcessor 创建简历解析器，set 为nil时使用默认设置
func NewResumeProcessor(comp *Components, set *Settings, opts ...SettingOpt) *ResumeProcessor {
	settings := DefaultSettings()
	if set != nil {
		if set.DecodeTimeout > 0 {
			settings.DecodeTimeout = set.DecodeTimeout
		}
		if set.MinTextLength > 0 {
			settings.MinTextLength = set.MinTextLength
		}
		if set.Logger != nil {
			settings.Logger = set.Logger
		}
		if set.Now != nil {
			settings.Now = set.Now
		}
		settings.Debug = set.Debug
	}
	for _, opt := range opts {
		opt(settings)
	}

	rp := &ResumeProcessor{Config: *settings}
	if comp != nil {
		rp.PDFExtractors = comp.PDFExtractors
		rp.WordExtractor = comp.WordExtractor
	}
	return rp
}

// ParseResume 解析一份上传的简历文件。
// mimeType 不是 pdf/doc/docx 时返回 ErrUnsupportedFormat；
// 解码得到的有效字符不足时返回 ErrUnreadableDocument；解码器本身出错时返回 ErrDecodeFailure
func (rp *ResumeProcessor) ParseResume(ctx context.Context, filePath, mimeType string) (*types.ParsedResume, error) {
	fileName := filepath.Base(filePath)
	ctx, span := tracer.Start(ctx, "ResumeProcessor.ParseResume",
		trace.WithAttributes(
			attribute.String("resume.mime_type", mimeType),
			attribute.String("resume.file_name", tracing.SafeAttributeValue("file_name", fileName, tracing.DefaultMaxLength)),
		))
	defer span.End()

	format, ok := types.DetectSourceFormat(mimeType)
	if !ok {
		err := NewUnsupportedFormatError(fileName, mimeType)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	span.SetAttributes(attribute.String("resume.source_format", string(format)))

	startTime := time.Now()
	raw, err := rp.Decode(ctx, filePath, format)
	if err != nil {
		errType := tracing.ErrorTypeExternal
		if errors.Is(err, ErrUnreadableDocument) {
			errType = tracing.ErrorTypeValidation
		}
		tracing.RecordError(span, err, errType)
		rp.Config.Logger.Printf("解码失败: %v (用时 %.2f秒)", err, time.Since(startTime).Seconds())
		return nil, err
	}
	span.AddEvent("document decoded")

	text := parser.Normalize(raw)
	if utf8.RuneCountInString(text) < rp.Config.MinTextLength {
		err := NewUnreadableError(fileName, fmt.Sprintf("规范化后只有 %d 个字符", utf8.RuneCountInString(text)))
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	result := &types.ParsedResume{
		RawText:      text,
		PersonalInfo: parser.ExtractPersonalInfo(text),
		Sections:     parser.SegmentSections(text),
		Metadata: types.Metadata{
			SourceFormat: format,
			ExtractedAt:  rp.Config.Now().UTC(),
			TextLength:   utf8.RuneCountInString(text),
		},
	}

	span.SetAttributes(
		attribute.Int("resume.text_length", result.Metadata.TextLength),
		attribute.Int("resume.section_count", len(result.Sections)),
	)
	rp.Config.Logger.Printf("简历解析完成: %s, 格式 %s, %d 个字符, %d 个分区 (用时 %.2f秒)",
		fileName, format, result.Metadata.TextLength, len(result.Sections), time.Since(startTime).Seconds())
	if rp.Config.Debug {
		rp.Config.Logger.Printf("检测到的分区: %v", sectionKinds(result.Sections))
	}
	return result, nil
}

// Decode 把文档转换为原始文本，整个过程受 DecodeTimeout 约束
func (rp *ResumeProcessor) Decode(ctx context.Context, filePath string, format types.SourceFormat) (string, error) {
	fileName := filepath.Base(filePath)
	if _, err := os.Stat(filePath); err != nil {
		return "", NewDecodeError(fileName, fmt.Sprintf("读取文件失败: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, rp.Config.DecodeTimeout)
	defer cancel()

	if format.IsWord() {
		return rp.decodeWord(ctx, filePath)
	}
	return rp.decodePDF(ctx, filePath)
}

func (rp *ResumeProcessor) decodePDF(ctx context.Context, filePath string) (string, error) {
	fileName := filepath.Base(filePath)
	if len(rp.PDFExtractors) == 0 {
		return "", NewDecodeError(fileName, "未配置PDF提取器")
	}

	var lastErr error
	gotText := false
	for i, extractor := range rp.PDFExtractors {
		text, _, err := extractor.ExtractFromFile(ctx, filePath)
		if err != nil {
			if ctx.Err() != nil {
				return "", NewDecodeError(fileName, fmt.Sprintf("解码超时: %v", err))
			}
			rp.Config.Logger.Printf("PDF提取器 #%d 失败: %v", i, err)
			lastErr = err
			continue
		}
		if rp.sufficient(text) {
			return text, nil
		}
		gotText = true
		rp.Config.Logger.Printf("PDF提取器 #%d 只得到 %d 个字符，尝试下一个", i, utf8.RuneCountInString(strings.TrimSpace(text)))
	}

	if gotText || lastErr == nil {
		return "", NewUnreadableError(fileName, "PDF中没有可用的文本层")
	}
	return "", NewDecodeError(fileName, lastErr.Error())
}

// decodeStrategy Word解码策略
type decodeStrategy struct {
	name string
	run  func(ctx context.Context, filePath string) (string, error)
}

func (rp *ResumeProcessor) wordStrategies() []decodeStrategy {
	return []decodeStrategy{
		{name: "raw_text", run: rp.WordExtractor.ExtractRawText},
		{name: "html", run: func(ctx context.Context, filePath string) (string, error) {
			html, err := rp.WordExtractor.ConvertToHTML(ctx, filePath)
			if err != nil {
				return "", err
			}
			return parser.StripHTML(html), nil
		}},
	}
}

// decodeWord 依次尝试纯文本和HTML两种策略，策略出错只记录警告并继续下一个
func (rp *ResumeProcessor) decodeWord(ctx context.Context, filePath string) (string, error) {
	fileName := filepath.Base(filePath)
	if rp.WordExtractor == nil {
		return "", NewDecodeError(fileName, "未配置Word提取器")
	}

	span := trace.SpanFromContext(ctx)
	for _, strategy := range rp.wordStrategies() {
		text, err := strategy.run(ctx, filePath)
		if err != nil {
			if ctx.Err() != nil {
				return "", NewDecodeError(fileName, fmt.Sprintf("解码超时: %v", err))
			}
			rp.Config.Logger.Printf("Word解码策略 %s 失败: %v", strategy.name, err)
			continue
		}
		if rp.sufficient(text) {
			span.AddEvent("word strategy succeeded", trace.WithAttributes(attribute.String("strategy", strategy.name)))
			return text, nil
		}
		rp.Config.Logger.Printf("Word解码策略 %s 只得到 %d 个字符", strategy.name, utf8.RuneCountInString(strings.TrimSpace(text)))
	}
	return "", NewUnreadableError(fileName, "纯文本和HTML两种方式都没有得到足够的文本")
}

func (rp *ResumeProcessor) sufficient(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > rp.Config.MinTextLength
}

func sectionKinds(sections map[types.SectionKind]string) []types.SectionKind {
	kinds := make([]types.SectionKind, 0, len(sections))
	for _, k := range types.AllSectionKinds {
		if _, ok := sections[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
