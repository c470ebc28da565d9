package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-parser-go/internal/constants"
	"resume-parser-go/internal/logger"
	"resume-parser-go/internal/storage"
	"resume-parser-go/internal/storage/models"
	"resume-parser-go/internal/tracing"
	"resume-parser-go/internal/types"
	"resume-parser-go/pkg/utils"
)

// ErrStoreNotInit 记录存储未初始化
var ErrStoreNotInit = errors.New("record store is not initialized")

// ResumeParser 把上传的文件解析为结构化简历，由 ResumeProcessor 实现
type ResumeParser interface {
	ParseResume(ctx context.Context, filePath, mimeType string) (*types.ParsedResume, error)
}

// RecordStore 简历记录存储，由 storage.MySQL 实现。记录不存在时返回 storage.ErrResumeNotFound
type RecordStore interface {
	CreateResumeWithOutbox(ctx context.Context, record *models.ResumeRecord, outbox *models.OutboxMessage) error
	ListResumeRecords(ctx context.Context) ([]models.ResumeRecord, error)
	GetResumeRecord(ctx context.Context, id string) (*models.ResumeRecord, error)
	UpdateArchivePaths(ctx context.Context, id, originalPath, parsedTextPath string) error
}

// ParseCache 按文件MD5和来源格式缓存解析结果，由 storage.Redis 实现。未命中返回 (nil, nil)
type ParseCache interface {
	GetParsedResume(ctx context.Context, fileMD5 string, format types.SourceFormat) (*types.ParsedResume, error)
	SetParsedResume(ctx context.Context, fileMD5 string, format types.SourceFormat, parsed *types.ParsedResume) error
}

// UploadRequest 一次上传的输入，FilePath 指向已落盘的临时文件
type UploadRequest struct {
	FilePath         string
	OriginalFilename string
	MIMEType         string
}

// ServiceOpt ResumeService 的可选依赖
type ServiceOpt func(*ResumeService)

// WithParseCache 启用解析结果缓存
func WithParseCache(cache ParseCache) ServiceOpt {
	return func(s *ResumeService) { s.cache = cache }
}

// WithArchive 启用原始文件和解析文本归档
func WithArchive(archive storage.ResumeArchive) ServiceOpt {
	return func(s *ResumeService) { s.archive = archive }
}

// WithEventRouting 设置 resume.parsed 事件的exchange和路由键，exchange为空时不写outbox
func WithEventRouting(exchange, routingKey string) ServiceOpt {
	return func(s *ResumeService) {
		s.exchange = exchange
		s.routingKey = routingKey
	}
}

// WithServiceClock 替换时间来源
func WithServiceClock(now func() time.Time) ServiceOpt {
	return func(s *ResumeService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator 替换记录ID生成方式
func WithIDGenerator(newID func() (string, error)) ServiceOpt {
	return func(s *ResumeService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// ResumeService 编排上传流程：解析（可命中缓存）、入库并写outbox、归档到对象存储
type ResumeService struct {
	parser     ResumeParser
	store      RecordStore
	cache      ParseCache
	archive    storage.ResumeArchive
	exchange   string
	routingKey string
	now        func() time.Time
	newID      func() (string, error)
}

// NewResumeService 创建简历服务
func NewResumeService(parser ResumeParser, store RecordStore, opts ...ServiceOpt) *ResumeService {
	s := &ResumeService{
		parser: parser,
		store:  store,
		now:    time.Now,
		newID:  newRecordID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newRecordID 生成UUIDv7，按时间有序，便于索引
func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Upload 处理一份上传的简历，返回保存后的记录和解析结果
func (s *ResumeService) Upload(ctx context.Context, req UploadRequest) (*models.ResumeRecord, *types.ParsedResume, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.Upload",
		trace.WithAttributes(
			attribute.String("resume.mime_type", req.MIMEType),
			attribute.String("resume.file_name", tracing.SafeAttributeValue("file_name", req.OriginalFilename, tracing.DefaultMaxLength)),
		))
	defer span.End()

	if s.store == nil {
		return nil, nil, ErrStoreNotInit
	}
	log := logger.FromContext(ctx)

	fileMD5, err := utils.CalculateFileMD5(req.FilePath)
	if err != nil {
		err = NewDecodeError(req.OriginalFilename, err.Error())
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("resume.file_md5", fileMD5))

	// 格式无法识别时不查缓存，交给解析器返回 ErrUnsupportedFormat
	format, known := types.DetectSourceFormat(req.MIMEType)
	var parsed *types.ParsedResume
	if known {
		parsed = s.cachedResult(ctx, fileMD5, format)
	}
	if parsed == nil {
		parsed, err = s.parser.ParseResume(ctx, req.FilePath, req.MIMEType)
		if err != nil {
			return nil, nil, err
		}
		if known {
			s.storeInCache(ctx, fileMD5, format, parsed)
		}
	} else {
		span.SetAttributes(attribute.Bool("resume.cache_hit", true))
		log.Info().Str("file_md5", fileMD5).Msg("命中解析缓存，跳过解析")
	}

	id, err := s.newID()
	if err != nil {
		return nil, nil, fmt.Errorf("生成简历ID失败: %w", err)
	}
	span.SetAttributes(attribute.String("resume.id", id))

	uploadedAt := s.now().UTC()
	record, err := models.NewResumeRecord(id, req.OriginalFilename, req.MIMEType, fileMD5, constants.ParserVersion, parsed, uploadedAt)
	if err != nil {
		return nil, nil, err
	}

	outbox, err := s.newParsedEvent(record, parsed)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.CreateResumeWithOutbox(ctx, record, outbox); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, nil, fmt.Errorf("保存简历记录失败: %w", err)
	}

	s.archiveFiles(ctx, record, req, parsed.RawText)

	log.Info().
		Str("resume_id", id).
		Str("source_format", string(parsed.Metadata.SourceFormat)).
		Int("text_length", parsed.Metadata.TextLength).
		Int("sections", len(parsed.Sections)).
		Msg("简历上传处理完成")
	return record, parsed, nil
}

// cachedResult 查询解析缓存，缓存出错只记录警告
func (s *ResumeService) cachedResult(ctx context.Context, fileMD5 string, format types.SourceFormat) *types.ParsedResume {
	if s.cache == nil {
		return nil
	}
	parsed, err := s.cache.GetParsedResume(ctx, fileMD5, format)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("file_md5", fileMD5).Msg("读取解析缓存失败")
		return nil
	}
	if parsed == nil || parsed.RawText == "" {
		return nil
	}
	return parsed
}

func (s *ResumeService) storeInCache(ctx context.Context, fileMD5 string, format types.SourceFormat, parsed *types.ParsedResume) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetParsedResume(ctx, fileMD5, format, parsed); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("file_md5", fileMD5).Msg("写入解析缓存失败")
	}
}

// newParsedEvent 构建 resume.parsed 的outbox消息，未配置exchange时返回nil
func (s *ResumeService) newParsedEvent(record *models.ResumeRecord, parsed *types.ParsedResume) (*models.OutboxMessage, error) {
	if s.exchange == "" {
		return nil, nil
	}

	kinds := make([]string, 0, len(parsed.Sections))
	for _, k := range sectionKinds(parsed.Sections) {
		kinds = append(kinds, string(k))
	}
	payload, err := json.Marshal(models.ResumeParsedEvent{
		ResumeID:         record.ID,
		OriginalFilename: record.OriginalFilename,
		FileMD5:          record.FileMD5,
		SourceFormat:     string(parsed.Metadata.SourceFormat),
		TextLength:       parsed.Metadata.TextLength,
		SectionKinds:     kinds,
		UploadedAt:       record.UploadedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}

	return &models.OutboxMessage{
		AggregateID:      record.ID,
		EventType:        constants.EventResumeParsed,
		Payload:          string(payload),
		TargetExchange:   s.exchange,
		TargetRoutingKey: s.routingKey,
		Status:           constants.OutboxStatusPending,
	}, nil
}

// archiveFiles 归档原始文件和解析文本。归档失败不影响上传结果
func (s *ResumeService) archiveFiles(ctx context.Context, record *models.ResumeRecord, req UploadRequest, rawText string) {
	if s.archive == nil {
		return
	}
	log := logger.FromContext(ctx)

	originalPath, err := s.archiveOriginal(ctx, record.ID, req)
	if err != nil {
		log.Warn().Err(err).Str("resume_id", record.ID).Msg("归档原始简历失败")
	}
	parsedPath, err := s.archive.UploadParsedText(ctx, record.ID, rawText)
	if err != nil {
		log.Warn().Err(err).Str("resume_id", record.ID).Msg("归档解析文本失败")
	}
	if originalPath == "" && parsedPath == "" {
		return
	}

	if err := s.store.UpdateArchivePaths(ctx, record.ID, originalPath, parsedPath); err != nil {
		log.Warn().Err(err).Str("resume_id", record.ID).Msg("更新归档路径失败")
		return
	}
	record.OriginalFilePathOSS = originalPath
	record.ParsedTextPathOSS = parsedPath
}

func (s *ResumeService) archiveOriginal(ctx context.Context, id string, req UploadRequest) (string, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return s.archive.UploadResumeFile(ctx, id, filepath.Ext(req.OriginalFilename), f, info.Size())
}

// List 返回按上传时间倒序的简历摘要
func (s *ResumeService) List(ctx context.Context) ([]models.ResumeSummary, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ResumeSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, records[i].Summary())
	}
	return summaries, nil
}

// GetAll 返回全部完整记录
func (s *ResumeService) GetAll(ctx context.Context) ([]models.ResumeRecord, error) {
	if s.store == nil {
		return nil, ErrStoreNotInit
	}
	records, err := s.store.ListResumeRecords(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.ResumeRecord{}
	}
	return records, nil
}

// Get 按ID返回一条记录，不存在时返回 storage.ErrResumeNotFound
func (s *ResumeService) Get(ctx context.Context, id string) (*models.ResumeRecord, error) {
	if s.store == nil {
		return nil, ErrStoreNotInit
	}
	return s.store.GetResumeRecord(ctx, id)
}
