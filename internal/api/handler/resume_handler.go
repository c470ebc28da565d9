package handler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	googleuuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"resume-parser-go/internal/config"
	"resume-parser-go/internal/logger"
	"resume-parser-go/internal/processor"
	"resume-parser-go/internal/storage"
	"resume-parser-go/internal/storage/models"
	"resume-parser-go/internal/tracing"
	"resume-parser-go/internal/types"
)

// UploadFormField 上传接口的multipart字段名
const UploadFormField = "resume"

// ResumeService 处理器依赖的简历服务，由 processor.ResumeService 实现
type ResumeService interface {
	Upload(ctx context.Context, req processor.UploadRequest) (*models.ResumeRecord, *types.ParsedResume, error)
	List(ctx context.Context) ([]models.ResumeSummary, error)
	GetAll(ctx context.Context) ([]models.ResumeRecord, error)
	Get(ctx context.Context, id string) (*models.ResumeRecord, error)
}

// ResumeHandler 简历接口处理器
type ResumeHandler struct {
	service        ResumeService
	uploadDir      string
	maxUploadBytes int64
	allowedMIME    map[string]bool
}

// NewResumeHandler 创建简历接口处理器
func NewResumeHandler(service ResumeService, cfg *config.ServerConfig) *ResumeHandler {
	allowed := make(map[string]bool, len(cfg.AllowedMIMETypes))
	for _, t := range cfg.AllowedMIMETypes {
		allowed[strings.ToLower(t)] = true
	}
	return &ResumeHandler{
		service:        service,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: int64(cfg.MaxUploadMB) * 1024 * 1024,
		allowedMIME:    allowed,
	}
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// UploadedResume 上传成功后返回的简历
type UploadedResume struct {
	ID               string              `json:"id"`
	OriginalFilename string              `json:"originalFilename"`
	ParsedData       *types.ParsedResume `json:"parsedData"`
	UploadedAt       time.Time           `json:"uploadedAt"`
}

// UploadResponse 上传接口响应
type UploadResponse struct {
	Message string         `json:"message"`
	Resume  UploadedResume `json:"resume"`
}

// ListResponse 列表接口响应
type ListResponse struct {
	Count   int                    `json:"count"`
	Resumes []models.ResumeSummary `json:"resumes"`
}

// HandleUpload POST /api/resumes/upload
func (h *ResumeHandler) HandleUpload(ctx context.Context, c *app.RequestContext) {
	log := logger.FromContext(ctx)

	fileHeader, err := c.FormFile(UploadFormField)
	if err != nil {
		h.fail(ctx, c, consts.StatusBadRequest, "No file uploaded", err)
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		h.fail(ctx, c, consts.StatusBadRequest, "File too large",
			fmt.Errorf("文件大小 %d 超过上限 %d", fileHeader.Size, h.maxUploadBytes))
		return
	}

	mimeType := normalizeMIME(fileHeader.Header.Get("Content-Type"))
	if !h.allowedMIME[mimeType] {
		h.fail(ctx, c, consts.StatusBadRequest, "Invalid file type. Only PDF and Word documents are allowed.",
			fmt.Errorf("不允许的MIME类型 %q", mimeType))
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.fail(ctx, c, consts.StatusInternalServerError, "Error saving uploaded file", err)
		return
	}
	tempPath := filepath.Join(h.uploadDir, uniqueUploadName(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		h.fail(ctx, c, consts.StatusInternalServerError, "Error saving uploaded file", err)
		return
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", tempPath).Msg("清理临时文件失败")
		}
	}()

	record, parsed, err := h.service.Upload(ctx, processor.UploadRequest{
		FilePath:         tempPath,
		OriginalFilename: fileHeader.Filename,
		MIMEType:         mimeType,
	})
	if err != nil {
		status, message := statusForError(err)
		h.fail(ctx, c, status, message, err)
		return
	}

	c.JSON(consts.StatusCreated, UploadResponse{
		Message: "Resume uploaded and parsed successfully",
		Resume: UploadedResume{
			ID:               record.ID,
			OriginalFilename: record.OriginalFilename,
			ParsedData:       parsed,
			UploadedAt:       record.UploadedAt,
		},
	})
}

// HandleList GET /api/resumes
func (h *ResumeHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	summaries, err := h.service.List(ctx)
	if err != nil {
		h.fail(ctx, c, consts.StatusInternalServerError, "Error fetching resumes", err)
		return
	}
	c.JSON(consts.StatusOK, ListResponse{Count: len(summaries), Resumes: summaries})
}

// HandleGetAll GET /api/resumes/get-all
func (h *ResumeHandler) HandleGetAll(ctx context.Context, c *app.RequestContext) {
	records, err := h.service.GetAll(ctx)
	if err != nil {
		h.fail(ctx, c, consts.StatusInternalServerError, "Error fetching resumes", err)
		return
	}
	resumes := make([]UploadedResume, 0, len(records))
	for i := range records {
		resume, err := toUploadedResume(&records[i])
		if err != nil {
			h.fail(ctx, c, consts.StatusInternalServerError, "Error fetching resumes", err)
			return
		}
		resumes = append(resumes, resume)
	}
	c.JSON(consts.StatusOK, utils.H{"resume": resumes})
}

// HandleGetByID GET /api/resumes/:id
func (h *ResumeHandler) HandleGetByID(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if _, err := uuid.FromString(id); err != nil {
		h.fail(ctx, c, consts.StatusBadRequest, "Invalid resume id", err)
		return
	}

	record, err := h.service.Get(ctx, id)
	if errors.Is(err, storage.ErrResumeNotFound) {
		c.JSON(consts.StatusNotFound, ErrorResponse{Message: "Resume not found"})
		return
	}
	if err != nil {
		h.fail(ctx, c, consts.StatusInternalServerError, "Error fetching resume", err)
		return
	}
	resume, err := toUploadedResume(record)
	if err != nil {
		h.fail(ctx, c, consts.StatusInternalServerError, "Error fetching resume", err)
		return
	}
	c.JSON(consts.StatusOK, resume)
}

// toUploadedResume 把存储记录还原为与上传响应相同的结构
func toUploadedResume(record *models.ResumeRecord) (UploadedResume, error) {
	parsed, err := record.ParsedData()
	if err != nil {
		return UploadedResume{}, fmt.Errorf("还原简历 %s 失败: %w", record.ID, err)
	}
	return UploadedResume{
		ID:               record.ID,
		OriginalFilename: record.OriginalFilename,
		ParsedData:       parsed,
		UploadedAt:       record.UploadedAt,
	}, nil
}

// fail 写错误响应，5xx 记为错误日志，4xx 记为警告
func (h *ResumeHandler) fail(ctx context.Context, c *app.RequestContext, status int, message string, err error) {
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)

	event := logger.FromContext(ctx).Warn()
	if status >= consts.StatusInternalServerError {
		event = logger.FromContext(ctx).Error()
	}
	event.Err(err).Int("status", status).Str("path", string(c.Path())).Msg(message)

	c.JSON(status, ErrorResponse{Message: message, Error: err.Error()})
}

// statusForError 把解析错误映射为HTTP状态码
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, processor.ErrUnsupportedFormat):
		return consts.StatusBadRequest, "Unsupported file format"
	case errors.Is(err, processor.ErrUnreadableDocument):
		return consts.StatusUnprocessableEntity, "Could not extract text from the document"
	case errors.Is(err, processor.ErrDecodeFailure):
		return consts.StatusInternalServerError, "Error parsing resume"
	default:
		return consts.StatusInternalServerError, "Error processing resume"
	}
}

// normalizeMIME 去掉参数并转为小写，例如 "application/pdf; charset=binary" -> "application/pdf"
func normalizeMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}

// uniqueUploadName 生成临时文件名 resume-<unixnano>-<rand><ext>
func uniqueUploadName(originalName string) string {
	suffix := strings.ReplaceAll(googleuuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("resume-%d-%s%s", time.Now().UnixNano(), suffix, strings.ToLower(filepath.Ext(originalName)))
}
