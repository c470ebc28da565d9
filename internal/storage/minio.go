package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-parser-go/internal/config"
	"resume-parser-go/internal/constants"
	"resume-parser-go/internal/tracing"
)

var minioTracer = otel.Tracer("resume-parser-go/storage/minio")

// ResumeArchive 简历归档接口：原始文件和解析文本分别写入不同的存储桶
type ResumeArchive interface {
	UploadResumeFile(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, error)
	UploadParsedText(ctx context.Context, resumeID string, text string) (string, error)
}

var _ ResumeArchive = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	logger         *log.Logger
}

// NewMinIO 创建MinIO客户端，并确保两个存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	m, err := newMinIOClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := m.ensureBucketExists(ctx, m.originalBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始简历存储桶 %s 存在失败: %w", m.originalBucket, err)
	}
	if err := m.ensureBucketExists(ctx, m.parsedBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保解析文本存储桶 %s 存在失败: %w", m.parsedBucket, err)
	}

	if cfg.OriginalFileExpireDays > 0 || cfg.ParsedTextExpireDays > 0 {
		if err := m.setupLifecycleRules(ctx); err != nil {
			// 生命周期规则不影响上传，记录后继续
			m.logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	m.logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// newMinIOClient 只创建客户端，不访问服务端
func newMinIOClient(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalBucket := cfg.OriginalsBucket
	if originalBucket == "" {
		originalBucket = "resume-originals"
	}
	parsedBucket := cfg.ParsedTextBucket
	if parsedBucket == "" {
		parsedBucket = "resume-parsed-text"
	}

	return &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: originalBucket,
		parsedBucket:   parsedBucket,
		logger:         logger,
	}, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	m.logger.Printf("[MinIO] Bucket %s does not exist, creating...", bucketName)
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	return nil
}

// setupLifecycleRules 设置对象生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", m.cfg.OriginalFileExpireDays); err != nil {
			return fmt.Errorf("为原始文件存储桶 %s 设置生命周期失败: %w", m.originalBucket, err)
		}
	}
	if m.cfg.ParsedTextExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.parsedBucket, "expire-parsed-text", m.cfg.ParsedTextExpireDays); err != nil {
			return fmt.Errorf("为解析文本存储桶 %s 设置生命周期失败: %w", m.parsedBucket, err)
		}
	}
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	return m.client.SetBucketLifecycle(ctx, bucketName, expirationLifecycle(ruleID, expiryDays))
}

// expirationLifecycle 构造按天过期的生命周期规则
func expirationLifecycle(ruleID string, expiryDays int) *lifecycle.Configuration {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return cfg
}

// UploadResumeFile 上传原始简历文件，返回对象键（不含bucket前缀）
func (m *MinIO) UploadResumeFile(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	objectName := originalObjectKey(resumeID, fileExt)
	return m.putObject(ctx, m.originalBucket, objectName, reader, fileSize, contentTypeForExt(fileExt))
}

// UploadParsedText 上传归一化后的简历文本
func (m *MinIO) UploadParsedText(ctx context.Context, resumeID string, text string) (string, error) {
	objectName := parsedTextObjectKey(resumeID)
	return m.putObject(ctx, m.parsedBucket, objectName, strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8")
}

func (m *MinIO) putObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.PutObject",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.bucket", bucket),
			attribute.String("storage.object", objectName),
			attribute.Int64("storage.size", size),
		))
	defer span.End()

	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO] Uploading: Bucket='%s', ObjectName='%s', Size=%d, ContentType='%s'", bucket, objectName, size, contentType)
	}

	info, err := m.client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", bucket, objectName, err)
	}

	if m.cfg.EnableTestLogging {
		m.logger.Printf("[MinIO] Uploaded %s/%s, ETag: %s, Size: %d", bucket, objectName, info.ETag, info.Size)
	}
	return objectName, nil
}

// originalObjectKey 例如 resumes/<id>/original.pdf
func originalObjectKey(resumeID, fileExt string) string {
	return path.Join("resumes", resumeID, "original"+strings.ToLower(fileExt))
}

func parsedTextObjectKey(resumeID string) string {
	return path.Join("resumes", resumeID, "raw_text.txt")
}

// contentTypeForExt 根据扩展名返回上传时使用的Content-Type
func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return constants.MIMETypePDF
	case ".doc":
		return constants.MIMETypeDOC
	case ".docx":
		return constants.MIMETypeDOCX
	default:
		return "application/octet-stream"
	}
}
