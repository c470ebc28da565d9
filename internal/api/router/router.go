package router

import (
	"context"
	"crypto/subtle"
	"math"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"resume-parser-go/internal/api/handler"
	"resume-parser-go/internal/config"
	"resume-parser-go/internal/logger"
	"resume-parser-go/internal/ratelimit"
)

const (
	// HeaderRequestID 请求ID头，客户端未提供时由服务端生成
	HeaderRequestID = "X-Request-ID"
	// HeaderAPIKey 管理接口使用的API Key头
	HeaderAPIKey = "X-API-Key"

	// multipart 表单头部和边界的额外开销
	multipartOverhead = 64 * 1024
)

// NewServer 创建Hertz服务器：请求体大小限制、OpenTelemetry追踪、路由注册
func NewServer(cfg *config.Config, resumeHandler *handler.ResumeHandler) *server.Hertz {
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		server.WithMaxRequestBodySize(int(cfg.MaxUploadBytes())+multipartOverhead),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	RegisterRoutes(h, resumeHandler, &cfg.Server)
	return h
}

// RegisterRoutes 注册 API 路由。
// 配置了 AdminAPIKey 时 get-all 需要携带 X-API-Key；配置了 UploadRatePerMinute 时上传接口限流
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, cfg *config.ServerConfig) {
	h.Use(RequestID())

	api := h.Group("/api")
	api.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	resumes := api.Group("/resumes")
	if cfg.UploadRatePerMinute > 0 {
		limiter := ratelimit.NewTokenBucket(cfg.UploadRatePerMinute, cfg.UploadBurst)
		resumes.POST("/upload", RateLimit(limiter), resumeHandler.HandleUpload)
	} else {
		resumes.POST("/upload", resumeHandler.HandleUpload)
	}
	resumes.GET("/", resumeHandler.HandleList)
	if cfg.AdminAPIKey != "" {
		resumes.GET("/get-all", AdminKeyAuth(cfg.AdminAPIKey), resumeHandler.HandleGetAll)
	} else {
		resumes.GET("/get-all", resumeHandler.HandleGetAll)
	}
	resumes.GET("/:id", resumeHandler.HandleGetByID)
}

// RequestID 为每个请求分配ID，写入响应头和请求上下文的日志记录器
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Next(logger.WithRequestID(ctx, id))
	}
}

// AdminKeyAuth 校验 X-API-Key，不匹配时返回401
func AdminKeyAuth(expected string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAPIKey, ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(expected)) == 1, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			logger.FromContext(ctx).Warn().Err(err).Str("path", string(c.Path())).Msg("管理接口鉴权失败")
			c.AbortWithStatusJSON(consts.StatusUnauthorized, handler.ErrorResponse{Message: "Unauthorized"})
		}),
	)
}

// RateLimit 令牌不足时直接返回429，并通过 Retry-After 告知客户端等待秒数
func RateLimit(limiter *ratelimit.TokenBucket) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if limiter.Allow() {
			c.Next(ctx)
			return
		}
		retryAfter := int(math.Ceil(limiter.RetryAfter().Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		logger.FromContext(ctx).Warn().Int("retry_after_seconds", retryAfter).Msg("上传请求被限流")
		c.AbortWithStatusJSON(consts.StatusTooManyRequests, handler.ErrorResponse{Message: "Too many uploads, please retry later"})
	}
}
