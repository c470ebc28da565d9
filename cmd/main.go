package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"resume-parser-go/internal/api/handler"
	"resume-parser-go/internal/api/router"
	"resume-parser-go/internal/config"
	appLogger "resume-parser-go/internal/logger"
	"resume-parser-go/internal/outbox"
	"resume-parser-go/internal/parser"
	"resume-parser-go/internal/processor"
	"resume-parser-go/internal/storage"
	"resume-parser-go/internal/tracing"
)

func main() {
	var configPath, initConfig string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时依次查找 config.yaml 和 config/config.yaml")
	pflag.StringVar(&initConfig, "init-config", "", "生成示例配置文件到指定路径后退出")
	pflag.Parse()

	if initConfig != "" {
		if err := config.CreateSampleConfig(initConfig); err != nil {
			log.Fatalf("生成示例配置失败: %v", err)
		}
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logFile, err := appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	hlog.SetLogger(hertzadapter.From(appLogger.Logger))
	if cfg.Logger.Level == "debug" {
		hlog.SetLevel(hlog.LevelDebug)
	}
	hlog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		hlog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		hlog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	hlog.Info("存储服务初始化成功")

	var messageRelay *outbox.MessageRelay
	if storageManager.RabbitMQ != nil {
		relayLogger := log.New(appLogger.Logger, "[MessageRelay] ", log.LstdFlags|log.Lshortfile)
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, relayLogger,
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.OutboxPollInterval, 2*time.Second)),
			outbox.WithBatchSize(cfg.RabbitMQ.OutboxBatchSize),
		)
		messageRelay.Start()
		hlog.Info("消息中继服务已启动")
	}

	resumeProcessor, err := buildProcessor(ctx, cfg)
	if err != nil {
		hlog.Fatalf("初始化简历解析器失败: %v", err)
	}
	hlog.Infof("简历解析器初始化成功, PDF解码器: %s, Word解码器: %s", cfg.Parser.PDFBackend, cfg.Parser.WordBackend)

	serviceOpts := []processor.ServiceOpt{}
	if storageManager.Redis != nil {
		serviceOpts = append(serviceOpts, processor.WithParseCache(storageManager.Redis))
	}
	if storageManager.MinIO != nil {
		serviceOpts = append(serviceOpts, processor.WithArchive(storageManager.MinIO))
	}
	if storageManager.RabbitMQ != nil {
		serviceOpts = append(serviceOpts, processor.WithEventRouting(cfg.RabbitMQ.ResumeEventsExchange, cfg.RabbitMQ.ParsedRoutingKey))
	}
	resumeService := processor.NewResumeService(resumeProcessor, storageManager.MySQL, serviceOpts...)

	if err := os.MkdirAll(cfg.Server.UploadDir, 0755); err != nil {
		hlog.Fatalf("创建上传目录失败: %v", err)
	}
	resumeHandler := handler.NewResumeHandler(resumeService, &cfg.Server)

	h := router.NewServer(cfg, resumeHandler)
	hlog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			hlog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	hlog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		hlog.Errorf("服务器关闭失败: %v", err)
	}

	if messageRelay != nil {
		messageRelay.Stop()
		hlog.Info("消息中继服务已停止")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		hlog.Errorf("关闭链路追踪失败: %v", err)
	}
	hlog.Info("优雅退出完成")
}

// buildProcessor 按配置组装解码器链：主PDF解码器失败后回退到本地PDF解码器
func buildProcessor(ctx context.Context, cfg *config.Config) (*processor.ResumeProcessor, error) {
	debug := cfg.Parser.Debug || cfg.Logger.Level == "debug"
	// 提取器的逐步输出只在调试时需要，处理器的汇总日志始终输出
	extractorLevel := zerolog.DebugLevel
	if debug {
		extractorLevel = zerolog.InfoLevel
	}
	newLogger := func(component string) *log.Logger {
		return appLogger.NewStdLogger(component, extractorLevel)
	}

	var tika *parser.TikaExtractor
	if cfg.Tika.ServerURL != "" {
		tika = parser.NewTikaExtractor(cfg.Tika.ServerURL,
			parser.WithTimeout(time.Duration(cfg.Tika.Timeout)*time.Second),
			parser.WithMetadata(cfg.Tika.ExtractMetadata),
			parser.WithTikaLogger(newLogger("TikaExtractor")),
		)
	}

	var pdfExtractors []processor.PDFExtractor
	switch cfg.Parser.PDFBackend {
	case "tika":
		pdfExtractors = append(pdfExtractors, tika)
	default:
		eino, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(newLogger("EinoPDF")))
		if err != nil {
			return nil, err
		}
		pdfExtractors = append(pdfExtractors, eino)
	}
	pdfExtractors = append(pdfExtractors, parser.NewLocalPDFExtractor(newLogger("LocalPDF")))

	var wordExtractor processor.WordExtractor
	if cfg.Parser.WordBackend == "tika" {
		wordExtractor = tika
	} else {
		wordExtractor = parser.NewDocxExtractor(newLogger("DocxExtractor"))
	}

	components := processor.NewComponents(
		processor.WithPDFExtractors(pdfExtractors...),
		processor.WithWordExtractor(wordExtractor),
	)
	return processor.NewResumeProcessor(components, nil,
		processor.WithDecodeTimeout(cfg.DecodeTimeout()),
		processor.WithMinTextLength(cfg.Parser.MinTextLength),
		processor.WithLogger(appLogger.NewStdLogger("ResumeProcessor", zerolog.InfoLevel)),
		processor.WithDebug(debug),
	), nil
}
