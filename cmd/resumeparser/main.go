package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-extractor/internal/api/handler"
	"resume-extractor/internal/api/router"
	"resume-extractor/internal/config"
	"resume-extractor/internal/logger"
	"resume-extractor/internal/ner"
	"resume-extractor/internal/outbox"
	"resume-extractor/internal/processor"
	"resume-extractor/internal/storage"
	"resume-extractor/internal/tracing"
)

func main() {
	var (
		configPath string
		filePath   string
		serve      bool
		initConfig string
	)
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时按默认位置查找")
	pflag.StringVarP(&filePath, "file", "f", "", "解析单个本地简历文件并输出 JSON")
	pflag.BoolVar(&serve, "serve", false, "启动 HTTP 服务（未指定 --file 时默认启动）")
	pflag.StringVar(&initConfig, "init-config", "", "生成示例配置文件后退出")
	pflag.Parse()

	if initConfig != "" {
		if err := config.CreateSampleConfig(initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "生成示例配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("示例配置已写入 %s\n", initConfig)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	initLogger(cfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	formats, err := processor.BuildFormats(ctx, cfg.Parser)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文档解析器失败")
	}
	recognizer, err := ner.NewRecognizer(cfg.NER)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化实体识别器失败")
	}
	resumeProcessor, err := processor.NewResumeProcessor(formats, recognizer)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化简历解析器失败")
	}

	if filePath != "" && !serve {
		if err := parseFile(ctx, resumeProcessor, filePath); err != nil {
			logger.Error().Err(err).Str("file", filePath).Msg("解析失败")
			os.Exit(1)
		}
		return
	}

	runServer(ctx, cfg, resumeProcessor)
}

func initLogger(cfg config.LoggerConfig) {
	logger.Init(logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})

	hlog.SetLogger(hertzadapter.From(logger.Logger))
	switch cfg.Level {
	case "debug":
		hlog.SetLevel(hlog.LevelDebug)
	case "warn":
		hlog.SetLevel(hlog.LevelWarn)
	case "error":
		hlog.SetLevel(hlog.LevelError)
	default:
		hlog.SetLevel(hlog.LevelInfo)
	}
}

func parseFile(ctx context.Context, p *processor.ResumeProcessor, path string) error {
	result, err := p.ParseFile(ctx, path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runServer(ctx context.Context, cfg *config.Config, p *processor.ResumeProcessor) {
	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	opts := processor.StorageOptions(storageManager)
	if cfg.RabbitMQ.UseOutbox && storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		exchange, routingKey := storageManager.RabbitMQ.ParsedEventTarget()
		opts = append(opts, processor.WithOutbox(storageManager.MySQL, exchange, routingKey))

		relay := outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ,
			outbox.WithPollingInterval(time.Duration(cfg.RabbitMQ.OutboxPollSecs)*time.Second))
		relay.Start()
		defer relay.Stop()
	}

	service, err := processor.NewResumeService(p, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化简历服务失败")
	}

	h := router.NewServer(cfg.Server)
	router.RegisterRoutes(h, handler.NewResumeHandler(service, cfg.Server.MaxUploadMB), cfg.Server)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("关闭链路追踪失败")
	}
	logger.Info().Msg("优雅退出完成")
}
