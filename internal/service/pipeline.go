package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/config"
	"github.com/sk4900/capacity-checker/internal/consumer"
	"github.com/sk4900/capacity-checker/internal/evaluator"
	"github.com/sk4900/capacity-checker/internal/httpapi"
	"github.com/sk4900/capacity-checker/internal/mqtt"
	"github.com/sk4900/capacity-checker/internal/notify"
	"github.com/sk4900/capacity-checker/internal/queue"
	"github.com/sk4900/capacity-checker/internal/repository"
	"github.com/sk4900/capacity-checker/internal/storage"
	"github.com/sk4900/capacity-checker/internal/vision"
)

// PipelineService 容量监控服务（整合各层）
type PipelineService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	// 各层组件
	roomRepo        *repository.RoomRepository
	recordRepo      *repository.RecordRepository
	queue           *queue.Queue
	evaluator       *evaluator.Evaluator
	ingestConsumer  *consumer.IngestConsumer
	detectConsumer  *consumer.DetectConsumer
	persistConsumer *consumer.PersistConsumer
	httpServer      *http.Server
}

// NewPipelineService 创建容量监控服务
func NewPipelineService(cfg *config.Config, logger *zap.Logger) (*PipelineService, error) {
	// 兜底号码是升级/降级通知的最终接收方，缺了整个通知路径都失效
	if cfg.Notify.FallbackPhone == "" {
		return nil, fmt.Errorf("NOTIFY_FALLBACK_PHONE is required")
	}

	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdle)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT broker
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, err
	}

	// 4. 创建 Repository 层
	roomRepo := repository.NewRoomRepository(db, logger)
	recordRepo := repository.NewRecordRepository(db, logger)

	// 5. 创建队列和外部服务客户端
	q := queue.New(redisClient, cfg.Pipeline.Streams.DeadLetter, logger)
	visionClient := vision.NewClient(cfg.Vision.BaseURL, cfg.Vision.MaxLabels, logger)
	storageClient := storage.NewClient(cfg.Storage.BaseURL, logger)
	smsClient := notify.NewSMSClient(cfg.Notify.BaseURL, logger)

	// 6. 创建 Evaluator 层
	eval := evaluator.New(roomRepo, roomRepo, smsClient, cfg.Notify.FallbackPhone, logger)

	// 7. 创建 Consumer 层。消费者名基于 MQTT ClientID（多实例部署时
	// 各实例必须配置不同的 ClientID），重启后名字不变，才能通过
	// pending 读取收回自己崩溃前未确认的消息
	ingestConsumer := consumer.NewIngestConsumer(cfg, mqttClient, q, logger)
	detectConsumer := consumer.NewDetectConsumer(cfg, q, visionClient, storageClient, cfg.MQTT.ClientID+"-detect", logger)
	persistConsumer := consumer.NewPersistConsumer(cfg, q, roomRepo, recordRepo, cfg.MQTT.ClientID+"-persist", logger)

	// 8. HTTP API
	router := httpapi.NewRouter(logger)
	router.RegisterOccupancyRoutes(httpapi.NewOccupancyHandler(eval, logger))
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	return &PipelineService{
		config:          cfg,
		db:              db,
		redisClient:     redisClient,
		mqttClient:      mqttClient,
		logger:          logger,
		roomRepo:        roomRepo,
		recordRepo:      recordRepo,
		queue:           q,
		evaluator:       eval,
		ingestConsumer:  ingestConsumer,
		detectConsumer:  detectConsumer,
		persistConsumer: persistConsumer,
		httpServer:      httpServer,
	}, nil
}

// Start 启动服务。阻塞直到 ctx 取消或某个组件启动失败
func (s *PipelineService) Start(ctx context.Context) error {
	s.logger.Info("Starting capacity checker service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("ingest_topic", s.config.Pipeline.IngestTopic),
	)

	errChan := make(chan error, 4)

	go func() {
		if err := s.ingestConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("ingest consumer: %w", err)
		}
	}()

	go func() {
		if err := s.detectConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("detect consumer: %w", err)
		}
	}()

	go func() {
		if err := s.persistConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("persist consumer: %w", err)
		}
	}()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 评估默认按需（HTTP 查询时）触发；配置轮询间隔后额外周期评估，
	// 保证没人查询时升级/降级通知照样发出
	if s.config.Pipeline.EvalInterval > 0 {
		go s.runEvalLoop(ctx)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// runEvalLoop 周期评估所有房间状态
func (s *PipelineService) runEvalLoop(ctx context.Context) {
	interval := time.Duration(s.config.Pipeline.EvalInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Periodic evaluation enabled",
		zap.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.evaluator.Evaluate(ctx); err != nil {
				s.logger.Error("Periodic evaluation failed", zap.Error(err))
			}
		}
	}
}

// Stop 停止服务
func (s *PipelineService) Stop() error {
	s.logger.Info("Stopping capacity checker service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	if err := s.ingestConsumer.Stop(); err != nil {
		s.logger.Error("Failed to stop ingest consumer", zap.Error(err))
	}
	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}
