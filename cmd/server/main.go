package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crowdfund/internal/config"
	"crowdfund/internal/custody"
	"crowdfund/internal/handler"
	"crowdfund/internal/infrastructure/cache"
	"crowdfund/internal/infrastructure/database"
	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/infrastructure/mq"
	"crowdfund/internal/job"
	"crowdfund/internal/ledger"
	"crowdfund/internal/logger"
	"crowdfund/internal/outbox"
	"crowdfund/pkg/idgen"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ledgerLockKey = "crowdfund:ledger:lock"

func main() {
	configPath := os.Getenv("CROWDFUND_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Business.WorkerID); err != nil {
		return err
	}

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}

	// 钱包与账本
	wallet := custody.NewWallet(db, zapLogger.Named("wallet"))
	wallet.Reserve(cfg.Business.CustodyAccount)

	l := ledger.New(db, wallet, cfg.Business.CustodyAccount,
		ledger.WithLogger(zapLogger.Named("ledger")),
		ledger.WithNotifier(outbox.NewNotifier(db, cfg.Kafka.Topic.LedgerEvents)),
	)
	if err := l.Init(context.Background(), cfg.Business.Owner, cfg.Business.FeePercent); err != nil {
		return err
	}

	// 串行化锁：启用 Redis 时多实例共用，否则使用进程内锁
	lockOpts := lock.Options{
		TTL:           time.Duration(cfg.Business.LockTTLSeconds) * time.Second,
		RetryInterval: time.Duration(cfg.Business.LockRetryIntervalMs) * time.Millisecond,
		MaxRetries:    cfg.Business.LockMaxRetries,
	}
	var locker lock.Locker = lock.NewLocalLocker(lockOpts)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, ledgerLockKey, lockOpts, func(err error) {
			zapLogger.Error("账本锁在释放前已过期", zap.Error(err))
		})
	}

	// 消息投递：启用 Kafka 时投递到 broker，否则写入日志
	var producer mq.Producer = mq.NewLogProducer(zapLogger.Named("outbox"))
	if cfg.Kafka.Enabled {
		kafkaProducer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		producer = kafkaProducer
	}
	defer producer.Close()

	// 启动后台任务
	jobs, err := job.NewManager(zapLogger.Named("job"))
	if err != nil {
		return err
	}
	err = jobs.Register(
		job.NewOutboxSender(db, producer, zapLogger.Named("outbox"),
			time.Duration(cfg.Business.RelayIntervalMillis)*time.Millisecond, cfg.Business.MaxRetryCount),
		job.NewDeadlineNoticeJob(l, zapLogger.Named("deadline"),
			time.Duration(cfg.Business.DeadlineScanSeconds)*time.Second),
	)
	if err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	// 设置路由
	gin.SetMode(cfg.Server.Mode)
	router := handler.SetupRouter(l, wallet, locker, zapLogger.Named("http"))

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	zapLogger.Info("正在关闭服务...")

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("服务关闭异常", zap.Error(err))
	}

	zapLogger.Info("服务已关闭")
	return nil
}
