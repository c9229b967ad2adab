package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-hub/internal/bus"
	"wisefido-hub/internal/config"
	"wisefido-hub/internal/database"
	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/gate"
	httpapi "wisefido-hub/internal/http"
	"wisefido-hub/internal/logger"
	"wisefido-hub/internal/mqtt"
	"wisefido-hub/internal/privacy"
	"wisefido-hub/internal/queue"
	redisutil "wisefido-hub/internal/redis"
	"wisefido-hub/internal/repository"
	"wisefido-hub/internal/security"
	"wisefido-hub/internal/service"
	"wisefido-hub/internal/store"
	"wisefido-hub/internal/transport"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-hub")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis：KV（同意缓存）、幂等台账、事件镜像；不可用时全部回退内存实现
	redisClient := redisutil.NewRedisClient(&cfg.Redis)
	redisUp := redisutil.Ping(ctx, redisClient) == nil
	if !redisUp {
		log.Warn("Redis unavailable, using in-memory consent cache and idempotency ledger",
			zap.String("addr", cfg.Redis.Addr))
	}

	var kv store.KV
	var ledger repository.IdempotencyLedger
	if redisUp {
		kv = store.NewRedisKV(redisClient)
		ledger = repository.NewRedisIdempotencyLedger(redisClient, cfg.IdempotencyTTL)
	} else {
		kv = store.NewMemoryKV()
		ledger = repository.NewMemoryIdempotencyLedger(cfg.IdempotencyTTL)
	}

	// 事件总线 + 兴趣组 fanout
	eventBus := bus.NewBus(log)
	if redisUp {
		eventBus.WithMirror(redisClient, "hub:events")
	}
	fanout := bus.NewFanout(log)
	fanout.Attach(eventBus)

	// 可选 DB：连接失败回退内存 repo（联测不依赖 Postgres）
	var db *sql.DB
	var devicesRepo repository.DevicesRepository
	var shadowStore repository.ShadowStore
	var telemetryRepo repository.TelemetryRepository
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for wisefido-hub")
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory repos", zap.Error(err))
		}
	}
	if db != nil {
		devicesRepo = repository.NewPostgresDevicesRepo(db)
		shadowStore = repository.NewPostgresShadowStore(db)
		telemetryRepo = repository.NewPostgresTelemetryRepo(db)
	} else {
		devicesRepo = repository.NewMemoryDevicesRepo()
		shadowStore = repository.NewMemoryShadowStore()
		telemetryRepo = repository.NewMemoryTelemetryRepo()
	}

	// 安全模块：检测信号只发事件和日志，不自动隔离（升级策略留给运营方）
	quarantine := security.NewQuarantine(eventBus, log)
	detector := security.NewDetector(func(signal domain.IntrusionSignal) {
		eventBus.Emit(domain.SecurityEvent{
			EventMeta: domain.EventMeta{
				DeviceID:   signal.DeviceID,
				Capability: signal.Capability,
				At:         signal.At,
			},
			Signal: signal,
		})
	}, log)

	// 隐私管线
	guard := privacy.NewGuard(
		privacy.NewConsentCache(privacy.DefaultPolicy(cfg.Privacy.PolicyVersion), kv),
		privacy.MinimizeConfig{
			StripIdentifiers: cfg.Privacy.StripIdentifiers,
			NumericBucket:    cfg.Privacy.NumericBucket,
			TruncateBytes:    cfg.Privacy.TruncateBytes,
		},
		log,
	)

	// 指令队列 + 投递 worker
	commandQueue := queue.NewPriorityQueue(cfg.Queue.Capacity)

	// 可选 MQTT：指令下发走 MQTT，否则本地模拟投递
	var mqttClient *mqtt.Client
	var deliveryTransport queue.Transport
	if cfg.MQTT.Enabled {
		if c, err := mqtt.NewClient(&cfg.MQTT, log); err == nil {
			mqttClient = c
			deliveryTransport = mqtt.NewTransport(c, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log)
			log.Info("MQTT enabled for wisefido-hub", zap.String("broker", cfg.MQTT.Broker))
		} else {
			log.Warn("MQTT enabled but connection failed, using simulated delivery", zap.Error(err))
		}
	}
	if deliveryTransport == nil {
		deliveryTransport = transport.NewSimulatedTransport(cfg.Queue.SimulatedLatency, log)
	}

	worker := queue.NewWorker(commandQueue, deliveryTransport, eventBus,
		cfg.Queue.PollInterval, cfg.Queue.DeliveryTimeout, log)
	go func() {
		_ = worker.Run(ctx)
	}()

	// service 编排层
	ingestService := service.NewIngestService(
		gate.NewGate(cfg.Gate.WindowMs, cfg.Gate.Limit),
		guard,
		quarantine,
		detector,
		devicesRepo,
		telemetryRepo,
		eventBus,
		cfg.Privacy.TimestampGranularityMs,
		log,
	)
	commandService := service.NewCommandService(commandQueue, ledger, quarantine, eventBus, log)
	shadowService := service.NewShadowService(shadowStore, quarantine, eventBus, log)

	// 在线状态巡检：沉默设备置 offline 并发 device.disconnected
	sweeper := service.NewConnectivitySweeper(devicesRepo, eventBus,
		cfg.Connectivity.OfflineAfter, cfg.Connectivity.SweepInterval, log)
	go sweeper.Run(ctx)

	// 可选 MQTT 上报接入桥（与 HTTP 入口共用同一管线）
	var bridge *mqtt.TelemetryBridge
	if mqttClient != nil {
		bridge = mqtt.NewTelemetryBridge(mqttClient, ingestService, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log)
		if err := bridge.Start(); err != nil {
			log.Error("Failed to start telemetry bridge", zap.Error(err))
			bridge = nil
		}
	}

	// HTTP API
	router := httpapi.NewRouter(log)
	router.RegisterHubRoutes(
		httpapi.NewTelemetryHandler(ingestService, log),
		httpapi.NewCommandHandler(commandService, log),
		httpapi.NewShadowHandler(shadowService, log),
		httpapi.NewDevicesHandler(devicesRepo, log),
		httpapi.NewStreamHandler(fanout, cfg.AuthSecret, log),
	)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if bridge != nil {
		_ = bridge.Stop()
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = redisutil.Close(redisClient)
	if db != nil {
		_ = db.Close()
	}
}
