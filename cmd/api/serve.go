package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thekua/internal/config"
	"thekua/internal/handler"
	"thekua/internal/infra/db"
	"thekua/internal/infra/lock"
	"thekua/internal/infra/mq"
	"thekua/internal/infra/phonepe"
	infraRepo "thekua/internal/infra/repository"
	"thekua/internal/logger"
	"thekua/internal/server"
	"thekua/internal/usecase"
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *envFile)
		},
	}
}

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run AutoMigrate and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*envFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			gormDB, err := db.Connect(cfg)
			if err != nil {
				return err
			}
			if err := db.Migrate(gormDB); err != nil {
				return err
			}
			log.Info("migrated")
			return nil
		},
	}
}

func bootstrap(envFile string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(parent context.Context, envFile string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap(envFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	paymentEvents := infraRepo.NewPaymentEventGormRepository(gormDB)

	//同じ注文の照合を直列にするロック
	var locker usecase.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		pool, err := lock.NewRedisPool(cfg.RedisAddr, 10)
		if err != nil {
			return err
		}
		defer func() { _ = pool.Close() }()
		locker = lock.NewRedisLocker(pool, cfg.LockTTL)
		log.Info("using redis lock", zap.String("addr", cfg.RedisAddr))
	}

	//注文イベントの送り先
	var publisher usecase.EventPublisher = mq.NewLogPublisher(log)
	if cfg.RabbitMQURL != "" {
		p, err := mq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()
		publisher = p
		log.Info("publishing order events", zap.String("exchange", cfg.RabbitMQExchange))
	}

	gateway := phonepe.NewClient(cfg.PhonePe, log)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(txManager, paymentEvents, gateway, idGen, clock, cfg.PhonePe.RedirectURL, log)
	paymentUC := usecase.NewPaymentUsecase(txManager, paymentEvents, gateway, locker, publisher, idGen, clock, cfg.PhonePe.RedirectURL, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, publisher, clock, log)
	inventoryUC := usecase.NewInventoryUsecase(txManager, clock)
	auditUC := usecase.NewAdminAuditUsecase(txManager)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Orders:    handler.NewOrderHandler(orderUC, paymentUC),
		Payments:  handler.NewPaymentHandler(paymentUC),
		Admin:     handler.NewAdminOrderHandler(adminOrderUC),
		Inventory: handler.NewAdminInventoryHandler(inventoryUC),
		Audit:     handler.NewAdminAuditHandler(auditUC),
	})

	//Server起動
	return server.Start(ctx, e, ":"+cfg.Port, log)
}
