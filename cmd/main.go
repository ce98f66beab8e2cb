package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/cache"
	"github.com/Leganyst/clinic-scheduling/internal/config"
	"github.com/Leganyst/clinic-scheduling/internal/db"
	"github.com/Leganyst/clinic-scheduling/internal/grpcapi"
	"github.com/Leganyst/clinic-scheduling/internal/httpapi"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/notify"
	"github.com/Leganyst/clinic-scheduling/internal/observability"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
	"github.com/Leganyst/clinic-scheduling/internal/service"
	"github.com/Leganyst/clinic-scheduling/internal/sweeper"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-scheduling",
		Short:        "Clinic appointment scheduling core",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLogger(cfg.ServiceName, cfg.Env)

			gormDB, closeDB, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := model.AutoMigrate(gormDB); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			log.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func openDB(cfg *config.Config) (*gorm.DB, func(), error) {
	gormDB, err := db.NewGormDB(&cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("init db: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("sql DB: %w", err)
	}
	return gormDB, func() { _ = sqlDB.Close() }, nil
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Конфиг и логгер.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.ServiceName, cfg.Env)

	// 2. Трейсы и метрики.
	shutdownOTEL, err := observability.Setup(ctx, cfg.ServiceName, version, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()
	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// 3. БД и миграции.
	gormDB, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// 4. Ядро расписания.
	store := repository.NewGormStore(gormDB, cfg.DB.TxMaxRetries)
	builder := notify.NewBuilder(repository.NewGormProviderRepository(gormDB))
	opts := []service.Option{
		service.WithAuditSink(service.NewGormAuditSink(repository.NewGormEventRepository(gormDB))),
		service.WithMetrics(metrics),
		service.WithMeetingBaseURL(cfg.MeetingBaseURL),
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts,
			service.WithNotifier(notify.NewRedisNotifier(rdb, notify.DefaultChannel, builder)),
			service.WithSlotCache(cache.NewRedisSlotCache(rdb, cfg.SlotCacheTTL())),
		)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis notifications and slot cache enabled")
	} else {
		opts = append(opts, service.WithNotifier(notify.NewLogNotifier(log.Logger, builder)))
	}

	sched := service.NewScheduler(store, repository.NewGormDirectory(gormDB), opts...)
	defer sched.Wait()

	// 5. Свипер зависших встреч.
	sw, err := sweeper.New(cfg.SweeperSchedule, sched, cfg.SessionGrace(), log.Logger)
	if err != nil {
		return err
	}
	if sw != nil {
		sw.Start()
		log.Info().Str("schedule", cfg.SweeperSchedule).Msg("session sweeper started")
	}

	// 6. HTTP и gRPC.
	e := httpapi.New(sched, httpapi.Options{JWTSecret: cfg.AuthJWTSecret, Metrics: metrics})
	grpcServer := grpcapi.NewServer(sched)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	// 7. Грейсфул-шатдаун по сигналу или падению сервера.
	stop, cancelSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancelSignals()

	var serveErr error
	select {
	case <-stop.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server failed, shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sw != nil {
		sw.Stop(sctx)
	}
	if err := e.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcServer.GracefulStop()
	return serveErr
}
