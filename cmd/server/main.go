package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alkewallet/wallet-core/internal/api"
	"github.com/alkewallet/wallet-core/internal/config"
	"github.com/alkewallet/wallet-core/internal/handler"
	"github.com/alkewallet/wallet-core/internal/infrastructure/auth"
	"github.com/alkewallet/wallet-core/internal/infrastructure/kafka"
	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	"github.com/alkewallet/wallet-core/internal/notify"
	"github.com/alkewallet/wallet-core/internal/observability"
	"github.com/alkewallet/wallet-core/internal/repository"
	"github.com/alkewallet/wallet-core/internal/repository/memory"
	core "github.com/alkewallet/wallet-core/internal/repository/postgres"
	"github.com/alkewallet/wallet-core/internal/repository/redisstore"
	"github.com/alkewallet/wallet-core/internal/seed"
	service "github.com/alkewallet/wallet-core/internal/services"
	_ "github.com/lib/pq"
)

type stores struct {
	transactions repository.TransactionStore
	users        repository.UserRepository
	contacts     repository.ContactRepository
	closeDB      func() error
}

func main() {
	cfg := config.Load()

	shutdown := observability.Setup(cfg.ServiceName, cfg.MetricsAddr, cfg.LogLevel)
	defer shutdown(context.Background())

	ctx := context.Background()

	var redisClient redis.RedisClient
	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisClient = client
	} else {
		slog.Warn("REDIS_ADDR not set, sessions and caches stay in process")
		redisClient = redis.NewMemoryClient()
	}
	defer redisClient.Close()

	st, err := openStores(cfg, redisClient)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.closeDB()

	ledger, err := service.NewLedger(ctx, st.transactions, service.WithBalanceCache(redisClient))
	if err != nil {
		slog.Error("failed to load ledger", "error", err)
		os.Exit(1)
	}

	if cfg.SeedFile != "" {
		f, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			slog.Error("failed to load seed file", "path", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
		if err := seed.Apply(ctx, f, st.users, ledger); err != nil {
			slog.Error("failed to apply seed data", "error", err)
			os.Exit(1)
		}
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.NotificationsTopic)
		defer producer.Close()
		notifier = notify.NewKafkaNotifier(producer)
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	wallet := service.NewWalletService(st.users, st.contacts, ledger, redisClient, jwtService, notifier, cfg.RegistrationInitialBalance)
	transfers := service.NewTransferService(ledger, st.users, notifier)

	router := api.SetupRouter(handler.NewHandler(wallet, transfers), redisClient, jwtService)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr, "store_backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}

// openStores picks the transaction log backend. The user directory and
// contacts live in PostgreSQL when it is the backend and in memory otherwise.
func openStores(cfg *config.Config, redisClient redis.RedisClient) (*stores, error) {
	st := &stores{closeDB: func() error { return nil }}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, err
		}
		st.transactions = core.NewPostgresTransactionStore(db)
		st.users = core.NewPostgresUserRepository(db)
		st.contacts = core.NewPostgresContactRepository(db)
		st.closeDB = db.Close
		return st, nil
	case config.BackendRedis:
		st.transactions = redisstore.NewTransactionStore(redisClient, redisstore.DefaultKey)
	default:
		st.transactions = memory.NewTransactionStore()
	}
	st.users = memory.NewUserRepository()
	st.contacts = memory.NewContactRepository()
	return st, nil
}
