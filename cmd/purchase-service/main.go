package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-commerce/internal/auth"
	"ms-commerce/internal/catalog"
	"ms-commerce/internal/config"
	"ms-commerce/internal/database"
	discountpkg "ms-commerce/internal/discount"
	"ms-commerce/internal/inventory"
	"ms-commerce/internal/kafka"
	"ms-commerce/internal/logger"
	"ms-commerce/internal/purchase"
	purchaseapi "ms-commerce/internal/purchase/api"
	purchasedb "ms-commerce/internal/purchase/db"
	purchaseredis "ms-commerce/internal/purchase/redis"
	"ms-commerce/internal/tickets"
	ticketsapi "ms-commerce/internal/tickets/api"
	ticketsdb "ms-commerce/internal/tickets/db"
	"ms-commerce/internal/tickets/qr"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL Setup ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("failed to connect to Postgres: %v", err))
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	if err := database.Migrate(bunDB, log); err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("migration failed: %v", err))
	}

	// --- Redis Setup ---
	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("failed to connect to Redis: %v", err))
	}

	// --- Kafka Setup ---
	var publisher purchase.KafkaPublisher = kafka.Noop{Logger: log}
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.PurchaseCreated,
			cfg.Kafka.Topics.PurchaseCompleted,
			cfg.Kafka.Topics.PurchaseRefunded,
			cfg.Kafka.Topics.PurchaseCancelled,
			cfg.Kafka.Topics.TicketIssued,
			cfg.Kafka.Topics.Notifications,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("STARTUP", fmt.Sprintf("kafka topic bootstrap failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		publisher = producer
	} else {
		log.Warn("STARTUP", "kafka disabled, lifecycle events will not be published")
	}

	// --- Initialize Dependencies ---
	catalogDB := &catalog.DB{Bun: bunDB}
	discountDB := &discountpkg.DB{Bun: bunDB}
	purchaseDB := &purchasedb.DB{Bun: bunDB}
	ticketDB := &ticketsdb.DB{Bun: bunDB}

	discountEngine := discountpkg.NewEngine(discountDB, log)
	ledger := inventory.NewLedger(bunDB)
	qrGen := qr.NewGenerator(cfg.QRSecret)
	ticketService := tickets.NewTicketService(ticketDB, catalogDB, qrGen, log)
	guard := purchaseredis.NewGuard(redisClient, log)

	purchaseService := purchase.NewPurchaseService(
		purchaseDB, catalogDB, discountEngine, ledger, ticketService, publisher, guard, log,
	)

	purchaseHandler := purchaseapi.NewHandler(purchaseService, log)
	ticketHandler := ticketsapi.NewHandler(ticketService, log)

	// --- Setup Router ---
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(auth.Middleware())

	r.Post("/api/v1/purchases", purchaseHandler.CreatePurchase)
	r.Get("/api/v1/purchases", purchaseHandler.ListPurchases)
	r.Get("/api/v1/purchases/{purchaseId}", purchaseHandler.GetPurchase)
	r.Patch("/api/v1/purchases/{purchaseId}/payment-status", purchaseHandler.UpdatePaymentStatus)
	r.Post("/api/v1/purchases/{purchaseId}/refund", purchaseHandler.Refund)

	r.Post("/api/v1/tickets/scan", ticketHandler.Scan)
	r.Get("/api/v1/tickets", ticketHandler.ListMyTickets)
	r.Get("/api/v1/tickets/{ticketId}", ticketHandler.GetTicket)
	r.Post("/api/v1/tickets/{ticketId}/transfer", ticketHandler.Transfer)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("STARTUP", fmt.Sprintf("purchase service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("STARTUP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SHUTDOWN", "shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SHUTDOWN", fmt.Sprintf("server forced to shutdown: %v", err))
	}

	log.Info("SHUTDOWN", "server exited gracefully")
}
