package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/nvinayak/pharmanet/internal/adapter/handler"
	"github.com/nvinayak/pharmanet/internal/adapter/storage"
	"github.com/nvinayak/pharmanet/internal/config"
	"github.com/nvinayak/pharmanet/internal/core/domain"
	"github.com/nvinayak/pharmanet/internal/core/service"
	"github.com/nvinayak/pharmanet/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("PHARMANET_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	orgs, err := cfg.Roles()
	if err != nil {
		log.Fatalf("invalid org config: %v", err)
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters and the transaction core
	ledger := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)
	svc := service.NewPharmaService(service.NewResolver(orgs), ledger, cache, cfg.QueueSize)

	// Start audit workers draining the committed-transaction feed
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			auditLoop(id, svc.Events(), ledger)
		}(i)
	}
	log.Printf("started %d audit workers", cfg.WorkerCount)

	// Initialize gRPC server
	grpcServer := handler.NewGRPCServer()
	handler.RegisterLedgerServer(grpcServer, handler.NewGRPCHandler(svc))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(svc, cache).Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	// Close the event feed and wait for workers to drain it
	svc.Close()
	wg.Wait()
	log.Println("audit workers stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

func auditLoop(id int, events <-chan domain.TxEvent, audit port.AuditRepository) {
	for event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := audit.RecordEvent(ctx, event); err != nil {
			// The ledger write already committed; a lost audit row is
			// recoverable from key history.
			log.Printf("worker %d: failed to record audit event %s (%s): %v", id, event.TxID, event.Function, err)
		}

		cancel()
	}
}
