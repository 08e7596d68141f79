package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/crm-suppression/internal/api"
	"github.com/ignite/crm-suppression/internal/config"
	"github.com/ignite/crm-suppression/internal/dncindex"
	"github.com/ignite/crm-suppression/internal/pkg/logger"
	"github.com/ignite/crm-suppression/internal/repository/postgres"
	"github.com/ignite/crm-suppression/internal/repository/redisstore"
	"github.com/ignite/crm-suppression/internal/service/dnc"
	"github.com/ignite/crm-suppression/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale/stub processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	slash := strings.Index(rest, "/")
	if slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPIIEnabled())

	// Pre-flight check: verify the target port is available
	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	log.Printf("DB URL host portion: ...@%s/...", extractHost(cfg.Database.URL))
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()
	log.Println("Database connected")

	repo := postgres.NewDNCRepo(db)
	svc := dnc.NewService(repo)

	syncInterval := time.Duration(cfg.DNC.SyncIntervalMinutes) * time.Minute
	var syncWorker *worker.DNCSyncWorker

	switch cfg.DNC.Matcher {
	case "memory":
		idx := dncindex.New()
		svc.UseMatcher(idx)
		syncWorker = worker.NewDNCSyncWorker(repo, idx, syncInterval)
		log.Printf("Matcher: in-memory snapshot (sync every %s)", syncInterval)

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			log.Fatalf("Redis ping failed (%s): %v", cfg.Redis.Addr, err)
		}
		pingCancel()
		store := redisstore.New(rdb)
		svc.UseMatcher(store)
		syncWorker = worker.NewDNCSyncWorker(repo, store, syncInterval)
		log.Printf("Matcher: Redis snapshot at %s (sync every %s)", cfg.Redis.Addr, syncInterval)

	default:
		log.Println("Matcher: Postgres (direct reads)")
	}

	if syncWorker != nil {
		syncWorker.Start()
		defer syncWorker.Stop()
	}

	router := api.SetupRoutes(api.NewHandlers(svc))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
