package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stakearena/backend/internal/api"
	"github.com/stakearena/backend/internal/audit"
	"github.com/stakearena/backend/internal/config"
	"github.com/stakearena/backend/internal/database"
	"github.com/stakearena/backend/internal/escrow"
	"github.com/stakearena/backend/internal/match"
	"github.com/stakearena/backend/internal/migrations"
	"github.com/stakearena/backend/internal/queue"
	"github.com/stakearena/backend/internal/redis"
	"github.com/stakearena/backend/internal/wallet"
	"github.com/stakearena/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// The platform owner must exist before any payout traffic is accepted
	owner, err := wallet.BootstrapOwner(db, cfg.OwnerDisplayName)
	if err != nil {
		log.Fatalf("Failed to bootstrap platform owner: %v", err)
	}
	log.Printf("[OWNER] Platform owner is user %d (%s)", owner.ID, owner.DisplayName)

	// Wire the settlement core
	auditLog := audit.NewLogger(db)
	engine := escrow.NewEngine(db, cfg.WinnerSharePercent)
	matches := match.NewManager(db, engine, match.NewStateRegistry(), auditLog)
	store := queue.NewStore(matches, rdb)

	// Start the stale-entry sweeper
	go store.StartSweeper(context.Background(),
		time.Duration(cfg.QueueSweepSeconds)*time.Second,
		time.Duration(cfg.QueueStaleSeconds)*time.Second)

	// Start the match event subscriber feeding the WS layer
	ws.StartMatchEventSubscriber(context.Background(), rdb)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, db, store, matches, auditLog, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting StakeArena server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
