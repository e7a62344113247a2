package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/stakearena/backend/internal/admin"
	"github.com/stakearena/backend/internal/config"
	"github.com/stakearena/backend/internal/database"
	"github.com/stakearena/backend/internal/wallet"
)

// Seeds the platform owner account before the server takes payout
// traffic. Optionally creates an admin account first so the owner
// bootstrap promotes it instead of creating a bare system account.
func main() {
	adminName := flag.String("admin", "", "create an admin account with this display name before bootstrapping")
	flag.Parse()

	godotenv.Load()
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *adminName != "" {
		token := os.Getenv("ADMIN_TOKEN")
		if token == "" {
			log.Fatal("ADMIN_TOKEN must be set when creating an admin account")
		}
		id, err := admin.CreateAdminAccount(db, *adminName, token)
		if err != nil {
			log.Fatalf("Failed to create admin account: %v", err)
		}
		log.Printf("[SEED] Created admin account %d (%s)", id, *adminName)
	}

	owner, err := wallet.BootstrapOwner(db, cfg.OwnerDisplayName)
	if err != nil {
		log.Fatalf("Failed to bootstrap platform owner: %v", err)
	}
	log.Printf("[SEED] Platform owner is user %d (%s)", owner.ID, owner.DisplayName)
}
