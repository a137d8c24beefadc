package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/app"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Only list the tables, don't migrate")
	flag.Parse()

	_ = godotenv.Load()

	if *dryRun {
		for _, m := range app.Models() {
			fmt.Printf("%T\n", m)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := database.Open(cfg.DB, logging.New(cfg.Logging))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := app.Migrate(db); err != nil {
		log.Fatalf("Failed: %v", err)
	}
	fmt.Printf("✓ %d tables migrated (%s)\n", len(app.Models()), cfg.DB.Driver)
}
