package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/config"
	"github.com/sk4900/capacity-checker/internal/schema"
)

func main() {
	reset := flag.Bool("reset", false, "drop existing tables before creating")
	seed := flag.Bool("seed", true, "write initial room and admin")
	adminPhone := flag.String("admin-phone", "", "phone number of the seeded room admin (E.164)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	ctx := context.Background()

	if err := schema.Create(ctx, db, *reset, logger); err != nil {
		logger.Fatal("Failed to create schema", zap.Error(err))
	}

	if *seed {
		if err := schema.Seed(ctx, db, *adminPhone, logger); err != nil {
			logger.Fatal("Failed to seed data", zap.Error(err))
		}
	}
}
