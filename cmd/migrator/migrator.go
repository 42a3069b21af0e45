package main

import (
	"context"
	"flag"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	pg "github.com/NordCoder/Farewatch/internal/repository/postgres"
)

// Applies the monitor_snapshots migrations. The DSN comes from db.dsn in the
// config file or DB_DSN in the environment.
func main() {
	configPath := flag.String("config", "config/farewatch.yaml", "path to the YAML config")
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.DB.DSN == "" {
		log.Fatal("DB_DSN is empty")
	}

	goose.SetBaseFS(pg.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", cfg.DB.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := goose.RunContext(context.Background(), command, db, pg.MigrationsDir, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("migrations: %s OK", command)
}
