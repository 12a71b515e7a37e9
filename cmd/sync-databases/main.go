package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/config"
	"ms-booking/internal/dbsync"
	"ms-booking/internal/logger"
)

// sync-databases copies rows that exist on the mirror but not on the primary,
// table by table, then realigns the primary's id sequences. Run it manually
// after a failover window, or let the db router trigger it on recovery.
func main() {
	dryRun := flag.Bool("dry-run", false, "report missing rows without copying anything")
	app := flag.String("app", "", "restrict the run to one app's tables (accounts, catalog, booking)")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	primary, err := openDB(cfg.Database.PrimaryDSN)
	if err != nil {
		log.Error("DATABASE", fmt.Sprintf("primary: %v", err))
		os.Exit(1)
	}
	defer primary.Close()

	mirror, err := openDB(cfg.Database.MirrorDSN)
	if err != nil {
		log.Error("DATABASE", fmt.Sprintf("mirror: %v", err))
		os.Exit(1)
	}
	defer mirror.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("DATABASE", fmt.Sprintf("redis: %v", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	lock := &dbsync.Lock{Client: redisClient, TTL: cfg.Sync.LockTTL}
	syncer := dbsync.NewSyncer(primary, mirror, lock, log)

	report, err := syncer.Run(ctx, dbsync.Options{DryRun: *dryRun, App: *app})
	if err != nil {
		if err == dbsync.ErrSyncInProgress {
			log.Warn("DB_SYNC", "another sync run holds the lock, nothing to do")
			os.Exit(0)
		}
		log.Error("DB_SYNC", fmt.Sprintf("sync failed: %v", err))
		os.Exit(1)
	}

	printReport(report)
	if report.Skipped > 0 {
		log.Warn("DB_SYNC", fmt.Sprintf("%d rows could not be copied, rerun after inspecting them", report.Skipped))
	}
	os.Exit(0)
}

func openDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := sqldb.Ping(); err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func printReport(report *dbsync.Report) {
	mode := "sync"
	if report.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("\n=== Database %s report ===\n", mode)
	fmt.Printf("Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Finished: %s\n", report.FinishedAt.Format("2006-01-02 15:04:05"))
	for _, t := range report.Tables {
		fmt.Printf("  %-20s missing=%-5d copied=%-5d skipped=%d\n", t.Table, t.Missing, t.Copied, t.Skipped)
		if len(t.SampleIDs) > 0 {
			fmt.Printf("  %-20s sample ids: %v\n", "", t.SampleIDs)
		}
	}
	fmt.Printf("Total: copied=%d skipped=%d\n", report.Copied, report.Skipped)
}
