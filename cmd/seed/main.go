package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/config"
	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/gigmatch-dev/settlement/backend/internal/repository"
	"github.com/gigmatch-dev/settlement/backend/internal/seed"
	"github.com/gigmatch-dev/settlement/backend/internal/settlement"
	"github.com/gigmatch-dev/settlement/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string

	flag.IntVar(&op, "op", 0, "operation (1: random workers, 2: random schedule records for every worker, 3: import schedule records from CSV)")
	flag.IntVar(&n, "n", 5, "number of workers, or records per worker")
	flag.StringVar(&file, "file", "./internal/seed/data/schedule_records.csv", "CSV file for -op 3")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	repo := repository.NewRepository(cfg, dbpool)
	// seeding goes through the service for validation; nobody needs to be notified
	svc := settlement.NewService(cfg, repo, nil, nil, nil)
	ctx := context.Background()

	switch op {
	case 0:
		logger.Error("no operation given")
	case 1:
		if n <= 0 {
			logger.Error("invalid number of workers", "n", n)
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain, domain.RoleWorker)
			if err != nil {
				logger.Error("failed to generate worker", "error", err)
				continue
			}

			if err := repo.CreateUser(ctx, user); err != nil {
				logger.Error("failed to insert worker", "username", user.Username, "error", err)
				continue
			}
			cnt++
		}

		logger.Info("inserted workers", "count", cnt)
	case 2:
		if n <= 0 {
			logger.Error("invalid number of records", "n", n)
			return
		}

		workers, err := repo.GetActiveUsersByRole(ctx, domain.RoleWorker)
		if err != nil {
			logger.Error("failed to list workers", "error", err)
			return
		}

		cnt := 0
		for _, worker := range workers {
			for i := 0; i < n; i++ {
				if err := svc.AddRecord(ctx, utils.GenerateRandomScheduleRecord(worker.ID)); err != nil {
					logger.Error("failed to insert schedule record", "worker", worker.Username, "error", err)
					continue
				}
				cnt++
			}
		}

		logger.Info("inserted schedule records", "count", cnt, "workers", len(workers))
	case 3:
		f, err := os.Open(file)
		if err != nil {
			logger.Error("failed to open file", "file", file, "error", err)
			return
		}
		defer f.Close()

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.User.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("failed to hash seed password", "error", err)
			return
		}

		opts := seed.Options{
			EmailDomain:  cfg.Email.UserDomain,
			PasswordHash: string(passwordHash),
		}
		if _, err := seed.ImportScheduleRecords(ctx, repo, svc, opts, f); err != nil {
			logger.Error("failed to import schedule records", "error", err)
		}
	default:
		logger.Error("unknown operation", "op", op)
	}
}
