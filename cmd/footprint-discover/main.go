package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshsymonds/footprint/internal/account"
	"github.com/joshsymonds/footprint/internal/discovery"
	"github.com/joshsymonds/footprint/internal/extract"
	"github.com/joshsymonds/footprint/internal/obs"
	"github.com/joshsymonds/footprint/internal/rate"
	"github.com/joshsymonds/footprint/internal/report"
	"github.com/joshsymonds/footprint/internal/runtime"
	"github.com/joshsymonds/footprint/internal/store/postgres"
)

type discoverConfig struct {
	cfgDir      string
	user        string
	months      int
	limit       int
	pageSize    int
	rps         int
	registrable bool
	dryRun      bool
	dsn         string
	migrate     bool
	categories  string
	jsonOut     string
	metricsFile string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("footprint-discover failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() discoverConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.footprint"), "directory holding credentials.json and token.json")
	user := flag.String("user", "", "user id that owns the discovered accounts")
	months := flag.Int("months", discovery.DefaultMonths, "lookback window in months")
	limit := flag.Int("limit", discovery.DefaultLimit, "maximum messages to inspect")
	pageSize := flag.Int("page-size", discovery.MaxPageSize, "Gmail list page size (<=500)")
	rps := flag.Int("rps", 4, "max Gmail requests per second (0 disables limiting)")
	registrable := flag.Bool("registrable", false, "group subdomains under their registrable domain")
	dryRun := flag.Bool("dry-run", false, "aggregate without writing accounts")
	dsn := flag.String("dsn", runtime.DefaultDSN(), "Postgres DSN (default $DATABASE_URL)")
	migrate := flag.Bool("migrate", false, "apply schema migrations before running")
	categories := flag.String("categories", "", "YAML file overriding the category cues")
	jsonOut := flag.String("json", "", "write JSON report to path")
	metricsFile := flag.String("metrics-file", "", "write Prometheus textfile metrics to path")
	flag.Parse()

	return discoverConfig{
		cfgDir:      *cfgDir,
		user:        *user,
		months:      *months,
		limit:       *limit,
		pageSize:    *pageSize,
		rps:         *rps,
		registrable: *registrable,
		dryRun:      *dryRun,
		dsn:         *dsn,
		migrate:     *migrate,
		categories:  *categories,
		jsonOut:     *jsonOut,
		metricsFile: *metricsFile,
	}
}

func run(cfg discoverConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.user == "" {
		return fmt.Errorf("-user is required")
	}
	logger := runtime.DefaultLogger()

	rules, err := loadRules(cfg.categories)
	if err != nil {
		return err
	}

	client, err := runtime.NewGmailClient(ctx, cfg.cfgDir)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	var limiter rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewTokenBucket(cfg.rps)
	}

	var store account.Store = account.NewMemoryStore()
	if !cfg.dryRun {
		var db *sql.DB
		db, err = runtime.OpenDatabase(ctx, cfg.dsn, cfg.migrate)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		store = postgres.NewAccountStore(db)
	}

	reg := prometheus.NewRegistry()
	metrics, err := obs.NewMetrics(reg)
	if err != nil {
		return err
	}

	svc := discovery.NewService(client, limiter, store, logger)
	svc.Metrics = metrics
	svc.Rules = rules
	rep, err := svc.Run(ctx, cfg.user, discovery.Options{
		Months:             cfg.months,
		Limit:              cfg.limit,
		PageSize:           cfg.pageSize,
		GroupByRegistrable: cfg.registrable,
		DryRun:             cfg.dryRun,
	})
	if err != nil {
		return fmt.Errorf("run discovery: %w", err)
	}

	if printErr := report.PrintDiscovery(rep, os.Stdout); printErr != nil {
		return fmt.Errorf("print report: %w", printErr)
	}
	if cfg.jsonOut != "" {
		if writeErr := report.WriteJSON(rep, cfg.jsonOut); writeErr != nil {
			return fmt.Errorf("write json: %w", writeErr)
		}
	}
	if metricsErr := obs.WriteTextfile(cfg.metricsFile, reg); metricsErr != nil {
		return fmt.Errorf("write metrics: %w", metricsErr)
	}
	return nil
}

func loadRules(path string) (*extract.Rules, error) {
	if path == "" {
		return extract.Default(), nil
	}
	f, err := os.Open(path) // #nosec G304 - path chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("open categories: %w", err)
	}
	defer func() { _ = f.Close() }()
	rules, err := extract.LoadRules(f)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return rules, nil
}
