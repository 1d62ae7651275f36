package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshsymonds/footprint/internal/obs"
	"github.com/joshsymonds/footprint/internal/policy"
	"github.com/joshsymonds/footprint/internal/policy/gemini"
	"github.com/joshsymonds/footprint/internal/report"
	"github.com/joshsymonds/footprint/internal/risk"
	"github.com/joshsymonds/footprint/internal/runtime"
	"github.com/joshsymonds/footprint/internal/store/postgres"
)

const geminiKeyEnv = "GEMINI_API_KEY"

type policyConfig struct {
	user        string
	service     string
	url         string
	file        string
	text        string
	history     bool
	limit       int
	show        string
	feedback    string
	helpful     bool
	notes       string
	noReuse     bool
	apiKey      string
	model       string
	taxonomy    string
	dsn         string
	migrate     bool
	timeout     time.Duration
	jsonOut     string
	metricsFile string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("footprint-policy failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() policyConfig {
	user := flag.String("user", "", "user id that owns the analyses")
	service := flag.String("service", "", "service name shown in the analysis")
	url := flag.String("url", "", "fetch and analyze the policy at this URL")
	file := flag.String("file", "", "analyze policy text read from this file")
	text := flag.String("text", "", "analyze this policy text")
	history := flag.Bool("history", false, "list recent analyses instead of analyzing")
	limit := flag.Int("limit", policy.DefaultHistoryLimit, "number of analyses listed by -history")
	show := flag.String("show", "", "print the stored analysis with this id")
	feedback := flag.String("feedback", "", "record feedback for the analysis with this id")
	helpful := flag.Bool("helpful", false, "mark the analysis helpful (with -feedback)")
	notes := flag.String("notes", "", "feedback notes (with -feedback)")
	noReuse := flag.Bool("no-reuse", false, "classify again even when identical text was analyzed before")
	apiKey := flag.String("api-key", os.Getenv(geminiKeyEnv), "Gemini API key (default $GEMINI_API_KEY)")
	model := flag.String("model", gemini.DefaultModel, "Gemini model name")
	taxonomy := flag.String("taxonomy", "", "YAML file overriding the risk taxonomy")
	dsn := flag.String("dsn", runtime.DefaultDSN(), "Postgres DSN (default $DATABASE_URL; empty keeps analyses in memory)")
	migrate := flag.Bool("migrate", false, "apply schema migrations before running")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	jsonOut := flag.String("json", "", "write JSON output to path")
	metricsFile := flag.String("metrics-file", "", "write Prometheus textfile metrics to path")
	flag.Parse()

	return policyConfig{
		user:        *user,
		service:     *service,
		url:         *url,
		file:        *file,
		text:        *text,
		history:     *history,
		limit:       *limit,
		show:        *show,
		feedback:    *feedback,
		helpful:     *helpful,
		notes:       *notes,
		noReuse:     *noReuse,
		apiKey:      *apiKey,
		model:       *model,
		taxonomy:    *taxonomy,
		dsn:         *dsn,
		migrate:     *migrate,
		timeout:     *timeout,
		jsonOut:     *jsonOut,
		metricsFile: *metricsFile,
	}
}

func run(cfg policyConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cfg.timeout)
		defer stop()
	}

	if cfg.user == "" {
		return errors.New("-user is required")
	}
	logger := runtime.DefaultLogger()

	tax, err := loadTaxonomy(cfg.taxonomy)
	if err != nil {
		return err
	}

	var store policy.Store = policy.NewMemoryStore()
	if cfg.dsn != "" {
		db, dbErr := runtime.OpenDatabase(ctx, cfg.dsn, cfg.migrate)
		if dbErr != nil {
			return dbErr
		}
		defer func() { _ = db.Close() }()
		store = postgres.NewAnalysisStore(db)
	} else {
		logger.Warn("no database configured; analyses are not persisted")
	}

	reg := prometheus.NewRegistry()
	metrics, err := obs.NewMetrics(reg)
	if err != nil {
		return err
	}

	svc := policy.NewService(nil, policy.NewHTTPFetcher(), store, logger)
	svc.Taxonomy = tax
	svc.Metrics = metrics
	svc.Reuse = !cfg.noReuse

	runErr := execute(ctx, svc, cfg, logger)
	if metricsErr := obs.WriteTextfile(cfg.metricsFile, reg); metricsErr != nil {
		return errors.Join(runErr, fmt.Errorf("write metrics: %w", metricsErr))
	}
	return runErr
}

func execute(ctx context.Context, svc *policy.Service, cfg policyConfig, logger *slog.Logger) error {
	switch {
	case cfg.history:
		list, err := svc.History(ctx, cfg.user, cfg.limit)
		if err != nil {
			return err
		}
		return output(list, cfg.jsonOut, func() error { return report.PrintHistory(list, os.Stdout) })
	case cfg.show != "":
		a, err := svc.Get(ctx, cfg.user, cfg.show)
		if err != nil {
			return err
		}
		return output(a, cfg.jsonOut, func() error { return report.PrintAnalysis(a, svc.Guidance(a), os.Stdout) })
	case cfg.feedback != "":
		a, err := svc.SetFeedback(ctx, cfg.user, cfg.feedback, policy.Feedback{Helpful: cfg.helpful, Notes: cfg.notes})
		if err != nil {
			return err
		}
		logger.Info("feedback recorded", "id", a.ID, "helpful", cfg.helpful)
		return nil
	}

	classifier, err := gemini.New(ctx, gemini.Config{APIKey: cfg.apiKey, ModelName: cfg.model}, logger)
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}
	defer func() { _ = classifier.Close() }()
	svc.Classifier = classifier

	a, err := analyze(ctx, svc, cfg, logger)
	if err != nil {
		return err
	}
	return output(a, cfg.jsonOut, func() error { return report.PrintAnalysis(a, svc.Guidance(a), os.Stdout) })
}

func analyze(ctx context.Context, svc *policy.Service, cfg policyConfig, logger *slog.Logger) (policy.Analysis, error) {
	in := policy.Input{UserID: cfg.user, ServiceName: cfg.service, ServiceURL: cfg.url}
	switch {
	case cfg.url != "":
		logger.Info("fetching policy", "url", cfg.url)
		return svc.AnalyzeURL(ctx, in)
	case cfg.file != "":
		raw, err := os.ReadFile(cfg.file) // #nosec G304 - path chosen by the operator
		if err != nil {
			return policy.Analysis{}, fmt.Errorf("read policy file: %w", err)
		}
		in.Text = string(raw)
	case cfg.text != "":
		in.Text = cfg.text
	default:
		return policy.Analysis{}, errors.New("one of -url, -file, -text, -history, -show or -feedback is required")
	}
	return svc.Analyze(ctx, in)
}

func output(v any, jsonOut string, print func() error) error {
	if err := print(); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	if jsonOut == "" {
		return nil
	}
	if err := report.WriteJSON(v, jsonOut); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func loadTaxonomy(path string) (*risk.Taxonomy, error) {
	if path == "" {
		return risk.Default(), nil
	}
	f, err := os.Open(path) // #nosec G304 - path chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("open taxonomy: %w", err)
	}
	defer func() { _ = f.Close() }()
	tax, err := risk.LoadTaxonomy(f)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	return tax, nil
}
