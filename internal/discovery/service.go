package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joshsymonds/footprint/internal/account"
	"github.com/joshsymonds/footprint/internal/extract"
	"github.com/joshsymonds/footprint/internal/gmail"
	"github.com/joshsymonds/footprint/internal/ids"
	"github.com/joshsymonds/footprint/internal/obs"
	"github.com/joshsymonds/footprint/internal/rate"
)

const (
	// DefaultMonths is the mailbox look-back window.
	DefaultMonths = 24
	// DefaultLimit caps the messages fetched per run.
	DefaultLimit = 100
	// MaxPageSize is the Gmail list maximum.
	MaxPageSize = 500
)

var subjectGroups = []string{
	"subject:(가입 OR 회원가입 OR verify OR welcome OR confirmation)",
	"subject:(영수증 OR 결제 OR 주문 OR invoice OR receipt OR order)",
	"subject:(인증 OR 비밀번호 OR password OR code OR verify)",
}

// DefaultQueries returns the signup, receipt and authentication searches
// restricted to the last months months.
func DefaultQueries(months int) []string {
	if months <= 0 {
		months = DefaultMonths
	}
	out := make([]string, 0, len(subjectGroups))
	for _, q := range subjectGroups {
		out = append(out, fmt.Sprintf("%s newer_than:%dm", q, months))
	}
	return out
}

// Options controls one discovery run.
type Options struct {
	Queries            []string
	Months             int
	Limit              int
	PageSize           int
	GroupByRegistrable bool
	// DryRun aggregates without touching the account store.
	DryRun bool
}

// Report summarizes a discovery run.
type Report struct {
	RunID         string            `json:"run_id"`
	UserID        string            `json:"user_id"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Queries       []string          `json:"queries"`
	Scanned       int               `json:"scanned"`
	FetchFailures int               `json:"fetch_failures"`
	Skipped       int               `json:"skipped"`
	Domains       []Domain          `json:"domains"`
	Accounts      []account.Account `json:"accounts"`
	Created       int               `json:"created"`
	Updated       int               `json:"updated"`
	Unchanged     int               `json:"unchanged"`
	Failures      []string          `json:"failures,omitempty"`
	DryRun        bool              `json:"dry_run"`
}

// Service runs the mailbox scan and the account merge for one user.
type Service struct {
	Client  gmail.Client
	Limiter rate.Limiter
	Merger  *Merger
	Logger  *slog.Logger
	Clock   func() time.Time
	Metrics *obs.Metrics
	Rules   *extract.Rules
}

// NewService constructs a Service with sane defaults.
func NewService(
	client gmail.Client,
	limiter rate.Limiter,
	store account.Store,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:  client,
		Limiter: limiter,
		Merger:  NewMerger(store, logger),
		Logger:  logger,
		Clock:   time.Now,
	}
}

// Run searches the mailbox, aggregates the matching messages per domain and
// merges them into the user's accounts. A failed search aborts the run;
// failed fetches and failed merges are counted and reported.
func (s *Service) Run(ctx context.Context, userID string, opts Options) (Report, error) {
	if userID == "" {
		return Report{}, fmt.Errorf("user id is required")
	}
	queries := opts.Queries
	if len(queries) == 0 {
		queries = DefaultQueries(opts.Months)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if pageSize > limit {
		pageSize = limit
	}

	rep := Report{
		RunID:       ids.NewAt(s.Clock()),
		UserID:      userID,
		GeneratedAt: s.Clock(),
		Queries:     queries,
		DryRun:      opts.DryRun,
	}
	logger := s.Logger.With("run_id", rep.RunID, "user", userID)
	logger.InfoContext(ctx, "running discovery", "queries", len(queries), "limit", limit)

	msgIDs, err := s.search(ctx, queries, limit, pageSize)
	if err != nil {
		return Report{}, err
	}
	rep.Scanned = len(msgIDs)

	signals := make([]Signal, 0, len(msgIDs))
	for _, id := range msgIDs {
		sig, fetchErr := s.fetch(ctx, id)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return Report{}, fmt.Errorf("fetch metadata: %w", ctx.Err())
			}
			rep.FetchFailures++
			s.Metrics.FetchFailed()
			logger.WarnContext(ctx, "skipping message", "error", fetchErr)
			continue
		}
		s.Metrics.Fetched()
		signals = append(signals, sig)
	}

	domains, skipped := Aggregate(signals, AggregateOptions{
		GroupByRegistrable: opts.GroupByRegistrable,
		Rules:              s.Rules,
	})
	rep.Domains = domains
	rep.Skipped = skipped
	s.Metrics.Skipped(skipped)

	if opts.DryRun || len(domains) == 0 {
		logger.InfoContext(ctx, "discovery finished", "scanned", rep.Scanned, "domains", len(domains), "dry_run", opts.DryRun)
		return rep, nil
	}

	res := s.Merger.Merge(ctx, userID, domains)
	rep.Accounts = res.Accounts
	rep.Created = res.Created
	rep.Updated = res.Updated
	rep.Unchanged = res.Unchanged
	for _, f := range res.Failures {
		rep.Failures = append(rep.Failures, f.Error())
	}
	s.Metrics.Merged(res.Created, res.Updated, len(res.Failures))

	logger.InfoContext(ctx, "discovery finished",
		"scanned", rep.Scanned,
		"fetch_failures", rep.FetchFailures,
		"skipped", rep.Skipped,
		"created", rep.Created,
		"updated", rep.Updated,
		"failures", len(rep.Failures),
	)
	return rep, nil
}

// search runs every query page by page, dropping ids already seen, until
// limit ids are collected.
func (s *Service) search(ctx context.Context, queries []string, limit, pageSize int) ([]gmail.MessageID, error) {
	seen := make(map[gmail.MessageID]struct{})
	var out []gmail.MessageID
	for _, raw := range queries {
		q := gmail.Query{Raw: raw}
		token := ""
		for len(out) < limit {
			if err := s.wait(ctx, "rate limit messages"); err != nil {
				return nil, err
			}
			page, err := s.Client.List(ctx, q, token, pageSize)
			if err != nil {
				return nil, fmt.Errorf("list messages %q: %w", raw, err)
			}
			for _, id := range page.IDs {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
				if len(out) == limit {
					break
				}
			}
			if page.NextPageToken == "" {
				break
			}
			token = page.NextPageToken
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Service) fetch(ctx context.Context, id gmail.MessageID) (Signal, error) {
	if err := s.wait(ctx, "rate limit metadata"); err != nil {
		return Signal{}, &FetchError{MessageID: string(id), Err: err}
	}
	meta, err := s.Client.GetMetadata(ctx, id, gmail.MetadataHeaders())
	if err != nil {
		return Signal{}, &FetchError{MessageID: string(id), Err: err}
	}
	if meta.ID == "" {
		meta.ID = id
	}
	return SignalFromMeta(meta), nil
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
