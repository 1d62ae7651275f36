package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/footprint/internal/account"
	"github.com/joshsymonds/footprint/internal/report"
	"github.com/joshsymonds/footprint/internal/runtime"
	"github.com/joshsymonds/footprint/internal/store/postgres"
)

const usage = `usage: footprint-accounts [flags] <command> [args]

commands:
  list                       list accounts (filter with -status)
  confirm <id>               mark an account as confirmed by the user
  checklist <id> [flags]     update checklist items, e.g. -password-changed -two-factor=false
  status <id> <status>       set status to active, archived or deleted
`

type accountsConfig struct {
	user    string
	dsn     string
	migrate bool
	status  string
	limit   int
	jsonOut string
	args    []string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("footprint-accounts failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() accountsConfig {
	user := flag.String("user", "", "user id that owns the accounts")
	dsn := flag.String("dsn", runtime.DefaultDSN(), "Postgres DSN (default $DATABASE_URL)")
	migrate := flag.Bool("migrate", false, "apply schema migrations before running")
	status := flag.String("status", "", "only list accounts with this status")
	limit := flag.Int("limit", account.DefaultListLimit, "maximum accounts to list")
	jsonOut := flag.String("json", "", "write JSON output to path")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	return accountsConfig{
		user:    *user,
		dsn:     *dsn,
		migrate: *migrate,
		status:  *status,
		limit:   *limit,
		jsonOut: *jsonOut,
		args:    flag.Args(),
	}
}

func run(cfg accountsConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.user == "" {
		return errors.New("-user is required")
	}
	if len(cfg.args) == 0 {
		flag.Usage()
		return errors.New("command is required")
	}

	db, err := runtime.OpenDatabase(ctx, cfg.dsn, cfg.migrate)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	accts, err := dispatch(ctx, postgres.NewAccountStore(db), cfg)
	if err != nil {
		return err
	}
	if printErr := report.PrintAccounts(accts, os.Stdout); printErr != nil {
		return fmt.Errorf("print accounts: %w", printErr)
	}
	if cfg.jsonOut == "" {
		return nil
	}
	if writeErr := report.WriteJSON(accts, cfg.jsonOut); writeErr != nil {
		return fmt.Errorf("write json: %w", writeErr)
	}
	return nil
}

func dispatch(ctx context.Context, store account.Store, cfg accountsConfig) ([]account.Account, error) {
	cmd, args := cfg.args[0], cfg.args[1:]
	switch cmd {
	case "list":
		var status account.Status
		if cfg.status != "" {
			s, err := account.ParseStatus(cfg.status)
			if err != nil {
				return nil, err
			}
			status = s
		}
		list, err := store.List(ctx, cfg.user, status, cfg.limit)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		return list, nil
	case "confirm":
		if len(args) != 1 {
			return nil, errors.New("confirm takes exactly one account id")
		}
		a, err := store.Confirm(ctx, cfg.user, args[0])
		if err != nil {
			return nil, fmt.Errorf("confirm %s: %w", args[0], err)
		}
		return []account.Account{a}, nil
	case "checklist":
		if len(args) == 0 {
			return nil, errors.New("checklist needs an account id")
		}
		patch, err := parseChecklist(args[1:])
		if err != nil {
			return nil, err
		}
		a, err := store.UpdateChecklist(ctx, cfg.user, args[0], patch)
		if err != nil {
			return nil, fmt.Errorf("update checklist %s: %w", args[0], err)
		}
		return []account.Account{a}, nil
	case "status":
		if len(args) != 2 {
			return nil, errors.New("status takes an account id and a status")
		}
		s, err := account.ParseStatus(args[1])
		if err != nil {
			return nil, err
		}
		a, err := store.SetStatus(ctx, cfg.user, args[0], s)
		if err != nil {
			return nil, fmt.Errorf("set status %s: %w", args[0], err)
		}
		return []account.Account{a}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

// parseChecklist turns checklist flags into a patch holding only the items
// that were named on the command line.
func parseChecklist(args []string) (account.ChecklistPatch, error) {
	fs := flag.NewFlagSet("checklist", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	password := fs.Bool("password-changed", false, "password changed")
	twoFactor := fs.Bool("two-factor", false, "two-factor authentication enabled")
	deleted := fs.Bool("account-deleted", false, "account deleted at the service")
	reviewed := fs.Bool("reviewed-terms", false, "terms reviewed")
	if err := fs.Parse(args); err != nil {
		return account.ChecklistPatch{}, fmt.Errorf("parse checklist flags: %w", err)
	}
	if fs.NArg() > 0 {
		return account.ChecklistPatch{}, fmt.Errorf("unexpected checklist arguments %v", fs.Args())
	}

	var patch account.ChecklistPatch
	set := 0
	fs.Visit(func(f *flag.Flag) {
		set++
		switch f.Name {
		case "password-changed":
			patch.PasswordChanged = password
		case "two-factor":
			patch.TwoFactorEnabled = twoFactor
		case "account-deleted":
			patch.AccountDeleted = deleted
		case "reviewed-terms":
			patch.ReviewedTerms = reviewed
		}
	})
	if set == 0 {
		return account.ChecklistPatch{}, errors.New("checklist needs at least one item flag")
	}
	return patch, nil
}
