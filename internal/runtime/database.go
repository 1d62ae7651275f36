package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/joshsymonds/footprint/internal/store/postgres"
)

// DatabaseEnv names the environment variable that supplies the default DSN.
const DatabaseEnv = "DATABASE_URL"

// DefaultDSN returns the DSN from the environment.
func DefaultDSN() string { return os.Getenv(DatabaseEnv) }

// OpenDatabase connects to Postgres and optionally applies the embedded
// migrations before returning.
func OpenDatabase(ctx context.Context, dsn string, migrate bool) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required (set -dsn or " + DatabaseEnv + ")")
	}
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if !migrate {
		return db, nil
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
