package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/vaultq/internal/config"
	"github.com/lherron/vaultq/internal/db"
	"github.com/lherron/vaultq/internal/store"
)

// exitError wraps an error with a process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func exitErr(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode returns the exit code carried by an error, or 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}

// resolveDBPath picks the database path from the --db flag or config.
func resolveDBPath(cmd *cobra.Command, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if flag := cmd.Flag("db"); flag != nil && flag.Value.String() != "" {
		return flag.Value.String(), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.DBPath, nil
}

// openStore opens a vault database, migrating it when requested.
func openStore(path string, migrate bool) (*store.Store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if migrate {
		if err := database.Migrate(); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	} else {
		_, pending, err := database.MigrationStatus()
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to check migration status: %w", err)
		}
		if len(pending) > 0 {
			database.Close()
			return nil, fmt.Errorf("database at %s has %d pending migration(s); run 'vaultq migrate'", path, len(pending))
		}
	}
	return store.New(database), nil
}
