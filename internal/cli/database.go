package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/opencode-ai/pulse/internal/db"
)

// openDatabase opens the journal database and applies pending migrations.
func openDatabase(ctx context.Context) (*db.DB, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}

	dbCfg := db.DefaultConfig()
	dbCfg.Path = cfg.Journal.Path

	database, err := db.Open(dbCfg)
	if err != nil {
		return nil, &PreflightError{
			Message:  fmt.Sprintf("cannot open journal at %s: %v", cfg.Journal.Path, err),
			Hint:     "check journal.path in your config",
			NextStep: "pulse validate",
		}
	}

	if _, err := database.MigrateUp(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return database, nil
}

func journalExists() bool {
	cfg := GetConfig()
	if cfg == nil || cfg.Journal.Path == "" {
		return false
	}
	_, err := os.Stat(cfg.Journal.Path)
	return err == nil
}
