// Shared helpers for chart CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-health/careledger/internal/store"
	"github.com/mesh-health/careledger/pkg/types"
)

// attachStore resolves the data directory and attaches the SQLite-backed
// store. The caller must defer st.Detach().
func attachStore() (*store.Store, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	name := configStoreName
	if name == "" {
		name = defaultStoreName
	}

	st := store.New()
	cfg := types.Config{
		DataDir:   dataDir,
		StoreName: name,
		LogLevel:  configLogLevel,
	}
	if err := st.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}
	return st, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// parseDate parses a YYYY-MM-DD day in local time.
func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// parseClock parses a HH:MM wall-clock time.
func parseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}
