package main

import (
	"fmt"
	"os"
	"strings"

	"metaleague.ai/internal/persistence/indexdb"
)

// openIndex opens the read-model index, which also stores ledgers between runs. It never affects
// match outcomes.
func openIndex(path string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("ML_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported ML_INDEX_BACKEND: %s", backend)
	}
}
