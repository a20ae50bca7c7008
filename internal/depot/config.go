// Package depot is the operation layer every depot command runs
// through: a Context bundling the on-disk Project/Manifest pair, the
// reachable registries, the effective stdlib map, and the stores used
// to materialize resolved packages. Grounded on golang-dep/context.go's
// Ctx (capture environment once, load project/lock together) and
// txn_writer.go's SafeWriter (atomic all-or-nothing rewrite).
package depot

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config is the environment-derived settings read once at Context
// construction, per spec.md §6.
type Config struct {
	DepotPath   []string
	LoadPath    []string
	Offline     bool
	Concurrency int
}

// LoadConfig reads DEPOT_PATH, LOAD_PATH, OFFLINE, and CONCURRENCY
// from the environment, using the platform list separator the way
// golang-dep's NewContext splits GOPATH.
func LoadConfig() Config {
	cfg := Config{Concurrency: 8}
	if v := os.Getenv("DEPOT_PATH"); v != "" {
		cfg.DepotPath = filepath.SplitList(v)
	}
	if v := os.Getenv("LOAD_PATH"); v != "" {
		cfg.LoadPath = filepath.SplitList(v)
	}
	if v := os.Getenv("OFFLINE"); v != "" {
		b, err := strconv.ParseBool(v)
		cfg.Offline = err == nil && b
	}
	if v := os.Getenv("CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	return cfg
}
