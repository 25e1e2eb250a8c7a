// Package params configures the devnet harness: where the slab
// persists, where it binds, and a pair of oracle tolerances that the
// daemon reports at startup. Markets take their own tolerances from
// InitMarket's arguments, not from here. Environment variables
// override .env, which overrides the built-in defaults.
package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Storage configures the Pebble-backed slab snapshot/WAL store.
type Storage struct {
	DataDir string
}

// HTTP configures the devnet REST/WebSocket harness.
type HTTP struct {
	ListenAddr string
}

// Oracle holds staleness/confidence tolerances. The daemon only logs
// them; InitMarket always writes the values carried in its own
// arguments.
type Oracle struct {
	MaxStalenessSlots uint64
	ConfFilterBps     uint16
}

type Config struct {
	Storage Storage
	HTTP    HTTP
	Oracle  Oracle
}

func Default() Config {
	return Config{
		Storage: Storage{DataDir: "data/percolator"},
		HTTP:    HTTP{ListenAddr: ":8765"},
		Oracle: Oracle{
			MaxStalenessSlots: 150,
			ConfFilterBps:     100,
		},
	}
}

// LoadFromEnv loads configuration from .env (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if dir := os.Getenv("PERCOLATOR_DATA_DIR"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if addr := os.Getenv("PERCOLATOR_LISTEN_ADDR"); addr != "" {
		cfg.HTTP.ListenAddr = addr
	}
	if staleness := os.Getenv("PERCOLATOR_ORACLE_MAX_STALENESS_SLOTS"); staleness != "" {
		if n, err := strconv.ParseUint(staleness, 10, 64); err == nil {
			cfg.Oracle.MaxStalenessSlots = n
		}
	}
	if confBps := os.Getenv("PERCOLATOR_ORACLE_CONF_BPS"); confBps != "" {
		if n, err := strconv.ParseUint(confBps, 10, 16); err == nil {
			cfg.Oracle.ConfFilterBps = uint16(n)
		}
	}

	return cfg
}
