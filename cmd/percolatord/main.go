// Command percolatord runs a single-slab Percolator devnet: it loads
// or allocates one slab from a Pebble-backed store and serves it over
// the REST/WebSocket harness in pkg/api.
package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"

	"github.com/percolator-labs/percolator/pkg/api"
	"github.com/percolator-labs/percolator/pkg/logging"
	"github.com/percolator-labs/percolator/pkg/processor"
	"github.com/percolator-labs/percolator/pkg/slab"
	"github.com/percolator-labs/percolator/pkg/storage"
	"github.com/percolator-labs/percolator/params"
)

func main() {
	envPath := flag.String("env", "", "path to .env file (optional)")
	slabKeyHex := flag.String("slab-key", "", "32-byte hex slab key (default: all-zero devnet key)")
	programIDHex := flag.String("program-id", "", "32-byte hex program id (default: all-zero devnet id)")
	flag.Parse()

	cfg := params.LoadFromEnv(*envPath)

	logger, err := logging.New()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	slabKey, err := parseKeyFlag(*slabKeyHex)
	if err != nil {
		logger.Sugar().Fatalf("invalid -slab-key: %v", err)
	}
	programID, err := parseKeyFlag(*programIDHex)
	if err != nil {
		logger.Sugar().Fatalf("invalid -program-id: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Sugar().Fatalf("create data dir: %v", err)
	}
	store, err := storage.NewSlabStore(cfg.Storage.DataDir + "/pebble")
	if err != nil {
		logger.Sugar().Fatalf("open slab store: %v", err)
	}
	defer store.Close()

	view, err := loadOrAllocate(store, slabKey)
	if err != nil {
		logger.Sugar().Fatalf("load or allocate slab: %v", err)
	}

	proc := processor.New(programID)
	server := api.NewServer(view, slabKey, proc, store)

	logger.Sugar().Infow("percolatord starting",
		"slabKey", hex.EncodeToString(slabKey[:]),
		"programID", hex.EncodeToString(programID[:]),
		"listenAddr", cfg.HTTP.ListenAddr,
		"oracleMaxStalenessSlots", cfg.Oracle.MaxStalenessSlots,
		"oracleConfFilterBps", cfg.Oracle.ConfFilterBps,
	)
	if err := server.Start(cfg.HTTP.ListenAddr); err != nil {
		logger.Sugar().Fatalf("http server: %v", err)
	}
}

func parseKeyFlag(s string) ([32]byte, error) {
	var k [32]byte
	if s == "" {
		return k, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	if len(b) != 32 {
		return k, os.ErrInvalid
	}
	copy(k[:], b)
	return k, nil
}

// loadOrAllocate restores a previously persisted slab snapshot, or
// formats SLAB_LEN freshly allocated zeroed bytes via slab.Init — the
// harness's stand-in for account allocation, which on a real chain
// precedes and is separate from InitMarket filling in config/risk
// parameters. Until InitMarket has been submitted against this fresh
// view, every other instruction except TopUpInsurance is rejected.
func loadOrAllocate(store *storage.SlabStore, slabKey [32]byte) (*slab.View, error) {
	if data, ok, err := store.LoadSlab(slabKey); err != nil {
		return nil, err
	} else if ok {
		return slab.Open(data)
	}
	return slab.Init(make([]byte, slab.Len))
}
