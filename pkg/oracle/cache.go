// Package oracle implements the admin-pushed price cache: the single
// authoritative (price_e6, timestamp) pair an instruction consults,
// with staleness and confidence gating.
package oracle

import (
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

// Push writes (priceE6, timestamp) atomically into the slab's engine
// state. Authorization (admin or delegated push authority) is the
// caller's responsibility — this function is the pure write, not the
// gate.
func Push(v *slab.View, priceE6 uint64, timestamp int64) {
	e := v.Engine()
	e.SetOraclePriceE6(priceE6)
	e.SetOracleTimestamp(timestamp)
}

// Reading holds the validated oracle price an instruction may consult.
type Reading struct {
	PriceE6   uint64
	Timestamp int64
}

// Read returns the cached price if it is fresh enough, failing with
// OracleStale when now-timestamp exceeds maxStaleness. confBps is the
// confidence (in basis points) of the source feeding the read, if one
// is available; a zero confFilterBps in config disables the filter.
func Read(v *slab.View, now int64, confBps uint16) (Reading, error) {
	cfg := v.Config()
	e := v.Engine()

	ts := e.OracleTimestamp()
	maxStaleness := int64(cfg.MaxStalenessSlots())
	if now-ts > maxStaleness {
		return Reading{}, percoerr.New(percoerr.OracleStale, "cached oracle price too old")
	}

	filter := cfg.ConfFilterBps()
	if filter > 0 && confBps > filter {
		return Reading{}, percoerr.New(percoerr.OracleInvalid, "confidence exceeds filter")
	}

	return Reading{PriceE6: e.OraclePriceE6(), Timestamp: ts}, nil
}
