// Package accounttable implements the fixed-capacity account
// directory: first-fit allocation over the slab's used-bitmap, O(1)
// add/remove by index, and owner lookup. Indices are the only identity
// the wire protocol ever uses, and are stable for the account's
// lifetime.
package accounttable

import (
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

// Add reserves the first clear bitmap bit, writes a freshly zeroed
// record for (kind, owner), and returns its index. The account table
// only allocates identity; any account-creation fee is settled by the
// caller.
func Add(v *slab.View, kind slab.AccountKind, owner [32]byte) (uint16, error) {
	if !kind.Valid() {
		return 0, percoerr.New(percoerr.InvalidLayout, "invalid account kind")
	}

	bm := v.Bitmap()
	params := v.RiskParams()
	if uint64(bm.PopCount()) >= params.MaxAccounts() {
		return 0, percoerr.New(percoerr.UserTableFull, "max_accounts reached")
	}

	idx, ok := bm.FirstClear()
	if !ok {
		return 0, percoerr.New(percoerr.UserTableFull, "account table full")
	}

	rec := v.Account(idx)
	rec.Zero()
	rec.SetOwner(owner)
	rec.SetKindForInit(kind)
	bm.Set(idx, true)
	return idx, nil
}

// Remove clears the bitmap bit and zeros the record. Callers must only
// invoke this once balance and position are both zero
// (insolvency-after-liquidation or voluntary close).
func Remove(v *slab.View, idx uint16) {
	v.Bitmap().Set(idx, false)
	v.Account(idx).Zero()
}

// FindByOwner returns the index of the first used record owned by
// owner, or (0, false) if none exists.
func FindByOwner(v *slab.View, owner [32]byte) (uint16, bool) {
	bm := v.Bitmap()
	for i := uint16(0); i < slab.MaxAccounts; i++ {
		if !bm.Get(i) {
			continue
		}
		if v.Account(i).Owner() == owner {
			return i, true
		}
	}
	return 0, false
}

// MustBeUsed validates idx is in range and its bitmap bit is set,
// returning UserNotFound otherwise. Every processor path that
// addresses an account by wire index must go through this first.
func MustBeUsed(v *slab.View, idx uint16) error {
	if int(idx) >= slab.MaxAccounts {
		return percoerr.New(percoerr.UserNotFound, "account index out of range")
	}
	if !v.Bitmap().Get(idx) {
		return percoerr.New(percoerr.UserNotFound, "account index not in use")
	}
	return nil
}
