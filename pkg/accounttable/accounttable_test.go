package accounttable

import (
	"testing"

	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

func testView(t *testing.T, maxAccounts uint64) *slab.View {
	t.Helper()
	v, err := slab.Init(make([]byte, slab.Len))
	if err != nil {
		t.Fatalf("init slab: %v", err)
	}
	v.RiskParams().SetMaxAccounts(maxAccounts)
	return v
}

func key(b byte) [32]byte {
	var k [32]byte
	k[0] = b
	return k
}

func TestAddFirstFit(t *testing.T) {
	v := testView(t, 16)

	for i := byte(0); i < 3; i++ {
		idx, err := Add(v, slab.KindUser, key(i+1))
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		if idx != uint16(i) {
			t.Fatalf("add %d: got index %d, want %d", i, idx, i)
		}
	}

	rec := v.Account(1)
	if rec.Kind() != slab.KindUser || rec.Owner() != key(2) {
		t.Fatal("record 1 not written as expected")
	}
	if v.Bitmap().PopCount() != 3 {
		t.Fatalf("popcount = %d, want 3", v.Bitmap().PopCount())
	}
}

func TestAddRejectsInvalidKind(t *testing.T) {
	v := testView(t, 16)
	if _, err := Add(v, slab.AccountKind(0), key(1)); err == nil {
		t.Fatal("expected invalid kind to be rejected")
	}
}

func TestRemoveFreesIndexForReuse(t *testing.T) {
	v := testView(t, 16)

	Add(v, slab.KindUser, key(1))
	Add(v, slab.KindUser, key(2))
	Add(v, slab.KindUser, key(3))

	Remove(v, 1)
	if v.Bitmap().Get(1) {
		t.Fatal("bit 1 still set after remove")
	}
	if v.Account(1).Owner() != ([32]byte{}) {
		t.Fatal("record 1 not zeroed after remove")
	}

	// First-fit hands the freed slot back before any higher index.
	idx, err := Add(v, slab.KindLP, key(4))
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if idx != 1 {
		t.Fatalf("re-add got index %d, want 1", idx)
	}
	if v.Account(1).Kind() != slab.KindLP {
		t.Fatal("reused slot did not take the new kind")
	}
}

func TestAddHonorsMaxAccountsParam(t *testing.T) {
	v := testView(t, 2)

	if _, err := Add(v, slab.KindUser, key(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := Add(v, slab.KindUser, key(2)); err != nil {
		t.Fatal(err)
	}
	_, err := Add(v, slab.KindUser, key(3))
	if !percoerr.Is(err, percoerr.UserTableFull) {
		t.Fatalf("expected UserTableFull, got %v", err)
	}
}

func TestFindByOwner(t *testing.T) {
	v := testView(t, 16)

	Add(v, slab.KindUser, key(1))
	Add(v, slab.KindLP, key(2))

	idx, ok := FindByOwner(v, key(2))
	if !ok || idx != 1 {
		t.Fatalf("FindByOwner(key 2) = (%d, %v), want (1, true)", idx, ok)
	}
	if _, ok := FindByOwner(v, key(9)); ok {
		t.Fatal("found an owner that was never added")
	}

	// A removed account's owner must no longer resolve.
	Remove(v, 1)
	if _, ok := FindByOwner(v, key(2)); ok {
		t.Fatal("found an owner after removal")
	}
}

func TestMustBeUsed(t *testing.T) {
	v := testView(t, 16)
	Add(v, slab.KindUser, key(1))

	if err := MustBeUsed(v, 0); err != nil {
		t.Fatalf("index 0 is used: %v", err)
	}
	if err := MustBeUsed(v, 1); !percoerr.Is(err, percoerr.UserNotFound) {
		t.Fatalf("expected UserNotFound for clear bit, got %v", err)
	}
	if err := MustBeUsed(v, slab.MaxAccounts); !percoerr.Is(err, percoerr.UserNotFound) {
		t.Fatalf("expected UserNotFound for out-of-range index, got %v", err)
	}
}
