package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(amount string) *Entry {
	return &Entry{
		EntryID:   "JRN-1",
		OrderID:   "ORD-1",
		Account:   UserAccount("user-1"),
		Direction: DirectionDebit,
		Kind:      KindPurchase,
		Amount:    decimal.RequireFromString(amount),
	}
}

func TestEntrySeal(t *testing.T) {
	t.Parallel()

	entry := newTestEntry("1000.00")
	entry.Seal(1, GenesisHash)

	assert.Equal(t, uint64(1), entry.Sequence)
	assert.Equal(t, GenesisHash, entry.PreviousHash)
	assert.Len(t, entry.Hash, 64)
	assert.Equal(t, entry.ComputeHash(), entry.Hash)
}

func TestComputeHashDeterministic(t *testing.T) {
	t.Parallel()

	a := newTestEntry("1000.00")
	a.Seal(1, GenesisHash)

	b := newTestEntry("1000.00")
	b.Seal(1, GenesisHash)

	assert.Equal(t, a.Hash, b.Hash)
}

func TestComputeHashCoversFields(t *testing.T) {
	t.Parallel()

	base := newTestEntry("1000.00")
	base.Seal(1, GenesisHash)

	mutations := map[string]func(*Entry){
		"amount":    func(e *Entry) { e.Amount = decimal.RequireFromString("1000.01") },
		"account":   func(e *Entry) { e.Account = UserAccount("user-2") },
		"direction": func(e *Entry) { e.Direction = DirectionCredit },
		"kind":      func(e *Entry) { e.Kind = KindReversal },
		"order":     func(e *Entry) { e.OrderID = "ORD-2" },
		"sequence":  func(e *Entry) { e.Sequence = 2 },
		"prev hash": func(e *Entry) { e.PreviousHash = "ff" },
	}
	for name, mutate := range mutations {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			e := newTestEntry("1000.00")
			e.Seal(1, GenesisHash)
			mutate(e)
			assert.NotEqual(t, base.Hash, e.ComputeHash(), "mutating %s must change the hash", name)
		})
	}
}

// The stored column has a fixed scale, so a value read back from the
// database must hash identically to the value hashed at append time.
func TestComputeHashStableAcrossScale(t *testing.T) {
	t.Parallel()

	appended := newTestEntry("1000")
	appended.Seal(1, GenesisHash)

	reloaded := newTestEntry("1000.00000000")
	reloaded.Seal(1, GenesisHash)

	require.Equal(t, appended.Hash, reloaded.Hash)
}

func TestAccountHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user:u1", UserAccount("u1"))
	assert.Equal(t, "listing:l1", ListingAccount("l1"))
}
