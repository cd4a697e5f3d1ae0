package memory

import (
	"context"
	"testing"

	"exchange-ledger/internal/domain"
	"exchange-ledger/internal/storage"
)

func testEntry(sourceID string, ts int64) *domain.Entry {
	return &domain.Entry{
		Asset:     "BTC",
		Amount:    0.5,
		Timestamp: ts,
		Category:  domain.CategoryTrade,
		Leg:       domain.LegBase,
		Source:    "e0001",
		SourceID:  sourceID,
	}
}

func TestEntryStore_AppendAndReadRange(t *testing.T) {
	store := NewEntryStore()
	ctx := context.Background()

	entries := []*domain.Entry{
		testEntry("t1", 1000),
		testEntry("t2", 2000),
		testEntry("t3", 3000),
	}
	inserted, err := store.Append(ctx, entries)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if inserted != 3 {
		t.Errorf("expected 3 inserted, got %d", inserted)
	}

	got, err := store.ReadRange(ctx, "e0001", domain.CategoryTrade, 1000, 3000)
	if err != nil {
		t.Fatalf("ReadRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries in [1000, 3000), got %d", len(got))
	}
	if got[0].SourceID != "t1" || got[1].SourceID != "t2" {
		t.Errorf("expected ascending order t1, t2, got %s, %s", got[0].SourceID, got[1].SourceID)
	}
}

func TestEntryStore_AppendSkipsDuplicates(t *testing.T) {
	store := NewEntryStore()
	ctx := context.Background()

	if _, err := store.Append(ctx, []*domain.Entry{testEntry("t1", 1000)}); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	// Same key again plus one new entry.
	inserted, err := store.Append(ctx, []*domain.Entry{testEntry("t1", 1000), testEntry("t2", 2000)})
	if err != nil {
		t.Fatalf("second Append failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("expected 1 inserted on re-append, got %d", inserted)
	}

	got, err := store.ReadRange(ctx, "e0001", domain.CategoryTrade, 0, 10000)
	if err != nil {
		t.Fatalf("ReadRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries after dedup, got %d", len(got))
	}
}

func TestEntryStore_SynthesizedLegsNotDeduped(t *testing.T) {
	store := NewEntryStore()
	ctx := context.Background()

	base := testEntry("t1", 1000)
	fee := testEntry("t1", 1000)
	fee.Leg = domain.LegFee
	fee.Asset = "BNB"
	opposite := testEntry("t1", 1000)
	opposite.Leg = domain.LegOpposite
	opposite.Asset = "USDT"

	inserted, err := store.Append(ctx, []*domain.Entry{base, fee, opposite})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if inserted != 3 {
		t.Errorf("expected all 3 legs inserted, got %d", inserted)
	}
}

func TestEntryStore_Overwrite(t *testing.T) {
	store := NewEntryStore()
	ctx := context.Background()

	if _, err := store.Append(ctx, []*domain.Entry{testEntry("t1", 1000), testEntry("t2", 2000)}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// An entry from a different category must survive the overwrite.
	dep := testEntry("d1", 1500)
	dep.Category = domain.CategoryDeposit
	if _, err := store.Append(ctx, []*domain.Entry{dep}); err != nil {
		t.Fatalf("Append deposit failed: %v", err)
	}

	if err := store.Overwrite(ctx, "e0001", domain.CategoryTrade, []*domain.Entry{testEntry("t9", 5000)}); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	trades, err := store.ReadRange(ctx, "e0001", domain.CategoryTrade, 0, 10000)
	if err != nil {
		t.Fatalf("ReadRange failed: %v", err)
	}
	if len(trades) != 1 || trades[0].SourceID != "t9" {
		t.Errorf("expected single trade t9 after overwrite, got %d entries", len(trades))
	}

	deposits, err := store.ReadRange(ctx, "e0001", domain.CategoryDeposit, 0, 10000)
	if err != nil {
		t.Fatalf("ReadRange deposits failed: %v", err)
	}
	if len(deposits) != 1 {
		t.Errorf("expected deposit to survive trade overwrite, got %d", len(deposits))
	}
}

func TestEntryStore_InvalidInput(t *testing.T) {
	store := NewEntryStore()
	ctx := context.Background()

	if _, err := store.Append(ctx, []*domain.Entry{nil}); err != storage.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput for nil entry, got %v", err)
	}
	bad := testEntry("t1", 1000)
	bad.Asset = ""
	if _, err := store.Append(ctx, []*domain.Entry{bad}); err != storage.ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput for empty asset, got %v", err)
	}
}

func TestEntryStore_ReturnsCopies(t *testing.T) {
	store := NewEntryStore()
	ctx := context.Background()

	orig := testEntry("t1", 1000)
	if _, err := store.Append(ctx, []*domain.Entry{orig}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	orig.Amount = 99 // mutation after insert must not leak into the store

	got, err := store.ReadRange(ctx, "e0001", domain.CategoryTrade, 0, 10000)
	if err != nil {
		t.Fatalf("ReadRange failed: %v", err)
	}
	if got[0].Amount != 0.5 {
		t.Errorf("store leaked caller mutation: amount = %v", got[0].Amount)
	}

	got[0].Amount = 77 // mutation of a read result must not leak either
	again, _ := store.ReadRange(ctx, "e0001", domain.CategoryTrade, 0, 10000)
	if again[0].Amount != 0.5 {
		t.Errorf("store leaked read-result mutation: amount = %v", again[0].Amount)
	}
}
