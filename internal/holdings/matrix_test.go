package holdings

import (
	"math"
	"testing"

	"exchange-ledger/internal/domain"
)

const day = domain.MsPerDay

func mv(asset string, amount float64, ts int64, id string) *domain.Movement {
	return &domain.Movement{
		Asset:     asset,
		Amount:    amount,
		Timestamp: ts,
		Category:  domain.CategoryTrade,
		Leg:       domain.LegBase,
		Source:    "e0001",
		SourceID:  id,
	}
}

func TestBuild_CumulativeSum(t *testing.T) {
	movements := []*domain.Movement{
		mv("BTC", 1.0, 0*day+1000, "t1"),
		mv("BTC", 0.5, 2*day+1000, "t2"),
		mv("ETH", 3.0, 1*day+1000, "t3"),
	}
	matrix, warnings := Build(movements, 3*day)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(matrix.Rows) != 4 {
		t.Fatalf("expected 4 daily rows, got %d", len(matrix.Rows))
	}

	if got := matrix.Rows[0].Holdings["BTC"]; got != 1.0 {
		t.Errorf("day 0 BTC = %v, want 1.0", got)
	}
	// Day 1: no BTC activity, value carried forward; ETH appears.
	if got := matrix.Rows[1].Holdings["BTC"]; got != 1.0 {
		t.Errorf("day 1 BTC = %v, want carried-forward 1.0", got)
	}
	if got := matrix.Rows[1].Holdings["ETH"]; got != 3.0 {
		t.Errorf("day 1 ETH = %v, want 3.0", got)
	}
	if got := matrix.Rows[2].Holdings["BTC"]; got != 1.5 {
		t.Errorf("day 2 BTC = %v, want 1.5", got)
	}
	if got := matrix.Rows[3].Holdings["BTC"]; got != 1.5 {
		t.Errorf("day 3 BTC = %v, want carried-forward 1.5", got)
	}
}

func TestBuild_SameDayNetting(t *testing.T) {
	movements := []*domain.Movement{
		mv("BTC", 2.0, 1000, "t1"),
		mv("BTC", -0.5, 2000, "t2"),
	}
	matrix, _ := Build(movements, 0)
	if got := matrix.Rows[0].Holdings["BTC"]; got != 1.5 {
		t.Errorf("same-day movements must net: got %v, want 1.5", got)
	}
}

func TestBuild_NegativeBalanceWarning(t *testing.T) {
	movements := []*domain.Movement{
		mv("BTC", 1.0, 0*day+1000, "t1"),
		mv("BTC", -1.5, 1*day+1000, "t2"),
	}
	matrix, warnings := Build(movements, 1*day)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 negative-balance warning, got %d", len(warnings))
	}
	if warnings[0].Asset != "BTC" || warnings[0].Day != 1*day {
		t.Errorf("warning mislocated: %+v", warnings[0])
	}
	// Balance is reported, not clamped.
	if got := matrix.Rows[1].Holdings["BTC"]; math.Abs(got-(-0.5)) > 1e-12 {
		t.Errorf("negative balance clamped: got %v, want -0.5", got)
	}
}

func TestBuild_Empty(t *testing.T) {
	matrix, warnings := Build(nil, 5*day)
	if len(matrix.Rows) != 0 || len(warnings) != 0 {
		t.Errorf("expected empty matrix, got %d rows", len(matrix.Rows))
	}
}

func TestBuild_LedgerInvariant(t *testing.T) {
	// For any date, the position equals the sum of all movements up to it.
	movements := []*domain.Movement{
		mv("SOL", 10, 0*day+100, "t1"),
		mv("SOL", -4, 0*day+200, "t2"),
		mv("SOL", 2.5, 2*day+100, "t3"),
	}
	matrix, _ := Build(movements, 2*day)

	for _, row := range matrix.Rows {
		var want float64
		for _, m := range movements {
			if m.Timestamp <= row.Day+day-1 {
				want += m.Amount
			}
		}
		if got := row.Holdings["SOL"]; math.Abs(got-want) > 1e-12 {
			t.Errorf("day %d: position %v != ledger sum %v", row.Day, got, want)
		}
	}
}

func TestExtend_MatchesFullRebuild(t *testing.T) {
	oldMovements := []*domain.Movement{
		mv("BTC", 1.0, 0*day+1000, "t1"),
		mv("ETH", 2.0, 1*day+1000, "t2"),
	}
	newMovements := []*domain.Movement{
		mv("BTC", 0.25, 2*day+1000, "t3"),
		mv("SOL", 5.0, 3*day+1000, "t4"),
	}

	prev, _ := Build(oldMovements, 1*day)
	extended, _ := Extend(prev, newMovements, 4*day)
	full, _ := Build(append(oldMovements, newMovements...), 4*day)

	if len(extended.Rows) != len(full.Rows) {
		t.Fatalf("extended has %d rows, full rebuild has %d", len(extended.Rows), len(full.Rows))
	}
	for i := range full.Rows {
		for _, asset := range full.Assets {
			want := full.Rows[i].Holdings[asset]
			got := extended.Rows[i].Holdings[asset]
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("row %d asset %s: extend %v != rebuild %v", i, asset, got, want)
			}
		}
	}
	if len(extended.Assets) != len(full.Assets) {
		t.Errorf("asset lists diverge: %v vs %v", extended.Assets, full.Assets)
	}
}

func TestExtend_BoundaryDayFoldsIntoBaseline(t *testing.T) {
	oldMovements := []*domain.Movement{mv("BTC", 1.0, 0*day+1000, "t1")}
	prev, _ := Build(oldMovements, 0)

	// A later entry on the already-built day: restate the tail, don't append.
	straggler := []*domain.Movement{mv("BTC", 0.5, 0*day+50000, "t2")}
	extended, _ := Extend(prev, straggler, 1*day)

	if got := extended.Rows[0].Holdings["BTC"]; got != 1.5 {
		t.Errorf("boundary-day movement not folded: day 0 = %v, want 1.5", got)
	}
	if got := extended.Rows[1].Holdings["BTC"]; got != 1.5 {
		t.Errorf("carry-forward after fold wrong: day 1 = %v, want 1.5", got)
	}
}

func TestExtend_LateMovementRestatesOverlappingRows(t *testing.T) {
	// A retried window can deliver a movement dated days before the matrix
	// boundary; every row from that day on must be restated, not just the tail.
	oldMovements := []*domain.Movement{mv("BTC", 1.0, 0*day+1000, "t1")}
	prev, _ := Build(oldMovements, 3*day)

	late := []*domain.Movement{mv("BTC", 0.5, 1*day+1000, "t2")}
	extended, _ := Extend(prev, late, 3*day)
	full, _ := Build(append(oldMovements, late...), 3*day)

	if len(extended.Rows) != len(full.Rows) {
		t.Fatalf("extended has %d rows, full rebuild has %d", len(extended.Rows), len(full.Rows))
	}
	for i, row := range full.Rows {
		want := row.Holdings["BTC"]
		got := extended.Rows[i].Holdings["BTC"]
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("day %d: extend %v != rebuild %v", row.Day/day, got, want)
		}
	}
	if got := extended.Rows[1].Holdings["BTC"]; got != 1.5 {
		t.Errorf("late movement's own day not restated: day 1 = %v, want 1.5", got)
	}
	if got := extended.Rows[2].Holdings["BTC"]; got != 1.5 {
		t.Errorf("intermediate row kept stale value: day 2 = %v, want 1.5", got)
	}
}

func TestExtend_MovementBeforeMatrixPrependsRows(t *testing.T) {
	oldMovements := []*domain.Movement{mv("BTC", 1.0, 2*day+1000, "t1")}
	prev, _ := Build(oldMovements, 3*day)

	early := []*domain.Movement{mv("ETH", 4.0, 0*day+1000, "t2")}
	extended, _ := Extend(prev, early, 3*day)
	full, _ := Build(append(oldMovements, early...), 3*day)

	if len(extended.Rows) != len(full.Rows) {
		t.Fatalf("extended has %d rows, full rebuild has %d", len(extended.Rows), len(full.Rows))
	}
	for i, row := range full.Rows {
		for _, asset := range full.Assets {
			want := row.Holdings[asset]
			got := extended.Rows[i].Holdings[asset]
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("day %d asset %s: extend %v != rebuild %v", row.Day/day, asset, got, want)
			}
		}
	}
}

func TestExtend_EmptyPrevFallsBackToBuild(t *testing.T) {
	movements := []*domain.Movement{mv("BTC", 1.0, 0*day+1000, "t1")}
	matrix, _ := Extend(nil, movements, 0)
	if len(matrix.Rows) != 1 || matrix.Rows[0].Holdings["BTC"] != 1.0 {
		t.Errorf("Extend(nil, ...) must behave like Build, got %+v", matrix.Rows)
	}
}

func TestExtend_DoesNotMutatePrev(t *testing.T) {
	oldMovements := []*domain.Movement{mv("BTC", 1.0, 0*day+1000, "t1")}
	prev, _ := Build(oldMovements, 0)

	_, _ = Extend(prev, []*domain.Movement{mv("BTC", 9.0, 0*day+2000, "t2")}, 1*day)
	if got := prev.Rows[0].Holdings["BTC"]; got != 1.0 {
		t.Errorf("Extend mutated the prior matrix: %v", got)
	}
}
