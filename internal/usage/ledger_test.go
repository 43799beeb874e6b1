package usage

import (
	"path/filepath"
	"testing"
)

func openTestLedger(t *testing.T, dbPath string) *Ledger {
	t.Helper()
	l, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordUsage_SonnetCostScenario(t *testing.T) {
	l := openTestLedger(t, filepath.Join(t.TempDir(), "usage.db"))

	// 1M input * $3/MTok + 0.5M output * $15/MTok = $10.50
	cost, err := l.RecordUsage(1_000_000, 500_000, "claude-sonnet-4-6")
	if err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if cost != 10.50 {
		t.Fatalf("cost = %v, want 10.50", cost)
	}

	snap := l.Snapshot()
	if snap.TotalCost != 10.50 {
		t.Fatalf("TotalCost = %v, want 10.50", snap.TotalCost)
	}
	if snap.InputTokens != 1_000_000 || snap.OutputTokens != 500_000 {
		t.Fatalf("totals = %d/%d, want 1000000/500000", snap.InputTokens, snap.OutputTokens)
	}
}

func TestRecordUsage_SumsAcrossModels(t *testing.T) {
	l := openTestLedger(t, filepath.Join(t.TempDir(), "usage.db"))

	records := []struct {
		in, out int64
		model   string
	}{
		{100, 200, "claude-sonnet-4-6"},
		{300, 400, "claude-opus-4-6"},
		{500, 600, "claude-sonnet-4-6"},
		{70, 80, "some-unknown-model"}, // fallback pricing, still tracked per key
	}

	var wantIn, wantOut int64
	for _, r := range records {
		if _, err := l.RecordUsage(r.in, r.out, r.model); err != nil {
			t.Fatalf("RecordUsage(%+v): %v", r, err)
		}
		wantIn += r.in
		wantOut += r.out
	}

	snap := l.Snapshot()
	if snap.InputTokens != wantIn || snap.OutputTokens != wantOut {
		t.Fatalf("totals = %d/%d, want %d/%d", snap.InputTokens, snap.OutputTokens, wantIn, wantOut)
	}

	sonnet := snap.ByModel["claude-sonnet-4-6"]
	if sonnet.InputTokens != 600 || sonnet.OutputTokens != 800 {
		t.Fatalf("sonnet usage = %+v, want 600/800", sonnet)
	}
	if _, ok := snap.ByModel["some-unknown-model"]; !ok {
		t.Fatal("unseen model did not get its own ledger key")
	}

	// Totals must equal the sum over byModel at all times.
	var sumIn, sumOut int64
	var sumCost float64
	for _, mu := range snap.ByModel {
		sumIn += mu.InputTokens
		sumOut += mu.OutputTokens
		sumCost += mu.Cost
	}
	if sumIn != snap.InputTokens || sumOut != snap.OutputTokens {
		t.Fatalf("byModel sums %d/%d != totals %d/%d", sumIn, sumOut, snap.InputTokens, snap.OutputTokens)
	}
	if diff := sumCost - snap.TotalCost; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("byModel cost sum %v != total cost %v", sumCost, snap.TotalCost)
	}
}

func TestLedger_SurvivesRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")

	l := openTestLedger(t, dbPath)
	if _, err := l.RecordUsage(1000, 2000, "claude-opus-4-6"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	before := l.Snapshot()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2 := openTestLedger(t, dbPath)
	after := l2.Snapshot()

	if after.InputTokens != before.InputTokens ||
		after.OutputTokens != before.OutputTokens ||
		after.TotalCost != before.TotalCost {
		t.Fatalf("after restart %+v, want %+v", after, before)
	}
	if after.ByModel["claude-opus-4-6"] != before.ByModel["claude-opus-4-6"] {
		t.Fatalf("model row after restart = %+v, want %+v",
			after.ByModel["claude-opus-4-6"], before.ByModel["claude-opus-4-6"])
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	l := openTestLedger(t, filepath.Join(t.TempDir(), "usage.db"))
	if _, err := l.RecordUsage(10, 20, "claude-sonnet-4-6"); err != nil {
		t.Fatal(err)
	}

	snap := l.Snapshot()
	snap.ByModel["claude-sonnet-4-6"] = ModelUsage{InputTokens: 999999}
	snap.ByModel["injected"] = ModelUsage{}

	fresh := l.Snapshot()
	if fresh.ByModel["claude-sonnet-4-6"].InputTokens != 10 {
		t.Fatal("mutating a snapshot leaked into ledger state")
	}
	if _, ok := fresh.ByModel["injected"]; ok {
		t.Fatal("injected key leaked into ledger state")
	}
}
