package staticads

import (
	"testing"

	"adstudio/internal/domain"
)

func TestPlaceholdersSeedStacks(t *testing.T) {
	p := Placeholders{}
	p.Seed([]string{"A: desc A", "  B:  desc B "}, 2)
	if p.Count("A: desc A") != 2 || p.Count("B: desc B") != 2 {
		t.Fatalf("seeded = %v", p)
	}
	p.Seed([]string{"A: desc A"}, 2)
	if p.Count("A: desc A") != 4 {
		t.Fatalf("re-seed should stack, got %d", p.Count("A: desc A"))
	}
	p.Seed([]string{"C"}, 0)
	if _, ok := p["C"]; ok {
		t.Fatalf("zero quota must not create a key")
	}
}

func TestPlaceholdersResumeSetsQuota(t *testing.T) {
	p := Placeholders{"A: desc A": 1, "X": 2}
	p.Resume([]string{"A: desc A", "B"}, 2)
	if len(p) != 2 || p.Count("A: desc A") != 2 || p.Count("B") != 2 {
		t.Fatalf("resume = %v", p)
	}
}

func TestPlaceholdersConsumeNeverNegative(t *testing.T) {
	p := Placeholders{}
	p.Seed([]string{"A"}, 1)
	if !p.Consume("A") {
		t.Fatalf("first consume should succeed")
	}
	if p.Consume("A") {
		t.Fatalf("consume past zero should report false")
	}
	if _, ok := p["A"]; ok {
		t.Fatalf("exhausted key should be removed")
	}
	if p.Count("A") != 0 {
		t.Fatalf("count = %d", p.Count("A"))
	}
}

func TestPlaceholdersAttributeMonotonic(t *testing.T) {
	angles := []string{"A: desc A", "B: desc B"}
	batches := [][]domain.GeneratedResult{
		{result("1", 1, 0)},
		{result("2", 2, 0), result("3", 1, 0)},
		{result("4", 1, 0), result("5", 9, 0), result("6", 0, 0)},
		{result("7", 2, 0), result("8", 2, 0)},
	}
	const quota = 2

	p := Placeholders{}
	p.Seed(angles, quota)
	merged := map[string]int{}
	for _, batch := range batches {
		p.Attribute(batch, angles)
		for _, r := range batch {
			if a, ok := angleAt(angles, r.AngleIndex); ok {
				merged[a]++
			}
		}
		for _, a := range angles {
			want := quota - merged[a]
			if want < 0 {
				want = 0
			}
			if got := p.Count(a); got != want {
				t.Fatalf("angle %q: count %d, want %d", a, got, want)
			}
		}
	}
	if p.Total() != 0 {
		t.Fatalf("total = %d after over-delivery", p.Total())
	}
}

func TestPlaceholdersAttributeReturnsConsumed(t *testing.T) {
	p := Placeholders{}
	p.Seed([]string{"A"}, 2)
	n := p.Attribute([]domain.GeneratedResult{result("1", 1, 0), result("2", 1, 0), result("3", 1, 0)}, []string{"A"})
	if n != 2 {
		t.Fatalf("consumed = %d, want 2", n)
	}
}

func TestPlaceholdersClearAndSnapshot(t *testing.T) {
	p := Placeholders{}
	p.Seed([]string{"A", "B"}, 2)
	snap := p.Snapshot()
	p.Clear()
	if len(p) != 0 {
		t.Fatalf("clear left %v", p)
	}
	if snap["A"] != 2 || snap["B"] != 2 {
		t.Fatalf("snapshot changed with the tracker: %v", snap)
	}
}
