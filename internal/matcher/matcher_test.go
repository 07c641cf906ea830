package matcher

import (
	"testing"

	"github.com/comandas/backend/internal/models"
)

func catalog(names ...string) []models.Product {
	out := make([]models.Product, 0, len(names))
	for i, n := range names {
		out = append(out, models.Product{ID: int64(i + 1), NormName: n, Family: i%6 + 1})
	}
	return out
}

func TestMatchExact(t *testing.T) {
	cat := catalog("COCA COLA", "LECHE")
	res := Match("Leche", cat, DefaultThreshold)
	if !res.Matched || res.Method != models.MatchExact {
		t.Fatalf("expected exact match, got %+v", res)
	}
	if res.Product.NormName != "LECHE" || res.Score != 1.0 {
		t.Fatalf("wrong product or score: %+v", res)
	}
}

func TestMatchFuzzyAboveThreshold(t *testing.T) {
	cat := catalog("COCA COLA")
	res := Match("coca-kola", cat, DefaultThreshold)
	if !res.Matched || res.Method != models.MatchFuzzy {
		t.Fatalf("expected fuzzy match, got %+v", res)
	}
	if res.Score < 0.80 || res.Score >= 1.0 {
		t.Fatalf("unexpected score %v", res.Score)
	}
}

func TestMatchNoMatch(t *testing.T) {
	cat := catalog("COCA COLA")
	if res := Match("xyzzy", cat, DefaultThreshold); res.Matched {
		t.Fatalf("expected no match, got %+v", res)
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	if res := Match("", catalog("LECHE"), DefaultThreshold); res.Matched {
		t.Fatalf("empty key must not match")
	}
	if res := Match("leche", nil, DefaultThreshold); res.Matched {
		t.Fatalf("empty catalog must not match")
	}
	if res := Match("---", catalog("LECHE"), DefaultThreshold); res.Matched {
		t.Fatalf("key normalizing to empty must not match")
	}
}

func TestMatchTieBreaksByScanOrder(t *testing.T) {
	// Both entries are at the same distance from the key; the first wins.
	cat := catalog("PERA", "PESA")
	res := Match("peta", cat, 50)
	if !res.Matched || res.Product.NormName != "PERA" {
		t.Fatalf("expected first catalog entry on tie, got %+v", res)
	}
}

func TestRatio(t *testing.T) {
	if r := Ratio("ABC", "ABC"); r != 100 {
		t.Fatalf("identical strings: got %d", r)
	}
	if r := Ratio("ABCD", "ABCX"); r != 75 {
		t.Fatalf("one sub over 4: got %d", r)
	}
	if r := Ratio("", ""); r != 100 {
		t.Fatalf("two empties: got %d", r)
	}
	if r := Ratio("COCAKOLA", "COCACOLA"); r != 87 {
		t.Fatalf("coca-kola case: got %d", r)
	}
}
