package matcher

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/normalizer"
)

// DefaultThreshold is the minimum Levenshtein ratio (0..100) for a fuzzy hit.
const DefaultThreshold = 80

type Result struct {
	Matched bool
	Method  string
	Product models.Product
	// Score is 0..1; 1.0 for exact matches.
	Score float64
}

// Match resolves a raw product string against the active catalog. Exact phase
// compares normalized names; the fuzzy phase compares space-stripped forms so
// that hyphenated or run-together spellings still land ("coca-kola" vs
// "COCA COLA"). Ties are broken by catalog scan order, which the loader
// guarantees is alphabetical by norm_name.
func Match(raw string, catalog []models.Product, threshold int) Result {
	key := normalizer.Norm(raw)
	if key == "" || len(catalog) == 0 {
		return Result{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	for _, p := range catalog {
		if p.NormName == key {
			return Result{Matched: true, Method: models.MatchExact, Product: p, Score: 1.0}
		}
	}

	stripped := strings.ReplaceAll(key, " ", "")
	best := -1
	var bestProduct models.Product
	for _, p := range catalog {
		r := Ratio(stripped, strings.ReplaceAll(p.NormName, " ", ""))
		if r > best {
			best = r
			bestProduct = p
		}
	}
	if best >= threshold {
		return Result{Matched: true, Method: models.MatchFuzzy, Product: bestProduct, Score: float64(best) / 100}
	}
	return Result{}
}

// Ratio is 100 * (1 - edit_distance / max(len_a, len_b)), truncated, over runes.
func Ratio(a, b string) int {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 100
	}
	max := la
	if lb > max {
		max = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (max - d) / max
}
