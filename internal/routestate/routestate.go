package routestate

import "github.com/comandas/backend/internal/models"

// Transition is the outcome of recomputing a route's visual state.
type Transition struct {
	Prior      string
	Next       string
	AlertRed   bool // entered RED from a non-RED prior
	WentGreen  bool // entered GREEN from a non-GREEN prior
	Reactivate bool // COLLECTED route promoted out of GREEN by new work
}

// NextVisual derives the visual color from the unprinted-line count, the
// prior color and the logical state.
func NextVisual(unprinted int, prior, logical string) string {
	switch {
	case unprinted == 0:
		return models.VisualGreen
	case prior == models.VisualGreen || logical == models.LogicalCollected || prior == models.VisualRed:
		return models.VisualRed
	default:
		return models.VisualBlue
	}
}

// Compute evaluates the full transition for a route day given the current
// unprinted count.
func Compute(unprinted int, prior, logical string) Transition {
	next := NextVisual(unprinted, prior, logical)
	return Transition{
		Prior:      prior,
		Next:       next,
		AlertRed:   next == models.VisualRed && prior != models.VisualRed,
		WentGreen:  next == models.VisualGreen && prior != models.VisualGreen,
		Reactivate: logical == models.LogicalCollected && prior == models.VisualGreen && next != models.VisualGreen,
	}
}
