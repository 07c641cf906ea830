package routestate

import (
	"testing"

	"github.com/comandas/backend/internal/models"
)

func TestNextVisual(t *testing.T) {
	cases := []struct {
		unprinted int
		prior     string
		logical   string
		want      string
	}{
		{0, models.VisualBlue, models.LogicalActive, models.VisualGreen},
		{0, models.VisualRed, models.LogicalActive, models.VisualGreen},
		{0, models.VisualGreen, models.LogicalCollected, models.VisualGreen},
		{3, models.VisualBlue, models.LogicalActive, models.VisualBlue},
		{3, models.VisualGreen, models.LogicalActive, models.VisualRed},
		{3, models.VisualBlue, models.LogicalCollected, models.VisualRed},
		{3, models.VisualRed, models.LogicalActive, models.VisualRed},
	}
	for _, c := range cases {
		if got := NextVisual(c.unprinted, c.prior, c.logical); got != c.want {
			t.Fatalf("NextVisual(%d, %s, %s) = %s, want %s", c.unprinted, c.prior, c.logical, got, c.want)
		}
	}
}

func TestComputeSignals(t *testing.T) {
	// BLUE with all printed goes GREEN and announces completion.
	tr := Compute(0, models.VisualBlue, models.LogicalActive)
	if tr.Next != models.VisualGreen || !tr.WentGreen || tr.AlertRed {
		t.Fatalf("unexpected transition: %+v", tr)
	}

	// GREEN route receiving new work raises the alert once.
	tr = Compute(2, models.VisualGreen, models.LogicalActive)
	if tr.Next != models.VisualRed || !tr.AlertRed {
		t.Fatalf("expected alert on GREEN->RED: %+v", tr)
	}

	// Staying RED does not re-alert.
	tr = Compute(2, models.VisualRed, models.LogicalActive)
	if tr.AlertRed {
		t.Fatalf("RED->RED must not alert: %+v", tr)
	}

	// A collected route pushed out of GREEN counts as a reactivation.
	tr = Compute(1, models.VisualGreen, models.LogicalCollected)
	if !tr.Reactivate || !tr.AlertRed {
		t.Fatalf("expected reactivation + alert: %+v", tr)
	}

	// A collected route that was never GREEN does not reactivate.
	tr = Compute(1, models.VisualRed, models.LogicalCollected)
	if tr.Reactivate {
		t.Fatalf("unexpected reactivation: %+v", tr)
	}
}
