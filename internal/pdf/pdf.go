package pdf

import (
	"context"
	"time"
)

// Comanda is the printable document for one route print job.
type Comanda struct {
	JobID       string        `json:"job_id"`
	Kind        string        `json:"kind"`
	RouteName   string        `json:"route_name"`
	ShiftDate   string        `json:"shift_date"`
	ShiftSlot   string        `json:"shift_slot"`
	OperatorID  string        `json:"operator_id,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
	Clients     []ClientBlock `json:"clients"`
}

type ClientBlock struct {
	Name         string `json:"name"`
	Observations string `json:"observations,omitempty"`
	Lines        []Line `json:"lines"`
}

type Line struct {
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Product  string `json:"product"`
	Price    string `json:"price,omitempty"`
}

type Renderer interface {
	RenderComanda(ctx context.Context, c Comanda) ([]byte, int64, error)
}
