package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shift states.
const (
	ShiftCreated = "CREATED"
	ShiftActive  = "ACTIVE"
	ShiftClosed  = "CLOSED"
)

// Shift slots.
const (
	SlotMorning   = "MORNING"
	SlotAfternoon = "AFTERNOON"
	SlotNight     = "NIGHT"
)

// Lote parse statuses.
const (
	ParsePending    = "PENDING"
	ParseOK         = "OK"
	ParseErrorRoute = "ERROR_ROUTE"
	ParseErrorParse = "ERROR_PARSE"
)

// Route visual states.
const (
	VisualBlue  = "BLUE"
	VisualGreen = "GREEN"
	VisualRed   = "RED"
)

// Route logical states.
const (
	LogicalActive    = "ACTIVE"
	LogicalCollected = "COLLECTED"
)

// Line match methods.
const (
	MatchExact = "EXACT"
	MatchFuzzy = "FUZZY"
)

// Print job kinds.
const (
	PrintOperatorInitial = "OPERATOR_INITIAL"
	PrintOperatorNew     = "OPERATOR_NEW"
	PrintCollectorNew    = "COLLECTOR_NEW"
	PrintReprint         = "REPRINT"
)

// Print job statuses.
const (
	JobCreated  = "CREATED"
	JobPDFReady = "PDF_READY"
	JobSent     = "SENT"
	JobFailed   = "FAILED"
)

// FamilyOthers is the catch-all family for unmatched products.
const FamilyOthers = 6

type Schedule struct {
	ID        int64  `json:"id"`
	Slot      string `json:"slot"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Active    bool   `json:"active"`
}

type Shift struct {
	ID             int64      `json:"id"`
	Date           time.Time  `json:"date"`
	Slot           string     `json:"slot"`
	State          string     `json:"state"`
	StartedAt      *time.Time `json:"started_at"`
	ScheduledEndAt *time.Time `json:"scheduled_end_at"`
	EndedAt        *time.Time `json:"ended_at"`
}

type Qualification struct {
	ShiftID        int64  `json:"shift_id"`
	OperatorID     string `json:"operator_id"`
	FunctionalCode int    `json:"functional_code"`
	Enabled        bool   `json:"enabled"`
}

type CatalogVersion struct {
	ID          int64      `json:"id"`
	Version     string     `json:"version"`
	Active      bool       `json:"active"`
	ActivatedAt *time.Time `json:"activated_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Product struct {
	ID       int64  `json:"id"`
	NormName string `json:"norm_name"`
	Family   int    `json:"family"`
}

type Lote struct {
	ID                int64     `json:"id"`
	ShiftID           int64     `json:"shift_id"`
	IMAPUIDValidity   *int64    `json:"imap_uidvalidity"`
	IMAPUID           *int64    `json:"imap_uid"`
	ReceivedAt        time.Time `json:"received_at"`
	SubjectRaw        string    `json:"subject_raw"`
	BodyRaw           string    `json:"body_raw,omitempty"`
	ParseStatus       string    `json:"parse_status"`
	ParseError        *string   `json:"parse_error"`
	RouteNorm         *string   `json:"route_norm"`
	ProductsCatalogID *int64    `json:"products_catalog_id"`
	RoutesCatalogID   *int64    `json:"routes_catalog_id"`
	CarriedOver       bool      `json:"carried_over"`
	CreatedAt         time.Time `json:"created_at"`
}

type RouteDay struct {
	ID                 int64      `json:"id"`
	ShiftID            int64      `json:"shift_id"`
	RouteNorm          string     `json:"route_norm"`
	VisualState        string     `json:"visual_state"`
	LogicalState       string     `json:"logical_state"`
	ReactivationsCount int        `json:"reactivations_count"`
	LastEventAt        *time.Time `json:"last_event_at"`
}

type RouteSummary struct {
	RouteID      int64  `json:"route_id"`
	RouteName    string `json:"route_name"`
	VisualState  string `json:"visual_state"`
	LogicalState string `json:"logical_state"`
	Unprinted    int    `json:"unprinted"`
	TotalLines   int    `json:"total_lines"`
	TotalClients int    `json:"total_clients"`
	LotesCount   int    `json:"lotes_count"`
}

type ClientOrder struct {
	ID           int64   `json:"id"`
	LoteID       int64   `json:"lote_id"`
	NameRaw      string  `json:"name_raw"`
	AffinityKey  string  `json:"affinity_key"`
	Observations *string `json:"observations"`
}

type Line struct {
	ID            int64            `json:"id"`
	ClientOrderID int64            `json:"client_order_id"`
	SeqInClient   int              `json:"seq_in_client"`
	Quantity      decimal.Decimal  `json:"quantity"`
	UnitRaw       string           `json:"unit_raw"`
	ProductRaw    string           `json:"product_raw"`
	ProductNorm   string           `json:"product_norm"`
	Price         *decimal.Decimal `json:"price"`
	Currency      string           `json:"currency"`
	MatchMethod   *string          `json:"match_method"`
	MatchScore    *float64         `json:"match_score"`
	Family        int              `json:"family"`
	OperatorID    *string          `json:"operator_id"`
	AssignedAt    *time.Time       `json:"assigned_at"`
	PrintedAt     *time.Time       `json:"printed_at"`
	PrintCount    int              `json:"print_count"`
}

// FunctionalCode mirrors Family; the two are one value in this system.
func (l Line) FunctionalCode() int { return l.Family }

type OperatorRouteProgress struct {
	ShiftID           int64      `json:"shift_id"`
	OperatorID        string     `json:"operator_id"`
	RouteNorm         string     `json:"route_norm"`
	EnteredAt         time.Time  `json:"entered_at"`
	CutoffLoteID      *int64     `json:"cutoff_lote_id"`
	LastPrintedLoteID *int64     `json:"last_printed_lote_id"`
	LastPrintedAt     *time.Time `json:"last_printed_at"`
}

type CollectorRouteProgress struct {
	ShiftID          int64      `json:"shift_id"`
	RouteNorm        string     `json:"route_norm"`
	LastClosedLoteID *int64     `json:"last_closed_lote_id"`
	LastClosedAt     *time.Time `json:"last_closed_at"`
}

type PrintJob struct {
	ID           string    `json:"id"`
	ShiftID      int64     `json:"shift_id"`
	RouteNorm    string    `json:"route_norm"`
	ActorUser    *string   `json:"actor_user"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	PDFRef       *string   `json:"pdf_ref"`
	ErrorText    *string   `json:"error_text"`
	CutoffLoteID *int64    `json:"cutoff_lote_id"`
	FromLoteID   *int64    `json:"from_lote_id"`
	ToLoteID     *int64    `json:"to_lote_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type ImapCursor struct {
	Mailbox     string     `json:"mailbox"`
	LastUID     int64      `json:"last_uid"`
	UIDValidity *int64     `json:"uidvalidity"`
	LastPollAt  *time.Time `json:"last_poll_at"`
}

type Event struct {
	ID         string         `json:"id"`
	Ts         time.Time      `json:"ts"`
	ActorUser  *string        `json:"actor,omitempty"`
	Type       string         `json:"type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// Event types recognized by the core. The set is open; these are the ones
// the backend itself emits.
const (
	EvShiftStarted     = "SHIFT_STARTED"
	EvShiftClosed      = "SHIFT_CLOSED"
	EvShiftClosedAuto  = "SHIFT_CLOSED_AUTO"
	EvNewEmail         = "NEW_EMAIL"
	EvEmailReadError   = "EMAIL_READ_ERROR"
	EvDuplicateIgnored = "DUPLICATE_IGNORED"
	EvRouteParseError  = "ROUTE_PARSE_ERROR"
	EvBodyParseError   = "BODY_PARSE_ERROR"
	EvProductNotFound  = "PRODUCT_NOT_FOUND"
	EvProductFuzzy     = "PRODUCT_FUZZY_MATCH"
	EvEmptyPool        = "EMPTY_OPERATOR_POOL"
	EvLoteProcessed    = "LOTE_PROCESSED"
	EvLoteProcessError = "LOTE_PROCESS_ERROR"
	EvLoteCarriedOver  = "LOTE_CARRIED_OVER"
	EvRouteAlertRed    = "ROUTE_ALERT_RED"
	EvRouteGreen       = "ROUTE_COMPLETE_GREEN"
	EvRouteCollected   = "ROUTE_COLLECTED"
	EvRouteReactivated = "ROUTE_REACTIVATED"
	EvOperatorEntered  = "OPERATOR_ENTERED_ROUTE"
	EvPrintEmitted     = "PRINT_EMITTED"
	EvProductsActive   = "PRODUCTS_ACTIVATED"
	EvRoutesActive     = "ROUTES_ACTIVATED"
)
