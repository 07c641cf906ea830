package service

import "errors"

// Sentinel errors the HTTP layer maps to stable error codes.
var (
	ErrNoActiveShift        = errors.New("no active shift")
	ErrShiftAlreadyActive   = errors.New("a shift is already active")
	ErrDuplicateShift       = errors.New("shift already exists for this date and slot")
	ErrScheduleNotFound     = errors.New("no active schedule for slot")
	ErrRouteNotFound        = errors.New("route not found")
	ErrNoActiveCatalog      = errors.New("no active catalog")
	ErrNothingToPrint       = errors.New("nothing to print")
	ErrNoEnter              = errors.New("operator has not entered the route")
	ErrNoInitial            = errors.New("initial print pending")
	ErrLoteNotReprocessable = errors.New("lote is not in an error state")
	ErrPDFRender            = errors.New("pdf render failed")
)
