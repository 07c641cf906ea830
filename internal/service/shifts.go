package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/models"
)

// Poller lets the shift lifecycle nudge the mailbox worker without importing
// it.
type Poller interface {
	TriggerPoll(ctx context.Context) error
}

// ShiftService drives the shift lifecycle: opening (with carryover from the
// previous shift), manual close and the scheduled auto-close.
type ShiftService struct {
	Store  *db.Store
	Bus    *events.Bus
	Routes *RouteService
	Poller Poller
	Logger zerolog.Logger
}

// CarrySummary reports what the carryover step moved into a new shift.
type CarrySummary struct {
	Lotes  int `json:"lotes"`
	Lines  int `json:"lines"`
	Routes int `json:"routes"`
}

// Open activates a shift for (date, slot), pulling unprinted work from the
// most recently closed shift. Exactly one shift can be ACTIVE.
func (s *ShiftService) Open(ctx context.Context, date time.Time, slot, actor string) (models.Shift, CarrySummary, error) {
	var shift models.Shift
	var carry CarrySummary
	var evs []models.Event

	err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		evs = evs[:0]
		carry = CarrySummary{}

		if _, err := s.Store.GetActiveShiftTx(ctx, tx); err == nil {
			return ErrShiftAlreadyActive
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		sched, err := s.Store.GetSchedule(ctx, tx, slot)
		if errors.Is(err, db.ErrNotFound) {
			return ErrScheduleNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		shift, err = s.Store.InsertActiveShift(ctx, tx, date, slot, now, scheduledEnd(date, sched))
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateShift
			}
			return err
		}

		cevs, err := s.carryOver(ctx, tx, shift, &carry)
		if err != nil {
			return err
		}

		evs = append(evs, withActor(events.New(models.EvShiftStarted, "shift", fmt.Sprint(shift.ID), map[string]any{
			"date": date.Format("2006-01-02"), "slot": slot,
			"carried_lotes": carry.Lotes, "carried_lines": carry.Lines,
		}), actor))
		evs = append(evs, cevs...)
		return nil
	})
	if err != nil {
		return models.Shift{}, CarrySummary{}, err
	}

	s.Bus.PublishAll(ctx, evs)
	if s.Poller != nil {
		if err := s.Poller.TriggerPoll(ctx); err != nil {
			s.Logger.Warn().Err(err).Msg("post-open mailbox poll not triggered")
		}
	}
	return shift, carry, nil
}

// Close ends the given shift; it must be the ACTIVE one.
func (s *ShiftService) Close(ctx context.Context, shiftID int64, actor string) (models.Shift, error) {
	shift, err := s.Store.CloseShiftByID(ctx, shiftID, time.Now().UTC())
	if errors.Is(err, db.ErrNotFound) {
		return models.Shift{}, ErrNoActiveShift
	}
	if err != nil {
		return models.Shift{}, err
	}
	s.Bus.Publish(ctx, withActor(events.New(models.EvShiftClosed, "shift", fmt.Sprint(shift.ID), map[string]any{
		"slot": shift.Slot, "date": shift.Date.Format("2006-01-02"),
	}), actor))
	return shift, nil
}

// RunAutoCloser closes the active shift once its scheduled end passes. Blocks
// until ctx is done.
func (s *ShiftService) RunAutoCloser(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			shift, err := s.Store.CloseExpiredShift(ctx, time.Now().UTC())
			if errors.Is(err, db.ErrNotFound) {
				continue
			}
			if err != nil {
				s.Logger.Error().Err(err).Msg("auto-close check failed")
				continue
			}
			s.Logger.Info().Int64("shift_id", shift.ID).Str("slot", shift.Slot).Msg("shift auto-closed")
			s.Bus.Publish(ctx, events.New(models.EvShiftClosedAuto, "shift", fmt.Sprint(shift.ID), map[string]any{
				"slot": shift.Slot, "date": shift.Date.Format("2006-01-02"),
			}))
		}
	}
}

// scheduledEnd anchors the schedule's end time on the shift date; a slot that
// ends at or before its start (NIGHT) spills into the next day.
func scheduledEnd(date time.Time, sched models.Schedule) time.Time {
	start, _ := time.Parse("15:04", sched.StartTime)
	end, _ := time.Parse("15:04", sched.EndTime)
	out := time.Date(date.Year(), date.Month(), date.Day(), end.Hour(), end.Minute(), 0, 0, time.UTC)
	if !end.After(start) {
		out = out.AddDate(0, 0, 1)
	}
	return out
}
