package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/config"
	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	"github.com/comandas/backend/internal/models"
)

// LoteProcessor runs the parse/match/assign pipeline on a freshly ingested
// lote.
type LoteProcessor interface {
	ProcessLote(ctx context.Context, loteID int64) (models.Lote, error)
}

// Status is the live snapshot served by the mailbox status endpoint.
type Status struct {
	Running     bool       `json:"running"`
	Connected   bool       `json:"connected"`
	Mailbox     string     `json:"mailbox"`
	LastUID     int64      `json:"last_uid"`
	UIDValidity *int64     `json:"uidvalidity"`
	LastPollAt  *time.Time `json:"last_poll_at"`
	LastError   string     `json:"last_error,omitempty"`
}

// Worker polls one IMAP mailbox while a shift is active and materializes each
// new message as a lote. The (uidvalidity, uid) cursor makes ingestion
// idempotent across restarts and reconnects.
type Worker struct {
	cfg       config.Config
	store     *db.Store
	bus       *events.Bus
	processor LoteProcessor
	logger    zerolog.Logger

	mu    sync.Mutex
	st    Status
	nudge chan chan error
}

func NewWorker(cfg config.Config, store *db.Store, bus *events.Bus, processor LoteProcessor, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:       cfg,
		store:     store,
		bus:       bus,
		processor: processor,
		logger:    logger,
		st:        Status{Mailbox: cfg.IMAPFolder},
		nudge:     make(chan chan error, 1),
	}
}

// Run connects, polls and reconnects with exponential backoff until ctx is
// done. The backoff resets after every session that reached the mailbox.
func (w *Worker) Run(ctx context.Context) {
	w.update(func(st *Status) { st.Running = true })
	defer w.update(func(st *Status) { st.Running = false })

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		connected, err := w.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			bo.Reset()
		}
		if err != nil {
			w.update(func(st *Status) { st.LastError = err.Error() })
			w.logger.Warn().Err(err).Msg("mailbox session ended")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// TriggerPoll asks the connected session for an immediate poll and waits for
// its outcome.
func (w *Worker) TriggerPoll(ctx context.Context) error {
	if !w.Status().Connected {
		return errors.New("mailbox worker is not connected")
	}
	reply := make(chan error, 1)
	select {
	case w.nudge <- reply:
	default:
		return errors.New("a poll is already queued")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st
}

func (w *Worker) update(fn func(*Status)) {
	w.mu.Lock()
	fn(&w.st)
	w.mu.Unlock()
}

func (w *Worker) session(ctx context.Context) (bool, error) {
	addr := fmt.Sprintf("%s:%d", w.cfg.IMAPHost, w.cfg.IMAPPort)
	var c *client.Client
	var err error
	if w.cfg.IMAPSecure {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return false, err
	}
	defer c.Logout()

	if err := c.Login(w.cfg.IMAPUser, w.cfg.IMAPPassword); err != nil {
		return false, err
	}
	w.update(func(st *Status) { st.Connected = true; st.LastError = "" })
	defer w.update(func(st *Status) { st.Connected = false })
	w.logger.Info().Str("host", w.cfg.IMAPHost).Str("folder", w.cfg.IMAPFolder).Msg("mailbox connected")

	ticker := time.NewTicker(w.cfg.PollInterval())
	defer ticker.Stop()

	if err := w.poll(ctx, c); err != nil {
		return true, err
	}
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case reply := <-w.nudge:
			err := w.poll(ctx, c)
			reply <- err
			if err != nil {
				return true, err
			}
		case <-ticker.C:
			if err := w.poll(ctx, c); err != nil {
				return true, err
			}
		}
	}
}

// poll runs one ingest cycle: no active shift means no fetch, only a
// timestamp touch.
func (w *Worker) poll(ctx context.Context, c *client.Client) error {
	now := time.Now().UTC()

	shift, err := w.store.GetActiveShift(ctx)
	if errors.Is(err, db.ErrNotFound) {
		if err := w.store.TouchImapPoll(ctx, w.cfg.IMAPFolder, now); err != nil {
			return err
		}
		w.update(func(st *Status) { st.LastPollAt = &now })
		return nil
	}
	if err != nil {
		return err
	}

	cursor, err := w.store.GetImapCursor(ctx, w.cfg.IMAPFolder)
	if err != nil {
		return err
	}

	mbox, err := c.Select(w.cfg.IMAPFolder, true)
	if err != nil {
		return err
	}
	uidvalidity := int64(mbox.UidValidity)
	if cursor.UIDValidity == nil || *cursor.UIDValidity != uidvalidity {
		w.logger.Warn().Int64("old_last_uid", cursor.LastUID).Int64("uidvalidity", uidvalidity).
			Msg("mailbox uidvalidity changed, cursor reset")
		cursor.LastUID = 0
	}
	cursor.UIDValidity = &uidvalidity

	var newLotes []int64
	if mbox.Messages > 0 {
		newLotes, err = w.fetch(ctx, c, shift, &cursor, uidvalidity)
		if err != nil {
			return err
		}
	}

	cursor.LastPollAt = &now
	if err := w.store.SaveImapCursor(ctx, cursor); err != nil {
		return err
	}
	w.update(func(st *Status) {
		st.LastUID = cursor.LastUID
		st.UIDValidity = cursor.UIDValidity
		st.LastPollAt = &now
	})

	for _, id := range newLotes {
		if _, err := w.processor.ProcessLote(ctx, id); err != nil {
			w.logger.Error().Err(err).Int64("lote_id", id).Msg("lote processing failed after ingest")
		}
	}
	return nil
}

func (w *Worker) fetch(ctx context.Context, c *client.Client, shift models.Shift, cursor *models.ImapCursor, uidvalidity int64) ([]int64, error) {
	seq := new(goimap.SeqSet)
	seq.AddRange(uint32(cursor.LastUID+1), 0)

	section := &goimap.BodySectionName{}
	items := []goimap.FetchItem{goimap.FetchEnvelope, goimap.FetchUid, section.FetchItem()}

	messages := make(chan *goimap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seq, items, messages)
	}()

	var newLotes []int64
	for msg := range messages {
		uid := int64(msg.Uid)

		subject := ""
		receivedAt := time.Now().UTC()
		if msg.Envelope != nil {
			subject = msg.Envelope.Subject
			if !msg.Envelope.Date.IsZero() {
				receivedAt = msg.Envelope.Date.UTC()
			}
		}

		// A "last+1:*" fetch can return already-ingested UIDs (the newest
		// message when nothing is new, or a crash before the cursor save).
		// The insert conflict is the dedup: duplicates surface as an event,
		// never as a second lote.
		body, status, parseError := "", models.ParsePending, (*string)(nil)
		bodyText, err := readBody(msg.GetBody(section))
		if err != nil {
			w.logger.Error().Err(err).Int64("uid", uid).Msg("message body unreadable")
			reason := err.Error()
			status, parseError = models.ParseErrorParse, &reason
		} else {
			body = bodyText
		}

		lote, inserted, err := w.store.InsertLoteFromIMAP(ctx, shift.ID, uidvalidity, uid, receivedAt,
			subject, body, status, parseError)
		if err != nil {
			return newLotes, err
		}
		if uid > cursor.LastUID {
			cursor.LastUID = uid
		}
		if !inserted {
			w.bus.Publish(ctx, events.New(models.EvDuplicateIgnored, "mailbox", w.cfg.IMAPFolder, map[string]any{
				"uid": uid, "uidvalidity": uidvalidity,
			}))
			continue
		}
		if parseError != nil {
			w.bus.Publish(ctx, events.New(models.EvEmailReadError, "lote", fmt.Sprint(lote.ID), map[string]any{
				"uid": uid, "uidvalidity": uidvalidity, "error": *parseError,
			}))
			continue
		}
		w.bus.Publish(ctx, events.New(models.EvNewEmail, "lote", fmt.Sprint(lote.ID), map[string]any{
			"uid": uid, "subject": subject, "shift_id": shift.ID,
		}))
		newLotes = append(newLotes, lote.ID)
	}

	if err := <-done; err != nil {
		return newLotes, err
	}
	return newLotes, nil
}

func readBody(lit goimap.Literal) (string, error) {
	if lit == nil {
		return "", errors.New("message has no body section")
	}
	raw, err := io.ReadAll(lit)
	if err != nil {
		return "", err
	}
	return afterHeaders(string(raw)), nil
}

// afterHeaders strips the RFC 822 header block: everything up to the first
// blank line.
func afterHeaders(raw string) string {
	if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
		return raw[i+4:]
	}
	if i := strings.Index(raw, "\n\n"); i >= 0 {
		return raw[i+2:]
	}
	return raw
}
