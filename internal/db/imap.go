package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/models"
)

// GetImapCursor returns the mailbox cursor, creating the row on first use.
func (s *Store) GetImapCursor(ctx context.Context, mailbox string) (models.ImapCursor, error) {
	var c models.ImapCursor
	err := s.Pool.QueryRow(ctx, `
		SELECT mailbox, last_uid, uidvalidity, last_poll_at FROM imap_cursor WHERE mailbox = $1`,
		mailbox).Scan(&c.Mailbox, &c.LastUID, &c.UIDValidity, &c.LastPollAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ImapCursor{Mailbox: mailbox}, nil
	}
	return c, err
}

// SaveImapCursor upserts the cursor after a poll cycle. The ingest worker is
// the only writer of this row.
func (s *Store) SaveImapCursor(ctx context.Context, c models.ImapCursor) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO imap_cursor (mailbox, last_uid, uidvalidity, last_poll_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mailbox) DO UPDATE
		SET last_uid = EXCLUDED.last_uid, uidvalidity = EXCLUDED.uidvalidity, last_poll_at = EXCLUDED.last_poll_at`,
		c.Mailbox, c.LastUID, c.UIDValidity, c.LastPollAt)
	return err
}

// TouchImapPoll records a poll that fetched nothing (no active shift).
func (s *Store) TouchImapPoll(ctx context.Context, mailbox string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO imap_cursor (mailbox, last_poll_at) VALUES ($1, $2)
		ON CONFLICT (mailbox) DO UPDATE SET last_poll_at = EXCLUDED.last_poll_at`,
		mailbox, at)
	return err
}
