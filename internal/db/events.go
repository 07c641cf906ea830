package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comandas/backend/internal/models"
)

// AppendEvent persists one event row. Payloads are stored as JSONB.
func (s *Store) AppendEvent(ctx context.Context, e models.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO events (id, ts, actor_user, type, entity_type, entity_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Ts, e.ActorUser, e.Type, e.EntityType, e.EntityID, payload)
	return err
}

const eventColumns = `id, ts, actor_user, type, entity_type, entity_id, payload`

func scanEvent(row pgx.Row) (models.Event, error) {
	var e models.Event
	var payload []byte
	err := row.Scan(&e.ID, &e.Ts, &e.ActorUser, &e.Type, &e.EntityType, &e.EntityID, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &e.Payload)
	}
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (models.Event, error) {
	return scanEvent(s.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// ListEventsAfter replays persisted events strictly later than ts in
// ascending time order, capped.
func (s *Store) ListEventsAfter(ctx context.Context, ts time.Time, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE ts > $1
		ORDER BY ts ASC, id ASC
		LIMIT $2`, ts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEvents is the paged history endpoint's query with optional filters.
func (s *Store) ListEvents(ctx context.Context, eventType, entityType, entityID string, limit, offset int) ([]models.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	var wheres []string
	if eventType != "" {
		args = append(args, eventType)
		wheres = append(wheres, fmt.Sprintf("type = $%d", len(args)))
	}
	if entityType != "" {
		args = append(args, entityType)
		wheres = append(wheres, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if entityID != "" {
		args = append(args, entityID)
		wheres = append(wheres, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	for i, w := range wheres {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY ts DESC, id DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
