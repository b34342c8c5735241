package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

const eventColumns = `seq, entity_kind, entity_id, kind, payload_json, occurred_at, prev_hash, hash`

// AppendEvent seals an entry onto the end of the hash chain and inserts it
// inside the enclosing transaction.
func (t *txStore) AppendEvent(ctx context.Context, entry eventlog.Entry) (eventlog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return eventlog.Entry{}, err
	}
	if t == nil || t.q == nil {
		return eventlog.Entry{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(string(entry.EntityKind)) == "" || strings.TrimSpace(string(entry.Kind)) == "" {
		return eventlog.Entry{}, fmt.Errorf("event entity kind and kind are required")
	}
	if entry.OccurredAt.IsZero() {
		return eventlog.Entry{}, fmt.Errorf("event occurred at is required")
	}
	if len(entry.Payload) == 0 {
		entry.Payload = []byte("{}")
	}

	var (
		lastSeq  uint64
		lastHash string
	)
	err := t.q.QueryRowContext(ctx, `SELECT seq, hash FROM events ORDER BY seq DESC LIMIT 1`).Scan(&lastSeq, &lastHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return eventlog.Entry{}, fmt.Errorf("load event chain head: %w", err)
	}

	entry.OccurredAt = fromMillis(toMillis(entry.OccurredAt))
	sealed := eventlog.Seal(entry, lastSeq+1, lastHash)
	if _, err := t.q.ExecContext(ctx, `
INSERT INTO events (`+eventColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		sealed.Seq,
		string(sealed.EntityKind),
		sealed.EntityID,
		string(sealed.Kind),
		string(sealed.Payload),
		toMillis(sealed.OccurredAt),
		sealed.PrevHash,
		sealed.Hash,
	); err != nil {
		return eventlog.Entry{}, fmt.Errorf("append event: %w", err)
	}
	return sealed, nil
}

// ListEvents lists entries after afterSeq in ascending order.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]eventlog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM events WHERE seq > ? ORDER BY seq LIMIT ?
`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]eventlog.Entry, error) {
	defer rows.Close()
	var entries []eventlog.Entry
	for rows.Next() {
		entry, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return entries, nil
}

func scanEvent(scan scanner) (eventlog.Entry, error) {
	var (
		entry      eventlog.Entry
		payload    string
		occurredAt int64
	)
	if err := scan(
		&entry.Seq,
		&entry.EntityKind,
		&entry.EntityID,
		&entry.Kind,
		&payload,
		&occurredAt,
		&entry.PrevHash,
		&entry.Hash,
	); err != nil {
		return eventlog.Entry{}, err
	}
	entry.Payload = []byte(payload)
	entry.OccurredAt = fromMillis(occurredAt)
	return entry, nil
}

// PutCheckpoint records how far a consumer has folded the journal.
func (t *txStore) PutCheckpoint(ctx context.Context, checkpoint storage.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	checkpoint.Name = strings.TrimSpace(checkpoint.Name)
	if checkpoint.Name == "" {
		return fmt.Errorf("checkpoint name is required")
	}
	if checkpoint.UpdatedAt.IsZero() {
		return fmt.Errorf("checkpoint updated at is required")
	}
	if _, err := t.q.ExecContext(ctx, `
INSERT INTO checkpoints (name, seq, hash, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    seq = excluded.seq,
    hash = excluded.hash,
    updated_at = excluded.updated_at
`, checkpoint.Name, checkpoint.Seq, checkpoint.Hash, toMillis(checkpoint.UpdatedAt)); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint loads one checkpoint by name.
func (t *txStore) GetCheckpoint(ctx context.Context, name string) (storage.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return storage.Checkpoint{}, err
	}
	if t == nil || t.q == nil {
		return storage.Checkpoint{}, fmt.Errorf("storage is not configured")
	}
	var (
		checkpoint storage.Checkpoint
		updatedAt  int64
	)
	err := t.q.QueryRowContext(ctx, `SELECT name, seq, hash, updated_at FROM checkpoints WHERE name = ?`, strings.TrimSpace(name)).
		Scan(&checkpoint.Name, &checkpoint.Seq, &checkpoint.Hash, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Checkpoint{}, storage.ErrNotFound
		}
		return storage.Checkpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}
	checkpoint.UpdatedAt = fromMillis(updatedAt)
	return checkpoint, nil
}

// PutView replaces the rendered plan snapshot.
func (t *txStore) PutView(ctx context.Context, view storage.View) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	if view.RenderedAt.IsZero() {
		return fmt.Errorf("view rendered at is required")
	}
	if _, err := t.q.ExecContext(ctx, `
INSERT INTO views (id, markdown, locale, event_seq, rendered_at) VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    markdown = excluded.markdown,
    locale = excluded.locale,
    event_seq = excluded.event_seq,
    rendered_at = excluded.rendered_at
`, view.Markdown, view.Locale, view.EventSeq, toMillis(view.RenderedAt)); err != nil {
		return fmt.Errorf("put view: %w", err)
	}
	return nil
}

// GetView loads the last rendered plan snapshot.
func (t *txStore) GetView(ctx context.Context) (storage.View, error) {
	if err := ctx.Err(); err != nil {
		return storage.View{}, err
	}
	if t == nil || t.q == nil {
		return storage.View{}, fmt.Errorf("storage is not configured")
	}
	var (
		view       storage.View
		renderedAt int64
	)
	err := t.q.QueryRowContext(ctx, `SELECT markdown, locale, event_seq, rendered_at FROM views WHERE id = 1`).
		Scan(&view.Markdown, &view.Locale, &view.EventSeq, &renderedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.View{}, storage.ErrNotFound
		}
		return storage.View{}, fmt.Errorf("get view: %w", err)
	}
	view.RenderedAt = fromMillis(renderedAt)
	return view, nil
}
