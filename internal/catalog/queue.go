package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/srag-go/srag/internal/model"
	"github.com/srag-go/srag/internal/srerrors"
)

// EnqueueReindex upserts a pending reindex request by (project, path),
// overwriting the event if one was already queued for that file.
func (c *Catalog) EnqueueReindex(ctx context.Context, project, path string, event model.ReindexEvent) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO reindex_queue (project, path, event, queued_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project, path) DO UPDATE SET
			event = excluded.event,
			queued_at = CURRENT_TIMESTAMP
	`, project, path, string(event))
	if err != nil {
		return srerrors.CatalogError("enqueue reindex", err)
	}
	return nil
}

// DequeueReindex returns the oldest pending item for project and deletes it
// in the same transaction. Returns (zero, false, nil) if the queue is empty.
func (c *Catalog) DequeueReindex(ctx context.Context, project string) (model.ReindexQueueItem, bool, error) {
	var item model.ReindexQueueItem
	found := false

	err := c.withImmediateTx(ctx, func(tx execer) error {
		row := tx.QueryRowContext(ctx, `
			SELECT project, path, event, queued_at
			FROM reindex_queue
			WHERE project = ?
			ORDER BY queued_at ASC
			LIMIT 1
		`, project)

		var event string
		err := row.Scan(&item.Project, &item.Path, &event, &item.QueuedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return srerrors.CatalogError("dequeue reindex", err)
		}
		item.Event = model.ReindexEvent(event)
		found = true

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reindex_queue WHERE project = ? AND path = ?`, item.Project, item.Path); err != nil {
			return srerrors.CatalogError("delete dequeued item", err)
		}
		return nil
	})
	if err != nil {
		return model.ReindexQueueItem{}, false, err
	}
	return item, found, nil
}

// QueueLength reports the number of pending reindex items for project, for
// observability.
func (c *Catalog) QueueLength(ctx context.Context, project string) (int, error) {
	var n int
	row := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reindex_queue WHERE project = ?`, project)
	if err := row.Scan(&n); err != nil {
		return 0, srerrors.CatalogError("queue length", err)
	}
	return n, nil
}
