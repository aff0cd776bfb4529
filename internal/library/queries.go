package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"petscan/internal/assets"
	"petscan/internal/logging"
	"petscan/internal/metrics"
)

const assetColumns = "id, path, url, media_type, created_at"

// UpsertAssets inserts or updates rows in one transaction and stamps them
// with indexedAt.
func (c *Catalog) UpsertAssets(ctx context.Context, rows []Asset, indexedAt time.Time) (err error) {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { recordQuery("upsert_assets", start, err) }()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		recordQuery("begin_transaction", start, err)
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			recordQuery("rollback", start, nil)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO assets (id, path, url, media_type, created_at, size, mod_time, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		path = excluded.path,
		url = excluded.url,
		media_type = excluded.media_type,
		created_at = excluded.created_at,
		size = excluded.size,
		mod_time = excluded.mod_time,
		indexed_at = excluded.indexed_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	stamp := indexedAt.UnixMilli()
	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx,
			row.ID,
			row.Path,
			row.URL,
			string(row.MediaType),
			nullableMillis(row.CreatedAt),
			row.Size,
			row.ModTime.UnixMilli(),
			stamp,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", row.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	recordQuery("commit", start, nil)
	return nil
}

// DeleteMissing removes rows not indexed since cutoff and returns how many
// were removed.
func (c *Catalog) DeleteMissing(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	result, err := c.db.ExecContext(ctx, "DELETE FROM assets WHERE indexed_at < ?", cutoff.UnixMilli())
	recordQuery("delete_missing", start, err)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count implements assets.Source.
func (c *Catalog) Count(ctx context.Context, filter assets.Filter) (int, error) {
	start := time.Now()
	where, args := filterClause(filter)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets"+where, args...).Scan(&n)
	recordQuery("count", start, err)
	return n, err
}

// Fetch implements assets.Source. The working set is read in one query and
// is not affected by later index runs.
func (c *Catalog) Fetch(ctx context.Context, opts assets.FetchOptions) (assets.FetchResult, error) {
	start := time.Now()
	where, args := filterClause(opts.Filter)

	direction := "DESC"
	if opts.Order == assets.OrderCreatedAsc {
		direction = "ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM assets%s ORDER BY created_at IS NULL, created_at %s, id",
		assetColumns, where, direction)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		recordQuery("fetch", start, err)
		return nil, fmt.Errorf("fetch assets: %w", err)
	}
	defer rows.Close()

	handles := make([]assets.Handle, 0, max(opts.Limit, 0))
	for rows.Next() {
		h, err := scanHandle(rows)
		if err != nil {
			recordQuery("fetch", start, err)
			return nil, err
		}
		handles = append(handles, h)
	}
	err = rows.Err()
	recordQuery("fetch", start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}

	logging.Debug("Fetched %d assets (limit %d)", len(handles), opts.Limit)
	return assets.SliceResult(handles), nil
}

// Get returns the asset with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (assets.Handle, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := c.db.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE id = ?", id)
	h, err := scanHandle(row)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get_asset", start, nil)
		return assets.Handle{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	recordQuery("get_asset", start, err)
	return h, err
}

// GetStats implements metrics.StatsProvider.
func (c *Catalog) GetStats() metrics.Stats {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err := c.db.QueryRowContext(ctx, `
	SELECT
		COUNT(*),
		COALESCE(SUM(media_type = 'image'), 0),
		COALESCE(SUM(media_type = 'video'), 0),
		COALESCE(SUM(created_at IS NULL), 0)
	FROM assets
	`).Scan(&stats.TotalAssets, &stats.Images, &stats.Videos, &stats.Undated)
	recordQuery("stats", start, err)
	if err != nil {
		logging.Warn("Failed to read catalog stats: %v", err)
		return metrics.Stats{}
	}
	return stats
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandle(row rowScanner) (assets.Handle, error) {
	var (
		h         assets.Handle
		mediaType string
		createdAt sql.NullInt64
	)
	if err := row.Scan(&h.ID, &h.Path, &h.URL, &mediaType, &createdAt); err != nil {
		return assets.Handle{}, err
	}
	h.MediaType = assets.MediaType(mediaType)
	if createdAt.Valid {
		h.CreatedAt = time.UnixMilli(createdAt.Int64)
	}
	return h, nil
}

func filterClause(f assets.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.MediaType != "" {
		conds = append(conds, "media_type = ?")
		args = append(args, string(f.MediaType))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
