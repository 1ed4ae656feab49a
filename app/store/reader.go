package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/lysyi3m/mp-rss/app/metrics"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"
)

// Reader queries the message log. It never writes.
type Reader struct {
	db *sql.DB
}

// Open opens the SQLite message log read-only and verifies it is
// reachable.
func Open(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, path, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrStoreUnavailable, path, err)
	}

	return &Reader{db: db}, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}

func (r *Reader) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// MessagesFor returns up to limit link messages for originID, newest
// first. The limit caps the raw rows fetched; decoding, the domain
// allow-list and URL dedup run afterwards, so fewer than limit messages
// can come back even when older rows exist.
func (r *Reader) MessagesFor(ctx context.Context, originID string, limit int) ([]Message, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	// time is read as text: the driver would turn naive DATETIME values
	// into UTC, but they are wall-clock times of the writing host.
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("slave_message_id", "pickle", sb.As("CAST(time AS TEXT)", "time")).
		From("msglog").
		Where(
			sb.Equal("slave_origin_uid", originID),
			sb.Equal("msg_type", msgTypeLink),
		).
		OrderBy("time DESC", "rowid DESC").
		Limit(limit)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query messages for %s: %w", ErrStoreUnavailable, originID, err)
	}
	defer rows.Close()

	var raw []Row
	for rows.Next() {
		var (
			messageID sql.NullString
			payload   []byte
			ts        interface{}
		)
		if err := rows.Scan(&messageID, &payload, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan message row: %w", ErrStoreUnavailable, err)
		}
		raw = append(raw, Row{MessageID: messageID.String, Payload: payload, Time: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate message rows: %w", ErrStoreUnavailable, err)
	}

	metrics.RowsFetched.Add(float64(len(raw)))

	messages := Assemble(raw)

	slog.Debug("Messages loaded", "origin", originID, "rows", len(raw), "messages", len(messages), "limit", limit)

	return messages, nil
}

// HasArticles reports whether originID has at least one link row. The
// EXISTS subquery stops at the first match.
func (r *Reader) HasArticles(ctx context.Context, originID string) (bool, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("1").
		From("msglog").
		Where(
			sb.Equal("slave_origin_uid", originID),
			sb.Equal("msg_type", msgTypeLink),
		).
		Limit(1)

	inner, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS("+inner+")", args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check articles for %s: %w", ErrStoreUnavailable, originID, err)
	}

	return exists == 1, nil
}

// BatchHasArticles answers HasArticles for many origins with one query
// per chunk. Every requested id is present in the result.
func (r *Reader) BatchHasArticles(ctx context.Context, originIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(originIDs))
	for _, id := range originIDs {
		result[id] = false
	}

	for _, chunk := range lo.Chunk(lo.Uniq(originIDs), batchSize) {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Select("slave_origin_uid").
			Distinct().
			From("msglog").
			Where(
				sb.Equal("msg_type", msgTypeLink),
				sb.In("slave_origin_uid", lo.ToAnySlice(chunk)...),
			)

		query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: batch article check: %w", ErrStoreUnavailable, err)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scan batch article row: %w", ErrStoreUnavailable, err)
			}
			result[id] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: iterate batch article rows: %w", ErrStoreUnavailable, err)
		}
	}

	return result, nil
}

// BatchArticleCounts counts link rows per origin. Every requested id is
// present in the result.
func (r *Reader) BatchArticleCounts(ctx context.Context, originIDs []string) (map[string]int, error) {
	result := make(map[string]int, len(originIDs))
	for _, id := range originIDs {
		result[id] = 0
	}

	for _, chunk := range lo.Chunk(lo.Uniq(originIDs), batchSize) {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Select("slave_origin_uid", "COUNT(*)").
			From("msglog").
			Where(
				sb.Equal("msg_type", msgTypeLink),
				sb.In("slave_origin_uid", lo.ToAnySlice(chunk)...),
			).
			GroupBy("slave_origin_uid")

		query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: batch article count: %w", ErrStoreUnavailable, err)
		}

		for rows.Next() {
			var (
				id    string
				count int
			)
			if err := rows.Scan(&id, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scan batch count row: %w", ErrStoreUnavailable, err)
			}
			result[id] = count
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: iterate batch count rows: %w", ErrStoreUnavailable, err)
		}
	}

	return result, nil
}
