package persistwriter

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/sitescout/discovery/migrations"
)

const (
	defaultMaxConns          = 10
	defaultMinConns          = 1
	connectionRetries        = 3
	connectionRetrySleep     = 500 * time.Millisecond
	migrationAdvisoryLockID  = 7421
)

// PostgresStore is the production Store backend, grounded on
// lueurxax-TelegramDigestBot's internal/storage/db.go connection and
// migration pattern: pgxpool for pooling, goose for schema migrations,
// raw SQL instead of that repo's sqlc-generated layer since this engine
// has only two tables and no call for a code generator in the pipeline.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore connects to dsn with retries, matching the teacher
// pack's connectWithRetries shape.
func NewPostgresStore(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = defaultMaxConns
	cfg.MinConns = defaultMinConns

	var pool *pgxpool.Pool
	for attempt := 0; attempt < connectionRetries; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &PostgresStore{pool: pool, log: log}, nil
			}
		}
		if pool != nil {
			pool.Close()
		}
		time.Sleep(connectionRetrySleep)
	}
	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectionRetries, err)
}

// Migrate applies pending goose migrations, guarded by a Postgres
// advisory lock so concurrent instances don't race on schema changes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationAdvisoryLockID); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationAdvisoryLockID)
	}()

	dbSQL := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer dbSQL.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(dbSQL, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// LookupExisting implements Store.
func (s *PostgresStore) LookupExisting(ctx context.Context, projectID string, urls []string) (map[string]PageRow, error) {
	out := make(map[string]PageRow)
	if len(urls) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, url, title, page_type, requires_auth, depth, is_accessible, thumbnail
		FROM discovered_pages
		WHERE project_id = $1 AND url = ANY($2)`, projectID, urls)
	if err != nil {
		return nil, fmt.Errorf("query existing pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r PageRow
		if err := rows.Scan(&r.ID, &r.URL, &r.Title, &r.PageType, &r.RequiresAuth, &r.Depth, &r.IsAccessible, &r.Thumbnail); err != nil {
			return nil, fmt.Errorf("scan existing page: %w", err)
		}
		out[r.URL] = r
	}
	return out, rows.Err()
}

// InsertPages implements Store.
func (s *PostgresStore) InsertPages(ctx context.Context, projectID string, pages []PageRow) (map[string]string, error) {
	out := make(map[string]string, len(pages))
	for _, p := range pages {
		var id string
		err := s.pool.QueryRow(ctx, `
			INSERT INTO discovered_pages (project_id, url, title, page_type, requires_auth, depth, is_accessible, thumbnail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (project_id, url) DO NOTHING
			RETURNING id`,
			projectID, p.URL, p.Title, p.PageType, p.RequiresAuth, p.Depth, p.IsAccessible, p.Thumbnail,
		).Scan(&id)
		if err != nil {
			// ON CONFLICT DO NOTHING yields no row on a duplicate race; that's
			// a tolerated no-op, not a failure (spec error taxonomy #6).
			s.log.Warn().Err(err).Str("url", p.URL).Msg("insert page skipped")
			continue
		}
		out[p.URL] = id
	}
	return out, nil
}

// UpdatePage implements Store.
func (s *PostgresStore) UpdatePage(ctx context.Context, projectID string, row PageRow) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE discovered_pages
		SET title = $3, page_type = $4, requires_auth = $5, depth = $6, is_accessible = $7, thumbnail = $8, updated_at = now()
		WHERE project_id = $1 AND id = $2`,
		projectID, row.ID, row.Title, row.PageType, row.RequiresAuth, row.Depth, row.IsAccessible, row.Thumbnail,
	)
	return err
}

// UpsertEdges implements Store.
func (s *PostgresStore) UpsertEdges(ctx context.Context, projectID string, edges []EdgeRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin edge batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range edges {
		_, err := tx.Exec(ctx, `
			INSERT INTO page_links (project_id, source_id, target_id, link_text, link_type, menu_level, revealed_by, parent_menu_text)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (project_id, source_id, target_id) DO NOTHING`,
			projectID, e.SourceID, e.TargetID, e.LinkText, e.LinkType, e.MenuLevel, e.RevealedBy, e.ParentMenuText,
		)
		if err != nil {
			return fmt.Errorf("upsert edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
	}
	return tx.Commit(ctx)
}
