package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Postgres stores conversations in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded postgres migrations. The *sql.DB borrows
// connections from the pool; closing it leaves the pool open.
func (s *Postgres) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Postgres) CreateConversation(ctx context.Context, id uuid.UUID, now time.Time) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES ($1, $2, $2)
		RETURNING id, created_at, updated_at, metadata`,
		id, now,
	)

	var c Conversation
	var meta []byte
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &meta); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	c.Metadata = metadataOrEmpty(meta)
	return &c, nil
}

func (s *Postgres) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, created_at, updated_at, metadata
		FROM conversations WHERE id = $1`, id)

	var c Conversation
	var meta []byte
	err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.Metadata = metadataOrEmpty(meta)
	return &c, nil
}

// TouchConversation bumps updated_at, never moving it backwards.
func (s *Postgres) TouchConversation(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET updated_at = GREATEST(updated_at, $2)
		WHERE id = $1`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) InsertMessage(ctx context.Context, m NewMessage) (*Message, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, conversation_id, sender, text, created_at, metadata`,
		m.ID, m.ConversationID, string(m.Sender), m.Text, m.CreatedAt,
	)

	msg, err := scanPGMessage(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "23514") {
			return nil, fmt.Errorf("insert message: %w: %s", ErrConstraint, pgErr.Message)
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender, text, created_at, metadata
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectPGMessages(rows)
}

// ListRecentMessages fetches the newest limit rows and restores forward order.
func (s *Postgres) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender, text, created_at, metadata
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	msgs, err := collectPGMessages(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func scanPGMessage(row pgx.Row) (*Message, error) {
	var m Message
	var sender string
	var meta []byte
	if err := row.Scan(&m.ID, &m.ConversationID, &sender, &m.Text, &m.CreatedAt, &meta); err != nil {
		return nil, err
	}
	m.Sender = Sender(sender)
	m.Metadata = metadataOrEmpty(meta)
	return &m, nil
}

func collectPGMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanPGMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
