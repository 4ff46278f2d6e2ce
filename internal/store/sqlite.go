package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite stores conversations in an embedded database file. Timestamps are
// kept as unix microseconds; rowid breaks created_at ties.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLite) CreateConversation(ctx context.Context, id uuid.UUID, now time.Time) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
		RETURNING id, created_at, updated_at, metadata`,
		id.String(), now.UnixMicro(), now.UnixMicro(),
	)
	c, err := scanSQLiteConversation(row)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return c, nil
}

func (s *SQLite) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, metadata
		FROM conversations WHERE id = ?`, id.String())

	c, err := scanSQLiteConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *SQLite) TouchConversation(ctx context.Context, id uuid.UUID, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = MAX(updated_at, ?)
		WHERE id = ?`,
		now.UnixMicro(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) InsertMessage(ctx context.Context, m NewMessage) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender, text, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, conversation_id, sender, text, created_at, metadata`,
		m.ID.String(), m.ConversationID.String(), string(m.Sender), m.Text, m.CreatedAt.UnixMicro(),
	)

	msg, err := scanSQLiteMessage(row)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return nil, fmt.Errorf("insert message: %w: %s", ErrConstraint, sqliteErr.Error())
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *SQLite) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, text, created_at, metadata
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC`, conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectSQLiteMessages(rows)
}

func (s *SQLite) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, text, created_at, metadata
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, conversationID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	msgs, err := collectSQLiteMessages(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteConversation(row rowScanner) (*Conversation, error) {
	var (
		id                   string
		createdAt, updatedAt int64
		meta                 string
	)
	if err := row.Scan(&id, &createdAt, &updatedAt, &meta); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse conversation id: %w", err)
	}
	return &Conversation{
		ID:        parsed,
		CreatedAt: time.UnixMicro(createdAt).UTC(),
		UpdatedAt: time.UnixMicro(updatedAt).UTC(),
		Metadata:  metadataOrEmpty([]byte(meta)),
	}, nil
}

func scanSQLiteMessage(row rowScanner) (*Message, error) {
	var (
		id, convID, sender, text, meta string
		createdAt                      int64
	)
	if err := row.Scan(&id, &convID, &sender, &text, &createdAt, &meta); err != nil {
		return nil, err
	}
	msgID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse message id: %w", err)
	}
	conversationID, err := uuid.Parse(convID)
	if err != nil {
		return nil, fmt.Errorf("parse conversation id: %w", err)
	}
	return &Message{
		ID:             msgID,
		ConversationID: conversationID,
		Sender:         Sender(sender),
		Text:           text,
		CreatedAt:      time.UnixMicro(createdAt).UTC(),
		Metadata:       metadataOrEmpty([]byte(meta)),
	}, nil
}

func collectSQLiteMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
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
