package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	agent_id    TEXT NOT NULL,
	channel     TEXT NOT NULL,
	channel_id  TEXT NOT NULL,
	key         TEXT NOT NULL UNIQUE,
	title       TEXT,
	metadata    TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	channel      TEXT,
	channel_id   TEXT,
	direction    TEXT,
	role         TEXT,
	content      TEXT,
	attachments  TEXT,
	tool_calls   TEXT,
	tool_results TEXT,
	metadata     TEXT,
	created_at   TEXT NOT NULL,
	seq          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// SQLiteStore is a Store implementation backed by modernc.org/sqlite,
// durable across process restarts for single-node deployments where
// MemoryStore's in-process state is insufficient.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path and
// applies its schema. Use ":memory:" for an ephemeral, file-less store
// with the same durability semantics as MemoryStore plus SQL query
// access, useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY under concurrent agent turns.
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt

	meta, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, agent_id, channel, channel_id, key, title, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.AgentID, string(session.Channel), session.ChannelID, session.Key,
		session.Title, string(meta), session.CreatedAt.Format(time.RFC3339Nano), session.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, channel, channel_id, key, title, metadata, created_at, updated_at
		FROM sessions WHERE id = ?`, id))
}

func (s *SQLiteStore) GetByKey(ctx context.Context, key string) (*models.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, channel, channel_id, key, title, metadata, created_at, updated_at
		FROM sessions WHERE key = ?`, key))
}

func (s *SQLiteStore) scanSession(row *sql.Row) (*models.Session, error) {
	var (
		sess         models.Session
		channel      string
		meta         string
		createdAt    string
		updatedAt    string
		title        sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.AgentID, &channel, &sess.ChannelID, &sess.Key, &title, &meta, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("session not found")
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Channel = models.ChannelType(channel)
	sess.Title = title.String
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal session metadata: %w", err)
		}
	}
	var err error
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) Update(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	meta, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}
	session.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET agent_id = ?, channel = ?, channel_id = ?, key = ?, title = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		session.AgentID, string(session.Channel), session.ChannelID, session.Key, session.Title,
		string(meta), session.UpdatedAt.Format(time.RFC3339Nano), session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("session not found")
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("session not found")
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id)
	return err
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, key string, agentID string, channel models.ChannelType, channelID string) (*models.Session, error) {
	if existing, err := s.GetByKey(ctx, key); err == nil {
		return existing, nil
	}
	session := &models.Session{
		AgentID:   agentID,
		Channel:   channel,
		ChannelID: channelID,
		Key:       key,
	}
	if err := s.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SQLiteStore) List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Session, error) {
	query := `SELECT id, agent_id, channel, channel_id, key, title, metadata, created_at, updated_at FROM sessions WHERE 1=1`
	var args []any
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	if opts.Channel != "" {
		query += ` AND channel = ?`
		args = append(args, string(opts.Channel))
	}
	query += ` ORDER BY created_at`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []*models.Session{}
	for rows.Next() {
		var (
			sess      models.Session
			channel   string
			meta      string
			createdAt string
			updatedAt string
			title     sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.AgentID, &channel, &sess.ChannelID, &sess.Key, &title, &meta, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Channel = models.ChannelType(channel)
		sess.Title = title.String
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &sess.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal session metadata: %w", err)
			}
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	toolCalls, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	toolResults, err := json.Marshal(msg.ToolResults)
	if err != nil {
		return fmt.Errorf("marshal tool results: %w", err)
	}
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal message metadata: %w", err)
	}

	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?`, sessionID).Scan(&seq); err != nil {
		return fmt.Errorf("compute message sequence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, channel, channel_id, direction, role, content, attachments, tool_calls, tool_results, metadata, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Channel), msg.ChannelID, string(msg.Direction), string(msg.Role), msg.Content,
		string(attachments), string(toolCalls), string(toolResults), string(meta), msg.CreatedAt.Format(time.RFC3339Nano), seq)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&count); err == nil && count > maxMessagesPerSession {
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM messages WHERE session_id = ? AND seq <= (
				SELECT seq FROM messages WHERE session_id = ? ORDER BY seq LIMIT 1 OFFSET ?
			)`, sessionID, sessionID, count-maxMessagesPerSession); err != nil {
			return fmt.Errorf("trim messages: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `SELECT id, channel, channel_id, direction, role, content, attachments, tool_calls, tool_results, metadata, created_at, seq
		FROM messages WHERE session_id = ? ORDER BY seq`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT * FROM (` + query + ` DESC LIMIT ?) ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		var (
			msg         models.Message
			channel     sql.NullString
			channelID   sql.NullString
			direction   string
			role        string
			attachments string
			toolCalls   string
			toolResults string
			meta        string
			createdAt   string
			seq         int64
		)
		if err := rows.Scan(&msg.ID, &channel, &channelID, &direction, &role, &msg.Content,
			&attachments, &toolCalls, &toolResults, &meta, &createdAt, &seq); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.SessionID = sessionID
		msg.Channel = models.ChannelType(channel.String)
		msg.ChannelID = channelID.String
		msg.Direction = models.Direction(direction)
		msg.Role = models.Role(role)
		if attachments != "" && attachments != "null" {
			_ = json.Unmarshal([]byte(attachments), &msg.Attachments)
		}
		if toolCalls != "" && toolCalls != "null" {
			_ = json.Unmarshal([]byte(toolCalls), &msg.ToolCalls)
		}
		if toolResults != "" && toolResults != "null" {
			_ = json.Unmarshal([]byte(toolResults), &msg.ToolResults)
		}
		if meta != "" && meta != "null" {
			_ = json.Unmarshal([]byte(meta), &msg.Metadata)
		}
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &msg)
	}
	return out, rows.Err()
}
