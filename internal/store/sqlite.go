package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
)

// SQLiteStore persists scenes in SQLite. It implements
// recall.SessionAccessor and recall.StoreAccessor.
type SQLiteStore struct {
	db      *sql.DB
	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id                    TEXT PRIMARY KEY,
		primary_user          TEXT NOT NULL DEFAULT '',
		secondary_participant TEXT NOT NULL DEFAULT '',
		group_chat            INTEGER NOT NULL DEFAULT 0,
		participants          TEXT,
		last_batch_id         TEXT,
		created_at            TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		idx        INTEGER NOT NULL,
		speaker    TEXT NOT NULL,
		text       TEXT NOT NULL,
		is_system  INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		PRIMARY KEY (session_id, idx)
	);

	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		summary     TEXT NOT NULL,
		witnesses   TEXT,
		involved    TEXT,
		is_secret   INTEGER NOT NULL DEFAULT 0,
		message_ids TEXT,
		batch_id    TEXT,
		importance  INTEGER NOT NULL DEFAULT 3,
		created_at  TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id, deleted_at);
	CREATE INDEX IF NOT EXISTS idx_memories_batch ON memories(session_id, batch_id);

	CREATE TABLE IF NOT EXISTS characters (
		session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		key           TEXT NOT NULL,
		name          TEXT NOT NULL,
		known_events  TEXT,
		emotion       TEXT,
		emotion_from  INTEGER,
		emotion_to    INTEGER,
		relationships TEXT,
		PRIMARY KEY (session_id, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

// CreateSession creates a session.
func (s *SQLiteStore) CreateSession(ctx context.Context, p CreateSessionParams) (*model.Session, error) {
	id := p.ID
	if id == "" {
		id = s.newID()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, primary_user, secondary_participant, group_chat, participants, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.PrimaryUser, p.SecondaryParticipant, boolInt(p.GroupChat), jsonList(p.Participants), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &model.Session{
		ID:                   id,
		PrimaryUser:          p.PrimaryUser,
		SecondaryParticipant: p.SecondaryParticipant,
		GroupChat:            p.GroupChat,
		Participants:         p.Participants,
	}, nil
}

// Session loads a session and its chat log. Unknown sessions return an
// error wrapping recall.ErrNoSession.
func (s *SQLiteStore) Session(ctx context.Context, id string) (*model.Session, error) {
	sess := &model.Session{ID: id}
	var participants sql.NullString
	var group int
	err := s.db.QueryRowContext(ctx,
		`SELECT primary_user, secondary_participant, group_chat, participants FROM sessions WHERE id = ?`, id).
		Scan(&sess.PrimaryUser, &sess.SecondaryParticipant, &group, &participants)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, recall.ErrNoSession)
	}
	if err != nil {
		return nil, err
	}
	sess.GroupChat = group != 0
	decodeList(participants, &sess.Participants)

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, speaker, text, is_system FROM messages WHERE session_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Message
		var system int
		if err := rows.Scan(&m.Index, &m.Speaker, &m.Text, &system); err != nil {
			return nil, err
		}
		m.IsSystem = system != 0
		sess.Chat = append(sess.Chat, m)
	}
	return sess, rows.Err()
}

// ListSessions returns all sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.primary_user, s.secondary_participant, s.group_chat, s.created_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id),
		       (SELECT COUNT(*) FROM memories m WHERE m.session_id = s.id AND m.deleted_at IS NULL)
		FROM sessions s ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var group int
		var created string
		if err := rows.Scan(&ss.ID, &ss.PrimaryUser, &ss.SecondaryParticipant, &group, &created, &ss.Messages, &ss.Memories); err != nil {
			return nil, err
		}
		ss.GroupChat = group != 0
		ss.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// AppendMessage adds a message to the end of a session's chat log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, p AppendParams) (model.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Message{}, err
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, p.SessionID); err != nil {
		return model.Message{}, err
	}
	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx) + 1, 0) FROM messages WHERE session_id = ?`, p.SessionID).Scan(&next); err != nil {
		return model.Message{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, idx, speaker, text, is_system, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.SessionID, next, p.Speaker, p.Text, boolInt(p.IsSystem), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Message{}, err
	}
	return model.Message{Index: next, Speaker: p.Speaker, Text: p.Text, IsSystem: p.IsSystem}, nil
}

// --- Memories ---

// PutMemory stores one memory.
func (s *SQLiteStore) PutMemory(ctx context.Context, p PutParams) (*model.Memory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, p.SessionID); err != nil {
		return nil, err
	}
	m, err := s.insertMemory(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

// PutBatch stores the memories of one extraction run under a new batch id
// and records it as the session's last batch.
func (s *SQLiteStore) PutBatch(ctx context.Context, sessionID string, batch []PutParams) (string, []model.Memory, error) {
	if len(batch) == 0 {
		return "", nil, errors.New("empty batch")
	}
	batchID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, sessionID); err != nil {
		return "", nil, err
	}
	out := make([]model.Memory, 0, len(batch))
	for _, p := range batch {
		p.SessionID = sessionID
		p.BatchID = batchID
		m, err := s.insertMemory(ctx, tx, p)
		if err != nil {
			return "", nil, err
		}
		out = append(out, *m)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET last_batch_id = ? WHERE id = ?`, batchID, sessionID); err != nil {
		return "", nil, fmt.Errorf("record batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", nil, err
	}
	return batchID, out, nil
}

func (s *SQLiteStore) insertMemory(ctx context.Context, tx *sql.Tx, p PutParams) (*model.Memory, error) {
	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		return nil, errors.New("summary is required")
	}
	importance := p.Importance
	if importance == 0 {
		importance = model.DefaultImportance
	}
	if importance < model.MinImportance || importance > model.MaxImportance {
		return nil, fmt.Errorf("importance %d out of range %d-%d", importance, model.MinImportance, model.MaxImportance)
	}

	now := time.Now().UTC()
	m := &model.Memory{
		ID:                 s.newID(),
		Summary:            summary,
		Witnesses:          p.Witnesses,
		CharactersInvolved: p.CharactersInvolved,
		IsSecret:           p.IsSecret,
		MessageIDs:         p.MessageIDs,
		BatchID:            p.BatchID,
		Importance:         importance,
		CreatedAt:          now,
	}
	var batch *string
	if p.BatchID != "" {
		batch = &m.BatchID
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO memories (id, session_id, summary, witnesses, involved, is_secret, message_ids, batch_id, importance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, p.SessionID, m.Summary, jsonList(m.Witnesses), jsonList(m.CharactersInvolved), boolInt(m.IsSecret),
		jsonList(m.MessageIDs), batch, m.Importance, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return m, nil
}

const memoryColumns = `id, summary, witnesses, involved, is_secret, message_ids, batch_id, importance, created_at`

// GetMemory returns a live memory by id.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ? AND deleted_at IS NULL`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMemories lists live memories in chronological order.
func (s *SQLiteStore) ListMemories(ctx context.Context, p ListParams) ([]model.Memory, error) {
	where := []string{"session_id = ?", "deleted_at IS NULL"}
	args := []interface{}{p.SessionID}

	if p.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, p.BatchID)
	}
	if p.Witness != "" {
		where = append(where, `witnesses LIKE ? ESCAPE '\' COLLATE NOCASE`)
		args = append(args, nameLike(p.Witness))
	}

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE ` + strings.Join(where, " AND ") + ` ORDER BY rowid`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}
	return s.queryMemories(ctx, query, args...)
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...interface{}) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// RmMemory soft-deletes (or hard-deletes) a memory.
func (s *SQLiteStore) RmMemory(ctx context.Context, p RmParams) error {
	var res sql.Result
	var err error
	if p.Hard {
		res, err = s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, p.ID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE memories SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
			time.Now().UTC().Format(time.RFC3339), p.ID)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// LoadScene assembles the memory store of a session. Unknown sessions
// return an error wrapping recall.ErrStoreUnavailable.
func (s *SQLiteStore) LoadScene(ctx context.Context, sessionID string) (*model.Store, error) {
	var lastBatch sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT last_batch_id FROM sessions WHERE id = ?`, sessionID).Scan(&lastBatch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, recall.ErrStoreUnavailable)
	}
	if err != nil {
		return nil, err
	}

	st := model.NewStore()
	st.LastBatchID = lastBatch.String
	if st.Memories, err = s.ListMemories(ctx, ListParams{SessionID: sessionID}); err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	chars, err := s.Characters(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load characters: %w", err)
	}
	for _, c := range chars {
		st.SetCharacter(c)
	}
	return st, nil
}

// --- helpers ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var witnesses, involved, messageIDs, batchID sql.NullString
	var secret int
	var createdAt string

	err := row.Scan(&m.ID, &m.Summary, &witnesses, &involved, &secret, &messageIDs, &batchID, &m.Importance, &createdAt)
	if err != nil {
		return m, err
	}
	m.IsSecret = secret != 0
	m.BatchID = batchID.String
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	decodeList(witnesses, &m.Witnesses)
	decodeList(involved, &m.CharactersInvolved)
	decodeList(messageIDs, &m.MessageIDs)
	return m, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func sessionExists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", id, recall.ErrNoSession)
	}
	return err
}

func jsonList[T any](items []T) *string {
	if len(items) == 0 {
		return nil
	}
	b, _ := json.Marshal(items)
	str := string(b)
	return &str
}

func decodeList[T any](raw sql.NullString, dst *[]T) {
	if raw.Valid && raw.String != "" {
		json.Unmarshal([]byte(raw.String), dst)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
