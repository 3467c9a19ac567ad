package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string         `json:"db_path"`
	DBSizeBytes    int64          `json:"db_size_bytes"`
	Sessions       int            `json:"sessions"`
	Messages       int            `json:"messages"`
	TotalMemories  int            `json:"total_memories"`
	ActiveMemories int            `json:"active_memories"`
	SecretMemories int            `json:"secret_memories"`
	Characters     int            `json:"characters"`
	PerSession     []SessionStats `json:"per_session"`
}

// SessionStats holds per-session counts.
type SessionStats struct {
	SessionID string `json:"session_id"`
	Memories  int    `json:"memories"`
	Batches   int    `json:"batches"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Sessions, `SELECT COUNT(*) FROM sessions`},
		{&st.Messages, `SELECT COUNT(*) FROM messages`},
		{&st.TotalMemories, `SELECT COUNT(*) FROM memories`},
		{&st.ActiveMemories, `SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL`},
		{&st.SecretMemories, `SELECT COUNT(*) FROM memories WHERE deleted_at IS NULL AND is_secret = 1`},
		{&st.Characters, `SELECT COUNT(*) FROM characters`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return st, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*) AS cnt, COUNT(DISTINCT batch_id) AS batches
		FROM memories WHERE deleted_at IS NULL
		GROUP BY session_id ORDER BY cnt DESC, session_id`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ss SessionStats
		if err := rows.Scan(&ss.SessionID, &ss.Memories, &ss.Batches); err != nil {
			return st, err
		}
		st.PerSession = append(st.PerSession, ss)
	}
	return st, rows.Err()
}
