package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/unkarelian/openvault/internal/model"
)

// SearchParams holds parameters for searching memories.
type SearchParams struct {
	SessionID string
	Query     string
	Character string // witness or involved character
	Limit     int
}

// Search finds live memories whose summary, witnesses or involved
// characters contain the query substring, newest first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	q := "%" + escapeLike(p.Query) + "%"
	where := []string{
		"session_id = ?",
		"deleted_at IS NULL",
		"(summary LIKE ? ESCAPE '\\' COLLATE NOCASE OR witnesses LIKE ? ESCAPE '\\' COLLATE NOCASE OR involved LIKE ? ESCAPE '\\' COLLATE NOCASE)",
	}
	args := []interface{}{p.SessionID, q, q, q}

	if p.Character != "" {
		pattern := nameLike(p.Character)
		where = append(where, "(witnesses LIKE ? ESCAPE '\\' COLLATE NOCASE OR involved LIKE ? ESCAPE '\\' COLLATE NOCASE)")
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	return s.queryMemories(ctx, query, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally in a LIKE pattern with ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// nameLike is a LIKE pattern matching name as one element of a JSON string
// list column.
func nameLike(name string) string {
	quoted, _ := json.Marshal(strings.TrimSpace(name))
	return "%" + escapeLike(string(quoted)) + "%"
}
