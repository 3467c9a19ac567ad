package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/unkarelian/openvault/internal/model"
)

// Characters returns every character record of a session.
func (s *SQLiteStore) Characters(ctx context.Context, sessionID string) ([]model.CharacterState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, known_events, emotion, emotion_from, emotion_to, relationships
		 FROM characters WHERE session_id = ? ORDER BY key`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CharacterState
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Character returns one character record. Missing characters yield a fresh
// record with the given name and ok=false.
func (s *SQLiteStore) Character(ctx context.Context, sessionID, name string) (model.CharacterState, bool, error) {
	return loadCharacter(ctx, s.db, sessionID, name)
}

// DiscloseEvent marks a memory as known to each of the named characters.
func (s *SQLiteStore) DiscloseEvent(ctx context.Context, sessionID, memoryID string, names []string) error {
	if len(names) == 0 {
		return errors.New("at least one character is required")
	}
	if _, err := s.GetMemory(ctx, memoryID); err != nil {
		return err
	}
	return s.mutateCharacters(ctx, sessionID, names, func(c *model.CharacterState) {
		if !c.Knows(memoryID) {
			c.KnownEvents = append(c.KnownEvents, memoryID)
		}
	})
}

// SetEmotion records a character's current emotion.
func (s *SQLiteStore) SetEmotion(ctx context.Context, p EmotionParams) (model.CharacterState, error) {
	emotion := strings.TrimSpace(p.Emotion)
	if emotion == "" {
		return model.CharacterState{}, errors.New("emotion is required")
	}
	if p.From > p.To {
		return model.CharacterState{}, fmt.Errorf("invalid message range %d-%d", p.From, p.To)
	}
	var out model.CharacterState
	err := s.mutateCharacters(ctx, p.SessionID, []string{p.Character}, func(c *model.CharacterState) {
		c.CurrentEmotion = emotion
		c.EmotionFromMessages = nil
		if p.From != 0 || p.To != 0 {
			c.EmotionFromMessages = &model.MessageRange{From: p.From, To: p.To}
		}
		out = *c
	})
	return out, err
}

// Relate creates, updates or removes how one character regards another.
func (s *SQLiteStore) Relate(ctx context.Context, p RelateParams) (model.CharacterState, error) {
	if strings.TrimSpace(p.To) == "" {
		return model.CharacterState{}, errors.New("relationship target is required")
	}
	if p.Closeness != nil && (*p.Closeness < 0 || *p.Closeness > 100) {
		return model.CharacterState{}, fmt.Errorf("closeness %d out of range 0-100", *p.Closeness)
	}
	target := model.Key(p.To)

	var out model.CharacterState
	err := s.mutateCharacters(ctx, p.SessionID, []string{p.From}, func(c *model.CharacterState) {
		idx := -1
		for i, r := range c.Relationships {
			if model.Key(r.Target) == target {
				idx = i
				break
			}
		}
		switch {
		case p.Remove:
			if idx >= 0 {
				c.Relationships = append(c.Relationships[:idx], c.Relationships[idx+1:]...)
			}
		case idx >= 0:
			r := &c.Relationships[idx]
			if p.Attitude != "" {
				r.Attitude = p.Attitude
			}
			if p.Closeness != nil {
				r.Closeness = *p.Closeness
			}
		default:
			r := model.Relationship{Target: strings.TrimSpace(p.To), Attitude: p.Attitude, Closeness: model.DefaultCloseness}
			if p.Closeness != nil {
				r.Closeness = *p.Closeness
			}
			c.Relationships = append(c.Relationships, r)
		}
		out = *c
	})
	return out, err
}

// mutateCharacters applies fn to each named character inside one transaction,
// creating records as needed.
func (s *SQLiteStore) mutateCharacters(ctx context.Context, sessionID string, names []string, fn func(*model.CharacterState)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, sessionID); err != nil {
		return err
	}
	for _, name := range names {
		if model.Key(name) == "" {
			return errors.New("character name is required")
		}
		c, _, err := loadCharacter(ctx, tx, sessionID, name)
		if err != nil {
			return err
		}
		fn(&c)
		if err := saveCharacter(ctx, tx, sessionID, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func loadCharacter(ctx context.Context, q querier, sessionID, name string) (model.CharacterState, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT name, known_events, emotion, emotion_from, emotion_to, relationships
		 FROM characters WHERE session_id = ? AND key = ?`, sessionID, string(model.Key(name)))
	c, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CharacterState{Name: strings.TrimSpace(name)}, false, nil
	}
	if err != nil {
		return model.CharacterState{}, false, err
	}
	return c, true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func saveCharacter(ctx context.Context, e execer, sessionID string, c model.CharacterState) error {
	var from, to *int
	if c.EmotionFromMessages != nil {
		from, to = &c.EmotionFromMessages.From, &c.EmotionFromMessages.To
	}
	var emotion *string
	if c.CurrentEmotion != "" {
		emotion = &c.CurrentEmotion
	}
	_, err := e.ExecContext(ctx,
		`INSERT INTO characters (session_id, key, name, known_events, emotion, emotion_from, emotion_to, relationships)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, key) DO UPDATE SET
		   name = excluded.name,
		   known_events = excluded.known_events,
		   emotion = excluded.emotion,
		   emotion_from = excluded.emotion_from,
		   emotion_to = excluded.emotion_to,
		   relationships = excluded.relationships`,
		sessionID, string(model.Key(c.Name)), c.Name, jsonList(c.KnownEvents), emotion, from, to, jsonList(c.Relationships))
	if err != nil {
		return fmt.Errorf("save character %s: %w", c.Name, err)
	}
	return nil
}

func scanCharacter(row scanner) (model.CharacterState, error) {
	var c model.CharacterState
	var known, emotion, relationships sql.NullString
	var from, to sql.NullInt64
	if err := row.Scan(&c.Name, &known, &emotion, &from, &to, &relationships); err != nil {
		return c, err
	}
	c.CurrentEmotion = emotion.String
	if from.Valid && to.Valid {
		c.EmotionFromMessages = &model.MessageRange{From: int(from.Int64), To: int(to.Int64)}
	}
	decodeList(known, &c.KnownEvents)
	decodeList(relationships, &c.Relationships)
	return c, nil
}
