package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkarelian/openvault/internal/model"
)

// SceneDoc is the portable form of one session: participants, chat log,
// character state and memories.
type SceneDoc struct {
	Session     model.Session          `json:"session" yaml:"session"`
	LastBatchID string                 `json:"last_batch_id,omitempty" yaml:"last_batch_id,omitempty"`
	Characters  []model.CharacterState `json:"characters,omitempty" yaml:"characters,omitempty"`
	Memories    []model.Memory         `json:"memories" yaml:"memories"`
}

// Doc formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode writes the document as JSON or YAML.
func (d *SceneDoc) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (valid: json, yaml)", format)
	}
}

// DecodeSceneDoc reads a JSON or YAML document.
func DecodeSceneDoc(r io.Reader, format string) (*SceneDoc, error) {
	var d SceneDoc
	var err error
	switch strings.ToLower(format) {
	case FormatJSON, "":
		err = json.NewDecoder(r).Decode(&d)
	case FormatYAML, "yml":
		err = yaml.NewDecoder(r).Decode(&d)
	default:
		return nil, fmt.Errorf("unknown format %q (valid: json, yaml)", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &d, nil
}

// ExportScene returns a session with its live memories and character state.
func (s *SQLiteStore) ExportScene(ctx context.Context, sessionID string) (*SceneDoc, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st, err := s.LoadScene(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	chars, err := s.Characters(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SceneDoc{
		Session:     *sess,
		LastBatchID: st.LastBatchID,
		Characters:  chars,
		Memories:    st.Memories,
	}, nil
}

// ImportScene recreates a session from a document. Memory ids are kept so
// known events stay valid; memories that already exist are skipped. It
// returns the number of memories imported.
func (s *SQLiteStore) ImportScene(ctx context.Context, doc *SceneDoc) (int, error) {
	if doc.Session.ID == "" {
		return 0, errors.New("scene has no session id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	sess := doc.Session
	now := time.Now().UTC().Format(time.RFC3339)
	var lastBatch *string
	if doc.LastBatchID != "" {
		lastBatch = &doc.LastBatchID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, primary_user, secondary_participant, group_chat, participants, last_batch_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   primary_user = excluded.primary_user,
		   secondary_participant = excluded.secondary_participant,
		   group_chat = excluded.group_chat,
		   participants = excluded.participants,
		   last_batch_id = COALESCE(excluded.last_batch_id, sessions.last_batch_id)`,
		sess.ID, sess.PrimaryUser, sess.SecondaryParticipant, boolInt(sess.GroupChat), jsonList(sess.Participants), lastBatch, now)
	if err != nil {
		return 0, fmt.Errorf("import session: %w", err)
	}

	for _, m := range sess.Chat {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO messages (session_id, idx, speaker, text, is_system, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, m.Index, m.Speaker, m.Text, boolInt(m.IsSystem), now)
		if err != nil {
			return 0, fmt.Errorf("import message %d: %w", m.Index, err)
		}
	}

	imported := 0
	for _, m := range doc.Memories {
		if m.ID == "" {
			m.ID = s.newID()
		}
		if m.Importance == 0 {
			m.Importance = model.DefaultImportance
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		var batch *string
		if m.BatchID != "" {
			batch = &m.BatchID
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memories (id, session_id, summary, witnesses, involved, is_secret, message_ids, batch_id, importance, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, sess.ID, m.Summary, jsonList(m.Witnesses), jsonList(m.CharactersInvolved), boolInt(m.IsSecret),
			jsonList(m.MessageIDs), batch, m.Importance, m.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return imported, fmt.Errorf("import memory %s: %w", m.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}

	for _, c := range doc.Characters {
		if err := saveCharacter(ctx, tx, sess.ID, c); err != nil {
			return imported, err
		}
	}

	if err := tx.Commit(); err != nil {
		return imported, err
	}
	return imported, nil
}
