// Package scene derives viewpoint and presence information from a session.
package scene

import (
	"context"
	"errors"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
)

// ErrNoPOV is returned when a scene has no viewpoint character.
var ErrNoPOV = errors.New("no point-of-view character")

// Resolver implements recall.POVResolver and recall.ActiveCharacters.
//
// In a group chat the POV characters are the participants other than the
// user. In narrator mode they are the characters present in the recent
// window: speakers other than the user and narrator, plus witnesses of
// memories drawn from those messages. Both fall back to the secondary
// participant.
type Resolver struct {
	// Window is the number of recent visible messages inspected.
	Window int
}

func (r Resolver) window() int {
	if r.Window <= 0 {
		return recall.DefaultRecentWindow
	}
	return r.Window
}

func (r Resolver) Resolve(_ context.Context, sess *model.Session, store *model.Store) (model.POVContext, error) {
	pov := model.POVContext{GroupChat: sess.GroupChat}
	exclude := model.NewNameSet(sess.PrimaryUser)

	var names []string
	if sess.GroupChat {
		names = sess.Participants
	} else {
		exclude.Add(sess.SecondaryParticipant)
		names = r.present(sess, store)
	}
	pov.Characters = dedupe(names, exclude)
	if len(pov.Characters) == 0 && sess.SecondaryParticipant != "" {
		pov.Characters = []string{sess.SecondaryParticipant}
	}
	if len(pov.Characters) == 0 {
		return pov, ErrNoPOV
	}
	return pov, nil
}

func (r Resolver) present(sess *model.Session, store *model.Store) []string {
	recent := recall.RecentMessages(sess.Chat, r.window())
	var names []string
	for _, msg := range recent {
		names = append(names, msg.Speaker)
	}
	if store == nil {
		return names
	}
	ids := recall.RecentMessageIDs(sess.Chat, r.window())
	for _, m := range store.Memories {
		for _, id := range m.MessageIDs {
			if _, ok := ids[id]; ok {
				names = append(names, m.Witnesses...)
				break
			}
		}
	}
	return names
}

// Active returns the participants, the secondary participant and recent
// speakers, excluding the user.
func (r Resolver) Active(_ context.Context, sess *model.Session) []string {
	names := append([]string(nil), sess.Participants...)
	names = append(names, sess.SecondaryParticipant)
	for _, msg := range recall.RecentMessages(sess.Chat, r.window()) {
		names = append(names, msg.Speaker)
	}
	return dedupe(names, model.NewNameSet(sess.PrimaryUser))
}

func dedupe(names []string, exclude model.NameSet) []string {
	seen := model.NameSet{}
	var out []string
	for _, n := range names {
		k := model.Key(n)
		if k == "" || exclude.Has(n) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}
