package recall

import "github.com/unkarelian/openvault/internal/model"

// DefaultRecentWindow is the number of visible chat messages treated as
// already present in the prompt.
const DefaultRecentWindow = 10

// RecentMessages returns the last window non-system messages of the chat.
func RecentMessages(chat []model.Message, window int) []model.Message {
	if window <= 0 {
		return nil
	}
	var visible []model.Message
	for _, msg := range chat {
		if !msg.IsSystem {
			visible = append(visible, msg)
		}
	}
	if len(visible) > window {
		visible = visible[len(visible)-window:]
	}
	return visible
}

// RecentMessageIDs returns the indices of the last window visible messages.
func RecentMessageIDs(chat []model.Message, window int) map[int]struct{} {
	recent := RecentMessages(chat, window)
	ids := make(map[int]struct{}, len(recent))
	for _, msg := range recent {
		ids[msg.Index] = struct{}{}
	}
	return ids
}

// ExcludeRecent drops memories derived entirely from recent messages.
// Memories without source messages, or with at least one source message
// outside the window, are kept.
func ExcludeRecent(memories []model.Memory, recent map[int]struct{}) []model.Memory {
	out := make([]model.Memory, 0, len(memories))
	for _, m := range memories {
		if !m.HasMessages() || !allRecent(m.MessageIDs, recent) {
			out = append(out, m)
		}
	}
	return out
}

func allRecent(ids []int, recent map[int]struct{}) bool {
	for _, id := range ids {
		if _, ok := recent[id]; !ok {
			return false
		}
	}
	return true
}

// ExcludeBatch drops memories produced by the most recent extraction batch.
// An empty lastBatchID excludes nothing.
func ExcludeBatch(memories []model.Memory, lastBatchID string) []model.Memory {
	if lastBatchID == "" {
		return memories
	}
	out := make([]model.Memory, 0, len(memories))
	for _, m := range memories {
		if m.BatchID != lastBatchID {
			out = append(out, m)
		}
	}
	return out
}
