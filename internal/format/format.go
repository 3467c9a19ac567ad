// Package format packs selected memories and relationship context into a
// token-budgeted block for prompt injection.
package format

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
)

const (
	// CharsPerToken is the rough size of one token.
	CharsPerToken = 4
	// MinExcerpt is the smallest remaining budget, in chars, worth excerpting into.
	MinExcerpt = 100
	// DefaultBudget applies when a request carries no budget.
	DefaultBudget = 1000
)

// Formatter renders memory blocks. The zero value is ready to use.
type Formatter struct {
	Logger *slog.Logger // optional; receives packing stats at debug level
}

// Block is a packed block and what went into it.
type Block struct {
	Text     string
	Budget   int // tokens
	Used     int // tokens
	Included int
	Excerpt  bool
}

// Format implements recall.Formatter.
func (f Formatter) Format(ctx context.Context, req recall.FormatRequest) (string, error) {
	block := f.Pack(req)
	if f.Logger != nil {
		f.Logger.DebugContext(ctx, "memory block packed",
			"budget", block.Budget, "used", block.Used, "included", block.Included,
			"offered", len(req.Memories), "excerpt", block.Excerpt)
	}
	return block.Text, nil
}

// Pack lays out the header, emotion and relationship lines, then adds memory
// bullets in the order given while they fit. Callers pass memories in story
// order. The first memory that does
// not fit is excerpted if at least MinExcerpt chars remain, and packing
// stops there. The block is empty when no memory fits.
func (f Formatter) Pack(req recall.FormatRequest) Block {
	budget := req.TokenBudget
	if budget <= 0 {
		budget = DefaultBudget
	}
	charBudget := budget * CharsPerToken
	block := Block{Budget: budget}

	var b strings.Builder
	header := fmt.Sprintf("[%s memories]", headerLabel(req.Header))
	b.WriteString(header)
	for _, l := range contextLines(req) {
		if b.Len()+1+len(l) > charBudget {
			break
		}
		b.WriteByte('\n')
		b.WriteString(l)
	}

	for _, m := range req.Memories {
		line := bullet(m)
		used := b.Len() + 1
		if used+len(line) <= charBudget {
			b.WriteByte('\n')
			b.WriteString(line)
			block.Included++
			continue
		}
		if remaining := charBudget - used; remaining >= MinExcerpt {
			b.WriteByte('\n')
			b.WriteString(cut(line, remaining-3) + "...")
			block.Included++
			block.Excerpt = true
		}
		break
	}

	if block.Included == 0 {
		return block
	}
	block.Text = b.String()
	block.Used = (len(block.Text) + CharsPerToken - 1) / CharsPerToken
	return block
}

// cut shortens s to at most n bytes without splitting a character.
func cut(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func headerLabel(h string) string {
	if h == "" {
		return recall.SceneHeader
	}
	return h
}

func contextLines(req recall.FormatRequest) []string {
	var lines []string
	if req.Emotion.Label != "" {
		l := "Current emotion: " + req.Emotion.Label
		if r := req.Emotion.FromMessages; r != nil {
			l += fmt.Sprintf(" (messages %d-%d)", r.From, r.To)
		}
		lines = append(lines, l)
	}
	rel := req.Relations
	for _, r := range rel.Relations {
		l := fmt.Sprintf("Relationship: %s -> %s (closeness %d)", rel.Primary, r.Target, r.Closeness)
		if r.Attitude != "" {
			l += ": " + r.Attitude
		}
		lines = append(lines, l)
	}
	for _, e := range rel.Emotions {
		lines = append(lines, fmt.Sprintf("%s seems %s", e.Name, e.Emotion))
	}
	return lines
}

func bullet(m model.Memory) string {
	var b strings.Builder
	b.WriteString("- ")
	if m.IsSecret {
		b.WriteString("(secret) ")
	}
	b.WriteString(strings.TrimSpace(m.Summary))
	return b.String()
}
