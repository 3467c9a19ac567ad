// Package chunker splits a conversation transcript into windows for
// similarity scoring.
package chunker

import (
	"strings"
)

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures windowing.
type Options struct {
	TargetSize int
	MaxSize    int
	// Overlap is the number of trailing lines repeated at the start of the
	// next window.
	Overlap int
}

// DefaultOptions returns default windowing options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
		Overlap:    1,
	}
}

// Window is a run of transcript lines.
type Window struct {
	Text      string
	StartLine int
	EndLine   int
}

// Windows splits a transcript with one message per line. A transcript no
// longer than MaxSize is a single window.
func Windows(text string, opts Options) []Window {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}
	if opts.MaxSize < opts.TargetSize {
		opts.MaxSize = opts.TargetSize
	}

	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []Window{{Text: text, StartLine: 1, EndLine: strings.Count(text, "\n") + 1}}
	}

	return mergeLines(splitLines(text), opts)
}

type line struct {
	text string
	num  int
}

func splitLines(text string) []line {
	raw := strings.Split(text, "\n")
	out := make([]line, 0, len(raw))
	for i, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, line{text: t, num: i + 1})
		}
	}
	return out
}

// mergeLines packs lines into windows near TargetSize. A single line longer
// than MaxSize becomes its own hard-split windows.
func mergeLines(lines []line, opts Options) []Window {
	var results []Window
	var cur []line
	curLen, fresh := 0, 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		texts := make([]string, len(cur))
		for i, l := range cur {
			texts[i] = l.text
		}
		results = append(results, Window{
			Text:      strings.Join(texts, "\n"),
			StartLine: cur[0].num,
			EndLine:   cur[len(cur)-1].num,
		})
		keep := opts.Overlap
		if keep >= len(cur) {
			keep = 0
		}
		cur = append([]line(nil), cur[len(cur)-keep:]...)
		curLen, fresh = 0, 0
		for _, l := range cur {
			curLen += len(l.text) + 1
		}
	}

	for _, l := range lines {
		if len(l.text) > opts.MaxSize {
			if fresh > 0 {
				flush()
			}
			cur, curLen = nil, 0
			results = append(results, hardSplit(l, opts)...)
			continue
		}
		if curLen+len(l.text) > opts.TargetSize && fresh > 0 {
			flush()
		}
		cur = append(cur, l)
		curLen += len(l.text) + 1
		fresh++
	}
	if fresh > 0 {
		flush()
	}

	return results
}

// hardSplit breaks one oversized line on word boundaries.
func hardSplit(l line, opts Options) []Window {
	var results []Window
	var b strings.Builder
	for _, word := range strings.Fields(l.text) {
		if b.Len() > 0 && b.Len()+len(word)+1 > opts.TargetSize {
			results = append(results, Window{Text: b.String(), StartLine: l.num, EndLine: l.num})
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		results = append(results, Window{Text: b.String(), StartLine: l.num, EndLine: l.num})
	}
	return results
}
