package recall

import (
	"errors"
	"io"
	"log/slog"
)

var (
	// ErrNoSession is returned by session accessors for unknown sessions.
	ErrNoSession = errors.New("session not found")
	// ErrStoreUnavailable is returned by store accessors with no store.
	ErrStoreUnavailable = errors.New("memory store unavailable")
)

// Short-circuit reasons reported in Outcome.Reason.
const (
	ReasonDisabled         = "disabled"
	ReasonAutomaticOff     = "automatic mode off"
	ReasonNoChat           = "no chat"
	ReasonNoStore          = "store unavailable"
	ReasonNoMemories       = "no memories"
	ReasonNoPOV            = "no pov"
	ReasonNoCandidates     = "no candidates"
	ReasonNothingRelevant  = "nothing relevant"
	ReasonNothingFormatted = "nothing formatted"
	ReasonFailed           = "format or inject failed"
)

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
