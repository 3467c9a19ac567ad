// Package inject holds the destinations for packed memory blocks.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

// Sink stores the injected prompt of each session and reads it back for the
// prompt builder.
type Sink interface {
	SetPrompt(ctx context.Context, sessionID, text string) error
	Prompt(ctx context.Context, sessionID string) (string, error)
}

// MemorySink keeps the injected prompt of each session in memory.
type MemorySink struct {
	mu      sync.RWMutex
	prompts map[string]string
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{prompts: map[string]string{}}
}

// SetPrompt stores text for a session. Empty text clears it.
func (s *MemorySink) SetPrompt(_ context.Context, sessionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		delete(s.prompts, sessionID)
		return nil
	}
	s.prompts[sessionID] = text
	return nil
}

// Prompt returns the injected text of a session, or "" when none is set.
func (s *MemorySink) Prompt(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts[sessionID], nil
}

// FileSink writes each session's injected text to <dir>/<session>.md, where
// a prompt builder can pick it up.
type FileSink struct {
	dir string
	mu  sync.Mutex
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inject dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Path returns the file a session's text is written to.
func (s *FileSink) Path(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.dir, sessionID+".md"), nil
}

// SetPrompt writes text atomically through a uniquely named temp file that
// is synced before the rename. Empty text removes the file.
func (s *FileSink) SetPrompt(_ context.Context, sessionID, text string) error {
	path, err := s.Path(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear prompt: %w", err)
		}
		return nil
	}
	if err := renameio.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	return nil
}

// Prompt reads a session's injected text. A missing file means nothing is
// injected.
func (s *FileSink) Prompt(_ context.Context, sessionID string) (string, error) {
	path, err := s.Path(sessionID)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}

// LogNotifier reports notifications through a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, sessionID, msg string) {
	if n.Logger == nil {
		return
	}
	n.Logger.InfoContext(ctx, msg, "session", sessionID)
}
