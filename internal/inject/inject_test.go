package inject

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	require.NoError(t, s.SetPrompt(ctx, "a", "hello"))
	got, err := s.Prompt(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, s.SetPrompt(ctx, "a", ""))
	got, err = s.Prompt(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSink(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SetPrompt(ctx, "sess", "[Scene memories]\n- a"))
	path, err := s.Path("sess")
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Scene memories]\n- a\n", string(b))

	got, err := s.Prompt(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "[Scene memories]\n- a", got)

	require.NoError(t, s.SetPrompt(ctx, "sess", ""))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	got, err = s.Prompt(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, s.SetPrompt(ctx, "sess", ""), "clearing twice is fine")
}

func TestFileSinkConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := NewFileSink(dir)
	require.NoError(t, err)
	b, err := NewFileSink(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, s := range []*FileSink{a, b} {
			wg.Add(1)
			go func(s *FileSink, i int) {
				defer wg.Done()
				assert.NoError(t, s.SetPrompt(ctx, "sess", fmt.Sprintf("block %d", i)))
			}(s, i)
		}
	}
	wg.Wait()

	got, err := a.Prompt(ctx, "sess")
	require.NoError(t, err)
	assert.Regexp(t, `^block \d+$`, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "sess.md", filepath.Base(entries[0].Name()))
}

func TestFileSinkRejectsTraversal(t *testing.T) {
	s, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.SetPrompt(context.Background(), "../escape", "x"))
	assert.Error(t, s.SetPrompt(context.Background(), "", "x"))
	_, err = s.Prompt(context.Background(), "../escape")
	assert.Error(t, err)
}
