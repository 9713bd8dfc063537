package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.pdf", "b.PNG", "notes.txt", "sub/c.docx", ".hidden/d.pdf", ".e.jpg")

	paths, stats, err := ScanDirectory(context.Background(), root, nil, true)
	require.NoError(t, err)

	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		r, _ := filepath.Rel(root, p)
		rel = append(rel, filepath.ToSlash(r))
	}
	sort.Strings(rel)
	assert.Equal(t, []string{"a.pdf", "b.PNG", "sub/c.docx"}, rel)
	assert.Equal(t, uint32(3), stats.Matched)

	only, _, err := ScanDirectory(context.Background(), root, []string{".pdf"}, false)
	require.NoError(t, err)
	assert.Len(t, only, 2)

	_, _, err = ScanDirectory(context.Background(), "  ", nil, true)
	assert.Error(t, err)
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "existing.pdf", "skip.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true}, nil)
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "existing.pdf"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial scan event")
	}

	writeFiles(t, root, "new.png")
	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "new.png"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no create event")
	}

	cancel()
	for range events {
	}

	_, _, err = StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
