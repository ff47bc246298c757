package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "recipes"), 0755))
	s := New(root)
	t.Cleanup(func() { s.Close() })
	return s, filepath.Join(root, "recipes")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestStore_PutGetRemove(t *testing.T) {
	s, dir := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "recipes", "alice/soup/tomato.md", strings.NewReader("# Tomato"), 8))
	assert.FileExists(t, filepath.Join(dir, "alice", "soup", "tomato.md"))

	rc, err := s.Get(ctx, "recipes", "alice/soup/tomato.md")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "# Tomato", string(data))

	require.NoError(t, s.Remove(ctx, "recipes", "alice/soup/tomato.md"))
	require.NoError(t, s.Remove(ctx, "recipes", "alice/soup/tomato.md"))
	_, err = s.Get(ctx, "recipes", "alice/soup/tomato.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_RejectsEscapingNames(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "../x.md", "/etc/passwd"} {
		_, err := s.Get(ctx, "recipes", name)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}
	_, err := s.BucketExists(ctx, "../outside")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_List(t *testing.T) {
	s, dir := setupStore(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(dir, "alice", "soup", "tomato.md"), "a")
	writeFile(t, filepath.Join(dir, "alice", "bread.md"), "b")
	writeFile(t, filepath.Join(dir, "alice", ".draft.md"), "hidden")
	writeFile(t, filepath.Join(dir, "bob", "cake.md"), "c")

	all, err := s.List(ctx, "recipes", "", true)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, o := range all {
		names[i] = o.Name
	}
	assert.Equal(t, []string{"alice/bread.md", "alice/soup/tomato.md", "bob/cake.md"}, names)

	top, err := s.List(ctx, "recipes", "alice/", false)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice/bread.md", top[0].Name)
	assert.Equal(t, "alice/soup/", top[1].Name)
	assert.True(t, top[1].IsDir)

	_, err = s.List(ctx, "missing", "", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_BucketExists(t *testing.T) {
	s, _ := setupStore(t)
	ok, err := s.BucketExists(context.Background(), "recipes")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.BucketExists(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "file", s.Scheme())
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"alice/.draft.md", true},
		{".config/file", true},
		{"alice/soup.md", false},
		{"file.hidden", false},
		{".", false},
		{"..", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, isHidden(tt.path), tt.path)
	}
}

func TestHandleFsEvent(t *testing.T) {
	_, dir := setupStore(t)
	file := filepath.Join(dir, "alice", "tomato.md")
	writeFile(t, file, "x")
	sub := filepath.Join(dir, "alice", "soup")
	require.NoError(t, os.MkdirAll(sub, 0755))

	tests := []struct {
		name string
		ev   fsnotify.Event
		want *driven.ObjectEvent
	}{
		{"create file", fsnotify.Event{Name: file, Op: fsnotify.Create}, &driven.ObjectEvent{Kind: driven.ObjectWritten, Name: "alice/tomato.md"}},
		{"write file", fsnotify.Event{Name: file, Op: fsnotify.Write}, &driven.ObjectEvent{Kind: driven.ObjectWritten, Name: "alice/tomato.md"}},
		{"remove", fsnotify.Event{Name: filepath.Join(dir, "gone.md"), Op: fsnotify.Remove}, &driven.ObjectEvent{Kind: driven.ObjectRemoved, Name: "gone.md"}},
		{"rename", fsnotify.Event{Name: filepath.Join(dir, "old.md"), Op: fsnotify.Rename}, &driven.ObjectEvent{Kind: driven.ObjectRemoved, Name: "old.md"}},
		{"chmod", fsnotify.Event{Name: file, Op: fsnotify.Chmod}, nil},
		{"directory", fsnotify.Event{Name: sub, Op: fsnotify.Create}, nil},
		{"hidden", fsnotify.Event{Name: filepath.Join(dir, ".upload-1"), Op: fsnotify.Create}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, handleFsEvent(dir, tt.ev))
		})
	}
}

func TestStore_Watch(t *testing.T) {
	s, dir := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx, "recipes")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "new.md"), []byte("content"), 0644)
	}()

	select {
	case ev := <-events:
		assert.Equal(t, driven.ObjectWritten, ev.Kind)
		assert.Equal(t, "new.md", ev.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for file change event")
	}

	cancel()
	for range events {
	}
}

func TestStore_WatchErrors(t *testing.T) {
	s, _ := setupStore(t)

	_, err := s.Watch(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Close())
	_, err = s.Watch(context.Background(), "recipes")
	assert.ErrorContains(t, err, "closed")
}
