package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/core/ports/driving"
)

type chanWatcher struct {
	events chan driven.ObjectEvent
	err    error
	bucket string
}

func (w *chanWatcher) Watch(_ context.Context, bucket string) (<-chan driven.ObjectEvent, error) {
	w.bucket = bucket
	return w.events, w.err
}

type recordingIngester struct {
	mu        sync.Mutex
	reingests []string
	forgets   []string
	fail      map[string]error
}

func (r *recordingIngester) Reingest(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reingests = append(r.reingests, name)
	return r.fail[name]
}

func (r *recordingIngester) Forget(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgets = append(r.forgets, name)
	return r.fail[name]
}

func TestWatchService_DispatchesEvents(t *testing.T) {
	w := &chanWatcher{events: make(chan driven.ObjectEvent, 3)}
	ing := &recordingIngester{fail: map[string]error{"alice/bad.md": errBoom}}
	svc := NewWatchService(w, testBucket, ing)

	w.events <- driven.ObjectEvent{Kind: driven.ObjectWritten, Name: "alice/soup.md"}
	w.events <- driven.ObjectEvent{Kind: driven.ObjectRemoved, Name: "alice/flan.md"}
	w.events <- driven.ObjectEvent{Kind: driven.ObjectWritten, Name: "alice/bad.md"}
	close(w.events)

	var reports []driving.WatchEvent
	err := svc.Run(context.Background(), func(ev driving.WatchEvent) {
		reports = append(reports, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, testBucket, w.bucket)
	assert.Equal(t, []string{"alice/soup.md", "alice/bad.md"}, ing.reingests)
	assert.Equal(t, []string{"alice/flan.md"}, ing.forgets)

	require.Len(t, reports, 3)
	assert.NoError(t, reports[0].Err)
	assert.True(t, reports[1].Removed)
	assert.ErrorIs(t, reports[2].Err, errBoom)
}

func TestWatchService_StopsOnCancel(t *testing.T) {
	w := &chanWatcher{events: make(chan driven.ObjectEvent)}
	svc := NewWatchService(w, testBucket, &recordingIngester{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx, nil))
}

func TestWatchService_Errors(t *testing.T) {
	svc := NewWatchService(nil, testBucket, &recordingIngester{})
	assert.Error(t, svc.Run(context.Background(), nil))

	w := &chanWatcher{err: errors.New("no notifications")}
	svc = NewWatchService(w, testBucket, &recordingIngester{})
	assert.Error(t, svc.Run(context.Background(), nil))
}
