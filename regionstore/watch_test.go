package regionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prophet-town/s2geometry/sphere"
)

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestWatchSaveAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, ch := store.Subscribe()
	defer store.Unsubscribe(id)

	_, err := store.Save(ctx, "harbor", sphere.CellUnion{sphere.CellIDFromFace(0)})
	require.NoError(t, err)

	e := waitEvent(t, ch)
	require.Equal(t, OpSaved, e.Op)
	require.Equal(t, "harbor", e.Name)
	require.Equal(t, 1, e.CellCount)

	require.NoError(t, store.Delete(ctx, "harbor"))

	e = waitEvent(t, ch)
	require.Equal(t, OpDeleted, e.Op)
	require.Equal(t, "harbor", e.Name)
}

func TestWatchNameFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, ch := store.Subscribe("harbor")
	defer store.Unsubscribe(id)

	_, err := store.Save(ctx, "other", sphere.CellUnion{sphere.CellIDFromFace(1)})
	require.NoError(t, err)
	_, err = store.Save(ctx, "harbor", sphere.CellUnion{sphere.CellIDFromFace(0)})
	require.NoError(t, err)

	e := waitEvent(t, ch)
	require.Equal(t, "harbor", e.Name)
	require.Empty(t, ch)
}

func TestWatchUnsubscribeClosesChannel(t *testing.T) {
	store := openTestStore(t)

	id, ch := store.Subscribe()
	store.Unsubscribe(id)

	_, open := <-ch
	require.False(t, open)

	// Unsubscribing twice is a no-op.
	store.Unsubscribe(id)
}

func TestWatchSlowSubscriberDropsEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, ch := store.Subscribe()
	defer store.Unsubscribe(id)

	for i := 0; i < subscriberBuffer+8; i++ {
		_, err := store.Save(ctx, "harbor", sphere.CellUnion{sphere.CellIDFromFace(0)})
		require.NoError(t, err)
	}

	// The channel holds at most its buffer; the overflow was dropped, not
	// blocked on.
	require.Len(t, ch, subscriberBuffer)
}

func TestWatchCloseClosesSubscribers(t *testing.T) {
	store, err := Open(t.TempDir() + "/regions.db")
	require.NoError(t, err)

	_, ch := store.Subscribe()
	require.NoError(t, store.Close())

	_, open := <-ch
	require.False(t, open)
}

func TestSequentialIDGenerator(t *testing.T) {
	var g sequentialIDGenerator

	a := g.New()
	b := g.New()
	require.NotEqual(t, a, b)

	g.Reuse(a)
	require.Equal(t, a, g.New())
	require.NotEqual(t, a, g.New())
}
