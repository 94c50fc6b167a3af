package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyr/internal/models"
)

func recv[T any](t *testing.T, ch <-chan Snapshot[T]) Snapshot[T] {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
		return Snapshot[T]{}
	}
}

func TestMemorySubscribeReplaysCurrentState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	id, err := m.CreateTopic(ctx, models.Topic{Title: "Would you rather", OptionA: "fly", OptionB: "swim"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ch, err := m.SubscribeTopics(ctx)
	require.NoError(t, err)

	snap := recv(t, ch)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, id, snap.Items[0].Id)
	assert.NotNil(t, snap.Items[0].CreatedAt)
}

func TestMemorySnapshotsReplace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	ch, err := m.SubscribeComments(ctx)
	require.NoError(t, err)
	assert.Empty(t, recv(t, ch).Items)

	first, err := m.CreateComment(ctx, models.Comment{TopicId: "t1", Text: "a"})
	require.NoError(t, err)
	_, err = m.CreateComment(ctx, models.Comment{TopicId: "t1", Text: "b"})
	require.NoError(t, err)

	// only the latest snapshot is buffered
	snap := recv(t, ch)
	assert.Len(t, snap.Items, 2)

	require.NoError(t, m.DeleteComment(ctx, first))
	require.NoError(t, m.DeleteComment(ctx, first), "delete must be idempotent")

	snap = recv(t, ch)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "b", snap.Items[0].Text)
}

func TestMemoryFailWrites(t *testing.T) {
	m := NewMemory()
	boom := errors.New("offline")
	m.FailWith(boom)

	_, err := m.CreateComment(context.Background(), models.Comment{Text: "x"})
	assert.ErrorIs(t, err, boom)

	m.FailWith(nil)
	_, err = m.CreateComment(context.Background(), models.Comment{Text: "x"})
	assert.NoError(t, err)
}

func TestMemoryCancelClosesSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()
	ch, err := m.SubscribeTopics(ctx)
	require.NoError(t, err)
	recv(t, ch)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSortNewestFirst(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	older := now.Add(-time.Hour)
	newer := now.Add(-time.Minute)

	items := []models.Topic{
		{Id: "older", CreatedAt: &older},
		{Id: "pending"},
		{Id: "newer", CreatedAt: &newer},
	}
	SortNewestFirst(items, now)

	ids := []string{items[0].Id, items[1].Id, items[2].Id}
	assert.Equal(t, []string{"pending", "newer", "older"}, ids)
}
