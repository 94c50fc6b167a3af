package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyr/internal/models"
	"wyr/internal/prefs"
	"wyr/internal/store"
	"wyr/internal/tally"
)

type fixture struct {
	ctx    context.Context
	store  *store.Memory
	prefs  *prefs.Memory
	engine *Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	ds := store.NewMemory()
	e := New(ds)
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	// both initial snapshots
	require.Eventually(t, func() bool { return e.Revision() >= 2 }, time.Second, 5*time.Millisecond)
	return &fixture{ctx: ctx, store: ds, prefs: prefs.NewMemory(), engine: e}
}

func (f *fixture) session(t *testing.T, identity string) *Session {
	t.Helper()
	s, err := OpenSession(f.ctx, f.prefs, identity)
	require.NoError(t, err)
	return s
}

func (f *fixture) waitComments(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.engine.Comments()) == n
	}, time.Second, 5*time.Millisecond)
}

func (f *fixture) topic(t *testing.T, s *Session) models.Topic {
	t.Helper()
	before := len(f.engine.Topics())
	require.NoError(t, f.engine.CreateTopic(f.ctx, s, NewTopic{
		Title:   "Would you rather drink",
		OptionA: "Coffee",
		OptionB: "Tea",
	}))
	require.Eventually(t, func() bool {
		return len(f.engine.Topics()) == before+1
	}, time.Second, 5*time.Millisecond)
	return f.engine.Topics()[0]
}

func TestRevoteReplaces(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	topic := f.topic(t, alice)

	require.NoError(t, f.engine.CastVote(f.ctx, alice, topic.Id, models.ChoiceA))
	f.waitComments(t, 1)

	require.NoError(t, f.engine.CastVote(f.ctx, alice, topic.Id, models.ChoiceB))
	require.Eventually(t, func() bool {
		comments := f.engine.Comments()
		return len(comments) == 1 && comments[0].Choice == models.ChoiceB
	}, time.Second, 5*time.Millisecond)

	votes, _ := tally.Partition(f.engine.Comments())
	require.Len(t, votes, 1)
	assert.Equal(t, "alice@example.com", votes[0].Author)
	assert.Equal(t, models.ChoiceB, votes[0].Choice)

	mine, ok := alice.VotedFor(topic.Id)
	assert.True(t, ok)
	assert.Equal(t, models.ChoiceB, mine)
}

func TestVotesFromDifferentUsersAllCount(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	bob := f.session(t, "bob@example.com")
	carol := f.session(t, "carol@example.com")
	topic := f.topic(t, alice)

	require.NoError(t, f.engine.CastVote(f.ctx, alice, topic.Id, models.ChoiceA))
	require.NoError(t, f.engine.CastVote(f.ctx, bob, topic.Id, models.ChoiceA))
	require.NoError(t, f.engine.CastVote(f.ctx, carol, topic.Id, models.ChoiceB))
	f.waitComments(t, 3)

	got := f.engine.Tallies()[topic.Id]
	assert.Equal(t, tally.Tally{VotesA: 2, VotesB: 1}, got)

	view := f.engine.View(bob)
	require.Len(t, view, 1)
	assert.Equal(t, 67, view[0].PercentageA)
	assert.Equal(t, 33, view[0].PercentageB)
	assert.Equal(t, models.ChoiceA, view[0].MyChoice)
}

func TestAnonymousWritesAreNoops(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	topic := f.topic(t, alice)
	anon := Anonymous()

	assert.NoError(t, f.engine.CastVote(f.ctx, anon, topic.Id, models.ChoiceA))
	assert.NoError(t, f.engine.AddComment(f.ctx, anon, topic.Id, "hello"))
	assert.NoError(t, f.engine.CreateTopic(f.ctx, anon, NewTopic{Title: "x", OptionA: "a", OptionB: "b"}))
	assert.NoError(t, f.engine.ToggleCommentLike(f.ctx, anon, "c1", models.DirectionUp))

	// give a stray snapshot time to show up
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.engine.Comments())
	assert.Len(t, f.engine.Topics(), 1)
}

func TestCastVoteValidation(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")

	err := f.engine.CastVote(f.ctx, alice, "t1", "C")
	assert.ErrorIs(t, err, ErrInvalidChoice)

	err = f.engine.CreateTopic(f.ctx, alice, NewTopic{Title: "  ", OptionA: "a", OptionB: "b"})
	assert.ErrorIs(t, err, ErrInvalidTopic)

	err = f.engine.ToggleCommentLike(f.ctx, alice, "c1", "sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestWriteRejected(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	topic := f.topic(t, alice)

	f.store.FailWith(errors.New("network down"))

	err := f.engine.CastVote(f.ctx, alice, topic.Id, models.ChoiceA)
	assert.ErrorIs(t, err, ErrWriteRejected)
	_, voted := alice.VotedFor(topic.Id)
	assert.False(t, voted)

	err = f.engine.AddComment(f.ctx, alice, topic.Id, "hi")
	assert.ErrorIs(t, err, ErrWriteRejected)

	err = f.engine.CreateTopic(f.ctx, alice, NewTopic{Title: "t", OptionA: "a", OptionB: "b"})
	assert.ErrorIs(t, err, ErrWriteRejected)

	assert.Empty(t, f.engine.Comments())
}

func TestDiscussion(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	topic := f.topic(t, alice)

	require.NoError(t, f.engine.CastVote(f.ctx, alice, topic.Id, models.ChoiceA))
	require.NoError(t, f.engine.AddComment(f.ctx, alice, topic.Id, "  coffee, obviously  "))
	require.NoError(t, f.engine.AddComment(f.ctx, alice, topic.Id, "   "))
	f.waitComments(t, 2)

	comments := f.engine.Discussion(alice, topic.Id)
	require.Len(t, comments, 1)
	assert.Equal(t, "coffee, obviously", comments[0].Text)
	assert.Equal(t, 0, comments[0].Score)
	assert.False(t, comments[0].Liked)

	assert.Equal(t, tally.Tally{VotesA: 1, CommentCount: 1}, f.engine.Tallies()[topic.Id])
}

func TestCommentLikeToggleIsSelfInverse(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	topic := f.topic(t, alice)
	require.NoError(t, f.engine.AddComment(f.ctx, alice, topic.Id, "tea"))
	f.waitComments(t, 1)

	id := f.engine.Comments()[0].Id
	before := f.engine.Discussion(alice, topic.Id)[0].Score

	for _, dir := range []models.Direction{models.DirectionUp, models.DirectionDown} {
		require.NoError(t, f.engine.ToggleCommentLike(f.ctx, alice, id, dir))
		liked := f.engine.Discussion(alice, topic.Id)[0]
		assert.True(t, liked.Liked)
		assert.Equal(t, before+dir.Delta(), liked.Score)

		require.NoError(t, f.engine.ToggleCommentLike(f.ctx, alice, id, dir))
		unliked := f.engine.Discussion(alice, topic.Id)[0]
		assert.False(t, unliked.Liked)
		assert.Equal(t, before, unliked.Score)
	}

	// the stored comment is untouched
	assert.Equal(t, 0, f.engine.Comments()[0].Votes)
}

func TestCommentLikeMixedDirectionsStayBounded(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	topic := f.topic(t, alice)
	require.NoError(t, f.engine.AddComment(f.ctx, alice, topic.Id, "tea"))
	f.waitComments(t, 1)

	id := f.engine.Comments()[0].Id
	before := f.engine.Discussion(alice, topic.Id)[0].Score

	clicks := []models.Direction{
		models.DirectionUp, models.DirectionDown,
		models.DirectionUp, models.DirectionDown,
		models.DirectionDown, models.DirectionUp,
	}
	for i, dir := range clicks {
		require.NoError(t, f.engine.ToggleCommentLike(f.ctx, alice, id, dir))
		c := f.engine.Discussion(alice, topic.Id)[0]

		assert.GreaterOrEqual(t, c.Score, before-1, "click %d", i)
		assert.LessOrEqual(t, c.Score, before+1, "click %d", i)

		// odd clicks like with the clicked direction, even clicks undo it
		if i%2 == 0 {
			assert.True(t, c.Liked, "click %d", i)
			assert.Equal(t, before+dir.Delta(), c.Score, "click %d", i)
		} else {
			assert.False(t, c.Liked, "click %d", i)
			assert.Equal(t, before, c.Score, "click %d", i)
		}
	}
}

func TestPrefsFailureLeavesNoVisibleChange(t *testing.T) {
	f := setup(t)
	alice := f.session(t, "alice@example.com")
	topic := f.topic(t, alice)
	require.NoError(t, f.engine.AddComment(f.ctx, alice, topic.Id, "tea"))
	f.waitComments(t, 1)
	id := f.engine.Comments()[0].Id

	broken, err := OpenSession(f.ctx, failingPrefs{Memory: prefs.NewMemory(), err: errors.New("kv down")}, "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, f.engine.ToggleCommentLike(f.ctx, broken, id, models.DirectionUp))
	c := f.engine.Discussion(broken, topic.Id)[0]
	assert.False(t, c.Liked)
	assert.Equal(t, 0, c.Score)

	// the remote vote still lands; only the local marker is missing
	require.NoError(t, f.engine.CastVote(f.ctx, broken, topic.Id, models.ChoiceB))
	f.waitComments(t, 2)
	_, voted := broken.VotedFor(topic.Id)
	assert.False(t, voted)
	assert.Equal(t, 1, f.engine.Tallies()[topic.Id].VotesB)
}

func TestViewOrdersPendingTopicsFirst(t *testing.T) {
	e := New(store.NewMemory())
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	old := now.Add(-time.Hour)
	e.ApplyTopics(store.Snapshot[models.Topic]{Items: []models.Topic{
		{Id: "old", CreatedAt: &old},
		{Id: "pending"},
	}})
	e.ApplyComments(store.Snapshot[models.Comment]{Items: []models.Comment{
		tally.EncodeVote(models.VoteRecord{TopicId: "ghost", Choice: models.ChoiceA}),
	}})

	view := e.View(Anonymous())
	require.Len(t, view, 2)
	assert.Equal(t, "pending", view[0].Id)
	require.NotNil(t, view[0].CreatedAt)
	assert.Equal(t, now, *view[0].CreatedAt)
	assert.Zero(t, view[0].PercentageA)
	assert.Zero(t, view[0].PercentageB)
	assert.NotContains(t, e.Tallies(), "ghost")
}

func TestTopicLookup(t *testing.T) {
	e := New(store.NewMemory())
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	e.ApplyTopics(store.Snapshot[models.Topic]{Items: []models.Topic{{Id: "t1"}, {Id: "t2"}}})
	e.ApplyComments(store.Snapshot[models.Comment]{Items: []models.Comment{
		tally.EncodeVote(models.VoteRecord{TopicId: "t1", Choice: models.ChoiceA, Author: "a"}),
		tally.EncodeVote(models.VoteRecord{TopicId: "t1", Choice: models.ChoiceB, Author: "b"}),
		tally.EncodeVote(models.VoteRecord{TopicId: "t1", Choice: models.ChoiceB, Author: "c"}),
		tally.EncodeVote(models.VoteRecord{TopicId: "t2", Choice: models.ChoiceA, Author: "a"}),
	}})

	view, ok := e.Topic(Anonymous(), "t1")
	require.True(t, ok)
	assert.Equal(t, tally.Tally{VotesA: 1, VotesB: 2}, view.Tally)
	assert.Equal(t, 33, view.PercentageA)
	assert.Equal(t, 67, view.PercentageB)
	require.NotNil(t, view.CreatedAt)
	assert.Equal(t, now, *view.CreatedAt)

	_, ok = e.Topic(Anonymous(), "missing")
	assert.False(t, ok)
}

func TestSnapshotsReplaceNotMerge(t *testing.T) {
	e := New(store.NewMemory())
	e.ApplyTopics(store.Snapshot[models.Topic]{Items: []models.Topic{{Id: "a"}, {Id: "b"}}})
	e.ApplyTopics(store.Snapshot[models.Topic]{Items: []models.Topic{{Id: "c"}}})

	topics := e.Topics()
	require.Len(t, topics, 1)
	assert.Equal(t, "c", topics[0].Id)
	assert.Equal(t, uint64(2), e.Revision())
}

func TestRunReportsClosedSubscription(t *testing.T) {
	ds := store.NewMemory()
	e := New(ds)
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	require.Eventually(t, func() bool { return e.Revision() >= 2 }, time.Second, 5*time.Millisecond)
	ds.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSubscriptionClosed)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
