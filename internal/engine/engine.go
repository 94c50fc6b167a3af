package engine

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"wyr/internal/metrics"
	"wyr/internal/models"
	"wyr/internal/store"
	"wyr/internal/tally"
)

var (
	// ErrWriteRejected 远端写入失败，不重试；状态以下一次快照为准
	ErrWriteRejected = errors.New("write rejected")

	ErrInvalidChoice      = errors.New("choice must be A or B")
	ErrInvalidDirection   = errors.New("direction must be up or down")
	ErrInvalidTopic       = errors.New("a topic needs a title and two options")
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// Engine holds the latest topic and comment snapshots and derives everything
// else from them. Writes go to the store and become visible only when the
// next snapshot arrives.
type Engine struct {
	store store.DocumentStore

	mu       sync.RWMutex
	topics   []models.Topic
	comments []models.Comment
	revision uint64

	now func() time.Time
}

func New(ds store.DocumentStore) *Engine {
	return &Engine{store: ds, now: time.Now}
}

// Run subscribes to both collections and applies snapshots until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	topics, err := e.store.SubscribeTopics(ctx)
	if err != nil {
		return errors.Wrap(err, "subscribe topics")
	}
	comments, err := e.store.SubscribeComments(ctx)
	if err != nil {
		return errors.Wrap(err, "subscribe comments")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-topics:
			if !ok {
				return e.closed(ctx, models.CollectionTopics)
			}
			e.ApplyTopics(snap)
		case snap, ok := <-comments:
			if !ok {
				return e.closed(ctx, models.CollectionComments)
			}
			e.ApplyComments(snap)
		}
	}
}

func (e *Engine) closed(ctx context.Context, collection string) error {
	if ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(ErrSubscriptionClosed, collection)
}

// ApplyTopics replaces the topic collection.
func (e *Engine) ApplyTopics(snap store.Snapshot[models.Topic]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = snap.Items
	e.revision++
	metrics.SnapshotsApplied.WithLabelValues(models.CollectionTopics).Inc()
	metrics.CollectionSize.WithLabelValues(models.CollectionTopics).Set(float64(len(snap.Items)))
}

// ApplyComments replaces the comment collection.
func (e *Engine) ApplyComments(snap store.Snapshot[models.Comment]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.comments = snap.Items
	e.revision++
	metrics.SnapshotsApplied.WithLabelValues(models.CollectionComments).Inc()
	metrics.CollectionSize.WithLabelValues(models.CollectionComments).Set(float64(len(snap.Items)))
}

// Revision 已应用的快照数
func (e *Engine) Revision() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision
}

func (e *Engine) Topics() []models.Topic {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.topics)
}

func (e *Engine) Comments() []models.Comment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.comments)
}

// Tallies 基于当前两份快照重新计算
func (e *Engine) Tallies() map[string]tally.Tally {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return tally.Aggregate(e.topics, e.comments)
}

func (e *Engine) snapshot() ([]models.Topic, []models.Comment) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.topics, e.comments
}

// CastVote records the session user's choice for topicID. Earlier vote
// records by the same user on that topic are deleted first. There is no
// transaction: a failure between delete and insert leaves no vote.
func (e *Engine) CastVote(ctx context.Context, s *Session, topicID string, choice models.Choice) error {
	if !s.Authenticated() {
		return nil
	}
	if !choice.Valid() {
		return ErrInvalidChoice
	}

	prior := e.votesBy(s.Identity(), topicID)
	for _, v := range prior {
		if err := e.store.DeleteComment(ctx, v.Id); err != nil {
			return rejected("delete_vote", err)
		}
	}

	vote := tally.EncodeVote(models.VoteRecord{
		TopicId: topicID,
		Choice:  choice,
		Author:  s.Identity(),
	})
	if _, err := e.store.CreateComment(ctx, vote); err != nil {
		return rejected("create_vote", err)
	}
	metrics.VotesCast.WithLabelValues(strconv.FormatBool(len(prior) > 0)).Inc()

	log.Debug().
		Str("topic", topicID).
		Str("choice", string(choice)).
		Int("replaced", len(prior)).
		Msg("投票已提交")

	if err := s.rememberVote(ctx, topicID, choice); err != nil {
		// 远端已写入，本地记录缺失只影响"已投"标记
		log.Warn().Err(err).Str("topic", topicID).Msg("保存投票偏好失败")
	}
	return nil
}

func (e *Engine) votesBy(identity, topicID string) []models.VoteRecord {
	_, comments := e.snapshot()
	votes, _ := tally.Partition(comments)
	return lo.Filter(votes, func(v models.VoteRecord, _ int) bool {
		return v.Author == identity && v.TopicId == topicID
	})
}

// AddComment 发表讨论评论，空文本或未登录时不做任何事
func (e *Engine) AddComment(ctx context.Context, s *Session, topicID, text string) error {
	text = strings.TrimSpace(text)
	if !s.Authenticated() || topicID == "" || text == "" {
		return nil
	}

	_, err := e.store.CreateComment(ctx, models.Comment{
		TopicId: topicID,
		Text:    text,
		Author:  s.Identity(),
	})
	if err != nil {
		return rejected("create_comment", err)
	}
	metrics.CommentsAdded.Inc()
	return nil
}

type NewTopic struct {
	Title   string `json:"title"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
}

func (e *Engine) CreateTopic(ctx context.Context, s *Session, t NewTopic) error {
	if !s.Authenticated() {
		return nil
	}

	topic := models.Topic{
		Title:   strings.TrimSpace(t.Title),
		OptionA: strings.TrimSpace(t.OptionA),
		OptionB: strings.TrimSpace(t.OptionB),
		Author:  s.Identity(),
	}
	if topic.Title == "" || topic.OptionA == "" || topic.OptionB == "" {
		return ErrInvalidTopic
	}

	if _, err := e.store.CreateTopic(ctx, topic); err != nil {
		return rejected("create_topic", err)
	}
	metrics.TopicsCreated.Inc()
	return nil
}

// ToggleCommentLike likes or unlikes a comment for this user. The score change
// is a local overlay kept in the user's preferences; the stored comment is
// never modified.
func (e *Engine) ToggleCommentLike(ctx context.Context, s *Session, commentID string, dir models.Direction) error {
	if !s.Authenticated() || commentID == "" {
		return nil
	}
	delta := dir.Delta()
	if delta == 0 {
		return ErrInvalidDirection
	}

	if _, err := s.toggleLike(ctx, commentID, delta); err != nil {
		// toggleLike 已回滚，状态不变
		log.Warn().Err(err).Str("comment", commentID).Msg("保存点赞偏好失败")
	}
	return nil
}

func rejected(op string, err error) error {
	metrics.WritesRejected.WithLabelValues(op).Inc()
	log.Error().Stack().Err(err).Str("op", op).Msg("写入被拒绝")
	return errors.Wrapf(ErrWriteRejected, "%s: %v", op, err)
}
