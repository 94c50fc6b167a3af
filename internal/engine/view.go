package engine

import (
	"time"

	"github.com/samber/lo"

	"wyr/internal/models"
	"wyr/internal/store"
	"wyr/internal/tally"
)

type TopicView struct {
	models.Topic
	Tally       tally.Tally   `json:"tally"`
	PercentageA int           `json:"percentage_a"`
	PercentageB int           `json:"percentage_b"`
	MyChoice    models.Choice `json:"my_choice,omitempty"`
	Favorite    bool          `json:"favorite"`
}

type CommentView struct {
	models.DiscussionComment
	// Score 存储得分加上本人的本地调整
	Score int  `json:"score"`
	Liked bool `json:"liked"`
}

// View builds the topic list as seen by s, newest first.
func (e *Engine) View(s *Session) []TopicView {
	topics, comments := e.snapshot()
	tallies := tally.Aggregate(topics, comments)
	now := e.now()

	topics = append([]models.Topic(nil), topics...)
	store.SortNewestFirst(topics, now)

	return lo.Map(topics, func(t models.Topic, _ int) TopicView {
		return topicView(s, t, tallies[t.Id], now)
	})
}

func topicView(s *Session, t models.Topic, tl tally.Tally, now time.Time) TopicView {
	created := t.CreatedOr(now)
	t.CreatedAt = &created

	a, b := tl.Percentages()
	mine, _ := s.VotedFor(t.Id)
	return TopicView{
		Topic:       t,
		Tally:       tl,
		PercentageA: a,
		PercentageB: b,
		MyChoice:    mine,
		Favorite:    s.IsFavorite(t.Id),
	}
}

// Discussion 某个题目下的讨论评论，不含投票记录
func (e *Engine) Discussion(s *Session, topicID string) []CommentView {
	_, comments := e.snapshot()
	now := e.now()

	comments = lo.Filter(comments, func(c models.Comment, _ int) bool {
		return c.TopicId == topicID
	})
	store.SortNewestFirst(comments, now)

	_, discussion := tally.Partition(comments)
	return lo.Map(discussion, func(d models.DiscussionComment, _ int) CommentView {
		created := d.CreatedAt
		if created == nil {
			created = &now
		}
		d.CreatedAt = created
		return CommentView{
			DiscussionComment: d,
			Score:             d.Votes + s.ScoreDelta(d.Id),
			Liked:             s.Liked(d.Id),
		}
	})
}

// Topic looks a topic up in the latest snapshot and builds its view for s.
func (e *Engine) Topic(s *Session, id string) (TopicView, bool) {
	topics, comments := e.snapshot()
	t, ok := lo.Find(topics, func(t models.Topic) bool {
		return t.Id == id
	})
	if !ok {
		return TopicView{}, false
	}
	return topicView(s, t, tally.Aggregate([]models.Topic{t}, comments)[id], e.now()), true
}
