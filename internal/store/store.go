package store

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"

	"wyr/internal/models"
)

var (
	ErrClosed = errors.New("store closed")
)

// Snapshot 某个集合的完整内容，新快照整体替换旧快照，不做合并
type Snapshot[T any] struct {
	Items []T
	// Revision 同一订阅内单调递增
	Revision uint64
}

// DocumentStore is the remote document database. Subscriptions yield whole
// collections ordered newest first; a slow reader only sees the latest one.
type DocumentStore interface {
	SubscribeTopics(ctx context.Context) (<-chan Snapshot[models.Topic], error)
	SubscribeComments(ctx context.Context) (<-chan Snapshot[models.Comment], error)

	CreateTopic(ctx context.Context, topic models.Topic) (string, error)
	CreateComment(ctx context.Context, comment models.Comment) (string, error)
	// DeleteComment 删除不存在的 id 不报错
	DeleteComment(ctx context.Context, id string) error
}

type timestamped interface {
	CreatedOr(now time.Time) time.Time
}

// SortNewestFirst orders items by creation time descending, treating an
// unresolved timestamp as now. Ties keep their existing order.
func SortNewestFirst[T timestamped](items []T, now time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return b.CreatedOr(now).Compare(a.CreatedOr(now))
	})
}
