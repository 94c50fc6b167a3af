package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"wyr/internal/models"
	"wyr/pkg/async"
)

// Memory 进程内文档库，开发模式和测试使用
type Memory struct {
	mu       sync.Mutex
	topics   []models.Topic
	comments []models.Comment
	revision uint64
	closed   bool

	topicSubs   map[chan Snapshot[models.Topic]]struct{}
	commentSubs map[chan Snapshot[models.Comment]]struct{}

	failWrites error

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		topicSubs:   make(map[chan Snapshot[models.Topic]]struct{}),
		commentSubs: make(map[chan Snapshot[models.Comment]]struct{}),
		now:         time.Now,
	}
}

func (m *Memory) SubscribeTopics(ctx context.Context) (<-chan Snapshot[models.Topic], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	ch := make(chan Snapshot[models.Topic], 1)
	m.topicSubs[ch] = struct{}{}
	ch <- Snapshot[models.Topic]{Items: slices.Clone(m.topics), Revision: m.revision}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.topicSubs[ch]; ok {
			delete(m.topicSubs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (m *Memory) SubscribeComments(ctx context.Context) (<-chan Snapshot[models.Comment], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	ch := make(chan Snapshot[models.Comment], 1)
	m.commentSubs[ch] = struct{}{}
	ch <- Snapshot[models.Comment]{Items: slices.Clone(m.comments), Revision: m.revision}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.commentSubs[ch]; ok {
			delete(m.commentSubs, ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (m *Memory) CreateTopic(_ context.Context, topic models.Topic) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return "", err
	}

	now := m.now()
	topic.Id = uuid.NewString()
	topic.CreatedAt = &now
	m.topics = append(m.topics, topic)
	SortNewestFirst(m.topics, now)
	m.publishTopics()
	return topic.Id, nil
}

func (m *Memory) CreateComment(_ context.Context, comment models.Comment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return "", err
	}

	now := m.now()
	comment.Id = uuid.NewString()
	comment.CreatedAt = &now
	m.comments = append(m.comments, comment)
	SortNewestFirst(m.comments, now)
	m.publishComments()
	return comment.Id, nil
}

func (m *Memory) DeleteComment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}

	n := len(m.comments)
	m.comments = slices.DeleteFunc(m.comments, func(c models.Comment) bool {
		return c.Id == id
	})
	if len(m.comments) != n {
		m.publishComments()
	}
	return nil
}

// Close ends every subscription.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for ch := range m.topicSubs {
		close(ch)
	}
	for ch := range m.commentSubs {
		close(ch)
	}
	clear(m.topicSubs)
	clear(m.commentSubs)
}

// FailWith makes every later write return err until called with nil.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

func (m *Memory) writable() error {
	if m.closed {
		return ErrClosed
	}
	return m.failWrites
}

func (m *Memory) publishTopics() {
	m.revision++
	for ch := range m.topicSubs {
		async.Offer(ch, Snapshot[models.Topic]{Items: slices.Clone(m.topics), Revision: m.revision})
	}
}

func (m *Memory) publishComments() {
	m.revision++
	for ch := range m.commentSubs {
		async.Offer(ch, Snapshot[models.Comment]{Items: slices.Clone(m.comments), Revision: m.revision})
	}
}
