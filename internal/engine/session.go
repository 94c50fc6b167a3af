package engine

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"wyr/internal/metrics"
	"wyr/internal/models"
	"wyr/internal/prefs"
)

const (
	keyVotedTopics   = "votedTopics"
	keyLikedComments = "likedComments"
	keyCommentScores = "commentScores"
)

// Session 单个用户的上下文：身份加本地偏好缓存。
// 偏好在打开时读取一次，之后每次操作同步写回；收藏只保存在内存中。
type Session struct {
	identity string
	prefs    prefs.Store

	mu            sync.Mutex
	votedTopics   map[string]models.Choice
	likedComments map[string]bool
	commentScores map[string]int
	favorites     map[string]struct{}
}

// Anonymous returns a session without identity. Every mutation through it is
// a silent no-op.
func Anonymous() *Session {
	return newSession("", nil)
}

func newSession(identity string, ps prefs.Store) *Session {
	return &Session{
		identity:      identity,
		prefs:         ps,
		votedTopics:   make(map[string]models.Choice),
		likedComments: make(map[string]bool),
		commentScores: make(map[string]int),
		favorites:     make(map[string]struct{}),
	}
}

// OpenSession loads identity's persisted preferences.
func OpenSession(ctx context.Context, ps prefs.Store, identity string) (*Session, error) {
	s := newSession(identity, ps)
	if identity == "" {
		return s, nil
	}

	if err := s.load(ctx, keyVotedTopics, &s.votedTopics); err != nil {
		return nil, err
	}
	if err := s.load(ctx, keyLikedComments, &s.likedComments); err != nil {
		return nil, err
	}
	if err := s.load(ctx, keyCommentScores, &s.commentScores); err != nil {
		return nil, err
	}

	// a stored "null" decodes to a nil map
	if s.votedTopics == nil {
		s.votedTopics = make(map[string]models.Choice)
	}
	if s.likedComments == nil {
		s.likedComments = make(map[string]bool)
	}
	if s.commentScores == nil {
		s.commentScores = make(map[string]int)
	}
	return s, nil
}

func (s *Session) Identity() string {
	return s.identity
}

func (s *Session) Authenticated() bool {
	return s.identity != ""
}

// VotedFor 本地记录的本人选择
func (s *Session) VotedFor(topicID string) (models.Choice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.votedTopics[topicID]
	return c, ok
}

func (s *Session) Liked(commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.likedComments[commentID]
}

// ScoreDelta is this user's local adjustment to a comment's stored score.
func (s *Session) ScoreDelta(commentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commentScores[commentID]
}

func (s *Session) IsFavorite(topicID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.favorites[topicID]
	return ok
}

// ToggleFavorite 切换收藏状态，返回切换后的状态
func (s *Session) ToggleFavorite(topicID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favorites[topicID]; ok {
		delete(s.favorites, topicID)
		return false
	}
	s.favorites[topicID] = struct{}{}
	return true
}

func (s *Session) rememberVote(ctx context.Context, topicID string, choice models.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.votedTopics[topicID]
	s.votedTopics[topicID] = choice
	if err := s.save(ctx, keyVotedTopics, s.votedTopics); err != nil {
		if had {
			s.votedTopics[topicID] = prev
		} else {
			delete(s.votedTopics, topicID)
		}
		return err
	}
	return nil
}

// toggleLike flips the liked flag. Liking moves the score overlay by delta;
// unliking drops whatever overlay the like applied, whatever direction the
// unlike click carries. Both maps change or neither does.
func (s *Session) toggleLike(ctx context.Context, commentID string, delta int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasLiked := s.likedComments[commentID]
	prevScore, hadScore := s.commentScores[commentID]

	score := 0
	if wasLiked {
		delete(s.likedComments, commentID)
	} else {
		score = delta
		s.likedComments[commentID] = true
	}
	if score == 0 {
		delete(s.commentScores, commentID)
	} else {
		s.commentScores[commentID] = score
	}

	err := s.save(ctx, keyLikedComments, s.likedComments)
	if err == nil {
		err = s.save(ctx, keyCommentScores, s.commentScores)
	}
	if err != nil {
		if wasLiked {
			s.likedComments[commentID] = true
		} else {
			delete(s.likedComments, commentID)
		}
		if hadScore {
			s.commentScores[commentID] = prevScore
		} else {
			delete(s.commentScores, commentID)
		}
		// likedComments may already be written; rewrite it from the restored state
		_ = s.save(ctx, keyLikedComments, s.likedComments)
		return wasLiked, err
	}
	return !wasLiked, nil
}

func (s *Session) load(ctx context.Context, name string, dst any) error {
	raw, ok, err := s.prefs.Get(ctx, prefs.UserKey(s.identity, name))
	if err != nil {
		return errors.Wrapf(err, "load %s", name)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		// 本地缓存损坏不影响使用，从空状态开始
		log.Warn().Err(err).Str("identity", s.identity).Str("key", name).Msg("偏好数据损坏，已忽略")
	}
	return nil
}

func (s *Session) save(ctx context.Context, name string, v any) error {
	if s.prefs == nil || s.identity == "" {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := s.prefs.Set(ctx, prefs.UserKey(s.identity, name), string(raw)); err != nil {
		return errors.Wrapf(err, "save %s", name)
	}
	return nil
}

// Sessions 按身份缓存已打开的会话
type Sessions struct {
	prefs prefs.Store

	mu   sync.Mutex
	open map[string]*Session
}

func NewSessions(ps prefs.Store) *Sessions {
	return &Sessions{prefs: ps, open: make(map[string]*Session)}
}

// Get returns the cached session for identity, opening it on first use. An
// empty identity yields a fresh anonymous session.
func (r *Sessions) Get(ctx context.Context, identity string) (*Session, error) {
	if identity == "" {
		return Anonymous(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.open[identity]; ok {
		return s, nil
	}

	s, err := OpenSession(ctx, r.prefs, identity)
	if err != nil {
		return nil, err
	}
	r.open[identity] = s
	metrics.OpenSessions.Set(float64(len(r.open)))
	return s, nil
}

// Close drops identity's cached session; the next Get reloads it.
func (r *Sessions) Close(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, identity)
	metrics.OpenSessions.Set(float64(len(r.open)))
}
