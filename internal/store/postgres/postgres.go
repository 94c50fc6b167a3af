package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"wyr/internal/models"
	"wyr/internal/store"
	"wyr/pkg/async"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// resubscribeDelay 监听连接断开后的重连间隔
const resubscribeDelay = 2 * time.Second

// Store implements store.DocumentStore on PostgreSQL. Every NOTIFY on a
// collection's channel triggers a full reload of that collection.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SubscribeTopics(ctx context.Context) (<-chan store.Snapshot[models.Topic], error) {
	return subscribe(ctx, s.pool, channelTopics, s.loadTopics)
}

func (s *Store) SubscribeComments(ctx context.Context) (<-chan store.Snapshot[models.Comment], error) {
	return subscribe(ctx, s.pool, channelComments, s.loadComments)
}

func (s *Store) CreateTopic(ctx context.Context, topic models.Topic) (string, error) {
	query, args, err := psql.Insert("topics").
		Columns("title", "option_a", "option_b", "author").
		Values(topic.Title, topic.OptionA, topic.OptionB, topic.Author).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", errors.WithStack(err)
	}

	var id string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", errors.Wrap(err, "insert topic")
	}
	return id, nil
}

func (s *Store) CreateComment(ctx context.Context, comment models.Comment) (string, error) {
	query, args, err := psql.Insert("comments").
		Columns("topic_id", "text", "author", "choice", "votes").
		Values(comment.TopicId, comment.Text, comment.Author, string(comment.Choice), comment.Votes).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", errors.WithStack(err)
	}

	var id string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", errors.Wrap(err, "insert comment")
	}
	return id, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	query, args, err := psql.Delete("comments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "delete comment")
	}
	return nil
}

func (s *Store) loadTopics(ctx context.Context, q queryer) ([]models.Topic, error) {
	query, args, err := psql.Select("id", "title", "option_a", "option_b", "author", "created_at").
		From("topics").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select topics")
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[models.Topic])
}

func (s *Store) loadComments(ctx context.Context, q queryer) ([]models.Comment, error) {
	query, args, err := psql.Select("id", "topic_id", "text", "author", "choice", "votes", "created_at").
		From("comments").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select comments")
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[models.Comment])
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// subscribe holds one pooled connection in LISTEN mode and reloads the
// collection on every notification. On connection loss it reacquires and
// starts again with a fresh full snapshot.
func subscribe[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	channel string,
	load func(context.Context, queryer) ([]T, error),
) (<-chan store.Snapshot[T], error) {
	conn, err := listen(ctx, pool, channel)
	if err != nil {
		return nil, err
	}

	ch := make(chan store.Snapshot[T], 1)
	go func() {
		defer close(ch)
		var revision uint64

		for {
			err := func() error {
				defer func() {
					_, _ = conn.Exec(context.Background(), "UNLISTEN *")
					conn.Release()
				}()
				for {
					items, err := load(ctx, conn)
					if err != nil {
						return err
					}
					revision++
					async.Offer(ch, store.Snapshot[T]{Items: items, Revision: revision})

					if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
						return err
					}
				}
			}()
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("channel", channel).Msg("订阅中断，准备重连")

			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(resubscribeDelay):
				}
				if conn, err = listen(ctx, pool, channel); err == nil {
					break
				}
				log.Warn().Err(err).Str("channel", channel).Msg("重连失败")
			}
		}
	}()
	return ch, nil
}

func listen(ctx context.Context, pool *pgxpool.Pool, channel string) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire listen connection")
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, errors.Wrapf(err, "listen %s", channel)
	}
	return conn, nil
}
