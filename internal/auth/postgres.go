package auth

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"wyr/internal/models"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres 账户存于 users 表，密码为 bcrypt 哈希
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) SignUp(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if err := checkPassword(password); err != nil {
		return "", err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	query, args, err := psql.Insert("users").Columns("email", "password").Values(email, hash).ToSql()
	if err != nil {
		return "", errors.WithStack(err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fail("The email address is already in use by another account.", err)
		}
		return "", fail("Sign up is unavailable, please try again later.", err)
	}
	return email, nil
}

func (p *Postgres) SignIn(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}

	query, args, err := psql.Select("email", "password", "created_at").
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return "", errors.WithStack(err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return "", fail("Sign in is unavailable, please try again later.", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fail("The email or password is incorrect.", err)
	}
	if err != nil {
		return "", fail("Sign in is unavailable, please try again later.", err)
	}

	if err := comparePassword(user.Password, password); err != nil {
		return "", err
	}
	return user.Email, nil
}
