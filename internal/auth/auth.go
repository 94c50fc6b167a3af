package auth

import (
	"context"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrAuthentication 登录或注册失败，唯一需要直接展示给用户的错误
var ErrAuthentication = errors.New("authentication failed")

// Failure carries a message meant for the user.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	return target == ErrAuthentication
}

func fail(message string, err error) error {
	return &Failure{Message: message, Err: err}
}

// Provider signs users in and up by email and password. Both calls resolve
// to the user's identity string.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (string, error)
	SignUp(ctx context.Context, email, password string) (string, error)
}

const minPasswordLength = 6

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", fail("The email address is badly formatted.", err)
	}
	return strings.ToLower(addr.Address), nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return fail("Password should be at least 6 characters.", nil)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

func comparePassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fail("The email or password is incorrect.", err)
	}
	return nil
}
