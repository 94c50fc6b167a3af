package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"wyr/internal/auth"
	"wyr/internal/engine"
	"wyr/pkg/third/geetest"
)

type Deps struct {
	Engine   *engine.Engine
	Sessions *engine.Sessions
	Auth     auth.Provider
	Tokens   *auth.Tokens
	// Captcha 为 nil 时注册不校验
	Captcha   *geetest.Validator
	SystemKey string
	// HealthChecks 外部依赖探活，任一失败时 /health 返回 503
	HealthChecks []func() error
}

func (d *Deps) Health(c *fiber.Ctx) error {
	for _, check := range d.HealthChecks {
		if err := check(); err != nil {
			log.Warn().Err(err).Msg("健康检查失败")
			return c.Status(fiber.StatusServiceUnavailable).SendString("UNAVAILABLE")
		}
	}
	return c.SendString("OK")
}

const localSession = "session"

// Identify 解析 Bearer token 并挂载会话，没有 token 时为匿名会话
func (d *Deps) Identify(c *fiber.Ctx) error {
	identity := ""
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "malformed authorization header")
		}
		id, err := d.Tokens.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		identity = id
	}

	s, err := d.Sessions.Get(c.UserContext(), identity)
	if err != nil {
		return err
	}
	c.Locals(localSession, s)
	return c.Next()
}

func session(c *fiber.Ctx) *engine.Session {
	if s, ok := c.Locals(localSession).(*engine.Session); ok {
		return s
	}
	return engine.Anonymous()
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"code": "200",
		"data": data,
	})
}
