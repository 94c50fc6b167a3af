package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wyr/pkg/third/geetest"
)

type AuthHandle struct {
	deps *Deps
}

func RegisterAuth(router fiber.Router, deps *Deps) {
	handler := AuthHandle{deps: deps}

	router.Post("/signup", handler.SignUp)
	router.Post("/signin", handler.SignIn)
	router.Post("/signout", deps.Identify, handler.SignOut)
}

type credentials struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Captcha  *geetest.Params `json:"captcha,omitempty"`
}

type signedIn struct {
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

// SignUp 注册
func (h *AuthHandle) SignUp(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	if h.deps.Captcha != nil {
		if req.Captcha == nil || !h.deps.Captcha.Validate(c.UserContext(), *req.Captcha, c.IP()) {
			return fiber.NewError(fiber.StatusForbidden, "captcha failed")
		}
	}

	identity, err := h.deps.Auth.SignUp(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, signedIn{Identity: identity, Token: h.deps.Tokens.Issue(identity)})
}

// SignIn 登录
func (h *AuthHandle) SignIn(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	identity, err := h.deps.Auth.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, signedIn{Identity: identity, Token: h.deps.Tokens.Issue(identity)})
}

// SignOut drops the cached session. Tokens stay valid until they expire.
func (h *AuthHandle) SignOut(c *fiber.Ctx) error {
	if s := session(c); s.Authenticated() {
		h.deps.Sessions.Close(s.Identity())
	}
	return c.SendStatus(fiber.StatusNoContent)
}
