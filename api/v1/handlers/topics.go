package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"wyr/internal/engine"
	"wyr/internal/models"
)

type TopicHandle struct {
	deps *Deps
}

func RegisterTopics(router fiber.Router, deps *Deps) {
	handler := TopicHandle{deps: deps}

	router.Use(deps.Identify)

	router.Get("/", handler.List)
	router.Post("/", handler.Create)
	router.Get("/:id", handler.Detail)
	router.Post("/:id/votes", handler.Vote)
	router.Get("/:id/comments", handler.Comments)
	router.Post("/:id/comments", handler.AddComment)
	router.Post("/:id/favorite", handler.Favorite)
}

// List 题目列表，?favorites=true 只看收藏
func (h *TopicHandle) List(c *fiber.Ctx) error {
	view := h.deps.Engine.View(session(c))
	if c.QueryBool("favorites") {
		view = lo.Filter(view, func(t engine.TopicView, _ int) bool {
			return t.Favorite
		})
	}
	return ok(c, view)
}

func (h *TopicHandle) Create(c *fiber.Ctx) error {
	var req engine.NewTopic
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := h.deps.Engine.CreateTopic(c.UserContext(), session(c), req); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// Detail 单个题目及其讨论
func (h *TopicHandle) Detail(c *fiber.Ctx) error {
	s := session(c)
	id := c.Params("id")

	topic, found := h.deps.Engine.Topic(s, id)
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "topic not found")
	}

	return ok(c, fiber.Map{
		"topic":    topic,
		"comments": h.deps.Engine.Discussion(s, id),
	})
}

type voteRequest struct {
	Choice models.Choice `json:"choice"`
}

func (h *TopicHandle) Vote(c *fiber.Ctx) error {
	var req voteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := h.deps.Engine.CastVote(c.UserContext(), session(c), c.Params("id"), req.Choice); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *TopicHandle) Comments(c *fiber.Ctx) error {
	return ok(c, h.deps.Engine.Discussion(session(c), c.Params("id")))
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *TopicHandle) AddComment(c *fiber.Ctx) error {
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := h.deps.Engine.AddComment(c.UserContext(), session(c), c.Params("id"), req.Text); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// Favorite 切换收藏，仅当前会话有效
func (h *TopicHandle) Favorite(c *fiber.Ctx) error {
	if s := session(c); s.Authenticated() {
		s.ToggleFavorite(c.Params("id"))
	}
	return c.SendStatus(fiber.StatusAccepted)
}
