package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wyr/internal/models"
)

type CommentHandle struct {
	deps *Deps
}

func RegisterComments(router fiber.Router, deps *Deps) {
	handler := CommentHandle{deps: deps}

	router.Use(deps.Identify)

	router.Post("/:id/like", handler.Like)
}

type likeRequest struct {
	Direction models.Direction `json:"direction"`
}

// Like 点赞/点踩，再次点击撤销
func (h *CommentHandle) Like(c *fiber.Ctx) error {
	var req likeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	err := h.deps.Engine.ToggleCommentLike(c.UserContext(), session(c), c.Params("id"), req.Direction)
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}
