package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"wyr/internal/auth"
	"wyr/internal/engine"
)

// ErrorHandler 统一错误响应。只有认证错误会原样展示给用户
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, message = fe.Code, fe.Message
	case errors.Is(err, auth.ErrAuthentication):
		code, message = fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, engine.ErrInvalidChoice),
		errors.Is(err, engine.ErrInvalidDirection),
		errors.Is(err, engine.ErrInvalidTopic):
		code, message = fiber.StatusBadRequest, errors.Cause(err).Error()
	case errors.Is(err, engine.ErrWriteRejected):
		code, message = fiber.StatusBadGateway, "write rejected"
	default:
		log.Error().Stack().Err(err).Str("path", c.Path()).Msg("未处理的错误")
	}

	return c.Status(code).JSON(fiber.Map{
		"code":    strconv.Itoa(code),
		"message": message,
	})
}
