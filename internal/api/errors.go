package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/roach88/diceroll/internal/wager"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf maps an error onto an HTTP status and a stable code string.
func statusOf(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(fe.Code), " ", "_"))
	}

	code := wager.CodeOf(err)
	switch code {
	case wager.ErrCodeDuplicateSession, wager.ErrCodeAlreadyResolved:
		return fiber.StatusConflict, string(code)
	case wager.ErrCodeInsufficientFunds:
		return fiber.StatusPaymentRequired, string(code)
	case wager.ErrCodeNotFound:
		return fiber.StatusNotFound, string(code)
	case wager.ErrCodeInvalidArgument:
		return fiber.StatusBadRequest, string(code)
	case wager.ErrCodeUnauthorized:
		return fiber.StatusUnauthorized, string(code)
	case wager.ErrCodeSettlementFailure:
		return fiber.StatusInternalServerError, string(code)
	default:
		return fiber.StatusInternalServerError, "INTERNAL"
	}
}

func errorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code := statusOf(err)
		msg := err.Error()
		if code == "INTERNAL" {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
			msg = "internal error"
		}
		return c.Status(status).JSON(errorBody{Error: errorDetail{Code: code, Message: msg}})
	}
}
