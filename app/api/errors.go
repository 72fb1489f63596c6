package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"finstack/types"
)

// ErrorHandler is the fiber-level error sink. Typed domain errors map to
// their status codes; everything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if apiError, ok := err.(Error); ok {
		return c.Status(apiError.Code).JSON(apiError)
	}
	if valError, ok := err.(types.ValidationError); ok {
		return c.Status(valError.Status).JSON(valError)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	var exErr types.ExtractionError
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrEmptyDocument):
		code = fiber.StatusBadRequest
	case errors.As(err, &exErr):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, types.ErrIndexUnavailable):
		code = fiber.StatusServiceUnavailable
	}

	apiError := NewError(code, err.Error())
	slog.Error("request failed", "code", apiError.Code, "error", apiError.Message)
	return c.Status(apiError.Code).JSON(apiError)
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid request",
	}
}
