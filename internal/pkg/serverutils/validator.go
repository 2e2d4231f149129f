package serverutils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation and converts failures into a
// 422 fiber error so the error handler middleware can shape the response.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return fiber.NewError(
				fiber.StatusUnprocessableEntity,
				fmt.Sprintf("validation failed on field '%s' (%s)", first.Field(), first.Tag()),
			)
		}
		return fiber.NewError(fiber.StatusUnprocessableEntity, "validation failed")
	}
	return nil
}
