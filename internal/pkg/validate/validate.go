package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-blood-connect/internal/domain"
	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report the JSON name the client sent rather than the Go field name.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = val.RegisterValidation("bloodgroup", func(fl validator.FieldLevel) bool {
		return domain.BloodGroup(fl.Field().String()).Valid()
	})
	return val
}

// Struct validates the given struct using its validate tags. Validation
// failures wrap domain.ErrBadRequest.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrBadRequest, strings.Join(msgs, "; "))
}
