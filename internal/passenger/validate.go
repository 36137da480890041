package passenger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/go-playground/validator/v10"
)

// the same tag gin binds request bodies with
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// Validate checks passenger details against their field constraints
func Validate(d entity.PassengerDetails) error {
	d.Name = strings.TrimSpace(d.Name)
	if err := validate.Struct(d); err != nil {
		return entity.NewValidationError(describe(err), err)
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid passenger details"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
