// Package validate runs struct tag validation and reports failures as
// domain validation errors keyed by JSON field name.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/quicktix/internal/domain"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		Configure(instance)
	})
	return instance
}

// Configure makes v report fields by their JSON names.
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}

// Struct validates s. Tag failures come back as *domain.ValidationError.
func Struct(s any) error {
	if err := engine().Struct(s); err != nil {
		return Fields(err)
	}
	return nil
}

// Fields converts validator errors into a *domain.ValidationError. Other
// errors are returned unchanged.
func Fields(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	ve := &domain.ValidationError{}
	for _, fe := range verrs {
		ve.Add(fe.Field(), message(fe))
	}

	return ve
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "eqfield":
		return "must match " + fe.Param()
	default:
		return "is invalid"
	}
}
