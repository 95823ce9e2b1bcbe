package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/redbook/internal/services/xhs"
)

// argValidator checks tool arguments before any work is scheduled
type argValidator struct {
	validate *validator.Validate
}

func newArgValidator() *argValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their json names so messages match the tool schema
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// titlewidth=N bounds the display width, counting CJK and other wide runes as 2
	err := v.RegisterValidation("titlewidth", func(fl validator.FieldLevel) bool {
		limit := xhs.MaxTitleWidth
		if p := fl.Param(); p != "" {
			if _, err := fmt.Sscanf(p, "%d", &limit); err != nil {
				return false
			}
		}
		return xhs.TitleWidth(fl.Field().String()) <= limit
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register titlewidth validation: %v", err))
	}

	return &argValidator{validate: v}
}

// Struct validates s and converts failures into one readable message
func (a *argValidator) Struct(s any) error {
	err := a.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "titlewidth":
		return xhs.ErrInvalidTitle.Error()
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s item(s)", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
