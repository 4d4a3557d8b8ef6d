package handler

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/esplendidez/fest-registration/internal/model"
	"github.com/esplendidez/fest-registration/internal/utils"
)

var indianPhone = regexp.MustCompile(`^[6-9][0-9]{9}$`)

// validationError is a boundary rejection whose message is safe to show.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// Validator adapts go-playground/validator to echo.Validator and adds the
// domain tags category, indianphone, utr and paymentstatus.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	// Registration only fails on an empty tag name or nil func.
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.ValidCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("indianphone", func(fl validator.FieldLevel) bool {
		return indianPhone.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("utr", func(fl validator.FieldLevel) bool {
		return utils.ValidUTR(utils.NormalizeUTR(fl.Field().String()))
	})
	_ = v.RegisterValidation("paymentstatus", func(fl validator.FieldLevel) bool {
		return model.PaymentStatus(fl.Field().String()).Valid()
	})
	return &Validator{v: v}
}

// Validate reports the first failing field as a validationError.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		return validationError{msg: describe(ves[0])}
	}
	return err
}

func describe(fe validator.FieldError) string {
	name := label(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return "Valid " + strings.ToLower(name) + " is required"
	case "category":
		return "Event category must be one of: " + strings.Join(model.Categories, ", ")
	case "indianphone":
		return name + " must be a valid 10-digit Indian number"
	case "utr":
		return "UTR must be 6-50 letters or digits"
	case "paymentstatus":
		return "Invalid status"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	}
	return name + " is invalid"
}

// label turns "participantPhone" into "Participant phone".
func label(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
