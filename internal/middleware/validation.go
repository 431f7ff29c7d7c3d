package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required": "Field is required",
	"notblank": "Field must not be blank",
}

var registerOnce sync.Once

// RegisterValidators adds the custom tags to gin's validator and reports
// fields by their json name. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(err)
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// ValidationErrors flattens a binding error into per-field messages; ok is
// false when err did not come from the validator.
func ValidationErrors(err error) ([]ValidationError, bool) {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil, false
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := messages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out, true
}
