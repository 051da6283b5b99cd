package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

var (
	once     sync.Once
	instance *structValidator
)

// Register installs the custom tags and JSON field names on gin's binding
// engine. It is safe to call more than once.
func Register() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
		}
		v.RegisterTagNameFunc(jsonTagName)
		v.RegisterValidation("notblank", notBlank)
		instance = &structValidator{v: v}
	})
}

// New returns the shared validator. It reuses gin's binding engine so that
// request binding and service-level checks agree on tags and field names.
func New() Validator {
	Register()
	return instance
}

func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Describe turns a binding or validation error into a message fit for the
// caller. Errors that are not validation errors are reported as a malformed
// body.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "malformed request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return strings.Join(msgs, "; ")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", fe.Field(), strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}
