package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?/[A-Za-z0-9._-]+$`)

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("repository", validateRepository); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("glob", validateGlob); err != nil {
		panic(err)
	}

	// Report fields by their environment variable name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("env")
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateRepository(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return repositoryPattern.MatchString(value) && !strings.HasSuffix(value, "/.") && !strings.HasSuffix(value, "/..")
}

func validateGlob(fl validator.FieldLevel) bool {
	_, err := filepath.Match(fl.Field().String(), "")
	return err == nil
}

// ValidationError is one rejected setting.
type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

func structErrors(s any) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "config", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{Field: e.Field(), Message: validationMessage(e)})
	}
	return out
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is not set", envName(e.Param()))
	case "required_with":
		return fmt.Sprintf("is required when %s is set", envName(e.Param()))
	case "excluded_with":
		return fmt.Sprintf("cannot be combined with %s", envName(e.Param()))
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "timezone":
		return "must be an IANA time zone name"
	case "file":
		return "must point to an existing file"
	case "repository":
		return "must have the form owner/repo"
	case "glob":
		return "must be a valid file name pattern"
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}

// envName maps a GitHub struct field name used in cross-field tags to the
// variable an operator sets.
func envName(field string) string {
	if f, ok := reflect.TypeOf(GitHub{}).FieldByName(field); ok {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
	}
	return field
}
