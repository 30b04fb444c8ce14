package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg against its struct constraints. The first violation is
// returned as a *ConfigError naming the koanf path of the field.
func Validate(cfg *Config) error {
	err := structValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	return NewInvalidFieldError(fieldPath(fe.Namespace()), describe(fe))
}

// fieldPath strips the root struct name: "Config.retry.maxwait" -> "retry.maxwait".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s (got %v)", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s (got %v)", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s (got %v)", fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("must not be smaller than %s (got %v)", strings.ToLower(fe.Param()), fe.Value())
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.ToLower(strings.ReplaceAll(fe.Param(), " ", " is ")))
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got %v)", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	default:
		return fmt.Sprintf("failed %q validation (got %v)", fe.Tag(), fe.Value())
	}
}
