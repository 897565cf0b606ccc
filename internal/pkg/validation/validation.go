// Package validation wraps a shared go-playground validator.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names.
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Struct validates v and flattens field errors into one readable message.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	return flatten(err)
}

// Var validates a single value against tag.
func Var(value any, tag string) error {
	return Validator().Var(value, tag)
}

// ShopDomain reports whether shop looks like a Shopify shop host name.
func ShopDomain(shop string) error {
	if err := Var(shop, "required,hostname_rfc1123,max=255"); err != nil {
		return fmt.Errorf("invalid shop domain %q", shop)
	}
	return nil
}

func flatten(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
