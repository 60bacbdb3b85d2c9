// Package validator provides rule based field validation producing per-field
// error messages that map directly onto form re-rendering.
//
//	err := validator.Apply(
//	    validator.RequiredString("name", form.Name),
//	    validator.Email("email", form.Email),
//	    validator.OneOf("role", form.Role, "subscriber", "editor", "admin"),
//	)
//	if ve := validator.ExtractValidationErrors(err); ve != nil {
//	    return trellis.Invalid(ve.Fields(), form.Values()), nil
//	}
package validator

import (
	"errors"
	"strings"
)

// ValidationError is a single failed rule.
type ValidationError struct {
	TranslationValues map[string]any
	Field             string
	Message           string
	TranslationKey    string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is the list of failed rules in rule order.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Get returns the messages of field.
func (e ValidationErrors) Get(field string) []string {
	var msgs []string
	for _, ve := range e {
		if ve.Field == field {
			msgs = append(msgs, ve.Message)
		}
	}
	return msgs
}

// GetErrors returns the errors of field.
func (e ValidationErrors) GetErrors(field string) []ValidationError {
	var out []ValidationError
	for _, ve := range e {
		if ve.Field == field {
			out = append(out, ve)
		}
	}
	return out
}

// Has reports whether field failed any rule.
func (e ValidationErrors) Has(field string) bool {
	for _, ve := range e {
		if ve.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the first message of every failed field.
func (e ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(e))
	for _, ve := range e {
		if _, ok := out[ve.Field]; !ok {
			out[ve.Field] = ve.Message
		}
	}
	return out
}

// Translate replaces messages in place using fn and the translation key and
// values of each error. Errors without a key keep their message.
func (e ValidationErrors) Translate(fn func(key string, values map[string]any) string) {
	if fn == nil {
		return
	}
	for i := range e {
		if e[i].TranslationKey == "" {
			continue
		}
		e[i].Message = fn(e[i].TranslationKey, e[i].TranslationValues)
	}
}

// IsValidationError reports whether err carries ValidationErrors.
func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}

// ExtractValidationErrors returns the ValidationErrors carried by err, or nil.
func ExtractValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// Rule checks one field. A nil result means the rule passed.
type Rule func() *ValidationError

// Apply runs every rule and returns ValidationErrors when any failed.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if ve := rule(); ve != nil {
			errs = append(errs, *ve)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// When returns rule when cond holds and a no-op rule otherwise.
func When(cond bool, rule Rule) Rule {
	if !cond {
		return nil
	}
	return rule
}

func fail(field, message, key string, values map[string]any) *ValidationError {
	if values == nil {
		values = map[string]any{}
	}
	values["field"] = field
	return &ValidationError{
		Field:             field,
		Message:           message,
		TranslationKey:    key,
		TranslationValues: values,
	}
}
