package validator

import (
	"fmt"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Number is the constraint of numeric rules.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// RequiredString fails when value is empty after trimming spaces.
func RequiredString(field, value string) Rule {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return fail(field, "is required", "validation.required", nil)
		}
		return nil
	}
}

// MinLenString fails when value has fewer than min runes.
func MinLenString(field, value string, min int) Rule {
	return func() *ValidationError {
		if utf8.RuneCountInString(value) < min {
			return fail(field, fmt.Sprintf("must be at least %d characters long", min),
				"validation.min_length", map[string]any{"min": min})
		}
		return nil
	}
}

// MaxLenString fails when value has more than max runes.
func MaxLenString(field, value string, max int) Rule {
	return func() *ValidationError {
		if utf8.RuneCountInString(value) > max {
			return fail(field, fmt.Sprintf("must not exceed %d characters", max),
				"validation.max_length", map[string]any{"max": max})
		}
		return nil
	}
}

// LenString fails unless value has exactly length runes.
func LenString(field, value string, length int) Rule {
	return func() *ValidationError {
		if utf8.RuneCountInString(value) != length {
			return fail(field, fmt.Sprintf("must be exactly %d characters long", length),
				"validation.exact_length", map[string]any{"length": length})
		}
		return nil
	}
}

// Email fails when value is not a bare email address.
func Email(field, value string) Rule {
	return func() *ValidationError {
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@"):], ".") {
			return fail(field, "must be a valid email address", "validation.email", nil)
		}
		return nil
	}
}

// OneOf fails when value is not one of allowed.
func OneOf(field, value string, allowed ...string) Rule {
	return func() *ValidationError {
		if !slices.Contains(allowed, value) {
			return fail(field, "must be one of "+strings.Join(allowed, ", "),
				"validation.one_of", map[string]any{"allowed": allowed})
		}
		return nil
	}
}

// RequiredNum fails on the zero value.
func RequiredNum[T Number](field string, value T) Rule {
	return func() *ValidationError {
		if value == 0 {
			return fail(field, "is required", "validation.required", nil)
		}
		return nil
	}
}

// MinNum fails when value is below min.
func MinNum[T Number](field string, value, min T) Rule {
	return func() *ValidationError {
		if value < min {
			return fail(field, fmt.Sprintf("must be at least %v", min),
				"validation.min", map[string]any{"min": min})
		}
		return nil
	}
}

// MaxNum fails when value is above max.
func MaxNum[T Number](field string, value, max T) Rule {
	return func() *ValidationError {
		if value > max {
			return fail(field, fmt.Sprintf("must not exceed %v", max),
				"validation.max", map[string]any{"max": max})
		}
		return nil
	}
}

// RequiredSlice fails on an empty slice.
func RequiredSlice[T any](field string, value []T) Rule {
	return func() *ValidationError {
		if len(value) == 0 {
			return fail(field, "is required", "validation.required", nil)
		}
		return nil
	}
}

// MaxLenSlice fails when value has more than max items.
func MaxLenSlice[T any](field string, value []T, max int) Rule {
	return func() *ValidationError {
		if len(value) > max {
			return fail(field, fmt.Sprintf("must not contain more than %d items", max),
				"validation.max_items", map[string]any{"max": max})
		}
		return nil
	}
}

// RequiredMap fails on an empty map.
func RequiredMap[K comparable, V any](field string, value map[K]V) Rule {
	return func() *ValidationError {
		if len(value) == 0 {
			return fail(field, "is required", "validation.required", nil)
		}
		return nil
	}
}

// NumericString fails when a non-empty value is not a decimal number.
func NumericString(field, value string) Rule {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fail(field, "must be a number", "validation.numeric", nil)
		}
		return nil
	}
}

// DateString fails when a non-empty value does not match layout.
func DateString(field, value, layout string) Rule {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if _, err := time.Parse(layout, value); err != nil {
			return fail(field, "must be a valid date", "validation.date", map[string]any{"layout": layout})
		}
		return nil
	}
}
