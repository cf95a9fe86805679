package field

import (
	"fmt"
	"reflect"
	"regexp"
)

// asString best-effort unwraps v (including pointer/Nillable forms) to a
// string for validation purposes.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	default:
		return "", false
	}
}

func asInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		if i, ok := asInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

func validateNotEmpty(v any) error {
	s, ok := asString(v)
	if ok && s == "" {
		return fmt.Errorf("value must not be empty")
	}
	return nil
}

func validateMaxLen(v any, n int) error {
	if s, ok := asString(v); ok && len(s) > n {
		return fmt.Errorf("value length %d exceeds max %d", len(s), n)
	}
	return nil
}

func validateMinLen(v any, n int) error {
	if s, ok := asString(v); ok && len(s) < n {
		return fmt.Errorf("value length %d below min %d", len(s), n)
	}
	return nil
}

func validateMatch(v any, re *regexp.Regexp) error {
	if s, ok := asString(v); ok && !re.MatchString(s) {
		return fmt.Errorf("value %q does not match pattern %s", s, re.String())
	}
	return nil
}

func validatePositiveInt(v any) error {
	if i, ok := asInt64(v); ok && i <= 0 {
		return fmt.Errorf("value %d must be positive", i)
	}
	return nil
}

func validateNonNegativeInt(v any) error {
	if i, ok := asInt64(v); ok && i < 0 {
		return fmt.Errorf("value %d must be non-negative", i)
	}
	return nil
}

func validateMinInt(v any, min int64) error {
	if i, ok := asInt64(v); ok && i < min {
		return fmt.Errorf("value %d below min %d", i, min)
	}
	return nil
}

func validateMaxInt(v any, max int64) error {
	if i, ok := asInt64(v); ok && i > max {
		return fmt.Errorf("value %d exceeds max %d", i, max)
	}
	return nil
}

func validatePositiveFloat(v any) error {
	if f, ok := asFloat64(v); ok && f <= 0 {
		return fmt.Errorf("value %v must be positive", f)
	}
	return nil
}

func validateEnum(v any, values []string) error {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	for _, allowed := range values {
		if s == allowed {
			return nil
		}
	}
	return fmt.Errorf("value %q is not one of %v", s, values)
}
