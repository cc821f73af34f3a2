package params

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/user/relaygate/internal/config"
)

// phoneRe matches a mainland-China mobile number, the phone validator
// semantics inherited from the source system's param validation table.
var phoneRe = regexp.MustCompile(`^1[3-9]\d{9}$`)

// validate is the shared go-playground/validator instance used for the
// built-in tag checks (email, url, ipv4) that already match the source
// vocabulary one-for-one.
var validate = validator.New()

// ValidationError reports one failed validator against one resolved field.
type ValidationError struct {
	Field string
	Rule  string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// runValidators applies v in order against value, returning a mutated value
// (only "trim" mutates) and the first validation failure, if any.
func runValidators(field string, value any, vs []config.Validator) (any, error) {
	for _, rule := range vs {
		mutated, err := applyValidator(field, value, rule)
		if err != nil {
			return value, err
		}
		value = mutated
	}
	return value, nil
}

func applyValidator(field string, value any, rule config.Validator) (any, error) {
	fail := func(defaultMsg string) error {
		msg := rule.Message
		if msg == "" {
			msg = defaultMsg
		}
		return &ValidationError{Field: field, Rule: rule.Type, Msg: msg}
	}

	switch strings.ToLower(rule.Type) {
	case "required":
		if isEmptyValue(value) {
			return value, fail("is required")
		}
	case "number":
		if _, ok := asFloat64(value); !ok {
			return value, fail("must be a number")
		}
	case "integer":
		if _, err := toInt64(value); err != nil {
			return value, fail("must be an integer")
		}
	case "boolean":
		if _, err := toBool(value); err != nil {
			return value, fail("must be a boolean")
		}
	case "min":
		f, ok := asFloat64(value)
		if !ok || rule.Min == nil || f < *rule.Min {
			return value, fail(fmt.Sprintf("must be >= %v", derefFloat(rule.Min)))
		}
	case "max":
		f, ok := asFloat64(value)
		if !ok || rule.Max == nil || f > *rule.Max {
			return value, fail(fmt.Sprintf("must be <= %v", derefFloat(rule.Max)))
		}
	case "minlength":
		s := toString(value)
		if rule.Min == nil || float64(len([]rune(s))) < *rule.Min {
			return value, fail("too short")
		}
	case "maxlength":
		s := toString(value)
		if rule.Max == nil || float64(len([]rune(s))) > *rule.Max {
			return value, fail("too long")
		}
	case "length":
		s := toString(value)
		if rule.Length == nil || len([]rune(s)) != *rule.Length {
			return value, fail("wrong length")
		}
	case "email":
		if err := validate.Var(toString(value), "email"); err != nil {
			return value, fail("invalid email")
		}
	case "phone":
		if !phoneRe.MatchString(toString(value)) {
			return value, fail("invalid phone number")
		}
	case "date":
		if err := validate.Var(toString(value), "datetime=2006-01-02"); err != nil {
			return value, fail("invalid date, expected YYYY-MM-DD")
		}
	case "enum":
		s := toString(value)
		if !contains(rule.Enum, s) {
			return value, fail(fmt.Sprintf("must be one of %v", rule.Enum))
		}
	case "pattern":
		re, err := regexp.Compile(rule.Pattern)
		if err != nil || !re.MatchString(toString(value)) {
			return value, fail("does not match required pattern")
		}
	case "ipv4":
		if err := validate.Var(toString(value), "ipv4"); err != nil {
			return value, fail("invalid IPv4 address")
		}
	case "url":
		if err := validate.Var(toString(value), "url"); err != nil {
			return value, fail("invalid URL")
		}
	case "trim":
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s), nil
		}
	default:
		return value, fmt.Errorf("unknown validator type %q", rule.Type)
	}
	return value, nil
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
