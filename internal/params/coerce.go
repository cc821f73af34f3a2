package params

import (
	"fmt"
	"strconv"

	"github.com/user/relaygate/internal/config"
)

// coerce converts a raw decoded JSON value (string, float64, bool, nil) into
// the declared target dataType. Numeric JSON values always decode as
// float64, so int/long both start from that branch.
func coerce(raw any, dt config.DataType) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch dt {
	case "", config.TypeString:
		return toString(raw), nil
	case config.TypeInt:
		n, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return int(n), nil
	case config.TypeLong:
		return toInt64(raw)
	case config.TypeDouble:
		return toFloat64(raw)
	case config.TypeBoolean:
		return toBool(raw)
	default:
		return nil, fmt.Errorf("unsupported dataType %q", dt)
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("not a boolean: %q", t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("not a boolean: %v", v)
	}
}

// asFloat64 is coerce's loose counterpart used by validators that need a
// numeric comparison regardless of the declared dataType (min/max apply to
// numbers and string lengths are handled separately).
func asFloat64(v any) (float64, bool) {
	f, err := toFloat64(v)
	if err != nil {
		return 0, false
	}
	return f, true
}
