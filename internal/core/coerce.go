package core

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var integerRanges = map[Kind][2]int64{
	KindTinyInt:  {0, math.MaxUint8},
	KindSmallInt: {math.MinInt16, math.MaxInt16},
	KindInt:      {math.MinInt32, math.MaxInt32},
	KindBigInt:   {math.MinInt64, math.MaxInt64},
}

// Coerce converts v so that it fits t. The returned loss is non-empty when
// the value had to be altered; a non-nil error means no acceptable value exists.
func (t SQLType) Coerce(v any) (any, string, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil, "", err
		}
		v = dv
	}
	if v == nil {
		return nil, "", nil
	}
	switch {
	case t.Kind.IsInteger():
		return coerceInteger(t, v)
	case t.Kind == KindDecimal:
		return coerceDecimal(t, v)
	case t.Kind == KindReal:
		f, err := toFloat64(v)
		if err != nil {
			return nil, "", err
		}
		f32 := float32(f)
		if math.IsInf(float64(f32), 0) && !math.IsInf(f, 0) {
			return nil, "", fmt.Errorf("out of range for %s", t)
		}
		if float64(f32) != f {
			return float64(f32), "precision reduced to single", nil
		}
		return f, "", nil
	case t.Kind == KindFloat:
		f, err := toFloat64(v)
		return f, "", err
	case t.Kind == KindBit:
		return coerceBit(v)
	case t.Kind.IsText():
		return coerceText(t, v)
	case t.Kind == KindBinary || t.Kind == KindVarBinary:
		return coerceBinary(t, v)
	case t.Kind == KindDate || t.Kind == KindDateTime:
		return coerceTime(t, v)
	case t.Kind == KindGUID:
		return coerceGUID(v)
	case t.Kind == KindRefCursor:
		return nil, "", errors.New("ref cursor parameters cannot take input values")
	}
	return v, "", nil
}

func coerceInteger(t SQLType, v any) (any, string, error) {
	var (
		n    int64
		loss string
	)
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, "", fmt.Errorf("out of range for %s", t)
		}
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return nil, "", fmt.Errorf("out of range for %s", t)
		}
		n = int64(x)
	case bool:
		if x {
			n = 1
		}
	case float32, float64, string:
		if s, ok := x.(string); ok {
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				n = i
				break
			}
		}
		f, err := toFloat64(x)
		if err != nil {
			return nil, "", err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, "", fmt.Errorf("not a finite number")
		}
		whole := math.Trunc(f)
		if whole != f {
			loss = "fractional part truncated"
		}
		if whole < math.MinInt64 || whole >= math.MaxInt64 {
			return nil, "", fmt.Errorf("out of range for %s", t)
		}
		n = int64(whole)
	default:
		return nil, "", fmt.Errorf("cannot convert %T to %s", v, t)
	}
	bounds := integerRanges[t.Kind]
	if n < bounds[0] || n > bounds[1] {
		return nil, "", fmt.Errorf("out of range for %s", t)
	}
	return n, loss, nil
}

func coerceDecimal(t SQLType, v any) (any, string, error) {
	f, err := toFloat64(v)
	if err != nil {
		return nil, "", err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, "", fmt.Errorf("not a finite number")
	}
	if t.Precision <= 0 {
		return f, "", nil
	}
	var loss string
	text := strconv.FormatFloat(f, 'f', -1, 64)
	if dot := strings.IndexByte(text, '.'); dot >= 0 && len(text)-dot-1 > t.Scale {
		f, _ = strconv.ParseFloat(strconv.FormatFloat(f, 'f', t.Scale, 64), 64)
		loss = fmt.Sprintf("rounded to %d decimal places", t.Scale)
		text = strconv.FormatFloat(f, 'f', -1, 64)
	}
	whole := strings.TrimLeft(strings.SplitN(strings.TrimPrefix(text, "-"), ".", 2)[0], "0")
	if len(whole) > t.Precision-t.Scale {
		return nil, "", fmt.Errorf("out of range for %s", t)
	}
	return f, loss, nil
}

func coerceBit(v any) (any, string, error) {
	switch x := v.(type) {
	case bool:
		return x, "", nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, "", fmt.Errorf("cannot convert %q to bit", x)
		}
		return b, "", nil
	}
	n, _, err := coerceInteger(Type(KindBigInt), v)
	if err != nil {
		return nil, "", err
	}
	switch n.(int64) {
	case 0:
		return false, "", nil
	case 1:
		return true, "", nil
	}
	return nil, "", fmt.Errorf("value %v is not a bit", v)
}

func coerceText(t SQLType, v any) (any, string, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case []rune:
		s = string(x)
	case fmt.Stringer:
		s = x.String()
	default:
		return nil, "", fmt.Errorf("cannot convert %T to %s", v, t)
	}
	if t.Size <= 0 {
		return s, "", nil
	}
	if t.Kind == KindNChar || t.Kind == KindNVarChar {
		if utf8.RuneCountInString(s) <= t.Size {
			return s, "", nil
		}
		return string([]rune(s)[:t.Size]), fmt.Sprintf("truncated to %d characters", t.Size), nil
	}
	if len(s) <= t.Size {
		return s, "", nil
	}
	cut := t.Size
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], fmt.Sprintf("truncated to %d bytes", t.Size), nil
}

func coerceBinary(t SQLType, v any) (any, string, error) {
	var b []byte
	switch x := v.(type) {
	case []byte:
		b = x
	case string:
		b = []byte(x)
	default:
		return nil, "", fmt.Errorf("cannot convert %T to %s", v, t)
	}
	if t.Size > 0 && len(b) > t.Size {
		return b[:t.Size:t.Size], fmt.Sprintf("truncated to %d bytes", t.Size), nil
	}
	return b, "", nil
}

func coerceTime(t SQLType, v any) (any, string, error) {
	var tm time.Time
	switch x := v.(type) {
	case time.Time:
		tm = x
	case string:
		parsed, err := parseTime(x)
		if err != nil {
			return nil, "", err
		}
		tm = parsed
	default:
		return nil, "", fmt.Errorf("cannot convert %T to %s", v, t)
	}
	if t.Kind == KindDate {
		day := time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, tm.Location())
		if !day.Equal(tm) {
			return day, "time of day dropped", nil
		}
		return day, "", nil
	}
	if t.Precision > 0 && t.Precision < 9 {
		step := time.Duration(math.Pow10(9 - t.Precision))
		truncated := tm.Truncate(step)
		if !truncated.Equal(tm) {
			return truncated, fmt.Sprintf("fractional seconds truncated to %d digits", t.Precision), nil
		}
	}
	return tm, "", nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02"} {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}

func coerceGUID(v any) (any, string, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String(), "", nil
	case [16]byte:
		return uuid.UUID(x).String(), "", nil
	case []byte:
		id, err := uuid.FromBytes(x)
		if err != nil {
			return nil, "", err
		}
		return id.String(), "", nil
	case string:
		id, err := uuid.Parse(x)
		if err != nil {
			return nil, "", err
		}
		return id.String(), "", nil
	}
	return nil, "", fmt.Errorf("cannot convert %T to uniqueidentifier", v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as a number", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}
