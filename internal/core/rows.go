package core

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Reader walks the rows of a reader call and maps them onto structs.
// Struct fields are matched to columns by their `db` tag, falling back to
// the field name, case-insensitively.
type Reader struct {
	src     RowSource
	cols    []string
	current []driver.Value
	err     error
}

func newReader(src RowSource) *Reader {
	cols := src.Columns()
	return &Reader{src: src, cols: cols, current: make([]driver.Value, len(cols))}
}

// Columns returns the column names of the result.
func (r *Reader) Columns() []string { return r.cols }

// Next advances to the next row.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	if err := r.src.Next(r.current); err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return false
	}
	return true
}

// Err returns the error that stopped iteration, if any.
func (r *Reader) Err() error { return r.err }

// Values returns the raw values of the current row.
func (r *Reader) Values() []driver.Value {
	out := make([]driver.Value, len(r.current))
	copy(out, r.current)
	return out
}

// Scan maps the current row onto the struct pointed to by dest.
func (r *Reader) Scan(dest any) error {
	return mapTo(dest, r.cols, r.current)
}

// ScanAll reads every remaining row into the slice pointed to by slicePtr.
func (r *Reader) ScanAll(slicePtr any) error {
	slicePtrValue := reflect.ValueOf(slicePtr)
	if slicePtrValue.Kind() != reflect.Ptr || slicePtrValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scan all: expected pointer to slice, got %T", slicePtr)
	}
	elemType := slicePtrValue.Elem().Type().Elem()
	for r.Next() {
		newElem := reflect.New(elemType).Elem()
		if err := mapTo(newElem.Addr().Interface(), r.cols, r.current); err != nil {
			return err
		}
		slicePtrValue.Elem().Set(reflect.Append(slicePtrValue.Elem(), newElem))
	}
	return r.err
}

// columnTag reads the db tag, falling back to the oracle tag.
func columnTag(field reflect.StructField) string {
	tag, ok := field.Tag.Lookup("db")
	if !ok {
		tag = field.Tag.Get("oracle")
	}
	return strings.Split(tag, ",")[0]
}

func mapTo(obj any, cols []string, dests []driver.Value) error {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scan: expected pointer to struct, got %T", obj)
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tagValue := columnTag(field)
		if tagValue == "-" {
			continue
		}
		if tagValue == "" {
			tagValue = field.Name
		}
		posInCol := -1
		for j, elem := range cols {
			if strings.EqualFold(elem, tagValue) {
				posInCol = j
				break
			}
		}
		if posInCol < 0 {
			continue
		}
		structField := v.Field(i)
		value := dests[posInCol]
		if value == nil {
			structField.Set(reflect.Zero(field.Type))
			continue
		}
		destValue := reflect.New(field.Type).Elem()
		if err := fieldStrategyByType(field.Type, value, destValue); err != nil {
			return fmt.Errorf("column %s into field %s: %w", cols[posInCol], field.Name, err)
		}
		structField.Set(destValue)
	}
	return nil
}

func trimTrailingWhitespace(input string) string {
	return strings.TrimRight(input, " ")
}

func fieldStrategyByType(fieldType reflect.Type, value driver.Value, destValue reflect.Value) error {
	switch value := value.(type) {
	case string:
		switch fieldType.Kind() {
		case reflect.String:
			destValue.SetString(trimTrailingWhitespace(value))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return err
			}
			destValue.SetInt(n)
		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return err
			}
			destValue.SetFloat(f)
		case reflect.Bool:
			switch strings.ToUpper(strings.TrimSpace(value)) {
			case "S", "Y", "1", "TRUE":
				destValue.SetBool(true)
			case "N", "0", "FALSE", "":
				destValue.SetBool(false)
			default:
				return fmt.Errorf("cannot read %q as bool", value)
			}
		default:
			return unhandled(fieldType, value)
		}
	case []byte:
		switch {
		case fieldType.Kind() == reflect.String:
			destValue.SetString(trimTrailingWhitespace(string(value)))
		case fieldType.Kind() == reflect.Slice && fieldType.Elem().Kind() == reflect.Uint8:
			destValue.SetBytes(append([]byte(nil), value...))
		default:
			return fieldStrategyByType(fieldType, string(value), destValue)
		}
	case int64:
		switch fieldType.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			destValue.SetInt(value)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			destValue.SetUint(uint64(value))
		case reflect.Float32, reflect.Float64:
			destValue.SetFloat(float64(value))
		case reflect.Bool:
			destValue.SetBool(value != 0)
		case reflect.String:
			destValue.SetString(strconv.FormatInt(value, 10))
		default:
			return unhandled(fieldType, value)
		}
	case float64:
		switch fieldType.Kind() {
		case reflect.Float32, reflect.Float64:
			destValue.SetFloat(value)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			destValue.SetInt(int64(value))
		case reflect.String:
			destValue.SetString(strconv.FormatFloat(value, 'f', -1, 64))
		default:
			return unhandled(fieldType, value)
		}
	case bool:
		switch fieldType.Kind() {
		case reflect.Bool:
			destValue.SetBool(value)
		case reflect.String:
			destValue.SetString(strconv.FormatBool(value))
		default:
			return unhandled(fieldType, value)
		}
	case time.Time:
		if fieldType == reflect.TypeOf(time.Time{}) {
			destValue.Set(reflect.ValueOf(value))
		} else if fieldType.Kind() == reflect.String {
			destValue.SetString(value.Format(time.RFC3339))
		} else {
			return unhandled(fieldType, value)
		}
	default:
		rv := reflect.ValueOf(value)
		if rv.Type().ConvertibleTo(fieldType) {
			destValue.Set(rv.Convert(fieldType))
			return nil
		}
		return unhandled(fieldType, value)
	}
	return nil
}

func unhandled(fieldType reflect.Type, value any) error {
	return fmt.Errorf("unhandled conversion from %T to %s", value, fieldType)
}

// xmlSource concatenates the first column of every row, the shape returned
// by FOR XML style queries that split long documents across rows.
type xmlSource struct {
	r   *Reader
	buf []byte
}

func (x *xmlSource) Read(p []byte) (int, error) {
	for len(x.buf) == 0 {
		if !x.r.Next() {
			if err := x.r.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		if len(x.r.current) == 0 {
			continue
		}
		switch v := x.r.current[0].(type) {
		case string:
			x.buf = []byte(v)
		case []byte:
			x.buf = append([]byte(nil), v...)
		case nil:
		default:
			return 0, fmt.Errorf("xml reader: unexpected column type %T", v)
		}
	}
	n := copy(p, x.buf)
	x.buf = x.buf[n:]
	return n, nil
}
