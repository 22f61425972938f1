package core

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the semantic type of a program parameter.
type Kind int

const (
	KindVariant Kind = iota
	KindBit
	KindTinyInt
	KindSmallInt
	KindInt
	KindBigInt
	KindDecimal
	KindReal
	KindFloat
	KindChar
	KindVarChar
	KindNChar
	KindNVarChar
	KindText
	KindBinary
	KindVarBinary
	KindDate
	KindDateTime
	KindGUID
	KindXML
	KindRefCursor
)

var kindNames = map[Kind]string{
	KindVariant:   "variant",
	KindBit:       "bit",
	KindTinyInt:   "tinyint",
	KindSmallInt:  "smallint",
	KindInt:       "int",
	KindBigInt:    "bigint",
	KindDecimal:   "decimal",
	KindReal:      "real",
	KindFloat:     "float",
	KindChar:      "char",
	KindVarChar:   "varchar",
	KindNChar:     "nchar",
	KindNVarChar:  "nvarchar",
	KindText:      "text",
	KindBinary:    "binary",
	KindVarBinary: "varbinary",
	KindDate:      "date",
	KindDateTime:  "datetime",
	KindGUID:      "uniqueidentifier",
	KindXML:       "xml",
	KindRefCursor: "refcursor",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsInteger reports whether the kind holds whole numbers.
func (k Kind) IsInteger() bool {
	return k == KindTinyInt || k == KindSmallInt || k == KindInt || k == KindBigInt
}

// IsText reports whether the kind holds character data.
func (k Kind) IsText() bool {
	switch k {
	case KindChar, KindVarChar, KindNChar, KindNVarChar, KindText, KindXML:
		return true
	}
	return false
}

// MaxSize marks a variable length type without a declared limit, e.g. varchar(max).
const MaxSize = -1

// SQLType describes the declared type of a parameter. Size applies to
// character and binary kinds, Precision and Scale to decimals, and
// Precision to date/time kinds (fractional second digits).
type SQLType struct {
	Kind      Kind
	Size      int
	Precision int
	Scale     int
}

// Type builds a SQLType with no size or precision.
func Type(k Kind) SQLType { return SQLType{Kind: k} }

// Sized builds a character or binary SQLType of the given size.
func Sized(k Kind, size int) SQLType { return SQLType{Kind: k, Size: size} }

// Decimal builds a decimal SQLType.
func Decimal(precision, scale int) SQLType {
	return SQLType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

func (t SQLType) String() string {
	switch {
	case t.Kind == KindDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case t.Size == MaxSize:
		return t.Kind.String() + "(max)"
	case t.Size > 0:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Size)
	}
	return t.Kind.String()
}

// Compatible reports whether a caller-declared type can be satisfied by the
// live type. Variant matches anything; sizes are not compared.
func (t SQLType) Compatible(live SQLType) bool {
	if t.Kind == KindVariant || live.Kind == KindVariant {
		return true
	}
	if t.Kind == live.Kind {
		return true
	}
	if t.Kind.IsText() && live.Kind.IsText() {
		return true
	}
	if t.Kind.IsInteger() && live.Kind.IsInteger() {
		return t.Kind <= live.Kind
	}
	return false
}

// Direction of a parameter.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionInOut
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionInOut:
		return "inout"
	}
	return "in"
}

// IsOutput reports whether the direction returns a value.
func (d Direction) IsOutput() bool { return d != DirectionIn }

// ConstraintMode governs what happens when a value does not fit its
// parameter type.
type ConstraintMode int

const (
	// ConstraintWarn coerces the value and records a warning.
	ConstraintWarn ConstraintMode = iota
	// ConstraintStrict fails the bind.
	ConstraintStrict
	// ConstraintSilent coerces the value without any signal.
	ConstraintSilent
)

func (m ConstraintMode) String() string {
	switch m {
	case ConstraintStrict:
		return "strict"
	case ConstraintSilent:
		return "silent"
	}
	return "warn"
}

// ParseConstraintMode parses strict, warn or silent. "error" is accepted as
// an alias of strict.
func ParseConstraintMode(s string) (ConstraintMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "error":
		return ConstraintStrict, nil
	case "warn", "warning":
		return ConstraintWarn, nil
	case "silent":
		return ConstraintSilent, nil
	}
	return ConstraintWarn, fmt.Errorf("unknown constraint mode %q", s)
}

// ParameterDefinition is one declared parameter of a program. Alias is the
// name the caller declared when it differs from the database name.
type ParameterDefinition struct {
	Name      string
	Alias     string
	Type      SQLType
	Ordinal   int
	Direction Direction
}

// ParameterSpec is a caller-side parameter declaration. An empty Name means
// the parameter is addressed by position. Alias keeps the caller's name when
// Name was rewritten by a parameter mapping.
type ParameterSpec struct {
	Name  string
	Alias string
	Type  SQLType
}

// Params declares parameters by name with no type expectation.
func Params(names ...string) []ParameterSpec {
	specs := make([]ParameterSpec, len(names))
	for i, n := range names {
		specs[i] = ParameterSpec{Name: n}
	}
	return specs
}

// Positional declares parameters by position and expected type.
func Positional(types ...SQLType) []ParameterSpec {
	specs := make([]ParameterSpec, len(types))
	for i, t := range types {
		specs[i] = ParameterSpec{Type: t}
	}
	return specs
}

// Options are the effective options of one program.
type Options struct {
	IgnoreValidationErrors bool
	CheckOrder             bool
	Timeout                time.Duration
	Mode                   ConstraintMode
}

// DefaultCommandTimeout applies when neither the caller nor the configuration
// sets one.
const DefaultCommandTimeout = 30 * time.Second

// normalizeName strips bind prefixes and folds case.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(name), "@:"))
}
