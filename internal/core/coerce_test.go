package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignaciocaff/dbprogram/internal/core"
)

func TestCoerce(t *testing.T) {
	placed := time.Date(2024, 3, 1, 10, 30, 0, 123456789, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name    string
		typ     core.SQLType
		in      any
		want    any
		loss    string
		wantErr bool
	}{
		{name: "nil passes", typ: core.Type(core.KindInt), in: nil, want: nil},
		{name: "int from string", typ: core.Type(core.KindInt), in: "42", want: int64(42)},
		{name: "int from large string", typ: core.Type(core.KindBigInt), in: "9007199254740993", want: int64(9007199254740993)},
		{name: "int from float", typ: core.Type(core.KindInt), in: 3.7, want: int64(3), loss: "fractional part truncated"},
		{name: "int from bool", typ: core.Type(core.KindInt), in: true, want: int64(1)},
		{name: "tinyint negative", typ: core.Type(core.KindTinyInt), in: -1, wantErr: true},
		{name: "tinyint overflow", typ: core.Type(core.KindTinyInt), in: 256, wantErr: true},
		{name: "int from garbage", typ: core.Type(core.KindInt), in: "abc", wantErr: true},
		{name: "int from struct", typ: core.Type(core.KindInt), in: struct{}{}, wantErr: true},
		{name: "decimal rounds", typ: core.Decimal(5, 2), in: 123.456, want: 123.46, loss: "rounded to 2 decimal places"},
		{name: "decimal fits", typ: core.Decimal(5, 2), in: "-999.5", want: -999.5},
		{name: "decimal overflow", typ: core.Decimal(5, 2), in: 1234.5, wantErr: true},
		{name: "real reduces precision", typ: core.Type(core.KindReal), in: 0.1, want: float64(float32(0.1)), loss: "precision reduced to single"},
		{name: "float", typ: core.Type(core.KindFloat), in: int32(7), want: 7.0},
		{name: "bit from string", typ: core.Type(core.KindBit), in: "true", want: true},
		{name: "bit from zero", typ: core.Type(core.KindBit), in: 0, want: false},
		{name: "bit from two", typ: core.Type(core.KindBit), in: 2, wantErr: true},
		{name: "varchar truncates on rune boundary", typ: core.Sized(core.KindVarChar, 3), in: "héllo", want: "hé", loss: "truncated to 3 bytes"},
		{name: "nvarchar counts characters", typ: core.Sized(core.KindNVarChar, 2), in: "héllo", want: "hé", loss: "truncated to 2 characters"},
		{name: "varchar max", typ: core.Sized(core.KindVarChar, core.MaxSize), in: []byte("long text"), want: "long text"},
		{name: "varchar from int", typ: core.Type(core.KindVarChar), in: 5, wantErr: true},
		{name: "varbinary truncates", typ: core.Sized(core.KindVarBinary, 2), in: []byte{1, 2, 3}, want: []byte{1, 2}, loss: "truncated to 2 bytes"},
		{name: "date drops time", typ: core.Type(core.KindDate), in: placed, want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), loss: "time of day dropped"},
		{name: "date from string", typ: core.Type(core.KindDate), in: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "datetime precision", typ: core.SQLType{Kind: core.KindDateTime, Precision: 3}, in: placed,
			want: time.Date(2024, 3, 1, 10, 30, 0, 123000000, time.UTC), loss: "fractional seconds truncated to 3 digits"},
		{name: "datetime from garbage", typ: core.Type(core.KindDateTime), in: "yesterday", wantErr: true},
		{name: "guid from uuid", typ: core.Type(core.KindGUID), in: id, want: id.String()},
		{name: "guid normalizes case", typ: core.Type(core.KindGUID), in: "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", want: id.String()},
		{name: "guid from garbage", typ: core.Type(core.KindGUID), in: "nope", wantErr: true},
		{name: "ref cursor takes no input", typ: core.Type(core.KindRefCursor), in: 1, wantErr: true},
		{name: "variant passes through", typ: core.Type(core.KindVariant), in: []int{1}, want: []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, loss, err := tt.typ.Coerce(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.loss, loss)
		})
	}
}

func TestCompatible(t *testing.T) {
	assert.True(t, core.Type(core.KindSmallInt).Compatible(core.Type(core.KindBigInt)))
	assert.False(t, core.Type(core.KindBigInt).Compatible(core.Type(core.KindInt)))
	assert.True(t, core.Type(core.KindNVarChar).Compatible(core.Sized(core.KindChar, 2)))
	assert.True(t, core.Type(core.KindVariant).Compatible(core.Type(core.KindDate)))
	assert.False(t, core.Type(core.KindDate).Compatible(core.Type(core.KindDateTime)))
}

func TestParseConstraintMode(t *testing.T) {
	for in, want := range map[string]core.ConstraintMode{
		"strict": core.ConstraintStrict,
		"Error":  core.ConstraintStrict,
		" warn ": core.ConstraintWarn,
		"silent": core.ConstraintSilent,
	} {
		got, err := core.ParseConstraintMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := core.ParseConstraintMode("loud")
	assert.Error(t, err)
}
