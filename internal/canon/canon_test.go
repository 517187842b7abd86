package canon

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row map[string]any

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"bytes", []byte("raw"), `"raw"`},
		{"int64", int64(42), "42"},
		{"negative int", -100, "-100"},
		{"min int64", int64(math.MinInt64), "-9223372036854775808"},
		{"float", 1.5, "1.5"},
		{"float whole", 2.0, "2"},
		{"float small", 1e-7, "1e-07"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"time", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), `"2025-01-02T03:04:05Z"`},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"named map", row{"b": int64(2), "a": nil}, `{"a":null,"b":2}`},
		{"named slice", []row{{"x": int64(1)}}, `[{"x":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	got, err := Marshal(map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"beta":  map[string]any{"d": int64(4), "c": int64(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"c":3,"d":4},"zebra":1}`, string(got))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// UTF-16 puts the surrogate pair for U+10000 (0xD800) before U+E000.
	got, err := Marshal(map[string]any{
		"\uE000":     int64(1),
		"\U00010000": int64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(got))
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	got, err := Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshalNFC(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to U+00E9.
	got, err := Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalLineSeparators(t *testing.T) {
	got, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// A literal backslash followed by the text u2028 stays escaped.
	got, err = Marshal(`x\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(got))
}

func TestMarshalRejectsNonFinite(t *testing.T) {
	_, err := Marshal(math.NaN())
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"x": math.Inf(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `value for key "x"`)
}

func TestMarshalRejectsUnsupported(t *testing.T) {
	_, err := Marshal(struct{}{})
	assert.Error(t, err)

	_, err = Marshal(map[int]any{1: "a"})
	assert.Error(t, err)
}
