package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"min int64", Int(-9223372036854775808), "-9223372036854775808"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", Object{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := Object{
		"z": Object{"b": Int(1), "a": Int(2)},
		"a": Int(3),
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

// U+E000 sorts after U+10000 in UTF-16 but before it in UTF-8.
func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	obj := Object{
		"\uE000":     Int(1),
		"\U00010000": Int(2),
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed, err := MarshalCanonical(String("cafe\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(String("caf\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// a literal backslash followed by u2028 stays escaped
	result, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
	_, err = MarshalCanonical(Array{nil})
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	v, err := FromJSON([]byte(`{"b": [1, 2], "a": {"x": null, "y": []}, "c": null}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"b": Array{Int(1), Int(2)}}, v)

	v, err = FromJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Object{}, v)

	v, err = FromJSON([]byte(`[null, 3]`))
	require.NoError(t, err)
	assert.Equal(t, Array{Object{}, Int(3)}, v)
}

func TestFromJSONRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"float":    `{"a": 1.5}`,
		"exponent": `[1e3]`,
		"overflow": `99999999999999999999`,
		"null":     `null`,
		"trailing": `{} {}`,
		"syntax":   `{"a":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromJSON([]byte(doc))
			assert.Error(t, err)
		})
	}
}

type textKey string

func (k textKey) MarshalText() ([]byte, error) {
	return []byte("k_" + string(k)), nil
}

func TestCanonicalGoValues(t *testing.T) {
	doc := struct {
		Name  string           `json:"name"`
		Count int64            `json:"count"`
		Tags  []string         `json:"tags"`
		Keys  map[textKey]int  `json:"keys"`
		Extra *struct{ X int } `json:"extra"`
	}{
		Name:  "loop",
		Count: 3,
		Keys:  map[textKey]int{"b": 2, "a": 1},
	}
	result, err := Canonical(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"keys":{"k_a":1,"k_b":2},"name":"loop"}`, string(result))

	_, err = Canonical(struct{ F float64 }{F: 0.5})
	assert.Error(t, err)
}
