package codec

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/moosedb/moosedb/internal/catalog"
	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/schema"
	"github.com/moosedb/moosedb/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleFields = []catalog.FieldInfo{
	{Name: "title", Type: schema.TypeVarchar},
	{Name: "stars", Type: schema.TypeInteger},
	{Name: "price", Type: schema.TypeDecimal},
	{Name: "done", Type: schema.TypeBoolean},
	{Name: "due", Type: schema.TypeDatetime},
	{Name: "misc", Type: "FLOAT"},
}

func TestEncodeMatchingTypes(t *testing.T) {
	obj, err := ParseObject([]byte(`{"title":"hi","stars":4,"price":9.5,"done":true,"due":"2024-01-02","misc":"x","extra":1}`))
	require.NoError(t, err)

	params := Encode(sampleFields, obj)
	assert.Equal(t, []any{"hi", int64(4), 9.5, int64(1), "2024-01-02", "x"}, params)
}

func TestEncodeMismatchesBecomeNull(t *testing.T) {
	obj, err := ParseObject([]byte(`{"title":5,"stars":1.5,"price":"9.5","done":"yes","due":null}`))
	require.NoError(t, err)

	params := Encode(sampleFields, obj)
	for i, p := range params {
		assert.Nil(t, p, "field %s", sampleFields[i].Name)
	}
}

func TestEncodeDecimalRejectsIntegers(t *testing.T) {
	for body, want := range map[string]any{
		`{"price":12}`:    nil,
		`{"price":12.0}`:  12.0,
		`{"price":1.2e1}`: 12.0,
		`{"price":-0.5}`:  -0.5,
	} {
		obj, err := ParseObject([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, want, Encode(sampleFields, obj)[2], "body %s", body)
	}
	assert.Nil(t, Encode(sampleFields, map[string]any{"price": int64(12)})[2])
}

func TestEncodeFalseBoolean(t *testing.T) {
	params := Encode(sampleFields, map[string]any{"done": false})
	assert.Equal(t, int64(0), params[3])
}

func TestEncodeIntegerExponentIsNotInteger(t *testing.T) {
	params := Encode(sampleFields, map[string]any{"stars": json.Number("1e3")})
	assert.Nil(t, params[1])
}

func TestParseObjectRejectsNonObjects(t *testing.T) {
	for _, body := range []string{`[1,2]`, `"x"`, `42`, `null`, `{`, `{} {}`, ``} {
		_, err := ParseObject([]byte(body))
		assert.True(t, merrors.IsInvalidInput(err), "body %q", body)
	}
}

func TestDecode(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	values := []any{int64(1), "hello", []byte{'o', 'k', 0xff}, nil, 2.5, ts, true}
	columns := []string{"id", "body", "blob", "empty", "price", "created_at", "flag"}

	got := Decode(values, columns)
	assert.Equal(t, map[string]any{
		"id":         int64(1),
		"body":       "hello",
		"blob":       "ok�",
		"empty":      nil,
		"price":      2.5,
		"created_at": "2024-05-06 07:08:09",
		"flag":       int64(1),
	}, got)
}

func TestDecodeShortRow(t *testing.T) {
	got := Decode([]any{int64(1)}, []string{"id", "missing"})
	assert.Equal(t, map[string]any{"id": int64(1), "missing": nil}, got)
}

func TestCodecEncodeReadsCatalog(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "database.sqlite"), store.DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	cat := catalog.New(nil)
	require.NoError(t, cat.EnsureTable(ctx, s.DB()))
	require.NoError(t, cat.RecordField(ctx, s.DB(), "moo_1", "notes", schema.Field{Title: "body", Type: schema.TypeText}))
	require.NoError(t, cat.RecordField(ctx, s.DB(), "moo_1", "notes", schema.Field{Title: "n", Type: schema.TypeInteger, Nullable: true}))

	c := New(cat)
	cols, params, err := c.Encode(ctx, s.DB(), "notes", map[string]any{"n": json.Number("3"), "body": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{`"body"`, `"n"`}, cols)
	assert.Equal(t, []any{"x", int64(3)}, params)

	_, _, err = c.Encode(ctx, s.DB(), "missing", map[string]any{})
	assert.True(t, merrors.IsNotFound(err))
}

func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	fields := []catalog.FieldInfo{
		{Name: "i", Type: schema.TypeInteger},
		{Name: "s", Type: schema.TypeText},
		{Name: "b", Type: schema.TypeBoolean},
		{Name: "d", Type: schema.TypeDecimal},
	}
	columns := []string{"i", "s", "b", "d"}

	properties.Property("encode then decode preserves typed values", prop.ForAll(
		func(i int64, s string, b bool, d float64) bool {
			obj := map[string]any{"i": i, "s": s, "b": b, "d": d}
			out := Decode(Encode(fields, obj), columns)

			wantBool := int64(0)
			if b {
				wantBool = 1
			}
			return out["i"] == i &&
				out["s"] == s &&
				out["b"] == wantBool &&
				math.Abs(out["d"].(float64)-d) < 1e-9
		},
		gen.Int64(),
		gen.AnyString(),
		gen.Bool(),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
