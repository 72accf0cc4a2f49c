// Package codec converts between JSON records and positional SQLite rows using
// the catalog as the source of truth for field order and type.
//
// Encoding is permissive: a missing key or a value of the wrong JSON type
// becomes NULL, and NOT NULL, UNIQUE and CHECK constraints are left to SQLite.
package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/moosedb/moosedb/internal/catalog"
	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/schema"
	"github.com/moosedb/moosedb/internal/store"
)

// TimeLayout is how engine-assigned timestamps are rendered in records.
const TimeLayout = "2006-01-02 15:04:05"

// Codec encodes records for a collection by reading its fields from the catalog.
type Codec struct {
	catalog *catalog.Catalog
}

// New creates a Codec backed by cat.
func New(cat *catalog.Catalog) *Codec {
	return &Codec{catalog: cat}
}

// Encode loads the fields of collection and encodes obj against them. It
// returns the quoted column names and the matching parameters.
func (c *Codec) Encode(ctx context.Context, q store.Queryer, collection string, obj map[string]any) ([]string, []any, error) {
	fields, err := c.catalog.FieldsOf(ctx, q, collection)
	if err != nil {
		return nil, nil, err
	}

	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = schema.QuoteIdent(f.Name)
	}
	return columns, Encode(fields, obj), nil
}

// Encode maps obj onto one parameter per field, in field order.
func Encode(fields []catalog.FieldInfo, obj map[string]any) []any {
	params := make([]any, len(fields))
	for i, f := range fields {
		v, ok := obj[f.Name]
		if !ok {
			continue
		}
		params[i] = encodeValue(f.Type, v)
	}
	return params
}

func encodeValue(t schema.FieldType, v any) any {
	switch t.Normalize() {
	case schema.TypeInteger:
		return asInt64(v)
	case schema.TypeBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
		return nil
	case schema.TypeDecimal:
		return asDecimal(v)
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return nil
	}
}

// asInt64 accepts JSON integers only; 1.5 and 1e3 are not integers.
func asInt64(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	return nil
}

// asDecimal accepts floating-point JSON numbers only. Integer literals such as
// 5 are an INTEGER value and encode as NULL; 5.0 is accepted.
func asDecimal(v any) any {
	var d decimal.Decimal
	switch n := v.(type) {
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return nil
		}
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(n)
	case float32:
		d = decimal.NewFromFloat32(n)
	default:
		return nil
	}
	return d.InexactFloat64()
}

// ParseObject decodes a JSON object, keeping numbers as json.Number so that
// integers and decimals can be told apart.
func ParseObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, merrors.NewInvalidInput(merrors.CodeInvalidPayload,
			fmt.Sprintf("Record is not valid JSON: %v", err))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Record has trailing data")
	}
	return AsObject(v)
}

// AsObject asserts that an already decoded JSON value is an object.
func AsObject(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, merrors.NewInvalidInput(merrors.CodeInvalidPayload, "Record must be a JSON object")
	}
	return obj, nil
}

// Decode converts one scanned row into a JSON object keyed by column name.
func Decode(values []any, columns []string) map[string]any {
	record := make(map[string]any, len(columns))
	for i, col := range columns {
		if i >= len(values) {
			record[col] = nil
			continue
		}
		record[col] = decodeValue(values[i])
	}
	return record
}

func decodeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return x
	case float64:
		return x
	case string:
		return strings.ToValidUTF8(x, string(utf8.RuneError))
	case []byte:
		return string(bytes.ToValidUTF8(x, []byte(string(utf8.RuneError))))
	case time.Time:
		return x.UTC().Format(TimeLayout)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return nil
	}
}
