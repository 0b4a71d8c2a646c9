// Package typeadapt provides the per-column type adapters the core calls
// through an external-collaborator interface (spec §6: `write(row,
// colIdx, bytes)` / `getType()`, with timestamp adapters additionally
// exposing `getTimestamp(bytes) → i64 micros`). Schema-inference
// correctness beyond first-N-lines heuristics is an explicit non-goal
// (spec §1); these adapters are deliberately simple, string-driven
// converters, not a type-detection engine.
package typeadapt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnType enumerates the column kinds a staging/final table can hold.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt64
	TypeFloat64
	TypeTimestamp
	TypeSymbol
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeTimestamp:
		return "timestamp"
	case TypeSymbol:
		return "symbol"
	default:
		return "string"
	}
}

// RowSetter is the narrow slice of the table writer's row that an adapter
// needs: one setter per destination type, plus PutNull for SKIP_COLUMN.
type RowSetter interface {
	PutInt64(col int, v int64)
	PutFloat64(col int, v float64)
	PutString(col int, v string)
	PutSymbol(col int, v string)
	PutNull(col int)
}

// Adapter converts a raw field's bytes into the destination column's type
// and writes it into the row via RowSetter.
type Adapter interface {
	Type() ColumnType
	Write(row RowSetter, col int, raw []byte) error
}

// TimestampAdapter additionally knows how to pull a micros-since-epoch
// value out of the raw bytes without writing a row — used by the indexer
// (phase 2), which needs the timestamp but writes no row at all.
type TimestampAdapter interface {
	Adapter
	Timestamp(raw []byte) (int64, error)
}

// StringAdapter writes the field verbatim.
type StringAdapter struct{}

func (StringAdapter) Type() ColumnType { return TypeString }
func (StringAdapter) Write(row RowSetter, col int, raw []byte) error {
	row.PutString(col, string(raw))
	return nil
}

// Int64Adapter parses a base-10 integer.
type Int64Adapter struct{}

func (Int64Adapter) Type() ColumnType { return TypeInt64 }
func (Int64Adapter) Write(row RowSetter, col int, raw []byte) error {
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return fmt.Errorf("int64 adapter: %w", err)
	}
	row.PutInt64(col, v)
	return nil
}

// Float64Adapter parses a floating-point value.
type Float64Adapter struct{}

func (Float64Adapter) Type() ColumnType { return TypeFloat64 }
func (Float64Adapter) Write(row RowSetter, col int, raw []byte) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return fmt.Errorf("float64 adapter: %w", err)
	}
	row.PutFloat64(col, v)
	return nil
}

// SymbolAdapter interns the field into the staging table's per-column
// symbol dictionary (the dictionary write itself lives in the table
// writer; this adapter only hands the raw string across).
type SymbolAdapter struct{}

func (SymbolAdapter) Type() ColumnType { return TypeSymbol }
func (SymbolAdapter) Write(row RowSetter, col int, raw []byte) error {
	row.PutSymbol(col, string(raw))
	return nil
}

// TimestampLayout selects how TimestampColumnAdapter parses the raw bytes.
type TimestampLayout int

const (
	// LayoutRFC3339 parses RFC3339/ISO-8601 text timestamps.
	LayoutRFC3339 TimestampLayout = iota
	// LayoutEpochMicros parses a base-10 integer of microseconds since epoch.
	LayoutEpochMicros
	// LayoutEpochSeconds parses a base-10 integer (optionally with a
	// fractional part) of seconds since epoch.
	LayoutEpochSeconds
)

// TimestampColumnAdapter is the default timestamp adapter: configurable
// layout, always produces/consumes microseconds since epoch.
type TimestampColumnAdapter struct {
	Layout TimestampLayout
	Format string // used only when Layout == LayoutRFC3339 and non-empty overrides time.RFC3339Nano
}

func NewTimestampAdapter(layout TimestampLayout, format string) TimestampColumnAdapter {
	return TimestampColumnAdapter{Layout: layout, Format: format}
}

func (TimestampColumnAdapter) Type() ColumnType { return TypeTimestamp }

func (a TimestampColumnAdapter) Write(row RowSetter, col int, raw []byte) error {
	ts, err := a.Timestamp(raw)
	if err != nil {
		return err
	}
	row.PutInt64(col, ts)
	return nil
}

func (a TimestampColumnAdapter) Timestamp(raw []byte) (int64, error) {
	s := strings.TrimSpace(string(raw))
	switch a.Layout {
	case LayoutEpochMicros:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("timestamp adapter (epoch micros): %w", err)
		}
		return v, nil
	case LayoutEpochSeconds:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("timestamp adapter (epoch seconds): %w", err)
		}
		return int64(v * 1e6), nil
	default:
		layout := a.Format
		if layout == "" {
			layout = time.RFC3339Nano
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return 0, fmt.Errorf("timestamp adapter (%s): %w", layout, err)
		}
		return t.UnixMicro(), nil
	}
}
