// Package cliconfig parses the operator-facing JSON schema file cmd/bulkload
// reads with --schema, translating its human-readable column type names into
// the table.Schema the Coordinator expects (spec §6's invocation contract
// takes a struct, not a file; this is the file-to-struct layer around it).
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/csvquery/bulkload/internal/table"
	"github.com/csvquery/bulkload/internal/typeadapt"
)

// columnSpec is one column entry in the schema file, using a string type
// name instead of typeadapt.ColumnType's raw int encoding.
type columnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type schemaFile struct {
	Columns         []columnSpec `json:"columns"`
	TimestampColumn int          `json:"timestampColumn"`
}

// LoadSchema reads and validates a schema file at path.
func LoadSchema(path string) (table.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return table.Schema{}, fmt.Errorf("read schema file: %w", err)
	}
	var sf schemaFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return table.Schema{}, fmt.Errorf("parse schema file: %w", err)
	}

	cols := make([]table.ColumnSchema, len(sf.Columns))
	for i, c := range sf.Columns {
		t, err := parseColumnType(c.Type)
		if err != nil {
			return table.Schema{}, fmt.Errorf("column %q: %w", c.Name, err)
		}
		cols[i] = table.ColumnSchema{Name: c.Name, Type: t}
	}
	return table.Schema{Columns: cols, TimestampColumn: sf.TimestampColumn}, nil
}

func parseColumnType(s string) (typeadapt.ColumnType, error) {
	switch s {
	case "string":
		return typeadapt.TypeString, nil
	case "int64":
		return typeadapt.TypeInt64, nil
	case "float64":
		return typeadapt.TypeFloat64, nil
	case "timestamp":
		return typeadapt.TypeTimestamp, nil
	case "symbol":
		return typeadapt.TypeSymbol, nil
	default:
		return 0, fmt.Errorf("unknown column type %q (want string|int64|float64|timestamp|symbol)", s)
	}
}
