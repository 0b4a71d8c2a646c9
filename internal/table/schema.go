// Package table is the default columnar TableWriter the core calls
// through an external-collaborator interface (spec §6). The real
// columnar store, its append/commit protocol, and its symbol dictionary
// are explicitly out of scope (spec §1) — this package is the
// reference-quality stand-in needed to drive and test the five phases
// end to end, grounded in the teacher's own on-disk conventions: a JSON
// metadata sidecar next to the data (schema.Schema in the teacher's
// schema/manager.go) and directory-per-table, O_APPEND-safe writes
// (writer.CsvWriter in the teacher's writer/writer.go).
package table

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/csvquery/bulkload/internal/typeadapt"
)

// ColumnSchema is one column's name and destination type.
type ColumnSchema struct {
	Name string             `json:"name"`
	Type typeadapt.ColumnType `json:"type"`
}

// Schema is the full column list of a table, identical between a staging
// table and the final table it will be attached into (spec §3).
type Schema struct {
	Columns         []ColumnSchema `json:"columns"`
	TimestampColumn int            `json:"timestampColumn"`
}

// SymbolColumns returns the indices of every symbol-typed column.
func (s Schema) SymbolColumns() []int {
	var cols []int
	for i, c := range s.Columns {
		if c.Type == typeadapt.TypeSymbol {
			cols = append(cols, i)
		}
	}
	return cols
}

func schemaPath(tableRoot string) string {
	return filepath.Join(tableRoot, "_schema.json")
}

func saveSchema(tableRoot string, s Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := schemaPath(tableRoot) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return os.Rename(tmp, schemaPath(tableRoot))
}

func loadSchema(tableRoot string) (Schema, error) {
	data, err := os.ReadFile(schemaPath(tableRoot))
	if err != nil {
		return Schema{}, err
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("parse schema: %w", err)
	}
	return s, nil
}

// LoadSchema reads tableRoot's schema sidecar without opening a Writer (so
// it has no side effect of creating the table directory). exists is false
// when the table has never been written to.
func LoadSchema(tableRoot string) (schema Schema, exists bool, err error) {
	if _, statErr := os.Stat(schemaPath(tableRoot)); statErr != nil {
		if os.IsNotExist(statErr) {
			return Schema{}, false, nil
		}
		return Schema{}, false, statErr
	}
	s, err := loadSchema(tableRoot)
	if err != nil {
		return Schema{}, false, err
	}
	return s, true, nil
}

func partitionsManifestPath(tableRoot string) string {
	return filepath.Join(tableRoot, "_partitions.json")
}

// LoadPartitions returns every partition name tableRoot's manifest records,
// or nil if the table has never attached one.
func LoadPartitions(tableRoot string) ([]string, error) {
	var names []string
	data, err := os.ReadFile(partitionsManifestPath(tableRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}
