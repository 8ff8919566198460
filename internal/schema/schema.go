/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
)

var ErrInvalidSchema = errors.New("invalid schema")

// TableName is the queryable identity of a table.
type TableName struct {
	Schema string
	Table  string
}

func NewTableName(schemaName, tableName string) TableName {
	return TableName{Schema: schemaName, Table: tableName}
}

// ParseTableName splits "schema.table".
func ParseTableName(s string) (TableName, error) {
	schemaName, tableName, ok := strings.Cut(s, ".")
	if !ok || schemaName == "" || tableName == "" {
		return TableName{}, fmt.Errorf("table name %q is not in the form schema.table", s)
	}
	return TableName{Schema: schemaName, Table: tableName}, nil
}

func (t TableName) String() string {
	return t.Schema + "." + t.Table
}

// Type is the scalar type of a column or of a list element.
type Type int8

const (
	TypeString Type = iota + 1
	TypeInt64
	TypeFloat64
	TypeBool
	TypeTimestamp
	TypeBinary
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("Type(%d)", int8(t))
	}
}

// Arrow returns the arrow data type values of this type are stored as.
func (t Type) Arrow() arrow.DataType {
	switch t {
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	case TypeBinary:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

type Kind int8

const (
	KindScalar Kind = iota + 1
	// KindList is a list of strings.
	KindList
	// KindListOfStruct is a list of structs whose fields are all strings.
	KindListOfStruct
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindListOfStruct:
		return "list<struct>"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Column describes one top level column.
type Column struct {
	Name string
	Kind Kind
	// Type is the scalar type for KindScalar and the element type for KindList.
	Type Type
	// ElemName and Fields describe the struct of a KindListOfStruct column.
	ElemName string
	Fields   []string
	Comment  string
}

// HasField reports whether a struct list column declares the given field.
func (c Column) HasField(name string) bool {
	for _, f := range c.Fields {
		if f == name {
			return true
		}
	}
	return false
}

func (c Column) arrowField() arrow.Field {
	var dt arrow.DataType

	switch c.Kind {
	case KindList:
		dt = arrow.ListOf(c.Type.Arrow())
	case KindListOfStruct:
		fields := make([]arrow.Field, 0, len(c.Fields))
		for _, name := range c.Fields {
			fields = append(fields, arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true})
		}
		dt = arrow.ListOfField(arrow.Field{Name: c.ElemName, Type: arrow.StructOf(fields...), Nullable: true})
	default:
		dt = c.Type.Arrow()
	}

	return arrow.Field{Name: c.Name, Type: dt, Nullable: true}
}

// Descriptor is the immutable column layout of a table. It is built once per
// table kind and shared read-only by every read of that table.
type Descriptor struct {
	columns     []Column
	index       map[string]int
	arrowSchema *arrow.Schema
}

func (d *Descriptor) Len() int { return len(d.columns) }

// Columns returns a copy of the columns in declaration order.
func (d *Descriptor) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

func (d *Descriptor) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Index returns the position of a column in declaration order.
func (d *Descriptor) Index(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// ColumnNames returns the top level column names in declaration order.
func (d *Descriptor) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Metadata returns column documentation keyed by column name.
func (d *Descriptor) Metadata() map[string]string {
	out := make(map[string]string)
	for _, c := range d.columns {
		if c.Comment != "" {
			out[c.Name] = c.Comment
		}
	}
	return out
}

// Arrow returns the arrow schema of the table. Column documentation is
// attached as schema metadata.
func (d *Descriptor) Arrow() *arrow.Schema {
	return d.arrowSchema
}
