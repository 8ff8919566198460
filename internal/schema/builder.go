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
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
)

// Builder assembles a Descriptor column by column.
//
//	desc := schema.NewBuilder().
//		AddStringField("id").
//		AddListField("domain_names").
//		AddStructListField("origins", "origin", "id", "domain_name").
//		AddMetadata("id", "Distribution Id").
//		MustBuild()
type Builder struct {
	columns  []Column
	metadata map[string]string
}

func NewBuilder() *Builder {
	return &Builder{metadata: make(map[string]string)}
}

func (b *Builder) AddStringField(name string) *Builder {
	return b.AddField(name, TypeString)
}

func (b *Builder) AddField(name string, t Type) *Builder {
	b.columns = append(b.columns, Column{Name: name, Kind: KindScalar, Type: t})
	return b
}

// AddListField adds a list of strings column.
func (b *Builder) AddListField(name string) *Builder {
	b.columns = append(b.columns, Column{Name: name, Kind: KindList, Type: TypeString})
	return b
}

// AddStructListField adds a list column whose elements are structs named
// elemName with the given string fields.
func (b *Builder) AddStructListField(name, elemName string, fields ...string) *Builder {
	b.columns = append(b.columns, Column{
		Name:     name,
		Kind:     KindListOfStruct,
		ElemName: elemName,
		Fields:   append([]string(nil), fields...),
	})
	return b
}

// AddMetadata documents a column. The column may be added before or after.
func (b *Builder) AddMetadata(column, comment string) *Builder {
	b.metadata[column] = comment
	return b
}

// Build validates the columns and freezes them into a Descriptor.
func (b *Builder) Build() (*Descriptor, error) {
	columns := make([]Column, len(b.columns))
	index := make(map[string]int, len(b.columns))

	for i, c := range b.columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column #%d has no name: %w", i, ErrInvalidSchema)
		}
		if _, exists := index[c.Name]; exists {
			return nil, fmt.Errorf("duplicate column %q: %w", c.Name, ErrInvalidSchema)
		}

		if c.Kind == KindListOfStruct {
			if len(c.Fields) == 0 {
				return nil, fmt.Errorf("struct list column %q has no fields: %w", c.Name, ErrInvalidSchema)
			}
			seen := make(map[string]struct{}, len(c.Fields))
			for _, f := range c.Fields {
				if f == "" {
					return nil, fmt.Errorf("struct list column %q has an unnamed field: %w", c.Name, ErrInvalidSchema)
				}
				if _, dup := seen[f]; dup {
					return nil, fmt.Errorf("duplicate field %q in column %q: %w", f, c.Name, ErrInvalidSchema)
				}
				seen[f] = struct{}{}
			}
		}

		c.Comment = b.metadata[c.Name]
		columns[i] = c
		index[c.Name] = i
	}

	for col := range b.metadata {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("metadata for undeclared column %q: %w", col, ErrInvalidSchema)
		}
	}

	fields := make([]arrow.Field, 0, len(columns))
	var keys, values []string
	for _, c := range columns {
		fields = append(fields, c.arrowField())
		if c.Comment != "" {
			keys = append(keys, c.Name)
			values = append(values, c.Comment)
		}
	}

	var md *arrow.Metadata
	if len(keys) > 0 {
		m := arrow.NewMetadata(keys, values)
		md = &m
	}

	return &Descriptor{
		columns:     columns,
		index:       index,
		arrowSchema: arrow.NewSchema(fields, md),
	}, nil
}

// MustBuild is Build for descriptors defined in code; a broken definition is
// a startup failure.
func (b *Builder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
