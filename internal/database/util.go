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
package database

import (
	"strings"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// QualifiedName quotes both parts of table with the dialect's rules.
func QualifiedName(h DialectHandler, table schema.TableName) string {
	return h.QuoteIdentifier(table.Schema) + "." + h.QuoteIdentifier(table.Table)
}

// SelectList renders a quoted, comma separated column list.
func SelectList(h DialectHandler, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = h.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// TypeMap resolves catalog data type names to column types. Names are
// matched case-insensitively with any "(precision, scale)" suffix removed;
// unknown names map to TypeString.
type TypeMap map[string]schema.Type

func (m TypeMap) Lookup(dataType string) schema.Type {
	name := typeName(dataType)
	if t, ok := m[name]; ok {
		return t
	}
	if strings.HasPrefix(name, "timestamp") {
		return schema.TypeTimestamp
	}
	return schema.TypeString
}

// TypeSet is a set of catalog data type names matched like TypeMap keys.
type TypeSet map[string]bool

func (s TypeSet) Has(dataType string) bool {
	return s[typeName(dataType)]
}

func typeName(dataType string) string {
	name := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name
}
