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
package block

import (
	"fmt"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// RowWriter stages the values of a single row.
//
// Every Offer method reports whether the column received a usable value.
// A nil or unrepresentable value is stored as null and reported as false.
// Writing a column the descriptor does not declare, or writing the same
// column twice, panics with connector.ErrInvariantViolation.
type RowWriter interface {
	OfferValue(column string, value any) bool
	OfferList(column string, values []string) bool
	// OfferStructList writes n struct elements. resolve is called for every
	// declared struct field of every element; its error aborts the row.
	OfferStructList(column string, n int, resolve func(field string, i int) (string, error)) (bool, error)
	// Result returns the outcome of the offers made so far.
	Result() RowResult
}

// RowResult is the outcome of mapping one source record. The row is emitted
// either way; Failed lists the columns that ended up null.
type RowResult struct {
	Failed []string
}

func (r RowResult) Matched() bool { return len(r.Failed) == 0 }

// Count is the matched row count reported to the spiller.
func (r RowResult) Count() int {
	if r.Matched() {
		return 1
	}
	return 0
}

// OfferComplexValue writes a list of heterogeneous elements into a struct
// list column, resolving each declared field of each element with resolve.
func OfferComplexValue[T any](
	w RowWriter,
	column string,
	elems []T,
	resolve func(field string, elem T) (string, error),
) (bool, error) {
	return w.OfferStructList(column, len(elems), func(field string, i int) (string, error) {
		return resolve(field, elems[i])
	})
}

type rowWriter struct {
	descriptor *schema.Descriptor
	values     []any
	written    []bool
	failed     []string
}

func newRowWriter(d *schema.Descriptor) *rowWriter {
	return &rowWriter{
		descriptor: d,
		values:     make([]any, d.Len()),
		written:    make([]bool, d.Len()),
	}
}

func (w *rowWriter) claim(column string, kind schema.Kind) (int, schema.Column) {
	i, ok := w.descriptor.Index(column)
	if !ok {
		panic(fmt.Errorf("column %q is not declared: %w", column, connector.ErrInvariantViolation))
	}
	col, _ := w.descriptor.Column(column)
	if col.Kind != kind {
		panic(fmt.Errorf("column %q is %v, written as %v: %w", column, col.Kind, kind, connector.ErrInvariantViolation))
	}
	if w.written[i] {
		panic(fmt.Errorf("column %q written twice: %w", column, connector.ErrInvariantViolation))
	}
	w.written[i] = true
	return i, col
}

func (w *rowWriter) fail(column string) bool {
	w.failed = append(w.failed, column)
	return false
}

func (w *rowWriter) OfferValue(column string, value any) bool {
	i, col := w.claim(column, schema.KindScalar)

	v, ok := normalize(col.Type, value)
	if !ok {
		return w.fail(column)
	}
	w.values[i] = v
	return true
}

func (w *rowWriter) OfferList(column string, values []string) bool {
	i, _ := w.claim(column, schema.KindList)

	if values == nil {
		return w.fail(column)
	}
	w.values[i] = append([]string{}, values...)
	return true
}

func (w *rowWriter) OfferStructList(column string, n int, resolve func(field string, i int) (string, error)) (bool, error) {
	i, col := w.claim(column, schema.KindListOfStruct)

	elems := make([][]string, n)
	for e := 0; e < n; e++ {
		elems[e] = make([]string, len(col.Fields))
		for f, field := range col.Fields {
			v, err := resolve(field, e)
			if err != nil {
				return false, fmt.Errorf("resolve %s.%s of element #%d: %w", column, field, e, err)
			}
			elems[e][f] = v
		}
	}
	w.values[i] = elems
	return true, nil
}

func (w *rowWriter) Result() RowResult {
	return RowResult{Failed: append([]string(nil), w.failed...)}
}
