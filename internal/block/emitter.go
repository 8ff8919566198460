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
	"io"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/ipc"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

// IPCEmitter streams blocks in the Arrow IPC streaming format.
type IPCEmitter struct {
	writer *ipc.Writer
}

func NewIPCEmitter(out io.Writer, sc *arrow.Schema, mem memory.Allocator) *IPCEmitter {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &IPCEmitter{
		writer: ipc.NewWriter(out, ipc.WithSchema(sc), ipc.WithAllocator(mem)),
	}
}

func (e *IPCEmitter) Emit(record arrow.Record) error {
	if err := e.writer.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close writes the end-of-stream marker.
func (e *IPCEmitter) Close() error {
	if err := e.writer.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}

// Collector keeps every emitted block in memory.
type Collector struct {
	Records []arrow.Record
}

func (c *Collector) Emit(record arrow.Record) error {
	record.Retain()
	c.Records = append(c.Records, record)
	return nil
}

// Rows flattens the collected blocks with RecordRows.
func (c *Collector) Rows() []map[string]any {
	var rows []map[string]any
	for _, rec := range c.Records {
		rows = append(rows, RecordRows(rec)...)
	}
	return rows
}

func (c *Collector) Release() {
	for _, rec := range c.Records {
		rec.Release()
	}
	c.Records = nil
}

// RowEmitter calls fn with every row of every block.
type RowEmitter func(row map[string]any) error

func (fn RowEmitter) Emit(record arrow.Record) error {
	for _, row := range RecordRows(record) {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// RecordRows converts a block into one map per row. Null values are nil,
// list columns are []string and struct list columns are []map[string]string.
func RecordRows(record arrow.Record) []map[string]any {
	rows := make([]map[string]any, record.NumRows())
	for r := range rows {
		rows[r] = make(map[string]any, record.NumCols())
	}

	for c, col := range record.Columns() {
		name := record.ColumnName(c)
		for r := range rows {
			rows[r][name] = cellValue(col, r)
		}
	}
	return rows
}

func cellValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		return time.UnixMilli(int64(a.Value(i))).UTC()
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...)
	case *array.List:
		start, end := a.ValueOffsets(i)
		switch values := a.ListValues().(type) {
		case *array.String:
			out := make([]string, 0, end-start)
			for j := start; j < end; j++ {
				out = append(out, values.Value(int(j)))
			}
			return out
		case *array.Struct:
			st := values.DataType().(*arrow.StructType)
			out := make([]map[string]string, 0, end-start)
			for j := start; j < end; j++ {
				elem := make(map[string]string, values.NumField())
				for f := 0; f < values.NumField(); f++ {
					elem[st.Field(f).Name] = values.Field(f).(*array.String).Value(int(j))
				}
				out = append(out, elem)
			}
			return out
		}
	}

	return arr.String()
}
