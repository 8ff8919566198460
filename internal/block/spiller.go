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
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

const DefaultMaxRowsPerBlock = 4096

// Emitter receives every flushed block. The spiller releases the record
// once Emit returns, so emitters keeping it must call Retain.
type Emitter interface {
	Emit(record arrow.Record) error
}

type EmitterFunc func(record arrow.Record) error

func (f EmitterFunc) Emit(record arrow.Record) error { return f(record) }

// RowFunc maps one source record into the row writer and returns the
// matched row count (0 or 1).
type RowFunc func(w RowWriter) (int, error)

type Stats struct {
	Rows    int
	Matched int
	Blocks  int
}

type Option func(*Spiller)

func WithMaxRowsPerBlock(n int) Option {
	return func(s *Spiller) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

func WithAllocator(mem memory.Allocator) Option {
	return func(s *Spiller) { s.allocator = mem }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Spiller) { s.logger = logger }
}

// Spiller accumulates rows into arrow record batches and hands each full
// batch to its emitter. It is not safe for concurrent use.
type Spiller struct {
	descriptor *schema.Descriptor
	columns    []schema.Column
	emitter    Emitter
	allocator  memory.Allocator
	builder    *array.RecordBuilder
	maxRows    int
	pending    int
	stats      Stats
	logger     *zap.Logger
	closed     bool
}

func NewSpiller(d *schema.Descriptor, emitter Emitter, opts ...Option) *Spiller {
	s := &Spiller{
		descriptor: d,
		columns:    d.Columns(),
		emitter:    emitter,
		allocator:  memory.NewGoAllocator(),
		maxRows:    DefaultMaxRowsPerBlock,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.builder = array.NewRecordBuilder(s.allocator, d.Arrow())
	return s
}

func (s *Spiller) Descriptor() *schema.Descriptor { return s.descriptor }

func (s *Spiller) Stats() Stats { return s.stats }

// WriteRows maps and commits a single row. A mapper error is fatal for the
// read: the row is discarded and the error is returned.
func (s *Spiller) WriteRows(fn RowFunc) error {
	if s.closed {
		return fmt.Errorf("write to closed spiller: %w", connector.ErrInvariantViolation)
	}

	w := newRowWriter(s.descriptor)
	matched, err := fn(w)
	if err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	if failed := w.Result().Failed; len(failed) > 0 {
		s.logger.Debug("row partially written", zap.Strings("null_columns", failed))
	}

	s.appendRow(w.values)
	s.stats.Rows++
	s.stats.Matched += matched
	s.pending++

	if s.pending >= s.maxRows {
		return s.flush()
	}
	return nil
}

// Close flushes the remaining rows and frees the builders.
func (s *Spiller) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.builder.Release()

	return s.flush()
}

func (s *Spiller) flush() error {
	if s.pending == 0 {
		return nil
	}

	record := s.builder.NewRecord()
	defer record.Release()

	s.pending = 0
	s.stats.Blocks++

	if err := s.emitter.Emit(record); err != nil {
		return fmt.Errorf("emit block #%d: %w", s.stats.Blocks, err)
	}
	return nil
}

func (s *Spiller) appendRow(values []any) {
	for i, col := range s.columns {
		fb := s.builder.Field(i)
		v := values[i]

		switch col.Kind {
		case schema.KindScalar:
			appendScalar(fb, v)
		case schema.KindList:
			lb := fb.(*array.ListBuilder)
			items, ok := v.([]string)
			if !ok {
				lb.AppendNull()
				continue
			}
			lb.Append(true)
			vb := lb.ValueBuilder().(*array.StringBuilder)
			for _, item := range items {
				vb.Append(item)
			}
		case schema.KindListOfStruct:
			lb := fb.(*array.ListBuilder)
			elems, ok := v.([][]string)
			if !ok {
				lb.AppendNull()
				continue
			}
			lb.Append(true)
			sb := lb.ValueBuilder().(*array.StructBuilder)
			for _, elem := range elems {
				sb.Append(true)
				for f, fv := range elem {
					sb.FieldBuilder(f).(*array.StringBuilder).Append(fv)
				}
			}
		}
	}
}

func appendScalar(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}

	switch fb := b.(type) {
	case *array.StringBuilder:
		fb.Append(v.(string))
	case *array.Int64Builder:
		fb.Append(v.(int64))
	case *array.Float64Builder:
		fb.Append(v.(float64))
	case *array.BooleanBuilder:
		fb.Append(v.(bool))
	case *array.TimestampBuilder:
		fb.Append(arrow.Timestamp(v.(time.Time).UnixMilli()))
	case *array.BinaryBuilder:
		fb.Append(v.([]byte))
	default:
		panic(fmt.Errorf("no appender for builder %T: %w", b, connector.ErrInvariantViolation))
	}
}
