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
	"reflect"
	"strconv"
	"time"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// normalize converts a source value into the Go representation stored for
// the column type. Pointers are dereferenced and named types (SDK enums are
// string types) are reduced to their underlying kind.
func normalize(t schema.Type, value any) (any, bool) {
	if value == nil {
		return nil, false
	}

	switch v := value.(type) {
	case time.Time:
		if t == schema.TypeTimestamp {
			return v, true
		}
		if t == schema.TypeString {
			return v.UTC().Format(time.RFC3339), true
		}
		return nil, false
	case *time.Time:
		if v == nil {
			return nil, false
		}
		return normalize(t, *v)
	case []byte:
		switch t {
		case schema.TypeBinary:
			return append([]byte(nil), v...), true
		case schema.TypeString:
			return string(v), true
		default:
			// drivers hand DECIMAL and NUMERIC values over as text
			return normalize(t, string(v))
		}
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return fromString(t, rv.String())
	case reflect.Bool:
		if t == schema.TypeBool {
			return rv.Bool(), true
		}
		if t == schema.TypeString {
			return strconv.FormatBool(rv.Bool()), true
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromInt(t, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return nil, false
		}
		return fromInt(t, int64(u))
	case reflect.Float32, reflect.Float64:
		switch t {
		case schema.TypeFloat64:
			return rv.Float(), true
		case schema.TypeString:
			return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
		}
	case reflect.Struct:
		if ts, ok := rv.Interface().(time.Time); ok {
			return normalize(t, ts)
		}
	}

	return nil, false
}

func fromString(t schema.Type, s string) (any, bool) {
	switch t {
	case schema.TypeString:
		return s, true
	case schema.TypeBinary:
		return []byte(s), true
	case schema.TypeInt64:
		i, err := strconv.ParseInt(s, 10, 64)
		return i, err == nil
	case schema.TypeFloat64:
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case schema.TypeBool:
		b, err := strconv.ParseBool(s)
		return b, err == nil
	case schema.TypeTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, s)
		return ts, err == nil
	}
	return nil, false
}

func fromInt(t schema.Type, i int64) (any, bool) {
	switch t {
	case schema.TypeInt64:
		return i, true
	case schema.TypeFloat64:
		return float64(i), true
	case schema.TypeString:
		return strconv.FormatInt(i, 10), true
	case schema.TypeBool:
		return i != 0, true
	}
	return nil, false
}
