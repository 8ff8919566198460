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
package connector

import (
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// DefaultPageSize is used when a request does not ask for a page size.
const DefaultPageSize = 100

// Request carries everything a handler needs for a single operation.
// Engine may be left empty when Catalog maps to a connection string.
type Request struct {
	Catalog string
	Engine  string
	// Schema is used by table listing.
	Schema string
	Table  schema.TableName
	// Constraints are carried for diagnostics only; they are never pushed
	// down to the remote API and never filter rows.
	Constraints map[string]string
	PageSize    int
}

// EffectivePageSize returns the page size to ask remote APIs for.
func (r Request) EffectivePageSize() int {
	if r.PageSize <= 0 {
		return DefaultPageSize
	}
	return r.PageSize
}
