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
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// ParseConstraints turns "column=value" pairs into a constraint map.
func ParseConstraints(pairs []string) (map[string]string, error) {
	constraints := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		column, value, ok := strings.Cut(pair, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("constraint %q must be written as column=value: %w", pair, connector.ErrInvalidRequest)
		}
		constraints[column] = strings.TrimSpace(value)
	}
	return constraints, nil
}

func GetDefaultOutputFilePath(table schema.TableName) string {
	return fmt.Sprintf("%s_%s.arrow", table.Schema, table.Table)
}

// CreateOutputFile creates path, and its parent directories when missing.
func CreateOutputFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
