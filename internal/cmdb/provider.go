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

// Package cmdb exposes cloud inventory listings as read-only tables.
package cmdb

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/block"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/logging"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// TableProvider serves one inventory table.
type TableProvider interface {
	Schema() string
	TableName() schema.TableName
	// DescribeTable returns the same descriptor on every call.
	DescribeTable() *schema.Descriptor
	// ReadWithConstraint writes every record of the remote listing into
	// spiller, stopping early once checker reports the query inactive.
	ReadWithConstraint(ctx context.Context, spiller *block.Spiller, req *connector.Request, checker connector.StatusChecker) error
}

// Handler answers metadata and read requests from a fixed set of providers.
type Handler struct {
	providers map[schema.TableName]TableProvider
	logger    *zap.Logger
}

func NewHandler(logger *zap.Logger, providers ...TableProvider) (*Handler, error) {
	h := &Handler{
		providers: make(map[schema.TableName]TableProvider, len(providers)),
		logger:    logger,
	}
	for _, p := range providers {
		name := p.TableName()
		if _, ok := h.providers[name]; ok {
			return nil, fmt.Errorf("table %s registered twice: %w", name, connector.ErrInvariantViolation)
		}
		h.providers[name] = p
	}
	return h, nil
}

func (h *Handler) ListSchemas(_ context.Context, _ *connector.Request) ([]string, error) {
	seen := map[string]struct{}{}
	var schemas []string
	for name := range h.providers {
		if _, ok := seen[name.Schema]; ok {
			continue
		}
		seen[name.Schema] = struct{}{}
		schemas = append(schemas, name.Schema)
	}
	sort.Strings(schemas)
	return schemas, nil
}

// ListTables lists the tables of req.Schema, or of every schema when it is empty.
func (h *Handler) ListTables(_ context.Context, req *connector.Request) ([]schema.TableName, error) {
	var tables []schema.TableName
	for name := range h.providers {
		if req.Schema == "" || name.Schema == req.Schema {
			tables = append(tables, name)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].String() < tables[j].String() })
	return tables, nil
}

func (h *Handler) GetTable(_ context.Context, req *connector.Request) (*schema.Descriptor, error) {
	p, err := h.provider(req.Table)
	if err != nil {
		return nil, err
	}
	return p.DescribeTable(), nil
}

func (h *Handler) ReadTable(ctx context.Context, req *connector.Request, spiller *block.Spiller, checker connector.StatusChecker) error {
	p, err := h.provider(req.Table)
	if err != nil {
		return err
	}

	logger := logging.AnnotateLogger(h.logger, "ReadTable", req)
	if len(req.Constraints) > 0 {
		logger.Debug("constraints are not pushed down to the remote API")
	}

	if err := p.ReadWithConstraint(ctx, spiller, req, checker); err != nil {
		return fmt.Errorf("error reading %s: %w", req.Table, err)
	}

	stats := spiller.Stats()
	logger.Info("table read", zap.Int("rows", stats.Rows), zap.Int("matched", stats.Matched))
	return nil
}

func (h *Handler) Close() error { return nil }

func (h *Handler) provider(name schema.TableName) (TableProvider, error) {
	p, ok := h.providers[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, connector.ErrTableNotFound)
	}
	return p, nil
}
