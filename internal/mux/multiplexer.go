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

// Package mux routes table requests to the handler built for their engine.
package mux

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/block"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// Handler serves the metadata and record operations of one engine.
type Handler interface {
	ListSchemas(ctx context.Context, req *connector.Request) ([]string, error)
	ListTables(ctx context.Context, req *connector.Request) ([]schema.TableName, error)
	GetTable(ctx context.Context, req *connector.Request) (*schema.Descriptor, error)
	// ReadTable writes the rows of req.Table into spiller, which must have
	// been built from the descriptor returned by GetTable.
	ReadTable(ctx context.Context, req *connector.Request, spiller *block.Spiller, checker connector.StatusChecker) error
	Close() error
}

// Factory builds the handler of a single engine.
type Factory interface {
	EngineID() string
	Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Handler, error)
}

// Builder collects factories; Build turns them into a Multiplexer.
type Builder struct {
	factories []Factory
}

func NewBuilder(factories ...Factory) *Builder {
	return &Builder{factories: factories}
}

func (b *Builder) Add(f Factory) *Builder {
	b.factories = append(b.factories, f)
	return b
}

// Build eagerly builds one handler per factory. A repeated engine id fails
// the whole build before any handler is created. If a factory fails, the
// handlers built so far are closed.
func (b *Builder) Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Multiplexer, error) {
	seen := make(map[string]struct{}, len(b.factories))
	for _, f := range b.factories {
		id := f.EngineID()
		if _, ok := seen[id]; ok {
			return nil, &connector.ErrDuplicateEngine{Engine: id}
		}
		seen[id] = struct{}{}
	}

	m := &Multiplexer{
		handlers: make(map[string]Handler, len(b.factories)),
		catalogs: make(map[string]string, len(cfg.Catalogs)),
		logger:   logger,
	}

	for _, f := range b.factories {
		id := f.EngineID()
		h, err := f.Build(ctx, cfg, logger.With(zap.String("engine", id)))
		if err != nil {
			if closeErr := m.Close(); closeErr != nil {
				logger.Error("close handlers after failed build", zap.Error(closeErr))
			}
			return nil, fmt.Errorf("error building handler for engine %s: %w", id, err)
		}
		m.handlers[id] = h
		m.engines = append(m.engines, id)
	}
	sort.Strings(m.engines)

	for catalog, conn := range cfg.Catalogs {
		engine, err := EngineFromConnectionString(conn)
		if err != nil {
			logger.Warn("catalog is not routable", zap.String("catalog", catalog), zap.Error(err))
			continue
		}
		m.catalogs[strings.ToLower(catalog)] = engine
	}

	logger.Info("multiplexer built", zap.Strings("engines", m.engines), zap.Int("catalogs", len(m.catalogs)))
	return m, nil
}

// Multiplexer dispatches requests by engine id. It is immutable once built
// and safe for concurrent use without locking.
type Multiplexer struct {
	handlers map[string]Handler
	engines  []string
	catalogs map[string]string
	logger   *zap.Logger
}

// Route returns the handler built for engine. There is no fallback handler.
func (m *Multiplexer) Route(engine string) (Handler, error) {
	h, ok := m.handlers[engine]
	if !ok {
		return nil, &connector.ErrUnsupportedEngine{Engine: engine, Supported: m.Engines()}
	}
	return h, nil
}

// Engines returns the registered engine ids in sorted order.
func (m *Multiplexer) Engines() []string {
	return append([]string(nil), m.engines...)
}

// resolve picks the handler for a request: an explicit engine first, then
// the engine of the catalog's connection string. Catalog names are
// case-insensitive.
func (m *Multiplexer) resolve(req *connector.Request) (Handler, error) {
	if req.Engine != "" {
		return m.Route(req.Engine)
	}

	engine, ok := m.catalogs[strings.ToLower(req.Catalog)]
	if !ok {
		return nil, &connector.ErrUnsupportedEngine{Catalog: req.Catalog, Supported: m.Engines()}
	}

	h, err := m.Route(engine)
	if err != nil {
		var unsupported *connector.ErrUnsupportedEngine
		if errors.As(err, &unsupported) {
			unsupported.Catalog = req.Catalog
		}
		return nil, err
	}
	return h, nil
}

func (m *Multiplexer) ListSchemas(ctx context.Context, req *connector.Request) ([]string, error) {
	h, err := m.resolve(req)
	if err != nil {
		return nil, err
	}
	return h.ListSchemas(ctx, req)
}

func (m *Multiplexer) ListTables(ctx context.Context, req *connector.Request) ([]schema.TableName, error) {
	h, err := m.resolve(req)
	if err != nil {
		return nil, err
	}
	return h.ListTables(ctx, req)
}

func (m *Multiplexer) GetTable(ctx context.Context, req *connector.Request) (*schema.Descriptor, error) {
	h, err := m.resolve(req)
	if err != nil {
		return nil, err
	}
	return h.GetTable(ctx, req)
}

func (m *Multiplexer) ReadTable(ctx context.Context, req *connector.Request, spiller *block.Spiller, checker connector.StatusChecker) error {
	h, err := m.resolve(req)
	if err != nil {
		return err
	}
	return h.ReadTable(ctx, req, spiller, checker)
}

// Close closes every handler and returns the joined errors.
func (m *Multiplexer) Close() error {
	var errs []error
	for _, id := range m.engines {
		if err := m.handlers[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// EngineFromConnectionString derives the engine id from the scheme of a
// connection string, e.g. "mssql://jdbc:sqlserver://host:1433" is "mssql".
func EngineFromConnectionString(conn string) (string, error) {
	engine, _, ok := strings.Cut(conn, "://")
	engine = strings.ToLower(strings.TrimSpace(engine))
	if !ok || engine == "" {
		return "", fmt.Errorf("connection string %q does not start with <engine>://: %w", conn, connector.ErrInvalidRequest)
	}
	return engine, nil
}
