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
	"context"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/mux"
)

// Factory opens the DB of one registered dialect.
type Factory struct {
	engine string
}

var _ mux.Factory = Factory{}

func NewFactory(engine string) Factory {
	return Factory{engine: engine}
}

func (f Factory) EngineID() string { return f.engine }

func (f Factory) Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (mux.Handler, error) {
	return New(ctx, cfg.DatabaseFor(f.engine), logger)
}

// Factories returns a factory per engine id.
func Factories(engines ...string) []mux.Factory {
	factories := make([]mux.Factory, 0, len(engines))
	for _, engine := range engines {
		factories = append(factories, NewFactory(engine))
	}
	return factories
}
