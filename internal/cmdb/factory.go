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
package cmdb

import (
	"context"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb/awsclient"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb/cloudfront"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb/elb"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/mux"
)

// EngineID routes requests to the AWS inventory tables.
const EngineID = "cmdb"

var _ mux.Factory = Factory{}

// Factory builds a Handler serving every inventory table.
type Factory struct{}

func (Factory) EngineID() string { return EngineID }

func (Factory) Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (mux.Handler, error) {
	clients, err := awsclient.NewClients(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	return NewHandlerFromClients(clients, awsclient.RetryOptionsFromConfig(cfg.Reader), logger)
}

// NewHandlerFromClients registers one provider per inventory table.
func NewHandlerFromClients(clients *awsclient.Clients, retry awsclient.RetryOptions, logger *zap.Logger) (*Handler, error) {
	return NewHandler(logger,
		cloudfront.NewDistributionsProvider(clients.CloudFront, retry, logger),
		elb.NewTargetGroupsProvider(clients.ELB, retry, logger),
	)
}
