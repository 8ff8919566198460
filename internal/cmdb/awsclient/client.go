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

// Package awsclient builds the AWS API clients behind the inventory tables.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
)

// Clients holds one client per AWS service the inventory tables read.
type Clients struct {
	CloudFront *cloudfront.Client
	ELB        *elasticloadbalancingv2.Client
}

// NewClients loads credentials through the default chain (environment,
// shared profile, instance role). SDK retries are disabled, page requests
// are retried by RetryingLister.
func NewClients(ctx context.Context, cfg config.AWSConfig) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return &Clients{
		CloudFront: cloudfront.NewFromConfig(awsCfg, func(o *cloudfront.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		}),
		ELB: elasticloadbalancingv2.NewFromConfig(awsCfg, func(o *elasticloadbalancingv2.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		}),
	}, nil
}

// RetryOptionsFromConfig maps the reader settings onto retry options.
func RetryOptionsFromConfig(cfg config.ReaderConfig) RetryOptions {
	opts := DefaultRetryOptions
	opts.MaxAttempts = cfg.MaxRetries + 1
	opts.RequestsPerSecond = cfg.RequestsPerSecond
	return opts
}
