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

// Package cloudfront maps CloudFront distributions to the
// cloudfront.distributions table.
package cloudfront

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscloudfront "github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/block"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb/awsclient"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// API is the part of the CloudFront client the table reads.
type API interface {
	ListDistributions(ctx context.Context, params *awscloudfront.ListDistributionsInput, optFns ...func(*awscloudfront.Options)) (*awscloudfront.ListDistributionsOutput, error)
}

var distributionsSchema = schema.NewBuilder().
	AddStringField("id").
	AddStringField("cname").
	AddListField("domain_names").
	AddStringField("ssl_certificate").
	AddStringField("ssl_support_method").
	AddStringField("ssl_minimum_protocol").
	AddStructListField("origins", "origin",
		fieldID, fieldDomainName, fieldPath, fieldMembers).
	AddStructListField("cache_behaviours", "cache_behaviour",
		fieldPathPattern, fieldOriginID, fieldViewerPolicy, fieldAllowMethods).
	AddStringField("status").
	AddField("enabled", schema.TypeBool).
	AddField("last_modified", schema.TypeTimestamp).
	AddStringField("comment").
	AddMetadata("id", "CloudFront Distribution Id").
	AddMetadata("cname", "Domain name CloudFront assigned to the distribution").
	AddMetadata("domain_names", "Alternate domain names (CNAMEs)").
	AddMetadata("origins", "Origins followed by origin groups").
	AddMetadata("cache_behaviours", "Path cache behaviors followed by the default behavior").
	MustBuild()

func init() {
	if err := checkResolvers(distributionsSchema); err != nil {
		panic(err)
	}
}

// DistributionsProvider serves cloudfront.distributions.
type DistributionsProvider struct {
	api    API
	retry  awsclient.RetryOptions
	logger *zap.Logger
}

func NewDistributionsProvider(api API, retry awsclient.RetryOptions, logger *zap.Logger) *DistributionsProvider {
	return &DistributionsProvider{api: api, retry: retry, logger: logger}
}

func (p *DistributionsProvider) Schema() string { return "cloudfront" }

func (p *DistributionsProvider) TableName() schema.TableName {
	return schema.NewTableName(p.Schema(), "distributions")
}

func (p *DistributionsProvider) DescribeTable() *schema.Descriptor { return distributionsSchema }

// ReadWithConstraint lists every distribution. Constraints are not pushed
// down, ListDistributions has no filter parameters.
func (p *DistributionsProvider) ReadWithConstraint(
	ctx context.Context,
	spiller *block.Spiller,
	req *connector.Request,
	checker connector.StatusChecker,
) error {
	lister := awsclient.NewRetryingLister[types.DistributionSummary](
		&distributionPager{api: p.api, pageSize: int32(req.EffectivePageSize())},
		p.retry,
		p.logger,
	)

	_, err := connector.FetchAll[types.DistributionSummary](ctx, p.logger, lister, checker,
		func(d types.DistributionSummary) error {
			return spiller.WriteRows(func(w block.RowWriter) (int, error) {
				result, err := distributionToRow(d, w)
				if err != nil {
					return 0, err
				}
				return result.Count(), nil
			})
		})
	return err
}

type distributionPager struct {
	api      API
	pageSize int32
}

func (p *distributionPager) ListPage(ctx context.Context, token string) (connector.Page[types.DistributionSummary], error) {
	input := &awscloudfront.ListDistributionsInput{MaxItems: aws.Int32(p.pageSize)}
	if token != "" {
		input.Marker = aws.String(token)
	}

	out, err := p.api.ListDistributions(ctx, input)
	if err != nil {
		return connector.Page[types.DistributionSummary]{}, fmt.Errorf("list distributions: %w", err)
	}

	list := out.DistributionList
	if list == nil {
		return connector.Page[types.DistributionSummary]{}, nil
	}
	return connector.Page[types.DistributionSummary]{
		Items:     list.Items,
		NextToken: aws.ToString(list.NextMarker),
	}, nil
}

// distributionToRow maps one distribution summary. Every column is offered
// regardless of earlier failures.
func distributionToRow(d types.DistributionSummary, w block.RowWriter) (block.RowResult, error) {
	w.OfferValue("id", d.Id)
	w.OfferValue("cname", d.DomainName)
	w.OfferList("domain_names", aliases(d.Aliases))

	cert := d.ViewerCertificate
	if cert == nil {
		cert = &types.ViewerCertificate{}
	}
	w.OfferValue("ssl_certificate", cert.ACMCertificateArn)
	w.OfferValue("ssl_support_method", enumValue(cert.SSLSupportMethod))
	w.OfferValue("ssl_minimum_protocol", enumValue(cert.MinimumProtocolVersion))

	if _, err := block.OfferComplexValue(w, "origins", originElements(d), resolveOriginField); err != nil {
		return block.RowResult{}, err
	}
	if _, err := block.OfferComplexValue(w, "cache_behaviours", cacheBehaviorElements(d), resolveCacheBehaviorField); err != nil {
		return block.RowResult{}, err
	}

	w.OfferValue("status", d.Status)
	w.OfferValue("enabled", d.Enabled)
	w.OfferValue("last_modified", d.LastModifiedTime)
	w.OfferValue("comment", d.Comment)

	return w.Result(), nil
}

func aliases(a *types.Aliases) []string {
	if a == nil {
		return []string{}
	}
	return append([]string{}, a.Items...)
}

// enumValue maps an unset SDK enum to null.
func enumValue[E ~string](v E) any {
	if v == "" {
		return nil
	}
	return string(v)
}
