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

// Package elb maps load balancer target groups to the elb.target_groups table.
package elb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/block"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb/awsclient"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// maxPageSize is the largest PageSize DescribeTargetGroups accepts.
const maxPageSize = 400

type API interface {
	DescribeTargetGroups(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetGroupsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetGroupsOutput, error)
}

var targetGroupsSchema = schema.NewBuilder().
	AddStringField("tg_name").
	AddStringField("tg_arn").
	AddStringField("protocol").
	AddField("port", schema.TypeInt64).
	AddStringField("vpc_id").
	AddStringField("target_type").
	AddStringField("health_check_path").
	AddListField("load_balancer_arns").
	AddMetadata("tg_name", "Target Group name").
	AddMetadata("load_balancer_arns", "Load balancers routing traffic to the target group").
	MustBuild()

type TargetGroupsProvider struct {
	api    API
	retry  awsclient.RetryOptions
	logger *zap.Logger
}

func NewTargetGroupsProvider(api API, retry awsclient.RetryOptions, logger *zap.Logger) *TargetGroupsProvider {
	return &TargetGroupsProvider{api: api, retry: retry, logger: logger}
}

func (p *TargetGroupsProvider) Schema() string { return "elb" }

func (p *TargetGroupsProvider) TableName() schema.TableName {
	return schema.NewTableName(p.Schema(), "target_groups")
}

func (p *TargetGroupsProvider) DescribeTable() *schema.Descriptor { return targetGroupsSchema }

func (p *TargetGroupsProvider) ReadWithConstraint(
	ctx context.Context,
	spiller *block.Spiller,
	req *connector.Request,
	checker connector.StatusChecker,
) error {
	pageSize := req.EffectivePageSize()
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	lister := awsclient.NewRetryingLister[types.TargetGroup](
		&targetGroupPager{api: p.api, pageSize: int32(pageSize)},
		p.retry,
		p.logger,
	)

	_, err := connector.FetchAll[types.TargetGroup](ctx, p.logger, lister, checker,
		func(tg types.TargetGroup) error {
			return spiller.WriteRows(func(w block.RowWriter) (int, error) {
				return targetGroupToRow(tg, w).Count(), nil
			})
		})
	return err
}

type targetGroupPager struct {
	api      API
	pageSize int32
}

func (p *targetGroupPager) ListPage(ctx context.Context, token string) (connector.Page[types.TargetGroup], error) {
	input := &elasticloadbalancingv2.DescribeTargetGroupsInput{PageSize: aws.Int32(p.pageSize)}
	if token != "" {
		input.Marker = aws.String(token)
	}

	out, err := p.api.DescribeTargetGroups(ctx, input)
	if err != nil {
		return connector.Page[types.TargetGroup]{}, fmt.Errorf("describe target groups: %w", err)
	}

	return connector.Page[types.TargetGroup]{
		Items:     out.TargetGroups,
		NextToken: aws.ToString(out.NextMarker),
	}, nil
}

func targetGroupToRow(tg types.TargetGroup, w block.RowWriter) block.RowResult {
	w.OfferValue("tg_name", tg.TargetGroupName)
	w.OfferValue("tg_arn", tg.TargetGroupArn)
	w.OfferValue("protocol", optional(tg.Protocol))
	w.OfferValue("port", tg.Port)
	w.OfferValue("vpc_id", tg.VpcId)
	w.OfferValue("target_type", optional(tg.TargetType))
	w.OfferValue("health_check_path", tg.HealthCheckPath)

	arns := tg.LoadBalancerArns
	if arns == nil {
		arns = []string{}
	}
	w.OfferList("load_balancer_arns", arns)

	return w.Result()
}

func optional[E ~string](v E) any {
	if v == "" {
		return nil
	}
	return string(v)
}
