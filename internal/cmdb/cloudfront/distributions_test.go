package cloudfront

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscloudfront "github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/block"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb/awsclient"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

type fakeAPI struct {
	pages   []*types.DistributionList
	markers []string
	err     error
}

func (f *fakeAPI) ListDistributions(_ context.Context, in *awscloudfront.ListDistributionsInput, _ ...func(*awscloudfront.Options)) (*awscloudfront.ListDistributionsOutput, error) {
	f.markers = append(f.markers, aws.ToString(in.Marker))
	if f.err != nil {
		return nil, f.err
	}
	return &awscloudfront.ListDistributionsOutput{DistributionList: f.pages[len(f.markers)-1]}, nil
}

func sampleDistribution(id string) types.DistributionSummary {
	return types.DistributionSummary{
		Id:         aws.String(id),
		DomainName: aws.String(id + ".cloudfront.net"),
		Aliases:    &types.Aliases{Items: []string{"www.example.com", "example.com"}, Quantity: aws.Int32(2)},
		ViewerCertificate: &types.ViewerCertificate{
			ACMCertificateArn:      aws.String("arn:aws:acm:us-east-1:123:certificate/abc"),
			SSLSupportMethod:       types.SSLSupportMethodSniOnly,
			MinimumProtocolVersion: types.MinimumProtocolVersionTLSv122021,
		},
		Origins: &types.Origins{Items: []types.Origin{{
			Id:         aws.String("O1"),
			DomainName: aws.String("d.example.com"),
			OriginPath: aws.String("/p"),
		}}},
		OriginGroups: &types.OriginGroups{Items: []types.OriginGroup{{
			Id: aws.String("G1"),
			Members: &types.OriginGroupMembers{Items: []types.OriginGroupMember{
				{OriginId: aws.String("O1")},
				{OriginId: aws.String("O2")},
			}},
		}}},
		CacheBehaviors: &types.CacheBehaviors{Items: []types.CacheBehavior{{
			PathPattern:          aws.String("/api/*"),
			TargetOriginId:       aws.String("O1"),
			ViewerProtocolPolicy: types.ViewerProtocolPolicyHttpsOnly,
			AllowedMethods: &types.AllowedMethods{Items: []types.Method{
				types.MethodGet, types.MethodHead, types.MethodPost,
			}},
		}}},
		DefaultCacheBehavior: &types.DefaultCacheBehavior{
			TargetOriginId:       aws.String("G1"),
			ViewerProtocolPolicy: types.ViewerProtocolPolicyRedirectToHttps,
			AllowedMethods:       &types.AllowedMethods{Items: []types.Method{types.MethodGet, types.MethodHead}},
		},
		Status:           aws.String("Deployed"),
		Enabled:          aws.Bool(true),
		LastModifiedTime: aws.Time(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		Comment:          aws.String("storefront"),
	}
}

func newProvider(t *testing.T, api API) *DistributionsProvider {
	return NewDistributionsProvider(api, awsclient.RetryOptions{MaxAttempts: 1}, zaptest.NewLogger(t))
}

func readAll(t *testing.T, p *DistributionsProvider, checker connector.StatusChecker) ([]map[string]any, error) {
	t.Helper()
	collector := &block.Collector{}
	t.Cleanup(collector.Release)

	spiller := block.NewSpiller(p.DescribeTable(), collector)
	err := p.ReadWithConstraint(context.Background(), spiller, &connector.Request{Table: p.TableName()}, checker)
	require.NoError(t, spiller.Close())
	return collector.Rows(), err
}

func TestDistributionRow(t *testing.T) {
	api := &fakeAPI{pages: []*types.DistributionList{{Items: []types.DistributionSummary{sampleDistribution("E1")}}}}

	rows, err := readAll(t, newProvider(t, api), connector.AlwaysActive)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "E1", row["id"])
	assert.Equal(t, "E1.cloudfront.net", row["cname"])
	assert.Equal(t, []string{"www.example.com", "example.com"}, row["domain_names"])
	assert.Equal(t, "arn:aws:acm:us-east-1:123:certificate/abc", row["ssl_certificate"])
	assert.Equal(t, "sni-only", row["ssl_support_method"])
	assert.Equal(t, "TLSv1.2_2021", row["ssl_minimum_protocol"])
	assert.Equal(t, []map[string]string{
		{"id": "O1", "domain_name": "d.example.com", "path": "/p", "members": ""},
		{"id": "G1", "domain_name": "", "path": "", "members": "O1,O2"},
	}, row["origins"])
	assert.Equal(t, []map[string]string{
		{"path_pattern": "/api/*", "origin_id": "O1", "viewer_policy": "https-only", "allow_methods": "GET,HEAD,POST"},
		{"path_pattern": "*", "origin_id": "G1", "viewer_policy": "redirect-to-https", "allow_methods": "GET,HEAD"},
	}, row["cache_behaviours"])
	assert.Equal(t, "Deployed", row["status"])
	assert.Equal(t, true, row["enabled"])
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), row["last_modified"])
	assert.Equal(t, "storefront", row["comment"])
}

func TestDistributionRowIsIdempotent(t *testing.T) {
	d := sampleDistribution("E1")
	api := &fakeAPI{pages: []*types.DistributionList{{Items: []types.DistributionSummary{d, d}}}}

	rows, err := readAll(t, newProvider(t, api), connector.AlwaysActive)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0], rows[1])
}

func TestDistributionToRowReportsFailedColumns(t *testing.T) {
	collector := &block.Collector{}
	defer collector.Release()
	spiller := block.NewSpiller(distributionsSchema, collector)

	var result block.RowResult
	require.NoError(t, spiller.WriteRows(func(w block.RowWriter) (int, error) {
		var err error
		result, err = distributionToRow(types.DistributionSummary{Id: aws.String("E2"), Enabled: aws.Bool(false)}, w)
		return result.Count(), err
	}))
	require.NoError(t, spiller.Close())

	assert.False(t, result.Matched())
	assert.ElementsMatch(t, []string{
		"cname", "ssl_certificate", "ssl_support_method", "ssl_minimum_protocol",
		"status", "last_modified", "comment",
	}, result.Failed)

	rows := collector.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "E2", rows[0]["id"])
	assert.Equal(t, []string{}, rows[0]["domain_names"])
	assert.Equal(t, []map[string]string{}, rows[0]["origins"])
	assert.Equal(t, false, rows[0]["enabled"])
	assert.Equal(t, 0, spiller.Stats().Matched)
}

func TestDefaultRuleAlwaysMatchesEveryPath(t *testing.T) {
	for _, behavior := range []types.DefaultCacheBehavior{
		{},
		{TargetOriginId: aws.String("O9"), ViewerProtocolPolicy: types.ViewerProtocolPolicyAllowAll},
	} {
		got, err := resolveCacheBehaviorField(fieldPathPattern, defaultRule{behavior: behavior})
		require.NoError(t, err)
		assert.Equal(t, "*", got)
	}

	elems := cacheBehaviorElements(sampleDistribution("E1"))
	require.Len(t, elems, 2)
	assert.IsType(t, defaultRule{}, elems[len(elems)-1])
}

func TestResolveUnknownField(t *testing.T) {
	_, err := resolveOriginField("weight", primaryOrigin{})
	var unknown *connector.ErrUnknownField
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "origins", unknown.Column)
	assert.Equal(t, "weight", unknown.Field)

	_, err = resolveCacheBehaviorField("ttl", defaultRule{})
	require.ErrorIs(t, err, connector.ErrInvariantViolation)
}

func TestCheckResolvers(t *testing.T) {
	require.NoError(t, checkResolvers(distributionsSchema))

	drifted := schema.NewBuilder().
		AddStructListField("origins", "origin", fieldID, "weight").
		AddStructListField("cache_behaviours", "cache_behaviour", fieldPathPattern).
		MustBuild()
	err := checkResolvers(drifted)
	var unknown *connector.ErrUnknownField
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "origins", unknown.Column)
	assert.Equal(t, "weight", unknown.Field)

	drifted = schema.NewBuilder().
		AddStructListField("cache_behaviours", "cache_behaviour", fieldOriginID, "ttl").
		MustBuild()
	err = checkResolvers(drifted)
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "cache_behaviours", unknown.Column)
}

func TestReadFollowsMarkers(t *testing.T) {
	api := &fakeAPI{pages: []*types.DistributionList{
		{Items: []types.DistributionSummary{sampleDistribution("E1")}, NextMarker: aws.String("m1")},
		{Items: []types.DistributionSummary{sampleDistribution("E2"), sampleDistribution("E3")}, NextMarker: aws.String("m2")},
		{Items: []types.DistributionSummary{sampleDistribution("E4")}},
	}}

	rows, err := readAll(t, newProvider(t, api), connector.AlwaysActive)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "m1", "m2"}, api.markers)
	require.Len(t, rows, 4)
	for i, id := range []string{"E1", "E2", "E3", "E4"} {
		assert.Equal(t, id, rows[i]["id"])
	}
}

func TestReadStopsWhenQueryInactive(t *testing.T) {
	api := &fakeAPI{pages: []*types.DistributionList{
		{Items: []types.DistributionSummary{sampleDistribution("E1")}, NextMarker: aws.String("m1")},
		{Items: []types.DistributionSummary{sampleDistribution("E2")}, NextMarker: aws.String("m2")},
	}}

	rows, err := readAll(t, newProvider(t, api), connector.StatusCheckerFunc(func() bool { return false }))
	require.NoError(t, err)

	assert.Len(t, api.markers, 1)
	assert.Len(t, rows, 1)
}

func TestReadEmptyFirstPage(t *testing.T) {
	api := &fakeAPI{pages: []*types.DistributionList{{}}}

	rows, err := readAll(t, newProvider(t, api), connector.AlwaysActive)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Len(t, api.markers, 1)
}

func TestReadRemoteError(t *testing.T) {
	api := &fakeAPI{err: errors.New("AccessDenied")}

	_, err := readAll(t, newProvider(t, api), connector.AlwaysActive)
	var remote *connector.ErrRemoteFetch
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 1, remote.Page)
}
