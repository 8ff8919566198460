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
package cloudfront

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// struct fields of the origins column
const (
	fieldID         = "id"
	fieldDomainName = "domain_name"
	fieldPath       = "path"
	fieldMembers    = "members"
)

// struct fields of the cache_behaviours column
const (
	fieldPathPattern  = "path_pattern"
	fieldOriginID     = "origin_id"
	fieldViewerPolicy = "viewer_policy"
	fieldAllowMethods = "allow_methods"
)

// defaultPathPattern is reported for the default cache behavior, which
// matches every path.
const defaultPathPattern = "*"

// originElement is either a primary origin or an origin group. Fields that do
// not apply to a variant resolve to "".
type originElement interface {
	id() string
	domainName() string
	path() string
	members() string
}

type primaryOrigin struct {
	origin types.Origin
}

func (o primaryOrigin) id() string         { return aws.ToString(o.origin.Id) }
func (o primaryOrigin) domainName() string { return aws.ToString(o.origin.DomainName) }
func (o primaryOrigin) path() string       { return aws.ToString(o.origin.OriginPath) }
func (o primaryOrigin) members() string    { return "" }

type originGroup struct {
	group types.OriginGroup
}

func (g originGroup) id() string         { return aws.ToString(g.group.Id) }
func (g originGroup) domainName() string { return "" }
func (g originGroup) path() string       { return "" }

// members joins the member origin ids with ",".
func (g originGroup) members() string {
	if g.group.Members == nil {
		return ""
	}
	ids := make([]string, 0, len(g.group.Members.Items))
	for _, m := range g.group.Members.Items {
		ids = append(ids, aws.ToString(m.OriginId))
	}
	return strings.Join(ids, ",")
}

// originElements returns all primary origins followed by all origin groups,
// each in API order.
func originElements(d types.DistributionSummary) []originElement {
	var elems []originElement
	if d.Origins != nil {
		for _, o := range d.Origins.Items {
			elems = append(elems, primaryOrigin{origin: o})
		}
	}
	if d.OriginGroups != nil {
		for _, g := range d.OriginGroups.Items {
			elems = append(elems, originGroup{group: g})
		}
	}
	return elems
}

func resolveOriginField(field string, elem originElement) (string, error) {
	switch field {
	case fieldID:
		return elem.id(), nil
	case fieldDomainName:
		return elem.domainName(), nil
	case fieldPath:
		return elem.path(), nil
	case fieldMembers:
		return elem.members(), nil
	}
	return "", &connector.ErrUnknownField{Column: "origins", Field: field}
}

// cacheBehaviorElement is either a path-specific rule or the default rule.
type cacheBehaviorElement interface {
	pathPattern() string
	originID() string
	viewerPolicy() string
	allowMethods() string
}

type pathRule struct {
	behavior types.CacheBehavior
}

func (r pathRule) pathPattern() string  { return aws.ToString(r.behavior.PathPattern) }
func (r pathRule) originID() string     { return aws.ToString(r.behavior.TargetOriginId) }
func (r pathRule) viewerPolicy() string { return string(r.behavior.ViewerProtocolPolicy) }
func (r pathRule) allowMethods() string { return joinMethods(r.behavior.AllowedMethods) }

type defaultRule struct {
	behavior types.DefaultCacheBehavior
}

func (r defaultRule) pathPattern() string  { return defaultPathPattern }
func (r defaultRule) originID() string     { return aws.ToString(r.behavior.TargetOriginId) }
func (r defaultRule) viewerPolicy() string { return string(r.behavior.ViewerProtocolPolicy) }
func (r defaultRule) allowMethods() string { return joinMethods(r.behavior.AllowedMethods) }

func joinMethods(m *types.AllowedMethods) string {
	if m == nil {
		return ""
	}
	methods := make([]string, 0, len(m.Items))
	for _, method := range m.Items {
		methods = append(methods, string(method))
	}
	return strings.Join(methods, ",")
}

// cacheBehaviorElements returns the path rules in API order followed by the
// default rule.
func cacheBehaviorElements(d types.DistributionSummary) []cacheBehaviorElement {
	var elems []cacheBehaviorElement
	if d.CacheBehaviors != nil {
		for _, b := range d.CacheBehaviors.Items {
			elems = append(elems, pathRule{behavior: b})
		}
	}
	if d.DefaultCacheBehavior != nil {
		elems = append(elems, defaultRule{behavior: *d.DefaultCacheBehavior})
	}
	return elems
}

func resolveCacheBehaviorField(field string, elem cacheBehaviorElement) (string, error) {
	switch field {
	case fieldPathPattern:
		return elem.pathPattern(), nil
	case fieldOriginID:
		return elem.originID(), nil
	case fieldViewerPolicy:
		return elem.viewerPolicy(), nil
	case fieldAllowMethods:
		return elem.allowMethods(), nil
	}
	return "", &connector.ErrUnknownField{Column: "cache_behaviours", Field: field}
}

// checkResolvers resolves every declared struct field of d against every
// element variant.
func checkResolvers(d *schema.Descriptor) error {
	if col, ok := d.Column("origins"); ok {
		for _, field := range col.Fields {
			for _, elem := range []originElement{primaryOrigin{}, originGroup{}} {
				if _, err := resolveOriginField(field, elem); err != nil {
					return err
				}
			}
		}
	}
	if col, ok := d.Column("cache_behaviours"); ok {
		for _, field := range col.Fields {
			for _, elem := range []cacheBehaviorElement{pathRule{}, defaultRule{}} {
				if _, err := resolveCacheBehaviorField(field, elem); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
