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
package connector

import (
	"context"
)

// StatusChecker reports whether the query driving a read is still running.
// Implementations must be side-effect free.
type StatusChecker interface {
	IsActive() bool
}

type StatusCheckerFunc func() bool

func (f StatusCheckerFunc) IsActive() bool { return f() }

// AlwaysActive never cancels.
var AlwaysActive StatusChecker = StatusCheckerFunc(func() bool { return true })

// ContextStatusChecker reports the query as inactive once its context is done.
type ContextStatusChecker struct {
	ctx context.Context
}

func NewContextStatusChecker(ctx context.Context) *ContextStatusChecker {
	return &ContextStatusChecker{ctx: ctx}
}

func (c *ContextStatusChecker) IsActive() bool {
	return c.ctx.Err() == nil
}
