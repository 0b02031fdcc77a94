//
// Copyright (c) 2016-2026 Snowplow Analytics Ltd. All rights reserved.
//
// This program is licensed to you under the Apache License Version 2.0,
// and you may not use this file except in compliance with the Apache License Version 2.0.
// You may obtain a copy of the Apache License Version 2.0 at http://www.apache.org/licenses/LICENSE-2.0.
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the Apache License Version 2.0 is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the Apache License Version 2.0 for the specific language governing permissions and limitations there under.
//

package partition

import (
	"context"
)

// Repository persists partition key groups. Every lookup by name is case
// insensitive.
type Repository interface {
	// GetByName returns the group or nil when it doesn't exist
	GetByName(ctx context.Context, name string) (*PartitionKeyGroup, error)
	// Save persists a new group, returning ErrDuplicateName when the name is taken
	Save(ctx context.Context, group *PartitionKeyGroup) error
	// Delete removes the group along with its expected partition values
	Delete(ctx context.Context, group *PartitionKeyGroup) error
	ListKeys(ctx context.Context) ([]PartitionKeyGroupKey, error)
	IsReferencedByFormat(ctx context.Context, name string) (bool, error)
	// AddExpectedPartitionValues appends values to the group, returning
	// ErrDuplicateValue when one of them is already present
	AddExpectedPartitionValues(ctx context.Context, name string, values []string) error
}
