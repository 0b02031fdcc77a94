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

// Package partition manages partition key groups: named, reusable sets of
// expected partition values that business object formats may reference.
// Names are unique regardless of case but keep the casing they were created
// with.
package partition

import (
	"errors"
	"strings"
)

// PartitionKeyGroup is a named set of expected partition values
type PartitionKeyGroup struct {
	Name                    string
	ExpectedPartitionValues []string
}

// PartitionKeyGroupKey identifies a partition key group
type PartitionKeyGroupKey struct {
	Name string
}

// Key returns the key of the group
func (g PartitionKeyGroup) Key() PartitionKeyGroupKey {
	return PartitionKeyGroupKey{Name: g.Name}
}

// normalize is the lookup form of a name; uniqueness is enforced on it
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// InvalidArgumentError is returned for blank required fields and for
// referential integrity violations
type InvalidArgumentError string

func (i InvalidArgumentError) Error() string { return string(i) }

// AlreadyExistsError is returned when a group with the same name, ignoring
// case, already exists
type AlreadyExistsError string

func (a AlreadyExistsError) Error() string { return string(a) }

// NotFoundError is returned when the group does not exist
type NotFoundError string

func (n NotFoundError) Error() string { return string(n) }

var (
	// ErrDuplicateName is returned by a Repository when saving a group whose
	// normalized name is already taken
	ErrDuplicateName = errors.New("duplicate partition key group name")

	// ErrDuplicateValue is returned by a Repository when an expected
	// partition value is already part of the group
	ErrDuplicateValue = errors.New("duplicate expected partition value")

	// ErrReferencedByFormat is returned by a Repository when deleting a group
	// a business object format still references
	ErrReferencedByFormat = errors.New("partition key group referenced by a business object format")
)
