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
	"errors"
	"sort"
	"sync"
)

// MemoryRepository is a Repository held in memory, keyed by normalized name
type MemoryRepository struct {
	mu      sync.RWMutex
	groups  map[string]*PartitionKeyGroup
	formats map[string]string
}

// InitMemoryRepository creates an empty MemoryRepository
func InitMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		groups:  make(map[string]*PartitionKeyGroup),
		formats: make(map[string]string),
	}
}

func (r *MemoryRepository) GetByName(ctx context.Context, name string) (*PartitionKeyGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group, ok := r.groups[normalize(name)]
	if !ok {
		return nil, nil
	}
	return copyGroup(group), nil
}

func (r *MemoryRepository) Save(ctx context.Context, group *PartitionKeyGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(group.Name)
	if _, ok := r.groups[key]; ok {
		return ErrDuplicateName
	}
	r.groups[key] = copyGroup(group)
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, group *PartitionKeyGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(group.Name)
	for _, referenced := range r.formats {
		if referenced == key {
			return ErrReferencedByFormat
		}
	}
	delete(r.groups, key)
	return nil
}

func (r *MemoryRepository) ListKeys(ctx context.Context) ([]PartitionKeyGroupKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]PartitionKeyGroupKey, 0, len(r.groups))
	for _, group := range r.groups {
		keys = append(keys, group.Key())
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys, nil
}

func (r *MemoryRepository) IsReferencedByFormat(ctx context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalize(name)
	for _, group := range r.formats {
		if group == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) AddExpectedPartitionValues(ctx context.Context, name string, values []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[normalize(name)]
	if !ok {
		return errors.New("partition key group " + name + " is not stored")
	}
	for _, value := range values {
		for _, existing := range group.ExpectedPartitionValues {
			if existing == value {
				return ErrDuplicateValue
			}
		}
	}
	group.ExpectedPartitionValues = append(group.ExpectedPartitionValues, values...)
	return nil
}

// AddFormatReference records that the business object format references
// the group; a blank group name drops the reference
func (r *MemoryRepository) AddFormatReference(format, groupName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if normalize(groupName) == "" {
		delete(r.formats, format)
		return
	}
	r.formats[format] = normalize(groupName)
}

func copyGroup(group *PartitionKeyGroup) *PartitionKeyGroup {
	res := &PartitionKeyGroup{Name: group.Name}
	if len(group.ExpectedPartitionValues) > 0 {
		res.ExpectedPartitionValues = append([]string(nil), group.ExpectedPartitionValues...)
	}
	return res
}
