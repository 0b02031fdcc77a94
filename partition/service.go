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
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Events sent to the Notifier
const (
	EventCreated = "partitionKeyGroupCreated"
	EventDeleted = "partitionKeyGroupDeleted"
)

const nameRequired = "A partition key group name must be specified."

// Notifier is told about groups being created or deleted
type Notifier interface {
	Notify(ctx context.Context, event, subject string) error
}

// Service implements the partition key group operations on a Repository
type Service struct {
	Repo     Repository
	Notifier Notifier
}

// InitService creates a Service without a Notifier
func InitService(repo Repository) *Service {
	return &Service{Repo: repo}
}

// CreatePartitionKeyGroup creates a group named after the trimmed name
func (s *Service) CreatePartitionKeyGroup(ctx context.Context, name string) (*PartitionKeyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InvalidArgumentError(nameRequired)
	}

	existing, err := s.Repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyExists(name)
	}

	group := &PartitionKeyGroup{Name: name}
	if err := s.Repo.Save(ctx, group); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return nil, alreadyExists(name)
		}
		return nil, err
	}

	log.Info("Created partition key group '" + name + "'")
	s.notify(ctx, EventCreated, name)
	return group, nil
}

// GetPartitionKeyGroup returns the group as it was stored, whatever the
// casing of the key
func (s *Service) GetPartitionKeyGroup(ctx context.Context, key PartitionKeyGroupKey) (*PartitionKeyGroup, error) {
	name, err := validateKey(key)
	if err != nil {
		return nil, err
	}
	return s.getExisting(ctx, name)
}

// DeletePartitionKeyGroup deletes the group unless a business object format
// uses it, and returns it as it was before the deletion
func (s *Service) DeletePartitionKeyGroup(ctx context.Context, key PartitionKeyGroupKey) (*PartitionKeyGroup, error) {
	name, err := validateKey(key)
	if err != nil {
		return nil, err
	}

	group, err := s.getExisting(ctx, name)
	if err != nil {
		return nil, err
	}

	referenced, err := s.Repo.IsReferencedByFormat(ctx, group.Name)
	if err != nil {
		return nil, err
	}
	if referenced {
		return nil, referencedError(name)
	}

	// a format may start referencing the group after the check
	err = s.Repo.Delete(ctx, group)
	if errors.Is(err, ErrReferencedByFormat) {
		return nil, referencedError(name)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Deleted partition key group '" + group.Name + "'")
	s.notify(ctx, EventDeleted, group.Name)
	return group, nil
}

// GetPartitionKeyGroups returns the keys of all the groups
func (s *Service) GetPartitionKeyGroups(ctx context.Context) ([]PartitionKeyGroupKey, error) {
	return s.Repo.ListKeys(ctx)
}

// AddExpectedPartitionValues appends the trimmed values to the group
func (s *Service) AddExpectedPartitionValues(ctx context.Context, key PartitionKeyGroupKey, values []string) (*PartitionKeyGroup, error) {
	name, err := validateKey(key)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, InvalidArgumentError("At least one expected partition value must be specified.")
	}

	trimmed := make([]string, len(values))
	seen := make(map[string]bool, len(values))
	for i, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, InvalidArgumentError("An expected partition value must be specified.")
		}
		if seen[value] {
			return nil, InvalidArgumentError(fmt.Sprintf("Duplicate expected partition value \"%s\" found.", value))
		}
		seen[value] = true
		trimmed[i] = value
	}

	group, err := s.getExisting(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.AddExpectedPartitionValues(ctx, group.Name, trimmed); err != nil {
		if errors.Is(err, ErrDuplicateValue) {
			return nil, AlreadyExistsError(fmt.Sprintf(
				"Expected partition values already exist in \"%s\" partition key group.", group.Name))
		}
		return nil, err
	}

	log.Debug("Added " + strconv.Itoa(len(trimmed)) + " expected partition values to '" + group.Name + "'")
	return s.getExisting(ctx, group.Name)
}

func (s *Service) getExisting(ctx context.Context, name string) (*PartitionKeyGroup, error) {
	group, err := s.Repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, NotFoundError(fmt.Sprintf("Partition key group \"%s\" doesn't exist.", name))
	}
	return group, nil
}

func (s *Service) notify(ctx context.Context, event, name string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, event, name); err != nil {
		log.Warn("Couldn't record " + event + " for '" + name + "': " + err.Error())
	}
}

func validateKey(key PartitionKeyGroupKey) (string, error) {
	name := strings.TrimSpace(key.Name)
	if name == "" {
		return "", InvalidArgumentError(nameRequired)
	}
	return name, nil
}

func alreadyExists(name string) error {
	return AlreadyExistsError(fmt.Sprintf(
		"Unable to create partition key group with name \"%s\" because it already exists.", name))
}

func referencedError(name string) InvalidArgumentError {
	return InvalidArgumentError(fmt.Sprintf(
		"Can not delete \"%s\" partition key group since it is being used by a business object format.", name))
}
