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

package cluster

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/google/uuid"
)

// MockProvider is an in-memory Provider used for dry runs and tests
type MockProvider struct {
	mu       sync.Mutex
	clusters map[string]*mockCluster
	order    []string

	// StepStates overrides the state reported for steps by step name;
	// steps default to COMPLETED
	StepStates map[string]string

	// ListErr is returned by lookups by cluster name when set
	ListErr error
}

type mockCluster struct {
	id         string
	name       string
	definition *Definition
	status     ClusterStatus
	steps      map[string]*emr.StepConfig
	stepOrder  []string
}

// InitMockProvider creates an empty MockProvider
func InitMockProvider() *MockProvider {
	return &MockProvider{
		clusters:   make(map[string]*mockCluster),
		StepStates: make(map[string]string),
	}
}

// CreateCluster registers a WAITING cluster
func (mp *MockProvider) CreateCluster(ctx context.Context, name string, definition *Definition, params AwsParams) (string, error) {
	if definition == nil {
		return "", errors.New("An EMR cluster definition must be specified")
	}
	if _, err := definition.GetJobFlowInput(); err != nil {
		return "", err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	id := "j-" + strings.ToUpper(strings.Replace(uuid.New().String(), "-", "", -1))[:13]
	mp.clusters[id] = &mockCluster{
		id:         id,
		name:       name,
		definition: definition,
		status:     ClusterStatus{State: StateWaiting},
		steps:      make(map[string]*emr.StepConfig),
	}
	mp.order = append(mp.order, id)
	return id, nil
}

// GetActiveClusterByName returns the first active cluster with that name, or nil
func (mp *MockProvider) GetActiveClusterByName(ctx context.Context, name string, params AwsParams) (*ClusterSummary, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.ListErr != nil {
		return nil, mp.ListErr
	}
	for _, id := range mp.order {
		c := mp.clusters[id]
		if strings.EqualFold(c.name, name) && contains(ActiveStates, c.status.State) {
			return &ClusterSummary{ID: c.id, Name: c.name, State: c.status.State}, nil
		}
	}
	return nil, nil
}

// GetClusterStatusByID returns the status of the cluster, or nil
func (mp *MockProvider) GetClusterStatusByID(ctx context.Context, id string, params AwsParams) (*ClusterStatus, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	c, ok := mp.clusters[id]
	if !ok {
		return nil, nil
	}
	status := c.status
	return &status, nil
}

// GetClusterByID returns a description of the cluster, or nil
func (mp *MockProvider) GetClusterByID(ctx context.Context, id string, params AwsParams) (*emr.Cluster, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	c, ok := mp.clusters[id]
	if !ok {
		return nil, nil
	}
	return &emr.Cluster{
		Id:   aws.String(c.id),
		Name: aws.String(c.name),
		Status: &emr.ClusterStatus{
			State: aws.String(c.status.State),
		},
		Tags: c.definition.GetTags(),
	}, nil
}

// AddStep records the step on the active cluster named clusterName
func (mp *MockProvider) AddStep(ctx context.Context, clusterName string, stepConfig *emr.StepConfig, params AwsParams) (string, error) {
	summary, err := mp.GetActiveClusterByName(ctx, clusterName, params)
	if err != nil {
		return "", err
	}
	if summary == nil {
		return "", noActiveClusterError(clusterName)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	c := mp.clusters[summary.ID]
	stepID := "s-" + strings.ToUpper(strings.Replace(uuid.New().String(), "-", "", -1))[:13]
	c.steps[stepID] = stepConfig
	c.stepOrder = append(c.stepOrder, stepID)
	return stepID, nil
}

// GetStepState reports the configured state of a step
func (mp *MockProvider) GetStepState(ctx context.Context, clusterID, stepID string, params AwsParams) (string, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	c, ok := mp.clusters[clusterID]
	if !ok {
		return "", errors.New("Cluster " + clusterID + " does not exist")
	}
	step, ok := c.steps[stepID]
	if !ok {
		return "", errors.New("Step " + stepID + " does not exist")
	}
	if state, ok := mp.StepStates[aws.StringValue(step.Name)]; ok {
		return state, nil
	}
	return StepCompleted, nil
}

// TerminateCluster marks the cluster as terminated
func (mp *MockProvider) TerminateCluster(ctx context.Context, id string, params AwsParams) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	c, ok := mp.clusters[id]
	if !ok {
		return errors.New("Cluster " + id + " does not exist")
	}
	c.status = ClusterStatus{State: StateTerminated}
	return nil
}

// SetClusterStatus overrides the status of a cluster
func (mp *MockProvider) SetClusterStatus(id string, status ClusterStatus) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if c, ok := mp.clusters[id]; ok {
		c.status = status
	}
}

// Steps returns the steps added to a cluster in submission order
func (mp *MockProvider) Steps(id string) []*emr.StepConfig {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	c, ok := mp.clusters[id]
	if !ok {
		return nil
	}
	res := make([]*emr.StepConfig, len(c.stepOrder))
	for i, stepID := range c.stepOrder {
		res[i] = c.steps[stepID]
	}
	return res
}
