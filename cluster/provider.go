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

// Package cluster launches EMR clusters, adds steps to them and queries
// their state.
package cluster

import (
	"context"

	"github.com/aws/aws-sdk-go/service/emr"
)

// Cluster states as reported by EMR
const (
	StateStarting             = "STARTING"
	StateBootstrapping        = "BOOTSTRAPPING"
	StateRunning              = "RUNNING"
	StateWaiting              = "WAITING"
	StateTerminating          = "TERMINATING"
	StateTerminated           = "TERMINATED"
	StateTerminatedWithErrors = "TERMINATED_WITH_ERRORS"

	ReasonBootstrapFailure = "BOOTSTRAP_FAILURE"
)

// Step states as reported by EMR
const (
	StepPending     = "PENDING"
	StepRunning     = "RUNNING"
	StepCompleted   = "COMPLETED"
	StepCancelled   = "CANCELLED"
	StepFailed      = "FAILED"
	StepInterrupted = "INTERRUPTED"
)

// ActiveStates are the states in which a cluster accepts steps
var ActiveStates = []string{StateStarting, StateBootstrapping, StateRunning, StateWaiting}

// AwsParams holds what is needed to build an AWS client
type AwsParams struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	HTTPProxyHost   string
	HTTPProxyPort   int
}

// ClusterSummary is the summary view of a cluster
type ClusterSummary struct {
	ID    string
	Name  string
	State string
}

// ClusterStatus is the current status of a cluster
type ClusterStatus struct {
	State           string
	StateReasonCode string
	StateReason     string
}

// Provider is the contract of the cluster management API. Lookups of
// blank or unknown identifiers return nil without an error.
type Provider interface {
	CreateCluster(ctx context.Context, name string, definition *Definition, params AwsParams) (string, error)
	GetActiveClusterByName(ctx context.Context, name string, params AwsParams) (*ClusterSummary, error)
	GetClusterStatusByID(ctx context.Context, id string, params AwsParams) (*ClusterStatus, error)
	GetClusterByID(ctx context.Context, id string, params AwsParams) (*emr.Cluster, error)
	AddStep(ctx context.Context, clusterName string, stepConfig *emr.StepConfig, params AwsParams) (string, error)
	GetStepState(ctx context.Context, clusterID, stepID string, params AwsParams) (string, error)
	TerminateCluster(ctx context.Context, id string, params AwsParams) error
}

// noActiveClusterError is returned when adding a step to a cluster name
// which has no active cluster
func noActiveClusterError(name string) error {
	return NoActiveClusterError("No active EMR cluster with name \"" + name + "\" found.")
}

// NoActiveClusterError is returned when a step targets a cluster which is not running
type NoActiveClusterError string

func (n NoActiveClusterError) Error() string { return string(n) }
