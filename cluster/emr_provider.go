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
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/aws/aws-sdk-go/service/emr/emriface"
	"github.com/hashicorp/errwrap"
	log "github.com/sirupsen/logrus"
	retry "github.com/snowplow-devops/go-retry"
)

const describeAttempts = 3

var describeSleep = time.Second * 2

// EmrProvider is the Provider backed by the EMR API
type EmrProvider struct {
	ClientFactory func(params AwsParams) (emriface.EMRAPI, error)
}

// InitEmrProvider creates a new EmrProvider building a fresh client per call
func InitEmrProvider() *EmrProvider {
	return &EmrProvider{ClientFactory: NewEmrClient}
}

// NewEmrClient builds an EMR client from the AWS parameters
func NewEmrClient(params AwsParams) (emriface.EMRAPI, error) {
	sess, err := NewSession(params)
	if err != nil {
		return nil, err
	}
	return emr.New(sess), nil
}

// CreateCluster launches a cluster named name from the definition
func (ep EmrProvider) CreateCluster(ctx context.Context, name string, definition *Definition, params AwsParams) (string, error) {
	if definition == nil {
		return "", errors.New("An EMR cluster definition must be specified")
	}

	input, err := definition.GetJobFlowInput()
	if err != nil {
		return "", err
	}
	input.Name = aws.String(name)

	svc, err := ep.ClientFactory(params)
	if err != nil {
		return "", err
	}

	resp, err := svc.RunJobFlowWithContext(ctx, input)
	if err != nil {
		return "", errwrap.Wrapf("Couldn't launch EMR cluster: {{err}}", err)
	}

	log.Info("Launching EMR cluster with name '" + name + "' and jobflow id '" + *resp.JobFlowId + "'...")
	return *resp.JobFlowId, nil
}

// GetActiveClusterByName returns the active cluster whose name matches,
// case-insensitively, or nil
func (ep EmrProvider) GetActiveClusterByName(ctx context.Context, name string, params AwsParams) (*ClusterSummary, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	svc, err := ep.ClientFactory(params)
	if err != nil {
		return nil, err
	}

	input := &emr.ListClustersInput{ClusterStates: aws.StringSlice(ActiveStates)}

	var summary *ClusterSummary
	err = retryTransient("ListClusters", func() error {
		summary = nil
		return svc.ListClustersPagesWithContext(ctx, input, func(page *emr.ListClustersOutput, lastPage bool) bool {
			for _, c := range page.Clusters {
				if strings.EqualFold(aws.StringValue(c.Name), name) {
					summary = &ClusterSummary{
						ID:    aws.StringValue(c.Id),
						Name:  aws.StringValue(c.Name),
						State: clusterState(c.Status),
					}
					return false
				}
			}
			return true
		})
	})
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't list EMR clusters: {{err}}", err)
	}

	return summary, nil
}

// GetClusterStatusByID returns the status of the cluster, or nil for a blank
// or unknown id
func (ep EmrProvider) GetClusterStatusByID(ctx context.Context, id string, params AwsParams) (*ClusterStatus, error) {
	cluster, err := ep.GetClusterByID(ctx, id, params)
	if err != nil || cluster == nil || cluster.Status == nil {
		return nil, err
	}

	status := &ClusterStatus{State: aws.StringValue(cluster.Status.State)}
	if reason := cluster.Status.StateChangeReason; reason != nil {
		status.StateReasonCode = aws.StringValue(reason.Code)
		status.StateReason = aws.StringValue(reason.Message)
	}
	return status, nil
}

// GetClusterByID describes the cluster, or returns nil for a blank or
// unknown id
func (ep EmrProvider) GetClusterByID(ctx context.Context, id string, params AwsParams) (*emr.Cluster, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}

	svc, err := ep.ClientFactory(params)
	if err != nil {
		return nil, err
	}

	var resp *emr.DescribeClusterOutput
	err = retryTransient("DescribeCluster", func() error {
		var err error
		resp, err = svc.DescribeClusterWithContext(ctx, &emr.DescribeClusterInput{ClusterId: aws.String(id)})
		return err
	})
	if isInvalidRequest(err) {
		log.Debug("EMR cluster with jobflow id '" + id + "' is unknown: " + err.Error())
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't describe EMR cluster: {{err}}", err)
	}

	return resp.Cluster, nil
}

// AddStep adds the step to the active cluster named clusterName
func (ep EmrProvider) AddStep(ctx context.Context, clusterName string, stepConfig *emr.StepConfig, params AwsParams) (string, error) {
	summary, err := ep.GetActiveClusterByName(ctx, clusterName, params)
	if err != nil {
		return "", err
	}
	if summary == nil {
		return "", noActiveClusterError(clusterName)
	}

	svc, err := ep.ClientFactory(params)
	if err != nil {
		return "", err
	}

	resp, err := svc.AddJobFlowStepsWithContext(ctx, &emr.AddJobFlowStepsInput{
		JobFlowId: aws.String(summary.ID),
		Steps:     []*emr.StepConfig{stepConfig},
	})
	if err != nil {
		return "", errwrap.Wrapf("Couldn't add EMR step: {{err}}", err)
	}
	if len(resp.StepIds) != 1 {
		return "", errors.New("EMR did not return an id for the added step")
	}

	log.Info("Added step '" + aws.StringValue(stepConfig.Name) + "' to the EMR cluster with jobflow id '" + summary.ID + "'")
	return *resp.StepIds[0], nil
}

// GetStepState returns the state of a step
func (ep EmrProvider) GetStepState(ctx context.Context, clusterID, stepID string, params AwsParams) (string, error) {
	svc, err := ep.ClientFactory(params)
	if err != nil {
		return "", err
	}

	resp, err := svc.DescribeStepWithContext(ctx, &emr.DescribeStepInput{
		ClusterId: aws.String(clusterID),
		StepId:    aws.String(stepID),
	})
	if err != nil {
		return "", errwrap.Wrapf("Couldn't describe EMR step: {{err}}", err)
	}
	if resp.Step == nil || resp.Step.Status == nil {
		return "", errors.New("EMR returned no status for step " + stepID)
	}

	return aws.StringValue(resp.Step.Status.State), nil
}

// TerminateCluster attempts to terminate a running cluster
func (ep EmrProvider) TerminateCluster(ctx context.Context, id string, params AwsParams) error {
	svc, err := ep.ClientFactory(params)
	if err != nil {
		return err
	}

	_, err = svc.TerminateJobFlowsWithContext(ctx, &emr.TerminateJobFlowsInput{
		JobFlowIds: []*string{aws.String(id)},
	})
	if err != nil {
		return errwrap.Wrapf("Couldn't terminate EMR cluster: {{err}}", err)
	}

	log.Info("Terminating EMR cluster with jobflow id '" + id + "'...")
	return nil
}

func clusterState(status *emr.ClusterStatus) string {
	if status == nil {
		return ""
	}
	return aws.StringValue(status.State)
}

// retryTransient retries f while it fails with throttling or transient AWS
// errors; any other error is returned as is
func retryTransient(name string, f func() error) error {
	var permanent error
	err := retry.Exponential(describeAttempts, describeSleep, name, func() error {
		err := f()
		if err != nil && !isTransient(err) {
			permanent = err
			return nil
		}
		return err
	})
	if permanent != nil {
		return permanent
	}
	return err
}

func isTransient(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	return request.IsErrorThrottle(aerr) || request.IsErrorRetryable(aerr)
}

// isInvalidRequest is how EMR rejects an unknown jobflow id
func isInvalidRequest(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && aerr.Code() == emr.ErrCodeInvalidRequestException
}
