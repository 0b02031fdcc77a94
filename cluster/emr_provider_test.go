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
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/aws/aws-sdk-go/service/emr/emriface"
	"github.com/stretchr/testify/assert"
)

type mockEMRAPI struct {
	emriface.EMRAPI

	clusters    []*emr.ClusterSummary
	listFails   int
	listCalls   int
	stepIDs     []*string
	addedSteps  []*emr.AddJobFlowStepsInput
	terminated  []string
	stepState   string
	describeErr error

	listErr       error
	describeCalls int
}

func (m *mockEMRAPI) RunJobFlowWithContext(ctx aws.Context, input *emr.RunJobFlowInput, opts ...request.Option) (*emr.RunJobFlowOutput, error) {
	if aws.StringValue(input.Name) == "fail" {
		return nil, errors.New("RunJobFlow failed")
	}
	return &emr.RunJobFlowOutput{JobFlowId: aws.String("j-123")}, nil
}

func (m *mockEMRAPI) ListClustersPagesWithContext(ctx aws.Context, input *emr.ListClustersInput, fn func(*emr.ListClustersOutput, bool) bool, opts ...request.Option) error {
	m.listCalls++
	if m.listErr != nil {
		return m.listErr
	}
	if m.listCalls <= m.listFails {
		return awserr.New("ThrottlingException", "ListClusters failed", nil)
	}
	for i, c := range m.clusters {
		if !fn(&emr.ListClustersOutput{Clusters: []*emr.ClusterSummary{c}}, i == len(m.clusters)-1) {
			break
		}
	}
	return nil
}

func (m *mockEMRAPI) DescribeClusterWithContext(ctx aws.Context, input *emr.DescribeClusterInput, opts ...request.Option) (*emr.DescribeClusterOutput, error) {
	m.describeCalls++
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return &emr.DescribeClusterOutput{Cluster: &emr.Cluster{
		Id: input.ClusterId,
		Status: &emr.ClusterStatus{
			State: aws.String(StateTerminatedWithErrors),
			StateChangeReason: &emr.ClusterStateChangeReason{
				Code:    aws.String(ReasonBootstrapFailure),
				Message: aws.String("bootstrap action 1 failed"),
			},
		},
	}}, nil
}

func (m *mockEMRAPI) AddJobFlowStepsWithContext(ctx aws.Context, input *emr.AddJobFlowStepsInput, opts ...request.Option) (*emr.AddJobFlowStepsOutput, error) {
	m.addedSteps = append(m.addedSteps, input)
	return &emr.AddJobFlowStepsOutput{StepIds: m.stepIDs}, nil
}

func (m *mockEMRAPI) DescribeStepWithContext(ctx aws.Context, input *emr.DescribeStepInput, opts ...request.Option) (*emr.DescribeStepOutput, error) {
	return &emr.DescribeStepOutput{Step: &emr.Step{Status: &emr.StepStatus{State: aws.String(m.stepState)}}}, nil
}

func (m *mockEMRAPI) TerminateJobFlowsWithContext(ctx aws.Context, input *emr.TerminateJobFlowsInput, opts ...request.Option) (*emr.TerminateJobFlowsOutput, error) {
	m.terminated = append(m.terminated, aws.StringValueSlice(input.JobFlowIds)...)
	return &emr.TerminateJobFlowsOutput{}, nil
}

func mockEmrProvider(api *mockEMRAPI) EmrProvider {
	describeSleep = time.Millisecond
	return EmrProvider{ClientFactory: func(params AwsParams) (emriface.EMRAPI, error) {
		return api, nil
	}}
}

func activeCluster(id, name, state string) *emr.ClusterSummary {
	return &emr.ClusterSummary{
		Id:     aws.String(id),
		Name:   aws.String(name),
		Status: &emr.ClusterStatus{State: aws.String(state)},
	}
}

func TestNewSession(t *testing.T) {
	assert := assert.New(t)

	sess, err := NewSession(AwsParams{AccessKeyID: "a", SecretAccessKey: "s", Region: "eu-west-1", HTTPProxyHost: "proxy", HTTPProxyPort: 3128})
	assert.Nil(err)
	assert.Equal("eu-west-1", aws.StringValue(sess.Config.Region))
	assert.NotNil(sess.Config.HTTPClient)

	_, err = NewSession(AwsParams{AccessKeyID: "iam", SecretAccessKey: "s"})
	assert.NotNil(err)
	assert.Equal("access-key and secret-key must both be set to 'iam', or neither", err.Error())
}

func TestEmrProvider_CreateCluster(t *testing.T) {
	assert := assert.New(t)
	ep := mockEmrProvider(&mockEMRAPI{})

	id, err := ep.CreateCluster(context.Background(), "ns.def.name", testDefinition(), AwsParams{})
	assert.Nil(err)
	assert.Equal("j-123", id)

	_, err = ep.CreateCluster(context.Background(), "fail", testDefinition(), AwsParams{})
	assert.NotNil(err)
	assert.Equal("Couldn't launch EMR cluster: RunJobFlow failed", err.Error())

	_, err = ep.CreateCluster(context.Background(), "ns.def.name", nil, AwsParams{})
	assert.NotNil(err)
	assert.Equal("An EMR cluster definition must be specified", err.Error())
}

func TestEmrProvider_GetActiveClusterByName(t *testing.T) {
	assert := assert.New(t)
	api := &mockEMRAPI{
		clusters: []*emr.ClusterSummary{
			activeCluster("j-1", "ns.def.other", StateRunning),
			activeCluster("j-2", "NS.Def.Name", StateWaiting),
		},
		listFails: 1,
	}
	ep := mockEmrProvider(api)

	// retried after the first failure, matched case-insensitively
	summary, err := ep.GetActiveClusterByName(context.Background(), "ns.def.name", AwsParams{})
	assert.Nil(err)
	assert.Equal(&ClusterSummary{ID: "j-2", Name: "NS.Def.Name", State: StateWaiting}, summary)
	assert.Equal(2, api.listCalls)

	summary, err = ep.GetActiveClusterByName(context.Background(), "ns.def.missing", AwsParams{})
	assert.Nil(err)
	assert.Nil(summary)

	// blank names are never looked up
	summary, err = ep.GetActiveClusterByName(context.Background(), " ", AwsParams{})
	assert.Nil(err)
	assert.Nil(summary)
	assert.Equal(3, api.listCalls)
}

func TestEmrProvider_GetActiveClusterByName_Fail(t *testing.T) {
	assert := assert.New(t)
	ep := mockEmrProvider(&mockEMRAPI{listFails: describeAttempts})

	summary, err := ep.GetActiveClusterByName(context.Background(), "ns.def.name", AwsParams{})
	assert.Nil(summary)
	assert.NotNil(err)
	assert.Contains(err.Error(), "Couldn't list EMR clusters: ")
	assert.Contains(err.Error(), "ListClusters failed")

	api := &mockEMRAPI{listErr: awserr.New("AccessDeniedException", "not authorized", nil)}
	summary, err = mockEmrProvider(api).GetActiveClusterByName(context.Background(), "ns.def.name", AwsParams{})
	assert.Nil(summary)
	assert.Equal("Couldn't list EMR clusters: AccessDeniedException: not authorized", err.Error())
	assert.Equal(1, api.listCalls)
}

func TestEmrProvider_GetClusterStatusByID(t *testing.T) {
	assert := assert.New(t)
	ep := mockEmrProvider(&mockEMRAPI{})

	status, err := ep.GetClusterStatusByID(context.Background(), "j-1", AwsParams{})
	assert.Nil(err)
	assert.Equal(&ClusterStatus{
		State:           StateTerminatedWithErrors,
		StateReasonCode: ReasonBootstrapFailure,
		StateReason:     "bootstrap action 1 failed",
	}, status)

	status, err = ep.GetClusterStatusByID(context.Background(), "", AwsParams{})
	assert.Nil(err)
	assert.Nil(status)

	// errors which can't go away are not retried
	api := &mockEMRAPI{describeErr: errors.New("DescribeCluster failed")}
	ep = mockEmrProvider(api)
	status, err = ep.GetClusterStatusByID(context.Background(), "j-1", AwsParams{})
	assert.Nil(status)
	assert.Equal("Couldn't describe EMR cluster: DescribeCluster failed", err.Error())
	assert.Equal(1, api.describeCalls)

	api = &mockEMRAPI{describeErr: awserr.New("ThrottlingException", "Rate exceeded", nil)}
	ep = mockEmrProvider(api)
	status, err = ep.GetClusterStatusByID(context.Background(), "j-1", AwsParams{})
	assert.Nil(status)
	assert.Contains(err.Error(), "Rate exceeded")
	assert.Equal(describeAttempts, api.describeCalls)
}

func TestEmrProvider_GetClusterByID_Unknown(t *testing.T) {
	assert := assert.New(t)
	api := &mockEMRAPI{describeErr: awserr.New(emr.ErrCodeInvalidRequestException, "Cluster id 'j-unknown' is not valid.", nil)}
	ep := mockEmrProvider(api)

	cluster, err := ep.GetClusterByID(context.Background(), "j-unknown", AwsParams{})
	assert.Nil(err)
	assert.Nil(cluster)
	assert.Equal(1, api.describeCalls)

	status, err := ep.GetClusterStatusByID(context.Background(), "j-unknown", AwsParams{})
	assert.Nil(err)
	assert.Nil(status)

	// same answer as the in-memory provider
	cluster, err = InitMockProvider().GetClusterByID(context.Background(), "j-unknown", AwsParams{})
	assert.Nil(err)
	assert.Nil(cluster)
}

func TestEmrProvider_AddStep(t *testing.T) {
	assert := assert.New(t)
	api := &mockEMRAPI{
		clusters: []*emr.ClusterSummary{activeCluster("j-2", "ns.def.name", StateWaiting)},
		stepIDs:  []*string{aws.String("s-1")},
	}
	ep := mockEmrProvider(api)
	stepConfig := &emr.StepConfig{Name: aws.String("step")}

	stepID, err := ep.AddStep(context.Background(), "ns.def.name", stepConfig, AwsParams{})
	assert.Nil(err)
	assert.Equal("s-1", stepID)
	assert.Equal(1, len(api.addedSteps))
	assert.Equal("j-2", *api.addedSteps[0].JobFlowId)
	assert.Equal(stepConfig, api.addedSteps[0].Steps[0])

	_, err = ep.AddStep(context.Background(), "ns.def.missing", stepConfig, AwsParams{})
	assert.NotNil(err)
	assert.Equal("No active EMR cluster with name \"ns.def.missing\" found.", err.Error())
	_, ok := err.(NoActiveClusterError)
	assert.True(ok)

	api.stepIDs = nil
	_, err = ep.AddStep(context.Background(), "ns.def.name", stepConfig, AwsParams{})
	assert.NotNil(err)
	assert.Equal("EMR did not return an id for the added step", err.Error())
}

func TestEmrProvider_StepStateAndTerminate(t *testing.T) {
	assert := assert.New(t)
	api := &mockEMRAPI{stepState: StepRunning}
	ep := mockEmrProvider(api)

	state, err := ep.GetStepState(context.Background(), "j-1", "s-1", AwsParams{})
	assert.Nil(err)
	assert.Equal(StepRunning, state)

	err = ep.TerminateCluster(context.Background(), "j-1", AwsParams{})
	assert.Nil(err)
	assert.Equal([]string{"j-1"}, api.terminated)
}
