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
	"errors"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/emr"
)

// Definition describes how an EMR cluster is launched. Field names follow
// the Avro schema of the cluster definition record.
type Definition struct {
	Name                   string
	LogUri                 string
	Region                 string
	Credentials            *CredentialsRecord
	Roles                  *RolesRecord
	Ec2                    *Ec2Record
	NodeTags               []*NodeTagRecord
	BootstrapActionConfigs []*BootstrapActionRecord
	Configurations         []*ConfigurationRecord
	Applications           []string
}

// CredentialsRecord holds the AWS keys, or 'iam'/'env' markers
type CredentialsRecord struct {
	AccessKeyId     string
	SecretAccessKey string
}

// RolesRecord holds the IAM roles of the cluster
type RolesRecord struct {
	Jobflow string
	Service string
}

// Ec2Record describes the EC2 side of the cluster
type Ec2Record struct {
	AmiVersion string
	KeyName    string
	Location   *LocationRecord
	Instances  *InstancesRecord
}

// LocationRecord places the cluster either in a subnet or in an availability zone
type LocationRecord struct {
	SubnetId         string
	AvailabilityZone string
}

// InstancesRecord describes the instance groups
type InstancesRecord struct {
	Master *InstanceRecord
	Core   *InstanceRecord
	Task   *InstanceRecord
}

// InstanceRecord describes a single instance group
type InstanceRecord struct {
	Type  string
	Count int64
	Bid   string
}

// NodeTagRecord is an EC2 tag; either side may be blank
type NodeTagRecord struct {
	TagName  string
	TagValue string
}

// BootstrapActionRecord is a named bootstrap script
type BootstrapActionRecord struct {
	Name string
	Path string
	Args []string
}

// ConfigurationRecord is an EMR application configuration
type ConfigurationRecord struct {
	Classification string
	Properties     map[string]string
}

// AwsParams returns the AWS parameters the definition carries
func (d Definition) AwsParams() AwsParams {
	params := AwsParams{Region: d.Region}
	if d.Credentials != nil {
		params.AccessKeyID = d.Credentials.AccessKeyId
		params.SecretAccessKey = d.Credentials.SecretAccessKey
	}
	return params
}

// --- Parameter builders

// allowedApps are the applications a cluster may install
var allowedApps = []string{"Hadoop", "Hive", "Mahout", "Pig", "Spark", "Oozie"}

// GetJobFlowInput returns a RunJobFlowInput which can launch an EMR cluster
func (d Definition) GetJobFlowInput() (*emr.RunJobFlowInput, error) {
	if d.Ec2 == nil || d.Ec2.Instances == nil {
		return nil, errors.New("EC2 instances must be specified")
	}

	subnet, zone, err := d.GetLocation()
	if err != nil {
		return nil, err
	}
	applications, err := d.GetApplications()
	if err != nil {
		return nil, err
	}
	major, err := d.GetAmiVersionMajor()
	if err != nil {
		return nil, err
	}

	instances := &emr.JobFlowInstancesConfig{
		Ec2KeyName:                  aws.String(d.Ec2.KeyName),
		InstanceGroups:              d.GetInstanceGroups(),
		KeepJobFlowAliveWhenNoSteps: aws.Bool(true),
	}
	if subnet != "" {
		instances.Ec2SubnetId = aws.String(subnet)
	} else {
		instances.Placement = &emr.PlacementType{AvailabilityZone: aws.String(zone)}
	}

	input := &emr.RunJobFlowInput{
		Name:              aws.String(d.Name),
		LogUri:            aws.String(d.LogUri),
		Instances:         instances,
		Applications:      applications,
		Tags:              d.GetTags(),
		BootstrapActions:  d.GetBootstrapActions(),
		Configurations:    d.GetConfigurations(),
		VisibleToAllUsers: aws.Bool(true),
	}
	if d.Roles != nil {
		input.JobFlowRole = aws.String(d.Roles.Jobflow)
		input.ServiceRole = aws.String(d.Roles.Service)
	}

	// releases before 4.x are addressed by AMI version
	if major < 4 {
		input.AmiVersion = aws.String(d.Ec2.AmiVersion)
	} else {
		input.ReleaseLabel = aws.String("emr-" + d.Ec2.AmiVersion)
	}
	return input, nil
}

// GetLocation returns the subnet or the availability zone the cluster is
// placed in; exactly one of them is set
func (d Definition) GetLocation() (subnet string, zone string, err error) {
	var loc LocationRecord
	if d.Ec2.Location != nil {
		loc = *d.Ec2.Location
	}

	switch {
	case loc.SubnetId != "" && loc.AvailabilityZone != "":
		return "", "", errors.New("Only one of Availability Zone and Subnet id should be provided")
	case loc.SubnetId == "" && loc.AvailabilityZone == "":
		return "", "", errors.New("At least one of Availability Zone and Subnet id is required")
	}
	return loc.SubnetId, loc.AvailabilityZone, nil
}

// GetInstanceGroups builds the instance groups. The master group is always
// there while the core and task groups only appear with a positive count.
func (d Definition) GetInstanceGroups() []*emr.InstanceGroupConfig {
	master, core, task := orEmpty(d.Ec2.Instances.Master), orEmpty(d.Ec2.Instances.Core), orEmpty(d.Ec2.Instances.Task)

	groups := []*emr.InstanceGroupConfig{instanceGroup("MASTER", master.Type, 1)}
	if core.Count > 0 {
		groups = append(groups, instanceGroup("CORE", core.Type, core.Count))
	}
	if task.Count > 0 {
		group := instanceGroup("TASK", task.Type, task.Count)
		// a bid price makes the task group SPOT
		if task.Bid != "" {
			group.BidPrice = aws.String(task.Bid)
			group.Market = aws.String("SPOT")
		}
		groups = append(groups, group)
	}
	return groups
}

func instanceGroup(role, instanceType string, count int64) *emr.InstanceGroupConfig {
	return &emr.InstanceGroupConfig{
		InstanceCount: aws.Int64(count),
		InstanceRole:  aws.String(role),
		InstanceType:  aws.String(instanceType),
	}
}

func orEmpty(instance *InstanceRecord) *InstanceRecord {
	if instance == nil {
		return &InstanceRecord{}
	}
	return instance
}

// GetAmiVersionMajor returns the major AmiVersion
func (d Definition) GetAmiVersionMajor() (int, error) {
	if d.Ec2.AmiVersion == "" {
		return 0, errors.New("An AMI version must be specified")
	}
	return strconv.Atoi(strings.SplitN(d.Ec2.AmiVersion, ".", 2)[0])
}

// GetTags builds the tags. Tags missing a name or a value are passed
// through as they are.
func (d Definition) GetTags() []*emr.Tag {
	var tags []*emr.Tag
	for _, tag := range d.NodeTags {
		tags = append(tags, &emr.Tag{Key: aws.String(tag.TagName), Value: aws.String(tag.TagValue)})
	}
	return tags
}

// GetBootstrapActions builds the bootstrap actions
func (d Definition) GetBootstrapActions() []*emr.BootstrapActionConfig {
	var actions []*emr.BootstrapActionConfig
	for _, action := range d.BootstrapActionConfigs {
		actions = append(actions, &emr.BootstrapActionConfig{
			Name: aws.String(action.Name),
			ScriptBootstrapAction: &emr.ScriptBootstrapActionConfig{
				Path: aws.String(action.Path),
				Args: aws.StringSlice(action.Args),
			},
		})
	}
	return actions
}

// GetConfigurations builds the application configurations
func (d Definition) GetConfigurations() []*emr.Configuration {
	var configurations []*emr.Configuration
	for _, c := range d.Configurations {
		configurations = append(configurations, &emr.Configuration{
			Classification: aws.String(c.Classification),
			Properties:     aws.StringMap(c.Properties),
		})
	}
	return configurations
}

// GetApplications builds the applications, rejecting any outside of
// allowedApps
func (d Definition) GetApplications() ([]*emr.Application, error) {
	var applications []*emr.Application
	for _, name := range d.Applications {
		if !contains(allowedApps, name) {
			return nil, errors.New("Only " + strings.Join(allowedApps, ", ") + " are allowed applications")
		}
		applications = append(applications, &emr.Application{Name: aws.String(name)})
	}
	return applications, nil
}
