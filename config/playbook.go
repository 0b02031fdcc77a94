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

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/snowplow/dm-runner/cluster"
	"github.com/snowplow/dm-runner/steps"
)

// PlaybookRecord is the data component of a playbook. Field names follow
// the Avro schema of the playbook record.
type PlaybookRecord struct {
	Region      string
	Credentials *cluster.CredentialsRecord
	Steps       []*StepRecord
}

// StepRecord describes a step of any kind; only the fields relevant to
// its type are read
type StepRecord struct {
	Type                        string
	Name                        string
	ContinueOnError             bool
	ScriptLocation              string
	ScriptArguments             []string
	WorkflowXmlLocation         string
	OoziePropertiesFileLocation string
	JarLocation                 string
	MainClass                   string
}

// StepBuilder builds a step of one kind out of its record
type StepBuilder func(base steps.StepBase, record *StepRecord) steps.Step

// Playbook is a parsed playbook
type Playbook struct {
	Region      string
	Credentials *cluster.CredentialsRecord
	Steps       []steps.Step
}

// AwsParams returns the AWS parameters the playbook carries
func (p Playbook) AwsParams() cluster.AwsParams {
	params := cluster.AwsParams{Region: p.Region}
	if p.Credentials != nil {
		params.AccessKeyID = p.Credentials.AccessKeyId
		params.SecretAccessKey = p.Credentials.SecretAccessKey
	}
	return params
}

// Bind addresses every step to the cluster identified by key
func (p *Playbook) Bind(key cluster.ClusterKey) {
	for _, step := range p.Steps {
		base := step.Base()
		base.Namespace = key.Namespace
		base.ClusterDefinitionName = key.ClusterDefinitionName
		base.ClusterName = key.ClusterName
	}
}

// RegisterStepBuilder makes the Resolver able to build steps of another kind
func (r *Resolver) RegisterStepBuilder(kind steps.Kind, builder StepBuilder) {
	r.builders[kind] = builder
}

func (r Resolver) toPlaybook(record *PlaybookRecord) (*Playbook, error) {
	playbook := &Playbook{
		Region:      record.Region,
		Credentials: record.Credentials,
		Steps:       make([]steps.Step, 0, len(record.Steps)),
	}

	for i, stepRecord := range record.Steps {
		kind := steps.Kind(strings.TrimSpace(stepRecord.Type))
		if kind == "" {
			return nil, errors.New("A type must be specified for step " + strconv.Itoa(i+1))
		}
		if strings.TrimSpace(stepRecord.Name) == "" {
			return nil, errors.New("A name must be specified for step " + strconv.Itoa(i+1))
		}

		builder, ok := r.builders[kind]
		if !ok {
			return nil, steps.UnsupportedStepKindError(fmt.Sprintf("Unsupported EMR step kind \"%s\".", kind))
		}
		base := steps.StepBase{StepName: stepRecord.Name, ContinueOnError: stepRecord.ContinueOnError}
		playbook.Steps = append(playbook.Steps, builder(base, stepRecord))
	}

	return playbook, nil
}

func defaultStepBuilders() map[steps.Kind]StepBuilder {
	return map[steps.Kind]StepBuilder{
		steps.KindShell: func(base steps.StepBase, r *StepRecord) steps.Step {
			return &steps.ShellStep{StepBase: base, ScriptLocation: r.ScriptLocation, ScriptArguments: r.ScriptArguments}
		},
		steps.KindHive: func(base steps.StepBase, r *StepRecord) steps.Step {
			return &steps.HiveStep{StepBase: base, ScriptLocation: r.ScriptLocation, ScriptArguments: r.ScriptArguments}
		},
		steps.KindPig: func(base steps.StepBase, r *StepRecord) steps.Step {
			return &steps.PigStep{StepBase: base, ScriptLocation: r.ScriptLocation, ScriptArguments: r.ScriptArguments}
		},
		steps.KindOozie: func(base steps.StepBase, r *StepRecord) steps.Step {
			return &steps.OozieStep{
				StepBase:                    base,
				WorkflowXMLLocation:         r.WorkflowXmlLocation,
				OoziePropertiesFileLocation: r.OoziePropertiesFileLocation,
			}
		},
		steps.KindHadoopJar: func(base steps.StepBase, r *StepRecord) steps.Step {
			return &steps.HadoopJarStep{
				StepBase:        base,
				JarLocation:     r.JarLocation,
				MainClass:       r.MainClass,
				ScriptArguments: r.ScriptArguments,
			}
		},
	}
}
