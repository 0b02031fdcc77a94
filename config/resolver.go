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

// Package config resolves the templated cluster definitions and playbooks
// given on the command line, and the named configuration values used by
// the runner.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"text/template"
	"time"

	"github.com/elodina/go-avro"
	"github.com/hashicorp/errwrap"

	"github.com/snowplow/dm-runner/cluster"
	"github.com/snowplow/dm-runner/steps"
)

var (
	//go:embed schemas/cluster.avsc
	clusterSchemaRaw string

	//go:embed schemas/playbook.avsc
	playbookSchemaRaw string

	templFuncs = template.FuncMap{
		"nowWithFormat": func(format string) string {
			return time.Now().Format(format)
		},
		"systemEnv": func(env string) string {
			return os.Getenv(env)
		},
	}
)

// SelfDescribingRecord is a record along with the schema it claims to follow
type SelfDescribingRecord struct {
	Schema string
	Data   interface{}
}

// GetDataByteArray returns the data component as JSON
func (sdr SelfDescribingRecord) GetDataByteArray() []byte {
	return []byte(InterfaceToJSONString(sdr.Data, false))
}

// Resolver parses cluster definitions and playbooks
type Resolver struct {
	ClusterSchema  avro.Schema
	PlaybookSchema avro.Schema

	builders map[steps.Kind]StepBuilder
}

// InitResolver creates a new Resolver which knows how to build the five
// built-in step kinds
func InitResolver() (*Resolver, error) {
	clusterSchema, err := avro.ParseSchema(clusterSchemaRaw)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't parse cluster definition schema: {{err}}", err)
	}
	playbookSchema, err := avro.ParseSchema(playbookSchemaRaw)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't parse playbook schema: {{err}}", err)
	}

	return &Resolver{
		ClusterSchema:  clusterSchema,
		PlaybookSchema: playbookSchema,
		builders:       defaultStepBuilders(),
	}, nil
}

// --- Cluster definitions

// ParseClusterDefinitionFromFile parses the templated cluster definition at filePath
func (r Resolver) ParseClusterDefinitionFromFile(filePath string, variables map[string]interface{}) (*cluster.Definition, error) {
	jsonBytes, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return r.ParseClusterDefinition(jsonBytes, variables)
}

// ParseClusterDefinition parses a templated cluster definition
func (r Resolver) ParseClusterDefinition(jsonBytes []byte, variables map[string]interface{}) (*cluster.Definition, error) {
	sdr, err := toSelfDescribingRecord(jsonBytes, variables)
	if err != nil {
		return nil, err
	}

	recordJSON := new(cluster.Definition)
	if err := json.Unmarshal(sdr.GetDataByteArray(), recordJSON); err != nil {
		return nil, err
	}
	if recordJSON.Ec2 == nil || recordJSON.Ec2.Instances == nil {
		return nil, errors.New("EC2 instances must be specified")
	}
	fillDefinition(recordJSON)

	decoded := new(cluster.Definition)
	if err := parseRecordAsAvro(r.ClusterSchema, recordJSON, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// fillDefinition replaces absent nested records with empty ones, the Avro
// writer has no notion of an absent record
func fillDefinition(d *cluster.Definition) {
	if d.Credentials == nil {
		d.Credentials = &cluster.CredentialsRecord{}
	}
	if d.Roles == nil {
		d.Roles = &cluster.RolesRecord{}
	}
	if d.Ec2.Location == nil {
		d.Ec2.Location = &cluster.LocationRecord{}
	}
	instances := d.Ec2.Instances
	if instances.Master == nil {
		instances.Master = &cluster.InstanceRecord{}
	}
	if instances.Core == nil {
		instances.Core = &cluster.InstanceRecord{}
	}
	if instances.Task == nil {
		instances.Task = &cluster.InstanceRecord{}
	}
}

// --- Playbooks

// ParsePlaybookFromFile parses the templated playbook at filePath
func (r Resolver) ParsePlaybookFromFile(filePath string, variables map[string]interface{}) (*Playbook, error) {
	jsonBytes, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return r.ParsePlaybook(jsonBytes, variables)
}

// ParsePlaybook parses a templated playbook and builds its steps
func (r Resolver) ParsePlaybook(jsonBytes []byte, variables map[string]interface{}) (*Playbook, error) {
	sdr, err := toSelfDescribingRecord(jsonBytes, variables)
	if err != nil {
		return nil, err
	}

	recordJSON := new(PlaybookRecord)
	if err := json.Unmarshal(sdr.GetDataByteArray(), recordJSON); err != nil {
		return nil, err
	}
	if recordJSON.Credentials == nil {
		recordJSON.Credentials = &cluster.CredentialsRecord{}
	}
	for _, step := range recordJSON.Steps {
		if step == nil {
			return nil, errors.New("A step must be specified")
		}
	}

	decoded := new(PlaybookRecord)
	if err := parseRecordAsAvro(r.PlaybookSchema, recordJSON, decoded); err != nil {
		return nil, err
	}
	return r.toPlaybook(decoded)
}

// --- Static

// parseRecordAsAvro writes the unmarshalled record with an Avro writer and
// decodes it again to make sure it conforms to the schema
func parseRecordAsAvro(schema avro.Schema, recordJSON interface{}, decodedRecord interface{}) error {
	writer := avro.NewSpecificDatumWriter()
	writer.SetSchema(schema)

	buffer := new(bytes.Buffer)
	encoder := avro.NewBinaryEncoder(buffer)
	if err := writer.Write(recordJSON, encoder); err != nil {
		return errwrap.Wrapf("Record does not match its schema: {{err}}", err)
	}

	reader := avro.NewSpecificDatumReader()
	reader.SetSchema(schema)

	decoder := avro.NewBinaryDecoder(buffer.Bytes())
	return reader.Read(decodedRecord, decoder)
}

// toSelfDescribingRecord runs the raw bytes through the templater and
// unmarshals them
func toSelfDescribingRecord(jsonBytes []byte, variables map[string]interface{}) (*SelfDescribingRecord, error) {
	templateBytes, err := templateRawBytes(jsonBytes, variables)
	if err != nil {
		return nil, err
	}

	record := new(SelfDescribingRecord)
	if err := json.Unmarshal(templateBytes, record); err != nil {
		return nil, err
	}
	if record.Data == nil {
		return nil, errors.New("Record has no data component")
	}
	return record, nil
}

// templateRawBytes runs the raw config through the golang templater
func templateRawBytes(rawBytes []byte, variables map[string]interface{}) ([]byte, error) {
	t, err := template.New("config").Funcs(templFuncs).Parse(string(rawBytes))
	if err != nil {
		return nil, err
	}

	var filled bytes.Buffer
	if err := t.Execute(&filled, variables); err != nil {
		return nil, err
	}
	return filled.Bytes(), nil
}

// InterfaceToJSONString writes an interface as a JSON
func InterfaceToJSONString(m interface{}, pretty bool) string {
	var b []byte
	var err error

	if pretty {
		b, err = json.MarshalIndent(m, "", "  ")
	} else {
		b, err = json.Marshal(m)
	}

	if err == nil {
		return string(b)
	}
	return "{}"
}
