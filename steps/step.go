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

// Package steps models the EMR step kinds that can be added to a running
// cluster and renders them into jobflow step configurations.
package steps

// Kind identifies the type of an EMR step
type Kind string

// Supported step kinds
const (
	KindShell     Kind = "shell"
	KindHive      Kind = "hive"
	KindPig       Kind = "pig"
	KindOozie     Kind = "oozie"
	KindHadoopJar Kind = "hadoopJar"
)

// Step is implemented by every step kind
type Step interface {
	Kind() Kind
	Base() *StepBase
}

// StepBase holds the attributes shared by all step kinds
type StepBase struct {
	Namespace             string
	ClusterDefinitionName string
	ClusterName           string
	StepName              string
	ContinueOnError       bool
}

// Base returns the shared attributes of the step
func (b *StepBase) Base() *StepBase {
	return b
}

// ShellStep runs a shell script through the script runner
type ShellStep struct {
	StepBase
	ScriptLocation  string
	ScriptArguments []string
}

// Kind returns KindShell
func (s *ShellStep) Kind() Kind { return KindShell }

// HiveStep runs a Hive script
type HiveStep struct {
	StepBase
	ScriptLocation  string
	ScriptArguments []string
}

// Kind returns KindHive
func (s *HiveStep) Kind() Kind { return KindHive }

// PigStep runs a Pig script
type PigStep struct {
	StepBase
	ScriptLocation  string
	ScriptArguments []string
}

// Kind returns KindPig
func (s *PigStep) Kind() Kind { return KindPig }

// OozieStep submits an Oozie workflow
type OozieStep struct {
	StepBase
	WorkflowXMLLocation         string
	OoziePropertiesFileLocation string
}

// Kind returns KindOozie
func (s *OozieStep) Kind() Kind { return KindOozie }

// HadoopJarStep runs a custom jar
type HadoopJarStep struct {
	StepBase
	JarLocation     string
	MainClass       string
	ScriptArguments []string
}

// Kind returns KindHadoopJar
func (s *HadoopJarStep) Kind() Kind { return KindHadoopJar }
