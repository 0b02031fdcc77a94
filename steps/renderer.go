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

package steps

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/emr"
)

const (
	// DefaultScriptRunnerJar is the jar used to run arbitrary scripts on EMR
	DefaultScriptRunnerJar = "s3://elasticmapreduce/libs/script-runner/script-runner.jar"
	// CommandRunnerJar is available on every EMR 4.x+ node
	CommandRunnerJar = "command-runner.jar"

	actionContinue      = "CONTINUE"
	actionCancelAndWait = "CANCEL_AND_WAIT"
)

// Renderer turns a step of a given kind into an EMR step configuration
type Renderer interface {
	Kind() Kind
	Render(step Step) (*emr.StepConfig, error)
}

// RendererConfig holds the locations the renderers need beyond the step itself
type RendererConfig struct {
	ScriptRunnerJar string
	OozieRunScript  string
}

func (rc RendererConfig) scriptRunnerJar() string {
	if rc.ScriptRunnerJar == "" {
		return DefaultScriptRunnerJar
	}
	return rc.ScriptRunnerJar
}

// ShellRenderer renders ShellSteps
type ShellRenderer struct {
	Config RendererConfig
}

// Kind returns KindShell
func (r ShellRenderer) Kind() Kind { return KindShell }

// Render builds a script-runner step whose first argument is the script
func (r ShellRenderer) Render(step Step) (*emr.StepConfig, error) {
	s, ok := step.(*ShellStep)
	if !ok {
		return nil, kindMismatch(r.Kind(), step)
	}

	args := append([]string{s.ScriptLocation}, s.ScriptArguments...)
	return stepConfig(s.Base(), r.Config.scriptRunnerJar(), "", args), nil
}

// HiveRenderer renders HiveSteps
type HiveRenderer struct{}

// Kind returns KindHive
func (r HiveRenderer) Kind() Kind { return KindHive }

// Render builds a hive-script step
func (r HiveRenderer) Render(step Step) (*emr.StepConfig, error) {
	s, ok := step.(*HiveStep)
	if !ok {
		return nil, kindMismatch(r.Kind(), step)
	}

	args := append([]string{"hive-script", "--run-hive-script", "--args", "-f", s.ScriptLocation}, s.ScriptArguments...)
	return stepConfig(s.Base(), CommandRunnerJar, "", args), nil
}

// PigRenderer renders PigSteps
type PigRenderer struct{}

// Kind returns KindPig
func (r PigRenderer) Kind() Kind { return KindPig }

// Render builds a pig-script step
func (r PigRenderer) Render(step Step) (*emr.StepConfig, error) {
	s, ok := step.(*PigStep)
	if !ok {
		return nil, kindMismatch(r.Kind(), step)
	}

	args := append([]string{"pig-script", "--run-pig-script", "--args", "-f", s.ScriptLocation}, s.ScriptArguments...)
	return stepConfig(s.Base(), CommandRunnerJar, "", args), nil
}

// OozieRenderer renders OozieSteps. The workflow is submitted by a wrapper
// script which takes the workflow XML and the properties file as arguments.
type OozieRenderer struct {
	Config RendererConfig
}

// Kind returns KindOozie
func (r OozieRenderer) Kind() Kind { return KindOozie }

// Render builds a script-runner step around the oozie run script
func (r OozieRenderer) Render(step Step) (*emr.StepConfig, error) {
	s, ok := step.(*OozieStep)
	if !ok {
		return nil, kindMismatch(r.Kind(), step)
	}
	if r.Config.OozieRunScript == "" {
		return nil, errors.New("An Oozie run script must be configured")
	}

	args := []string{r.Config.OozieRunScript, s.WorkflowXMLLocation, s.OoziePropertiesFileLocation}
	return stepConfig(s.Base(), r.Config.scriptRunnerJar(), "", args), nil
}

// HadoopJarRenderer renders HadoopJarSteps
type HadoopJarRenderer struct{}

// Kind returns KindHadoopJar
func (r HadoopJarRenderer) Kind() Kind { return KindHadoopJar }

// Render builds a step running the jar directly
func (r HadoopJarRenderer) Render(step Step) (*emr.StepConfig, error) {
	s, ok := step.(*HadoopJarStep)
	if !ok {
		return nil, kindMismatch(r.Kind(), step)
	}

	return stepConfig(s.Base(), s.JarLocation, s.MainClass, s.ScriptArguments), nil
}

// --- Helpers

// stepConfig assembles the EMR step configuration; locations are kept verbatim
func stepConfig(base *StepBase, jar string, mainClass string, args []string) *emr.StepConfig {
	arguments := make([]*string, len(args))
	for i, argument := range args {
		arguments[i] = aws.String(argument)
	}

	hadoopJarStep := emr.HadoopJarStepConfig{
		Jar:  aws.String(jar),
		Args: arguments,
	}
	if mainClass != "" {
		hadoopJarStep.MainClass = aws.String(mainClass)
	}

	return &emr.StepConfig{
		Name:            aws.String(base.StepName),
		ActionOnFailure: aws.String(ActionOnFailure(base.ContinueOnError)),
		HadoopJarStep:   &hadoopJarStep,
	}
}

// ActionOnFailure maps the continue-on-error flag to the EMR failure action
func ActionOnFailure(continueOnError bool) string {
	if continueOnError {
		return actionContinue
	}
	return actionCancelAndWait
}

func kindMismatch(expected Kind, step Step) error {
	if step == nil {
		return fmt.Errorf("%s renderer cannot render a nil step", expected)
	}
	return fmt.Errorf("%s renderer cannot render a %s step", expected, step.Kind())
}
