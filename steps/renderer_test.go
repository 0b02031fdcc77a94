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
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/stretchr/testify/assert"
)

func base(name string, continueOnError bool) StepBase {
	return StepBase{
		Namespace:             "UT_NAMESPACE",
		ClusterDefinitionName: "UT_EMR_CLUSTER_DEFINITION",
		ClusterName:           "UT_EMR_CLUSTER",
		StepName:              name,
		ContinueOnError:       continueOnError,
	}
}

func TestShellRenderer(t *testing.T) {
	assert := assert.New(t)

	step := &ShellStep{
		StepBase:        base("Test Shell Script", true),
		ScriptLocation:  "s3://bucket/app/test.sh",
		ScriptArguments: []string{"Hello", "DM", "How Are You"},
	}

	res, err := ShellRenderer{}.Render(step)
	assert.Nil(err)
	assert.Equal("Test Shell Script", *res.Name)
	assert.Equal("CONTINUE", *res.ActionOnFailure)
	assert.Equal(DefaultScriptRunnerJar, *res.HadoopJarStep.Jar)
	assert.Nil(res.HadoopJarStep.MainClass)
	assert.Equal([]string{"s3://bucket/app/test.sh", "Hello", "DM", "How Are You"},
		aws.StringValueSlice(res.HadoopJarStep.Args))

	res, err = ShellRenderer{Config: RendererConfig{ScriptRunnerJar: "s3://custom/script-runner.jar"}}.Render(step)
	assert.Nil(err)
	assert.Equal("s3://custom/script-runner.jar", *res.HadoopJarStep.Jar)

	// no arguments
	step.ScriptArguments = nil
	step.ContinueOnError = false
	res, err = ShellRenderer{}.Render(step)
	assert.Nil(err)
	assert.Equal("CANCEL_AND_WAIT", *res.ActionOnFailure)
	assert.Equal([]string{"s3://bucket/app/test.sh"}, aws.StringValueSlice(res.HadoopJarStep.Args))
}

func TestHiveAndPigRenderers(t *testing.T) {
	assert := assert.New(t)

	hive := &HiveStep{
		StepBase:       base("Test Hive", true),
		ScriptLocation: "s3://test-bucket-managed/app-a/test/test_hive.hql",
	}
	res, err := HiveRenderer{}.Render(hive)
	assert.Nil(err)
	assert.Equal(CommandRunnerJar, *res.HadoopJarStep.Jar)
	assert.Equal([]string{"hive-script", "--run-hive-script", "--args", "-f",
		"s3://test-bucket-managed/app-a/test/test_hive.hql"}, aws.StringValueSlice(res.HadoopJarStep.Args))
	assert.Equal("CONTINUE", *res.ActionOnFailure)

	pig := &PigStep{
		StepBase:        base("Test Pig", false),
		ScriptLocation:  "s3://test-bucket-managed/app-a/test/test_pig.pig",
		ScriptArguments: []string{"-p", "INPUT=x"},
	}
	res, err = PigRenderer{}.Render(pig)
	assert.Nil(err)
	assert.Equal([]string{"pig-script", "--run-pig-script", "--args", "-f",
		"s3://test-bucket-managed/app-a/test/test_pig.pig", "-p", "INPUT=x"}, aws.StringValueSlice(res.HadoopJarStep.Args))
	assert.Equal("CANCEL_AND_WAIT", *res.ActionOnFailure)
}

func TestOozieRenderer(t *testing.T) {
	assert := assert.New(t)

	step := &OozieStep{
		StepBase:                    base("Test Oozie", true),
		WorkflowXMLLocation:         "s3://test-bucket-managed/app-a/test/workflow.xml",
		OoziePropertiesFileLocation: "s3://test-bucket-managed/app-a/test/job.properties",
	}

	r := OozieRenderer{Config: RendererConfig{OozieRunScript: "s3://bucket/run_oozie_workflow.sh"}}
	res, err := r.Render(step)
	assert.Nil(err)
	assert.Equal(DefaultScriptRunnerJar, *res.HadoopJarStep.Jar)
	assert.Equal([]string{
		"s3://bucket/run_oozie_workflow.sh",
		"s3://test-bucket-managed/app-a/test/workflow.xml",
		"s3://test-bucket-managed/app-a/test/job.properties",
	}, aws.StringValueSlice(res.HadoopJarStep.Args))

	res, err = OozieRenderer{}.Render(step)
	assert.Nil(res)
	assert.NotNil(err)
	assert.Equal("An Oozie run script must be configured", err.Error())
}

func TestHadoopJarRenderer(t *testing.T) {
	assert := assert.New(t)

	step := &HadoopJarStep{
		StepBase:    base("Hadoop Jar", true),
		JarLocation: "s3://test-bucket-managed/app-a/test/hadoop-mapreduce-examples-2.4.0.jar",
		MainClass:   "wordcount",
	}

	res, err := HadoopJarRenderer{}.Render(step)
	assert.Nil(err)
	assert.Equal("s3://test-bucket-managed/app-a/test/hadoop-mapreduce-examples-2.4.0.jar", *res.HadoopJarStep.Jar)
	assert.Equal("wordcount", *res.HadoopJarStep.MainClass)
	assert.Empty(res.HadoopJarStep.Args)
}

func TestRenderer_MalformedLocationsPassThrough(t *testing.T) {
	assert := assert.New(t)

	step := &ShellStep{StepBase: base("bad", false), ScriptLocation: "not a :// uri"}
	res, err := ShellRenderer{}.Render(step)
	assert.Nil(err)
	assert.Equal("not a :// uri", *res.HadoopJarStep.Args[0])
}

func TestRenderer_KindMismatch(t *testing.T) {
	assert := assert.New(t)

	res, err := HiveRenderer{}.Render(&PigStep{})
	assert.Nil(res)
	assert.NotNil(err)
	assert.Equal("hive renderer cannot render a pig step", err.Error())

	res, err = ShellRenderer{}.Render(nil)
	assert.Nil(res)
	assert.Equal("shell renderer cannot render a nil step", err.Error())
}
