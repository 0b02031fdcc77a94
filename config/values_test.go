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
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/hashicorp/consul/sdk/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/snowplow/dm-runner/steps"
)

func TestEnvName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("DM_FILE_UPLOAD_CLEANUP_JOB_THRESHOLD_MINUTES", EnvName(FileUploadCleanupThresholdMins))
	assert.Equal("DM_EMR_SHELL_SCRIPT_JAR", EnvName(ShellScriptJar))
}

func TestValues_Defaults(t *testing.T) {
	assert := assert.New(t)
	v := &Values{}

	jar, err := v.Get(ShellScriptJar)
	assert.Nil(err)
	assert.Equal(steps.DefaultScriptRunnerJar, jar)

	minutes, err := v.GetInt(FileUploadCleanupThresholdMins)
	assert.Nil(err)
	assert.Equal(4320, minutes)

	_, err = v.Get("no.such.value")
	assert.NotNil(err)
	assert.IsType(UnknownValueError(""), err)
	assert.Equal("Unknown configuration value \"no.such.value\"", err.Error())
}

func TestValues_Env(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("DM_MESSAGE_PUBLISHING_BATCH_SIZE", "25")
	t.Setenv("DM_EMR_OOZIE_RUN_SCRIPT", "s3://bucket/run_oozie_workflow.sh")
	t.Setenv("DM_FILE_UPLOAD_CLEANUP_JOB_THRESHOLD_MINUTES", "soon")
	v := InitValues()

	size, err := v.GetInt(MessagePublishingBatchSize)
	assert.Nil(err)
	assert.Equal(25, size)

	config, err := v.RendererConfig()
	assert.Nil(err)
	assert.Equal(steps.RendererConfig{
		ScriptRunnerJar: steps.DefaultScriptRunnerJar,
		OozieRunScript:  "s3://bucket/run_oozie_workflow.sh",
	}, config)

	_, err = v.GetInt(FileUploadCleanupThresholdMins)
	assert.NotNil(err)
	assert.Equal("Configuration value \"file.upload.cleanup.job.threshold.minutes\" must be an integer: "+
		"strconv.Atoi: parsing \"soon\": invalid syntax", err.Error())
}

func TestValues_Consul(t *testing.T) {
	assert := assert.New(t)

	s, err := testutil.NewTestServerConfigT(t, nil)
	if err != nil {
		t.Skip("consul test server unavailable: " + err.Error())
	}
	defer s.Stop()

	t.Setenv("DM_MESSAGE_PUBLISHING_EXCHANGE", "from.env")
	t.Setenv("DM_FILE_UPLOAD_CLEANUP_BUCKET", "env-bucket")

	client, err := api.NewClient(&api.Config{Address: s.HTTPAddr})
	assert.Nil(err)
	_, err = client.KV().Put(&api.KVPair{Key: "dm-runner/config/message.publishing.exchange", Value: []byte("from.consul")}, nil)
	assert.Nil(err)

	v, err := InitConsulValues(s.HTTPAddr, "dm-runner/config")
	assert.Nil(err)

	exchange, err := v.Get(MessagePublishingExchange)
	assert.Nil(err)
	assert.Equal("from.consul", exchange)

	bucket, err := v.Get(FileUploadCleanupBucket)
	assert.Nil(err)
	assert.Equal("env-bucket", bucket)

	_, err = InitConsulValues("some://faulty.address", "dm-runner/config")
	assert.NotNil(err)
}
