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
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/hashicorp/errwrap"
	log "github.com/sirupsen/logrus"

	"github.com/snowplow/dm-runner/steps"
)

// Named configuration values
const (
	ShellScriptJar                 = "emr.shell.script.jar"
	OozieRunScript                 = "emr.oozie.run.script"
	FileUploadCleanupThresholdMins = "file.upload.cleanup.job.threshold.minutes"
	FileUploadCleanupBucket        = "file.upload.cleanup.bucket"
	FileUploadCleanupPrefix        = "file.upload.cleanup.prefix"
	MessagePublishingExchange      = "message.publishing.exchange"
	MessagePublishingBatchSize     = "message.publishing.batch.size"

	// EnvPrefix prefixes the environment variables overriding values
	EnvPrefix = "DM_"
)

var defaults = map[string]string{
	ShellScriptJar:                 steps.DefaultScriptRunnerJar,
	OozieRunScript:                 "",
	FileUploadCleanupThresholdMins: "4320",
	FileUploadCleanupBucket:        "",
	FileUploadCleanupPrefix:        "",
	MessagePublishingExchange:      "dm.events",
	MessagePublishingBatchSize:     "100",
}

// UnknownValueError is returned when looking up a value which has no default
type UnknownValueError string

func (u UnknownValueError) Error() string { return string(u) }

// Values resolves named configuration values. A value set in Consul under
// the prefix wins over the environment, which wins over the default.
type Values struct {
	kv     *api.KV
	prefix string
	getenv func(string) string
}

// InitValues creates Values resolved from the environment and the defaults
func InitValues() *Values {
	return &Values{getenv: os.Getenv}
}

// InitConsulValues creates Values also resolved from the Consul KV store
func InitConsulValues(consulAddress, prefix string) (*Values, error) {
	client, err := api.NewClient(&api.Config{Address: consulAddress})
	if err != nil {
		return nil, err
	}
	return &Values{kv: client.KV(), prefix: prefix, getenv: os.Getenv}, nil
}

// EnvName is the environment variable overriding key
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.Replace(key, ".", "_", -1))
}

// Get returns the value of key
func (v *Values) Get(key string) (string, error) {
	def, ok := defaults[key]
	if !ok {
		return "", UnknownValueError("Unknown configuration value \"" + key + "\"")
	}

	if v.kv != nil {
		pair, _, err := v.kv.Get(path.Join(v.prefix, key), nil)
		if err != nil {
			return "", errwrap.Wrapf("Couldn't read configuration value from Consul: {{err}}", err)
		}
		if pair != nil {
			log.Debug("Configuration value '" + key + "' read from Consul")
			return string(pair.Value), nil
		}
	}

	if value, ok := v.lookupEnv(key); ok {
		log.Debug("Configuration value '" + key + "' read from " + EnvName(key))
		return value, nil
	}

	return def, nil
}

// GetInt returns the value of key as an integer
func (v *Values) GetInt(key string) (int, error) {
	raw, err := v.Get(key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errwrap.Wrapf("Configuration value \""+key+"\" must be an integer: {{err}}", err)
	}
	return i, nil
}

// RendererConfig returns the step renderer configuration
func (v *Values) RendererConfig() (steps.RendererConfig, error) {
	jar, err := v.Get(ShellScriptJar)
	if err != nil {
		return steps.RendererConfig{}, err
	}
	oozie, err := v.Get(OozieRunScript)
	if err != nil {
		return steps.RendererConfig{}, err
	}
	return steps.RendererConfig{ScriptRunnerJar: jar, OozieRunScript: oozie}, nil
}

func (v *Values) lookupEnv(key string) (string, bool) {
	if v.getenv == nil {
		return "", false
	}
	value := v.getenv(EnvName(key))
	return value, value != ""
}
