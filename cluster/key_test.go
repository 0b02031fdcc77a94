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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snowplow/dm-runner/steps"
)

func TestClusterKey_String(t *testing.T) {
	assert := assert.New(t)

	key := ClusterKey{Namespace: "ns", ClusterDefinitionName: "def", ClusterName: "name"}
	assert.Equal("ns.def.name", key.String())
	assert.Nil(key.Validate())
}

func TestClusterKey_Validate(t *testing.T) {
	assert := assert.New(t)

	err := ClusterKey{ClusterDefinitionName: "def", ClusterName: "name"}.Validate()
	assert.NotNil(err)
	assert.Equal("A namespace must be specified.", err.Error())

	err = ClusterKey{Namespace: "ns", ClusterDefinitionName: " ", ClusterName: "name"}.Validate()
	assert.NotNil(err)
	assert.Equal("An EMR cluster definition name must be specified.", err.Error())

	err = ClusterKey{Namespace: "ns", ClusterDefinitionName: "def"}.Validate()
	assert.NotNil(err)
	assert.Equal("An EMR cluster name must be specified.", err.Error())

	err = ClusterKey{Namespace: "a.b", ClusterDefinitionName: "c", ClusterName: "d"}.Validate()
	assert.NotNil(err)
	assert.Equal("A namespace must not contain \".\".", err.Error())

	err = ClusterKey{Namespace: "a", ClusterDefinitionName: "b.c", ClusterName: "d"}.Validate()
	assert.NotNil(err)
	assert.Equal("An EMR cluster definition name must not contain \".\".", err.Error())

	assert.Nil(ClusterKey{Namespace: "a", ClusterDefinitionName: "b", ClusterName: "c.d"}.Validate())
}

func TestClusterKey_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	keys := []ClusterKey{
		{Namespace: "ns", ClusterDefinitionName: "def", ClusterName: "name"},
		{Namespace: "a", ClusterDefinitionName: "b", ClusterName: "c.d"},
		{Namespace: "NS", ClusterDefinitionName: "my-def", ClusterName: "x.y.z"},
	}
	for _, key := range keys {
		assert.Nil(key.Validate())
		parsed, err := ParseClusterKey(key.String())
		assert.Nil(err)
		assert.Equal(key, parsed)
	}

	// these two would collide on the same EMR cluster name
	assert.NotNil(ClusterKey{Namespace: "a.b", ClusterDefinitionName: "c", ClusterName: "d"}.Validate())
	parsed, err := ParseClusterKey("a.b.c.d")
	assert.Nil(err)
	assert.Equal(ClusterKey{Namespace: "a", ClusterDefinitionName: "b", ClusterName: "c.d"}, parsed)
}

func TestParseClusterKey(t *testing.T) {
	assert := assert.New(t)

	key, err := ParseClusterKey("ns.def.name")
	assert.Nil(err)
	assert.Equal(ClusterKey{Namespace: "ns", ClusterDefinitionName: "def", ClusterName: "name"}, key)

	// anything past the second delimiter belongs to the cluster name
	key, err = ParseClusterKey("ns.def.name.with.dots")
	assert.Nil(err)
	assert.Equal("name.with.dots", key.ClusterName)
	assert.Equal("ns.def.name.with.dots", key.String())

	_, err = ParseClusterKey("ns.def")
	assert.NotNil(err)
	assert.Equal("Cluster key \"ns.def\" must be of the form namespace.clusterDefinitionName.clusterName", err.Error())

	_, err = ParseClusterKey("ns..name")
	assert.NotNil(err)
	assert.Equal("An EMR cluster definition name must be specified.", err.Error())
}

func TestKeyForStep(t *testing.T) {
	assert := assert.New(t)

	step := &steps.HiveStep{StepBase: steps.StepBase{
		Namespace:             "ns",
		ClusterDefinitionName: "def",
		ClusterName:           "name",
		StepName:              "step",
	}}
	assert.Equal(ClusterKey{Namespace: "ns", ClusterDefinitionName: "def", ClusterName: "name"}, KeyForStep(step))
}
