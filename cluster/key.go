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
	"strings"

	"github.com/snowplow/dm-runner/steps"
)

const keyDelim = "."

// ClusterKey addresses a running cluster. Its string form is used as the
// EMR cluster name, so lookups only succeed when every caller formats it
// through String.
type ClusterKey struct {
	Namespace             string
	ClusterDefinitionName string
	ClusterName           string
}

// String joins the parts of the key with dots
func (k ClusterKey) String() string {
	return strings.Join([]string{k.Namespace, k.ClusterDefinitionName, k.ClusterName}, keyDelim)
}

// Validate checks that every part of the key is set and that only the
// cluster name may contain the delimiter, so ParseClusterKey inverts String
func (k ClusterKey) Validate() error {
	if strings.TrimSpace(k.Namespace) == "" {
		return errors.New("A namespace must be specified.")
	}
	if strings.Contains(k.Namespace, keyDelim) {
		return errors.New("A namespace must not contain \"" + keyDelim + "\".")
	}
	if strings.TrimSpace(k.ClusterDefinitionName) == "" {
		return errors.New("An EMR cluster definition name must be specified.")
	}
	if strings.Contains(k.ClusterDefinitionName, keyDelim) {
		return errors.New("An EMR cluster definition name must not contain \"" + keyDelim + "\".")
	}
	if strings.TrimSpace(k.ClusterName) == "" {
		return errors.New("An EMR cluster name must be specified.")
	}
	return nil
}

// ParseClusterKey parses the dot-joined form of a key; anything after the
// second dot belongs to the cluster name
func ParseClusterKey(s string) (ClusterKey, error) {
	parts := strings.SplitN(s, keyDelim, 3)
	if len(parts) != 3 {
		return ClusterKey{}, errors.New("Cluster key \"" + s + "\" must be of the form namespace.clusterDefinitionName.clusterName")
	}

	key := ClusterKey{
		Namespace:             parts[0],
		ClusterDefinitionName: parts[1],
		ClusterName:           parts[2],
	}
	if err := key.Validate(); err != nil {
		return ClusterKey{}, err
	}
	return key, nil
}

// KeyForStep builds the key of the cluster a step targets
func KeyForStep(step steps.Step) ClusterKey {
	base := step.Base()
	return ClusterKey{
		Namespace:             base.Namespace,
		ClusterDefinitionName: base.ClusterDefinitionName,
		ClusterName:           base.ClusterName,
	}
}
