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
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go/aws/session"
)

// Special values of the access and secret keys
const (
	credentialsIam = "iam"
	credentialsEnv = "env"
)

// NewSession builds an AWS session from the AWS parameters; a blank proxy
// host means no proxy
func NewSession(params AwsParams) (*session.Session, error) {
	creds, err := Credentials(params.AccessKeyID, params.SecretAccessKey)
	if err != nil {
		return nil, err
	}

	cfg := aws.NewConfig().WithCredentials(creds)
	if params.Region != "" {
		cfg = cfg.WithRegion(params.Region)
	}
	if client := proxyClient(params.HTTPProxyHost, params.HTTPProxyPort); client != nil {
		cfg = cfg.WithHTTPClient(client)
	}
	return session.NewSession(cfg)
}

// Credentials resolves the credentials named by a pair of keys. "iam" on both
// sides reads the instance role and "env" on both sides reads the
// environment; anything else is a static key pair. Two blank keys defer to
// the default chain and give nil.
func Credentials(accessKey, secretKey string) (*credentials.Credentials, error) {
	switch {
	case accessKey == "" && secretKey == "":
		return nil, nil
	case accessKey == credentialsIam || secretKey == credentialsIam:
		if accessKey != secretKey {
			return nil, mixedCredentials(credentialsIam)
		}
		return credentials.NewCredentials(&ec2rolecreds.EC2RoleProvider{}), nil
	case accessKey == credentialsEnv || secretKey == credentialsEnv:
		if accessKey != secretKey {
			return nil, mixedCredentials(credentialsEnv)
		}
		return credentials.NewEnvCredentials(), nil
	}
	return credentials.NewStaticCredentials(accessKey, secretKey, ""), nil
}

func mixedCredentials(mode string) error {
	return errors.New("access-key and secret-key must both be set to '" + mode + "', or neither")
}

// proxyClient returns a client going through the HTTP proxy, or nil without
// a proxy host
func proxyClient(host string, port int) *http.Client {
	if host == "" {
		return nil
	}
	if port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(port))
	}
	proxy := http.ProxyURL(&url.URL{Scheme: "http", Host: host})
	return &http.Client{Transport: &http.Transport{Proxy: proxy}}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
