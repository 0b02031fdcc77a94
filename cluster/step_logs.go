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
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/aws/aws-sdk-go/service/emr/emriface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/hashicorp/errwrap"
	log "github.com/sirupsen/logrus"
)

// LogLocation is the S3 location a cluster ships its logs to
type LogLocation struct {
	Bucket string
	Prefix string
}

// StepPrefix is the prefix under which the logs of a step are written
func (l LogLocation) StepPrefix(clusterID, stepID string) string {
	return path.Join(l.Prefix, clusterID, "steps", stepID) + "/"
}

// StepLogs reads the logs of the steps back from S3
type StepLogs struct {
	EMR        emriface.EMRAPI
	S3         s3iface.S3API
	Downloader s3manageriface.DownloaderAPI
}

// InitStepLogs creates a StepLogs sharing a single session
func InitStepLogs(params AwsParams) (*StepLogs, error) {
	sess, err := NewSession(params)
	if err != nil {
		return nil, err
	}

	svc := s3.New(sess)
	return &StepLogs{
		EMR:        emr.New(sess),
		S3:         svc,
		Downloader: s3manager.NewDownloaderWithClient(svc),
	}, nil
}

// Location looks up where the cluster ships its logs
func (sl *StepLogs) Location(ctx context.Context, clusterID string) (*LogLocation, error) {
	out, err := sl.EMR.DescribeClusterWithContext(ctx, &emr.DescribeClusterInput{ClusterId: aws.String(clusterID)})
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't fetch LogUri: {{err}}", err)
	}

	raw := aws.StringValue(out.Cluster.LogUri)
	if raw == "" {
		return nil, errors.New("LogUri cannot be empty for the logs to be retrieved")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't parse LogUri: {{err}}", err)
	}
	return &LogLocation{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// GetStepLogs returns the content of every log file of the step keyed by
// file name. Files which can't be read are skipped.
func (sl *StepLogs) GetStepLogs(ctx context.Context, clusterID, stepID string) (map[string]string, error) {
	loc, err := sl.Location(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	logs := make(map[string]string)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(loc.StepPrefix(clusterID, stepID)),
	}
	err = sl.S3.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			content, err := sl.read(ctx, loc.Bucket, key)
			if err != nil {
				log.Warn("Couldn't read log file s3://" + loc.Bucket + "/" + key + ": " + err.Error())
				continue
			}
			logs[path.Base(key)] = content
		}
		return true
	})
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't download step logs: {{err}}", err)
	}
	return logs, nil
}

// read downloads an object in memory, gunzipping it when its key ends in .gz
func (sl *StepLogs) read(ctx context.Context, bucket, key string) (string, error) {
	buf := aws.NewWriteAtBuffer(nil)
	_, err := sl.Downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}

	if !strings.HasSuffix(key, ".gz") {
		return string(buf.Bytes()), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", err
	}
	defer zr.Close()

	content, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
