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

package systemjob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/hashicorp/errwrap"
	log "github.com/sirupsen/logrus"

	"github.com/snowplow/dm-runner/config"
)

// FileUploadCleanupJobName is the name of the FileUploadCleanupJob
const FileUploadCleanupJobName = "fileUploadCleanup"

// deleteBatchSize is the most keys S3 accepts in a single DeleteObjects call
const deleteBatchSize = 1000

// FileUploadCleanupJob deletes the uploaded files which were never claimed,
// that is those older than a threshold under the upload prefix
type FileUploadCleanupJob struct {
	S3     s3iface.S3API
	Values *config.Values
	Now    func() time.Time
}

// InitFileUploadCleanupJob creates a FileUploadCleanupJob
func InitFileUploadCleanupJob(svc s3iface.S3API, values *config.Values) *FileUploadCleanupJob {
	return &FileUploadCleanupJob{S3: svc, Values: values, Now: time.Now}
}

// Name returns fileUploadCleanup
func (j *FileUploadCleanupJob) Name() string { return FileUploadCleanupJobName }

// ValidateParameters accepts at most the threshold in minutes
func (j *FileUploadCleanupJob) ValidateParameters(parameters []Parameter) error {
	if len(parameters) > 1 {
		return InvalidArgumentError(fmt.Sprintf("Too many parameters are specified for \"%s\" system job.", j.Name()))
	}
	if len(parameters) == 1 {
		p := parameters[0]
		if !strings.EqualFold(p.Name, config.FileUploadCleanupThresholdMins) {
			return InvalidArgumentError(fmt.Sprintf("Parameter \"%s\" is not supported by \"%s\" system job.", p.Name, j.Name()))
		}
		if _, err := parseMinutes(p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Run deletes the expired objects
func (j *FileUploadCleanupJob) Run(ctx context.Context, parameters []Parameter) error {
	minutes, err := j.threshold(parameters)
	if err != nil {
		return err
	}
	bucket, err := j.Values.Get(config.FileUploadCleanupBucket)
	if err != nil {
		return err
	}
	if bucket == "" {
		return InvalidArgumentError("A file upload cleanup bucket must be configured.")
	}
	prefix, err := j.Values.Get(config.FileUploadCleanupPrefix)
	if err != nil {
		return err
	}

	cutoff := j.Now().Add(-time.Duration(minutes) * time.Minute)
	var expired []*s3.ObjectIdentifier
	err = j.S3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				expired = append(expired, &s3.ObjectIdentifier{Key: obj.Key})
			}
		}
		return true
	})
	if err != nil {
		return errwrap.Wrapf("Couldn't list uploaded files: {{err}}", err)
	}

	for start := 0; start < len(expired); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(expired) {
			end = len(expired)
		}
		out, err := j.S3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3.Delete{Objects: expired[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errwrap.Wrapf("Couldn't delete uploaded files: {{err}}", err)
		}
		for _, e := range out.Errors {
			log.Warn("Couldn't delete s3://" + bucket + "/" + aws.StringValue(e.Key) + ": " + aws.StringValue(e.Message))
		}
	}

	log.Info("Deleted " + strconv.Itoa(len(expired)) + " uploaded files older than " + strconv.Itoa(minutes) +
		" minutes from s3://" + bucket + "/" + prefix)
	return nil
}

func (j *FileUploadCleanupJob) threshold(parameters []Parameter) (int, error) {
	if len(parameters) == 1 {
		return parseMinutes(parameters[0].Value)
	}
	return j.Values.GetInt(config.FileUploadCleanupThresholdMins)
}

func parseMinutes(raw string) (int, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 0 {
		return 0, InvalidArgumentError(fmt.Sprintf("Parameter \"%s\" specifies a non-integer value \"%s\".",
			config.FileUploadCleanupThresholdMins, raw))
	}
	return minutes, nil
}
