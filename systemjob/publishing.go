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

	"github.com/hashicorp/errwrap"
	log "github.com/sirupsen/logrus"

	"github.com/snowplow/dm-runner/config"
)

// MessagePublishingJobName is the name of the MessagePublishingJob
const MessagePublishingJobName = "messagePublishing"

// MessagePublishingJob publishes the messages waiting in the outbox
type MessagePublishingJob struct {
	Outbox    MessageStore
	Publisher Publisher
	Values    *config.Values
}

// InitMessagePublishingJob creates a MessagePublishingJob
func InitMessagePublishingJob(outbox MessageStore, publisher Publisher, values *config.Values) *MessagePublishingJob {
	return &MessagePublishingJob{Outbox: outbox, Publisher: publisher, Values: values}
}

// Name returns messagePublishing
func (j *MessagePublishingJob) Name() string { return MessagePublishingJobName }

// ValidateParameters rejects any parameter
func (j *MessagePublishingJob) ValidateParameters(parameters []Parameter) error {
	if len(parameters) > 0 {
		return InvalidArgumentError(fmt.Sprintf("\"%s\" system job does not accept parameters.", j.Name()))
	}
	return nil
}

// Run publishes the pending messages a batch at a time until the outbox is
// drained. A failed publish stops the job, leaving the message pending.
func (j *MessagePublishingJob) Run(ctx context.Context, parameters []Parameter) error {
	exchange, err := j.Values.Get(config.MessagePublishingExchange)
	if err != nil {
		return err
	}
	batchSize, err := j.Values.GetInt(config.MessagePublishingBatchSize)
	if err != nil {
		return err
	}
	if batchSize < 1 {
		return InvalidArgumentError("The message publishing batch size must be positive.")
	}

	published := 0
	for {
		batch, err := j.Outbox.Pending(ctx, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for _, msg := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := j.Publisher.Publish(ctx, exchange, msg); err != nil {
				return errwrap.Wrapf("Couldn't publish message '"+msg.ID+"': {{err}}", err)
			}
			if err := j.Outbox.MarkPublished(ctx, msg.ID); err != nil {
				return err
			}
			published++
		}
	}

	log.Info("Published " + strconv.Itoa(published) + " messages to exchange '" + exchange + "'")
	return nil
}
