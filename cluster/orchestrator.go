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
	"context"
	"errors"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snowplow/dm-runner/lock"
	"github.com/snowplow/dm-runner/steps"
)

const (
	defaultPollInterval  = time.Second * 15
	launchAttempts       = 3
	defaultRelaunchSleep = time.Second * 30
)

// LogsFetcher retrieves the logs of a step
type LogsFetcher interface {
	GetStepLogs(ctx context.Context, clusterID, stepID string) (map[string]string, error)
}

// Orchestrator creates clusters and adds steps to them through a Provider
type Orchestrator struct {
	Provider Provider
	Registry *steps.Registry
	Params   AwsParams

	// LockFactory, when set, is used to serialize cluster creation per key
	LockFactory func(name string) (lock.Lock, error)
	// Logs, when set, is used to fetch the logs of failed steps
	Logs LogsFetcher

	PollInterval  time.Duration
	RelaunchSleep time.Duration
}

// InitOrchestrator creates a new Orchestrator
func InitOrchestrator(provider Provider, registry *steps.Registry, params AwsParams) *Orchestrator {
	return &Orchestrator{
		Provider:      provider,
		Registry:      registry,
		Params:        params,
		PollInterval:  defaultPollInterval,
		RelaunchSleep: defaultRelaunchSleep,
	}
}

// CreateCluster creates a cluster addressed by key. When a cluster with the
// same key is already active its id is returned instead.
func (o *Orchestrator) CreateCluster(ctx context.Context, key ClusterKey, definition *Definition) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	release, err := o.acquire(key)
	if err != nil {
		return "", err
	}
	defer release()

	return o.createOrReuse(ctx, key, definition)
}

// LaunchCluster creates a cluster and blocks until it is WAITING. A cluster
// failing to bootstrap is launched again, up to launchAttempts times. The
// creation lock is held for the whole launch.
func (o *Orchestrator) LaunchCluster(ctx context.Context, key ClusterKey, definition *Definition) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	release, err := o.acquire(key)
	if err != nil {
		return "", err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		id, err := o.createOrReuse(ctx, key, definition)
		if err != nil {
			return "", err
		}

		status, err := o.WaitForState(ctx, id, StateWaiting,
			[]string{StateWaiting, StateTerminating, StateTerminated, StateTerminatedWithErrors})
		if err != nil {
			return "", err
		}

		if status.StateReasonCode == ReasonBootstrapFailure {
			log.Error("Bootstrap failure detected for EMR cluster with jobflow id '" + id + "'")
			if attempt >= launchAttempts {
				return "", errors.New("could not start the cluster due to bootstrap failure after " +
					strconv.Itoa(attempt) + " attempts")
			}
			log.Info("Relaunching EMR cluster '" + key.String() + "' in " + o.RelaunchSleep.String() + "...")
			if err := sleepFor(ctx, o.RelaunchSleep); err != nil {
				return "", err
			}
			continue
		}

		if status.State != StateWaiting {
			return "", errors.New("EMR cluster failed to launch with state " + status.State)
		}
		return id, nil
	}
}

// acquire takes the creation lock of key when a LockFactory is set and
// returns the function releasing it
func (o *Orchestrator) acquire(key ClusterKey) (func(), error) {
	if o.LockFactory == nil {
		return func() {}, nil
	}

	l, err := o.LockFactory(key.String())
	if err != nil {
		return nil, err
	}
	if err := l.TryLock(); err != nil {
		return nil, err
	}
	return func() {
		if err := l.Unlock(); err != nil {
			log.Warn("Couldn't release the lock for cluster '" + key.String() + "': " + err.Error())
		}
	}, nil
}

func (o *Orchestrator) createOrReuse(ctx context.Context, key ClusterKey, definition *Definition) (string, error) {
	existing, err := o.Provider.GetActiveClusterByName(ctx, key.String(), o.Params)
	if err != nil {
		return "", err
	}
	if existing != nil {
		log.Info("EMR cluster '" + key.String() + "' is already active with jobflow id '" + existing.ID + "'")
		return existing.ID, nil
	}

	id, err := o.Provider.CreateCluster(ctx, key.String(), definition, o.Params)
	if err != nil {
		return "", err
	}
	log.Info("Created EMR cluster '" + key.String() + "' with jobflow id '" + id + "'")
	return id, nil
}

// WaitForState blocks waiting for the cluster to enter one of the exit states
func (o *Orchestrator) WaitForState(ctx context.Context, id string, neededState string, exitStates []string) (*ClusterStatus, error) {
	for {
		status, err := o.Provider.GetClusterStatusByID(ctx, id, o.Params)
		if err != nil {
			return nil, err
		}
		if status == nil {
			return nil, errors.New("EMR cluster with jobflow id '" + id + "' does not exist")
		}
		if contains(exitStates, status.State) {
			return status, nil
		}

		log.Info("EMR cluster is in state " + status.State + " - need state " + neededState +
			", checking again in " + o.PollInterval.String() + "...")

		if err := o.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// AddStep renders the step and adds it to the cluster addressed by key
func (o *Orchestrator) AddStep(ctx context.Context, key ClusterKey, step steps.Step) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}

	stepConfig, err := o.Registry.Render(step)
	if err != nil {
		return "", err
	}

	return o.Provider.AddStep(ctx, key.String(), stepConfig, o.Params)
}

// AddSteps adds the steps in order, stopping at the first failure
func (o *Orchestrator) AddSteps(ctx context.Context, key ClusterKey, all []steps.Step) ([]string, error) {
	if len(all) < 1 {
		return nil, errors.New("No steps found in config, nothing to add")
	}

	stepIDs := make([]string, 0, len(all))
	for _, step := range all {
		stepID, err := o.AddStep(ctx, key, step)
		if err != nil {
			return stepIDs, err
		}
		stepIDs = append(stepIDs, stepID)
	}

	log.Info("Successfully added " + strconv.Itoa(len(stepIDs)) + " steps to the EMR cluster '" + key.String() + "'")
	return stepIDs, nil
}

// WaitForSteps blocks until every step is in a final state
func (o *Orchestrator) WaitForSteps(ctx context.Context, key ClusterKey, stepIDs []string) error {
	summary, err := o.Provider.GetActiveClusterByName(ctx, key.String(), o.Params)
	if err != nil {
		return err
	}
	if summary == nil {
		return noActiveClusterError(key.String())
	}

	for {
		var failed []string
		successCount := 0

		for _, stepID := range stepIDs {
			state, err := o.Provider.GetStepState(ctx, summary.ID, stepID, o.Params)
			if err != nil {
				return err
			}

			switch state {
			case StepCompleted:
				successCount++
			case StepCancelled, StepFailed, StepInterrupted:
				failed = append(failed, stepID)
			}
		}

		if successCount+len(failed) == len(stepIDs) {
			if len(failed) == 0 {
				log.Info("All " + strconv.Itoa(len(stepIDs)) + " steps completed successfully")
				return nil
			}
			for _, stepID := range failed {
				log.Error("Step with id '" + stepID + "' did not complete successfully")
				o.logStepLogs(ctx, summary.ID, stepID)
			}
			return errors.New(strconv.Itoa(len(failed)) + "/" + strconv.Itoa(len(stepIDs)) + " steps failed to complete successfully")
		}

		if err := o.sleep(ctx); err != nil {
			return err
		}
	}
}

// GetActiveClusterByName returns the active cluster with that name or nil
func (o *Orchestrator) GetActiveClusterByName(ctx context.Context, name string) (*ClusterSummary, error) {
	return o.Provider.GetActiveClusterByName(ctx, name, o.Params)
}

// GetClusterStatus returns the status of a cluster, or nil for a blank or
// unknown id
func (o *Orchestrator) GetClusterStatus(ctx context.Context, id string) (*ClusterStatus, error) {
	return o.Provider.GetClusterStatusByID(ctx, id, o.Params)
}

// TerminateCluster terminates a cluster and waits for it to be terminated
func (o *Orchestrator) TerminateCluster(ctx context.Context, id string) error {
	if err := o.Provider.TerminateCluster(ctx, id, o.Params); err != nil {
		return err
	}
	_, err := o.WaitForState(ctx, id, StateTerminated, []string{StateTerminatedWithErrors, StateTerminated})
	return err
}

func (o *Orchestrator) logStepLogs(ctx context.Context, clusterID, stepID string) {
	if o.Logs == nil {
		return
	}
	logs, err := o.Logs.GetStepLogs(ctx, clusterID, stepID)
	if err != nil {
		log.Warn("Couldn't retrieve the logs of step '" + stepID + "': " + err.Error())
		return
	}
	for name, content := range logs {
		log.Error("Step '" + stepID + "' " + name + ":\n" + content)
	}
}

func (o *Orchestrator) sleep(ctx context.Context) error {
	return sleepFor(ctx, o.PollInterval)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
