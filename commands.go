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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/snowplow/dm-runner/cluster"
	"github.com/snowplow/dm-runner/config"
	"github.com/snowplow/dm-runner/lock"
	"github.com/snowplow/dm-runner/partition"
	"github.com/snowplow/dm-runner/steps"
	"github.com/snowplow/dm-runner/systemjob"
)

type lockError string

func (l lockError) Error() string { return string(l) }

// clusterOpts gathers the flags shared by the cluster commands
type clusterOpts struct {
	vars         string
	consul       string
	configPrefix string
	creationLock string
}

type systemJobOptions struct {
	region       string
	amqpURL      string
	dbURL        string
	consul       string
	configPrefix string
}

// --- Cluster commands

// up launches a new EMR cluster, or reuses the active one with the same key
func up(emrConfig, clusterKey string, opts clusterOpts) (string, error) {
	if emrConfig == "" {
		return "", flagToError(fEmrConfig)
	}
	key, err := parseClusterKeyFlag(clusterKey)
	if err != nil {
		return "", err
	}

	definition, err := loadDefinition(emrConfig, opts.vars)
	if err != nil {
		return "", err
	}

	o, err := newOrchestrator(definition.AwsParams(), opts)
	if err != nil {
		return "", err
	}
	if opts.creationLock != "" {
		o.LockFactory = lock.Factory(opts.creationLock, opts.consul)
	}

	ctx, cancel := commandContext()
	defer cancel()
	return o.LaunchCluster(ctx, key, definition)
}

// run adds the playbook steps to the cluster addressed by clusterKey
func run(emrPlaybook, clusterKey string, async bool, opts clusterOpts) error {
	if emrPlaybook == "" {
		return flagToError(fEmrPlaybook)
	}
	key, err := parseClusterKeyFlag(clusterKey)
	if err != nil {
		return err
	}

	varMap, err := varsToMap(opts.vars)
	if err != nil {
		return err
	}
	r, err := config.InitResolver()
	if err != nil {
		return err
	}
	playbook, err := r.ParsePlaybookFromFile(emrPlaybook, varMap)
	if err != nil {
		return err
	}
	playbook.Bind(key)

	params := playbook.AwsParams()
	o, err := newOrchestrator(params, opts)
	if err != nil {
		return err
	}
	if sl, err := cluster.InitStepLogs(params); err == nil {
		o.Logs = sl
	} else {
		log.Warn("Step logs won't be retrieved: " + err.Error())
	}

	ctx, cancel := commandContext()
	defer cancel()

	stepIDs, err := o.AddSteps(ctx, key, playbook.Steps)
	if err != nil {
		return err
	}
	if async {
		return nil
	}
	return o.WaitForSteps(ctx, key, stepIDs)
}

// down terminates the cluster given by its jobflow id or by its key
func down(emrConfig, clusterKey, emrCluster string, opts clusterOpts) error {
	if emrConfig == "" {
		return flagToError(fEmrConfig)
	}
	if clusterKey == "" && emrCluster == "" {
		return errors.New("--" + fClusterKey + " or --" + fEmrCluster + " needs to be specified")
	}

	definition, err := loadDefinition(emrConfig, opts.vars)
	if err != nil {
		return err
	}
	o, err := newOrchestrator(definition.AwsParams(), opts)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	jobflowID := emrCluster
	if jobflowID == "" {
		key, err := cluster.ParseClusterKey(clusterKey)
		if err != nil {
			return err
		}
		summary, err := o.GetActiveClusterByName(ctx, key.String())
		if err != nil {
			return err
		}
		if summary == nil {
			return cluster.NoActiveClusterError("No active EMR cluster with name \"" + key.String() + "\" found.")
		}
		jobflowID = summary.ID
	}
	return o.TerminateCluster(ctx, jobflowID)
}

// runTransient launches a cluster, runs the playbook on it and terminates it
// whatever the outcome of the steps
func runTransient(emrConfig, emrPlaybook, clusterKey string, opts clusterOpts) error {
	if emrPlaybook == "" {
		return flagToError(fEmrPlaybook)
	}

	jobflowID, err := up(emrConfig, clusterKey, opts)
	if err != nil {
		return err
	}
	log.Info("EMR cluster launched successfully; Jobflow ID: " + jobflowID)

	runErr := run(emrPlaybook, clusterKey, false, opts)

	if err := down(emrConfig, "", jobflowID, opts); err != nil {
		return err
	}
	log.Info("EMR cluster terminated successfully")

	return runErr
}

func loadDefinition(emrConfig, vars string) (*cluster.Definition, error) {
	varMap, err := varsToMap(vars)
	if err != nil {
		return nil, err
	}
	r, err := config.InitResolver()
	if err != nil {
		return nil, err
	}
	return r.ParseClusterDefinitionFromFile(emrConfig, varMap)
}

func newOrchestrator(params cluster.AwsParams, opts clusterOpts) (*cluster.Orchestrator, error) {
	values, err := loadValues(opts.consul, opts.configPrefix)
	if err != nil {
		return nil, err
	}
	rendererConfig, err := values.RendererConfig()
	if err != nil {
		return nil, err
	}
	return cluster.InitOrchestrator(cluster.InitEmrProvider(), steps.DefaultRegistry(rendererConfig), params), nil
}

func parseClusterKeyFlag(clusterKey string) (cluster.ClusterKey, error) {
	if clusterKey == "" {
		return cluster.ClusterKey{}, flagToError(fClusterKey)
	}
	return cluster.ParseClusterKey(clusterKey)
}

// --- Partition key group commands

type partitionAction func(ctx context.Context, c *cli.Context, s *partition.Service) (interface{}, error)

func partitionCommand(c *cli.Context, action partitionAction) error {
	dbURL := c.String(fDbURL)
	if dbURL == "" {
		return exitCodeError(flagToError(fDbURL))
	}

	ctx, cancel := commandContext()
	defer cancel()

	pool, err := partition.NewPool(ctx, dbURL)
	if err != nil {
		return exitCodeError(err)
	}
	defer pool.Close()

	repo := partition.InitPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return exitCodeError(err)
	}
	outbox := systemjob.InitPostgresOutbox(pool)
	if err := outbox.EnsureSchema(ctx); err != nil {
		return exitCodeError(err)
	}
	s := partition.InitService(repo)
	s.Notifier = outbox

	res, err := action(ctx, c, s)
	if err != nil {
		return exitCodeError(err)
	}
	fmt.Println(config.InterfaceToJSONString(res, true))

	// without a broker the events wait for the messagePublishing system job
	if amqpURL := c.String(fAmqpURL); amqpURL != "" {
		if err := publishOutbox(ctx, outbox, amqpURL); err != nil {
			log.Warn("Couldn't publish partition key group events: " + err.Error())
		}
	}
	return nil
}

func createGroup(ctx context.Context, c *cli.Context, s *partition.Service) (interface{}, error) {
	return s.CreatePartitionKeyGroup(ctx, c.String(fName))
}

func getGroup(ctx context.Context, c *cli.Context, s *partition.Service) (interface{}, error) {
	return s.GetPartitionKeyGroup(ctx, partition.PartitionKeyGroupKey{Name: c.String(fName)})
}

func deleteGroup(ctx context.Context, c *cli.Context, s *partition.Service) (interface{}, error) {
	return s.DeletePartitionKeyGroup(ctx, partition.PartitionKeyGroupKey{Name: c.String(fName)})
}

func listGroups(ctx context.Context, c *cli.Context, s *partition.Service) (interface{}, error) {
	return s.GetPartitionKeyGroups(ctx)
}

func addValues(ctx context.Context, c *cli.Context, s *partition.Service) (interface{}, error) {
	return s.AddExpectedPartitionValues(ctx, partition.PartitionKeyGroupKey{Name: c.String(fName)}, c.StringSlice(fValue))
}

func publishOutbox(ctx context.Context, outbox systemjob.MessageStore, amqpURL string) error {
	publisher, err := systemjob.InitAmqpPublisher(amqpURL)
	if err != nil {
		return err
	}
	defer publisher.Close()

	job := systemjob.InitMessagePublishingJob(outbox, publisher, config.InitValues())
	return job.Run(ctx, nil)
}

// --- System jobs

func runSystemJob(jobName string, rawParams []string, opts systemJobOptions) (*systemjob.RunResponse, error) {
	if jobName == "" {
		return nil, flagToError(fJob)
	}

	params := make([]systemjob.Parameter, 0, len(rawParams))
	for _, raw := range rawParams {
		p, err := systemjob.ParseParameter(raw)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	values, err := loadValues(opts.consul, opts.configPrefix)
	if err != nil {
		return nil, err
	}
	sess, err := cluster.NewSession(cluster.AwsParams{Region: opts.region})
	if err != nil {
		return nil, err
	}
	service := systemjob.InitService(systemjob.InitFileUploadCleanupJob(s3.New(sess), values))

	ctx, cancel := commandContext()
	defer cancel()

	// messages are read from the outbox the partition commands write to
	if jobName == systemjob.MessagePublishingJobName {
		if opts.amqpURL == "" {
			return nil, flagToError(fAmqpURL)
		}
		if opts.dbURL == "" {
			return nil, flagToError(fDbURL)
		}

		pool, err := partition.NewPool(ctx, opts.dbURL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		outbox := systemjob.InitPostgresOutbox(pool)
		if err := outbox.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		publisher, err := systemjob.InitAmqpPublisher(opts.amqpURL)
		if err != nil {
			return nil, err
		}
		defer publisher.Close()
		service.Register(systemjob.InitMessagePublishingJob(outbox, publisher, values))
	}

	return service.RunSystemJob(ctx, systemjob.RunRequest{JobName: jobName, Parameters: params})
}

// --- Helpers

func loadValues(consul, prefix string) (*config.Values, error) {
	if consul == "" {
		return config.InitValues(), nil
	}
	return config.InitConsulValues(consul, prefix)
}

// commandContext is cancelled on SIGINT and SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// flagToError returns a generic error for a missing flag
func flagToError(flag string) error {
	return errors.New("--" + flag + " needs to be specified")
}

// checkLockFlags checks the validity of the lock-related flags
func checkLockFlags(async bool, hardLock, softLock, consul string) error {
	if consul != "" && hardLock == "" && softLock == "" {
		return errors.New(
			"--" + fLock + " or --" + fSoftLock + " is needed to make use of --" + fConsul)
	}
	if hardLock != "" && softLock != "" {
		return errors.New("--" + fLock + " and --" + fSoftLock + " are mutually exclusive")
	}
	if async && (hardLock != "" || softLock != "") {
		return errors.New(
			"--" + fAsync + " and --" + fLock + " or --" + fSoftLock + " are not compatible")
	}
	return nil
}

// varsToMap converts the variables argument to a map of keys and values
func varsToMap(vars string) (map[string]interface{}, error) {
	if vars == "" {
		return map[string]interface{}{}, nil
	}

	varsArr := strings.Split(vars, varDelim)
	if len(varsArr)%2 != 0 {
		return nil, errors.New("--" + fVars + " must have an even number of keys and values")
	}

	varsMap := make(map[string]interface{})
	for i := 0; i < len(varsArr); i += 2 {
		varsMap[varsArr[i]] = varsArr[i+1]
	}
	return varsMap, nil
}

// exitCodeError turns an error into an exit code aware error, reporting it
// to Sentry unless it is about a held lock
func exitCodeError(err error) error {
	var held lock.LockHeldError
	var local lockError
	if errors.As(err, &held) || errors.As(err, &local) {
		log.Warn(err.Error())
		return cli.NewExitError(err.Error(), lockFileExistsExitCode)
	}

	log.Error(err.Error())
	sentry.CaptureException(err)
	sentry.Flush(sentryFlushTimeout)
	return cli.NewExitError(err.Error(), otherExitCode)
}

// getLogLevelKeys builds an array of the available log levels
func getLogLevelKeys(logLevels map[string]log.Level) []string {
	keys := make([]string, 0, len(logLevels))
	for k := range logLevels {
		keys = append(keys, k)
	}
	return keys
}

// initLock takes the hard or soft lock when one is asked for
func initLock(hardLock, softLock, consul string) (lock.Lock, error) {
	if hardLock == "" && softLock == "" {
		return nil, nil
	}
	l, err := lock.GetLock(hardLock+softLock, consul)
	if err != nil {
		return nil, err
	}
	if err := l.TryLock(); err != nil {
		return nil, err
	}
	return l, nil
}

// releaseLock unlocks l when release is set; a hard lock is kept after a
// failure so that nothing runs again until someone looks into it
func releaseLock(l lock.Lock, release bool) {
	if l == nil || !release {
		return
	}
	if err := l.Unlock(); err != nil {
		log.Warn("Couldn't release the lock: " + err.Error())
	}
}
