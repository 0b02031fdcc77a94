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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"
)

const (
	appName                = "dm-runner"
	appUsage               = "Run EMR steps against keyed clusters and manage partition key groups"
	appCopyright           = "(c) 2016-2026 Snowplow Analytics Ltd"
	cliVersion             = "0.1.0"
	varDelim               = ","
	fEmrConfig             = "emr-config"
	fEmrPlaybook           = "emr-playbook"
	fEmrCluster            = "emr-cluster"
	fClusterKey            = "cluster-key"
	fVars                  = "vars"
	fAsync                 = "async"
	fLogLevel              = "log-level"
	fLock                  = "lock"
	fSoftLock              = "softLock"
	fCreationLock          = "creation-lock"
	fConsul                = "consul"
	fConfigPrefix          = "config-prefix"
	fSentryDsn             = "sentry-dsn"
	fDbURL                 = "db-url"
	fName                  = "name"
	fValue                 = "value"
	fJob                   = "job"
	fParam                 = "param"
	fAmqpURL               = "amqp-url"
	fRegion                = "region"
	lockFileExistsExitCode = 17
	otherExitCode          = 1
	sentryFlushTimeout     = 2 * time.Second
)

func main() {
	app := cli.NewApp()

	var logLevel, sentryDsn string
	logLevels := map[string]log.Level{
		"debug":   log.DebugLevel,
		"info":    log.InfoLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"fatal":   log.FatalLevel,
		"panic":   log.PanicLevel,
	}
	logLevelKeys := getLogLevelKeys(logLevels)

	app.Name = appName
	app.Usage = appUsage
	app.Version = cliVersion
	app.Copyright = appCopyright
	app.Compiled = time.Now()
	app.Authors = []cli.Author{
		{
			Name:  "Snowplow Analytics Ltd",
			Email: "support@snowplowanalytics.com",
		},
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  fLogLevel,
			Value: "info",
			Usage: fmt.Sprintf("logging level, possible values are %s",
				strings.Join(logLevelKeys, ",")),
			Destination: &logLevel,
		},
		cli.StringFlag{
			Name:        fSentryDsn,
			Usage:       "Sentry DSN errors are reported to",
			EnvVar:      "SENTRY_DSN",
			Destination: &sentryDsn,
		},
	}
	app.Before = func(c *cli.Context) error {
		level, ok := logLevels[logLevel]
		if !ok {
			return fmt.Errorf("Supported log levels are %s, provided %s",
				strings.Join(logLevelKeys, ","), logLevel)
		}
		log.SetLevel(level)

		if sentryDsn != "" {
			if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDsn, Release: appName + "@" + cliVersion}); err != nil {
				log.Warn("Couldn't initialize Sentry: " + err.Error())
			}
		}
		return nil
	}
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  "up",
			Usage: "Launches a new EMR cluster addressed by its key",
			Flags: []cli.Flag{
				getEmrConfigFlag(),
				getClusterKeyFlag(),
				getCreationLockFlag(),
				getConsulFlag(),
				getConfigPrefixFlag(),
				getVarsFlag(),
			},
			Action: func(c *cli.Context) error {
				jobflowID, err := up(c.String(fEmrConfig), c.String(fClusterKey), clusterOptions(c))
				if err != nil {
					return exitCodeError(err)
				}

				log.Info("EMR cluster launched successfully; Jobflow ID: " + jobflowID)
				return nil
			},
		},
		{
			Name:  "run",
			Usage: "Adds the playbook steps to the running EMR cluster addressed by its key",
			Flags: []cli.Flag{
				getEmrPlaybookFlag(),
				getClusterKeyFlag(),
				getAsyncFlag(),
				getLockFlag(),
				getSoftLockFlag(),
				getConsulFlag(),
				getConfigPrefixFlag(),
				getVarsFlag(),
			},
			Action: func(c *cli.Context) error {
				async := c.Bool(fAsync)
				hardLock := c.String(fLock)
				softLock := c.String(fSoftLock)
				consul := c.String(fConsul)

				if err := checkLockFlags(async, hardLock, softLock, consul); err != nil {
					return exitCodeError(err)
				}

				l, err := initLock(hardLock, softLock, consul)
				if err != nil {
					return exitCodeError(lockError(err.Error()))
				}

				err = run(c.String(fEmrPlaybook), c.String(fClusterKey), async, clusterOptions(c))
				releaseLock(l, softLock != "" || err == nil)
				if err != nil {
					return exitCodeError(err)
				}

				log.Info("All steps completed successfully")
				return nil
			},
		},
		{
			Name:  "down",
			Usage: "Terminates a running EMR cluster",
			Flags: []cli.Flag{
				getEmrConfigFlag(),
				getClusterKeyFlag(),
				getEmrClusterFlag(),
				getVarsFlag(),
			},
			Action: func(c *cli.Context) error {
				err := down(c.String(fEmrConfig), c.String(fClusterKey), c.String(fEmrCluster), clusterOptions(c))
				if err != nil {
					return exitCodeError(err)
				}

				log.Info("EMR cluster terminated successfully")
				return nil
			},
		},
		{
			Name:  "run-transient",
			Usage: "Launches, runs and then terminates an EMR cluster",
			Flags: []cli.Flag{
				getEmrConfigFlag(),
				getEmrPlaybookFlag(),
				getClusterKeyFlag(),
				getLockFlag(),
				getSoftLockFlag(),
				getConsulFlag(),
				getConfigPrefixFlag(),
				getVarsFlag(),
			},
			Action: func(c *cli.Context) error {
				hardLock := c.String(fLock)
				softLock := c.String(fSoftLock)
				consul := c.String(fConsul)

				if err := checkLockFlags(false, hardLock, softLock, consul); err != nil {
					return exitCodeError(err)
				}

				l, err := initLock(hardLock, softLock, consul)
				if err != nil {
					return exitCodeError(lockError(err.Error()))
				}

				err = runTransient(c.String(fEmrConfig), c.String(fEmrPlaybook), c.String(fClusterKey), clusterOptions(c))
				releaseLock(l, softLock != "" || err == nil)
				if err != nil {
					log.Error("Transient EMR run completed with errors")
					return exitCodeError(err)
				}

				log.Info("Transient EMR run completed successfully")
				return nil
			},
		},
		{
			Name:  "partition-key-group",
			Usage: "Manages partition key groups",
			Subcommands: []cli.Command{
				{
					Name:  "create",
					Usage: "Creates a partition key group",
					Flags: []cli.Flag{getDbURLFlag(), getNameFlag(), getAmqpURLFlag()},
					Action: func(c *cli.Context) error {
						return partitionCommand(c, createGroup)
					},
				},
				{
					Name:  "get",
					Usage: "Shows a partition key group",
					Flags: []cli.Flag{getDbURLFlag(), getNameFlag()},
					Action: func(c *cli.Context) error {
						return partitionCommand(c, getGroup)
					},
				},
				{
					Name:  "delete",
					Usage: "Deletes a partition key group",
					Flags: []cli.Flag{getDbURLFlag(), getNameFlag(), getAmqpURLFlag()},
					Action: func(c *cli.Context) error {
						return partitionCommand(c, deleteGroup)
					},
				},
				{
					Name:  "list",
					Usage: "Lists the keys of every partition key group",
					Flags: []cli.Flag{getDbURLFlag()},
					Action: func(c *cli.Context) error {
						return partitionCommand(c, listGroups)
					},
				},
				{
					Name:  "add-values",
					Usage: "Adds expected partition values to a partition key group",
					Flags: []cli.Flag{
						getDbURLFlag(),
						getNameFlag(),
						cli.StringSliceFlag{Name: fValue, Usage: "Expected partition value, may be repeated"},
					},
					Action: func(c *cli.Context) error {
						return partitionCommand(c, addValues)
					},
				},
			},
		},
		{
			Name:  "system-job",
			Usage: "Runs a system job",
			Flags: []cli.Flag{
				cli.StringFlag{Name: fJob, Usage: "Name of the system job"},
				cli.StringSliceFlag{Name: fParam, Usage: "Job parameter of the form name=value, may be repeated"},
				cli.StringFlag{Name: fRegion, Usage: "AWS region of the upload bucket", EnvVar: "AWS_REGION"},
				getAmqpURLFlag(),
				getDbURLFlag(),
				getConsulFlag(),
				getConfigPrefixFlag(),
			},
			Action: func(c *cli.Context) error {
				res, err := runSystemJob(c.String(fJob), c.StringSlice(fParam), systemJobOptions{
					region:       c.String(fRegion),
					amqpURL:      c.String(fAmqpURL),
					dbURL:        c.String(fDbURL),
					consul:       c.String(fConsul),
					configPrefix: c.String(fConfigPrefix),
				})
				if err != nil {
					return exitCodeError(err)
				}

				log.Info("System job '" + res.JobName + "' completed successfully")
				return nil
			},
		},
	}

	app.Run(os.Args)
	sentry.Flush(sentryFlushTimeout)
}

// --- CLI Flags

func getEmrConfigFlag() cli.StringFlag {
	return cli.StringFlag{Name: fEmrConfig, Usage: "EMR config path"}
}

func getEmrPlaybookFlag() cli.StringFlag {
	return cli.StringFlag{Name: fEmrPlaybook, Usage: "Playbook path"}
}

func getEmrClusterFlag() cli.StringFlag {
	return cli.StringFlag{Name: fEmrCluster, Usage: "Jobflow ID, used instead of --" + fClusterKey}
}

func getClusterKeyFlag() cli.StringFlag {
	return cli.StringFlag{Name: fClusterKey, Usage: "Cluster key of the form namespace.clusterDefinitionName.clusterName"}
}

func getVarsFlag() cli.StringFlag {
	return cli.StringFlag{Name: fVars, Usage: "Variables that will be used by the templater"}
}

func getAsyncFlag() cli.BoolFlag {
	return cli.BoolFlag{Name: fAsync, Usage: "Asynchronous execution of the jobflow steps"}
}

func getLockFlag() cli.StringFlag {
	usage := "Path to the lock held for the duration of the jobflow steps. This is materialized" +
		" by a file or a KV entry in Consul depending on the --" + fConsul + " flag."
	return cli.StringFlag{Name: fLock, Usage: usage}
}

func getSoftLockFlag() cli.StringFlag {
	usage := "Path to the lock held for the duration of the jobflow steps. This is materialized" +
		" by a file or a KV entry in Consul depending on the --" + fConsul + " flag. Released no" +
		" matter if the operation failed or succeeded."
	return cli.StringFlag{Name: fSoftLock, Usage: usage}
}

func getCreationLockFlag() cli.StringFlag {
	usage := "Directory, or Consul KV prefix with --" + fConsul + ", under which a lock per cluster key" +
		" is held while the cluster is being created"
	return cli.StringFlag{Name: fCreationLock, Usage: usage}
}

func getConsulFlag() cli.StringFlag {
	return cli.StringFlag{
		Name:  fConsul,
		Usage: "Address of the Consul server used for distributed locking and configuration values",
	}
}

func getConfigPrefixFlag() cli.StringFlag {
	return cli.StringFlag{
		Name:  fConfigPrefix,
		Value: appName + "/config",
		Usage: "Consul KV prefix configuration values are read from when --" + fConsul + " is set",
	}
}

func getDbURLFlag() cli.StringFlag {
	return cli.StringFlag{Name: fDbURL, Usage: "PostgreSQL connection URL", EnvVar: "DM_DB_URL"}
}

func getNameFlag() cli.StringFlag {
	return cli.StringFlag{Name: fName, Usage: "Partition key group name"}
}

func getAmqpURLFlag() cli.StringFlag {
	return cli.StringFlag{Name: fAmqpURL, Usage: "RabbitMQ URL events are published to", EnvVar: "DM_AMQP_URL"}
}

func clusterOptions(c *cli.Context) clusterOpts {
	return clusterOpts{
		vars:         c.String(fVars),
		consul:       c.String(fConsul),
		configPrefix: c.String(fConfigPrefix),
		creationLock: c.String(fCreationLock),
	}
}
