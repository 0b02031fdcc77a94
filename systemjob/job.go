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

// Package systemjob runs the maintenance jobs of the runner on demand.
package systemjob

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Parameter is a name/value pair given to a job
type Parameter struct {
	Name  string
	Value string
}

// RunRequest asks for a job to be run
type RunRequest struct {
	JobName    string
	Parameters []Parameter
}

// RunResponse echoes the job which was run and its parameters
type RunResponse struct {
	JobName    string
	Parameters []Parameter
}

// Job is a system job
type Job interface {
	Name() string
	ValidateParameters(parameters []Parameter) error
	Run(ctx context.Context, parameters []Parameter) error
}

// InvalidArgumentError is returned for invalid requests
type InvalidArgumentError string

func (i InvalidArgumentError) Error() string { return string(i) }

// NotFoundError is returned when the requested job doesn't exist
type NotFoundError string

func (n NotFoundError) Error() string { return string(n) }

// Service runs the jobs registered with it
type Service struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// InitService creates a Service with the given jobs
func InitService(jobs ...Job) *Service {
	s := &Service{jobs: make(map[string]Job)}
	for _, job := range jobs {
		s.Register(job)
	}
	return s
}

// Register adds a job, replacing any job with the same name
func (s *Service) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name()] = job
}

// JobNames lists the registered jobs
func (s *Service) JobNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunSystemJob validates the request and runs the job synchronously
func (s *Service) RunSystemJob(ctx context.Context, request RunRequest) (*RunResponse, error) {
	jobName := strings.TrimSpace(request.JobName)
	if jobName == "" {
		return nil, InvalidArgumentError("A job name must be specified.")
	}

	parameters, err := trimParameters(request.Parameters)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	job, ok := s.jobs[jobName]
	s.mu.RUnlock()
	if !ok {
		return nil, NotFoundError(fmt.Sprintf("Job \"%s\" doesn't exist.", jobName))
	}

	if err := job.ValidateParameters(parameters); err != nil {
		return nil, err
	}

	log.Info("Running system job '" + jobName + "'...")
	if err := job.Run(ctx, parameters); err != nil {
		return nil, err
	}
	log.Info("System job '" + jobName + "' completed")

	return &RunResponse{JobName: jobName, Parameters: parameters}, nil
}

func trimParameters(parameters []Parameter) ([]Parameter, error) {
	if len(parameters) == 0 {
		return nil, nil
	}

	res := make([]Parameter, len(parameters))
	seen := make(map[string]bool, len(parameters))
	for i, p := range parameters {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, InvalidArgumentError("A parameter name must be specified.")
		}
		if seen[strings.ToLower(name)] {
			return nil, InvalidArgumentError(fmt.Sprintf("Duplicate parameter name found: %s", name))
		}
		seen[strings.ToLower(name)] = true
		res[i] = Parameter{Name: name, Value: strings.TrimSpace(p.Value)}
	}
	return res, nil
}

// ParseParameter parses a name=value pair
func ParseParameter(raw string) (Parameter, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 {
		return Parameter{}, InvalidArgumentError(fmt.Sprintf("Parameter \"%s\" must be of the form name=value", raw))
	}
	return Parameter{Name: parts[0], Value: parts[1]}, nil
}
