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

// Package lock provides the file and Consul backed locks used to serialize
// cluster creation and whole runs.
package lock

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
)

// LockHeldError is returned by TryLock when somebody else holds the lock
type LockHeldError string

func (l LockHeldError) Error() string { return string(l) }

// lockHeld describes who holds the lock at when the owner record is readable
func lockHeld(at string, record []byte) error {
	msg := "Lock currently held at " + at
	if owner, err := parseOwner(record); err == nil {
		msg += " by pid " + strconv.Itoa(owner.PID) + " on " + owner.Host +
			" since " + owner.AcquiredAt.Format(time.RFC3339)
	}
	return LockHeldError(msg)
}

// Lock abstracts over file-based and consul-based locks
type Lock interface {
	TryLock() error
	Unlock() error
}

// Owner is the record a lock holds about the process owning it
type Owner struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

func currentOwner() []byte {
	host, _ := os.Hostname()
	record, _ := json.Marshal(Owner{PID: os.Getpid(), Host: host, AcquiredAt: time.Now().UTC()})
	return record
}

func parseOwner(record []byte) (*Owner, error) {
	var owner Owner
	if err := json.Unmarshal(record, &owner); err != nil {
		return nil, err
	}
	return &owner, nil
}

// GetLock builds a consul-based lock when a consul address is given and a
// file-based one otherwise
func GetLock(name, consulAddress string) (Lock, error) {
	if consulAddress != "" {
		return InitConsulLock(consulAddress, name)
	}
	return InitFileLock(name)
}

// Factory returns a function building locks named after prefix and the
// given name, so that every cluster key gets its own lock
func Factory(prefix, consulAddress string) func(name string) (Lock, error) {
	return func(name string) (Lock, error) {
		if consulAddress != "" {
			return GetLock(path.Join(prefix, name), consulAddress)
		}
		return GetLock(filepath.Join(prefix, name+".lock"), "")
	}
}
