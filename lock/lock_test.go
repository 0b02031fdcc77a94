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

package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/hashicorp/consul/sdk/testutil"
	"github.com/stretchr/testify/assert"
)

func makeServer(t *testing.T) *testutil.TestServer {
	server, err := testutil.NewTestServerConfigT(t, nil)
	if err != nil {
		t.Skip("consul test server unavailable: " + err.Error())
	}
	return server
}

func TestConsulLock(t *testing.T) {
	assert := assert.New(t)

	s := makeServer(t)
	defer s.Stop()

	lockName := "dm-runner/locks/ns.def.name"

	cl, err := InitConsulLock("some://faulty.address", lockName)
	assert.NotNil(err)
	assert.Nil(cl)
	assert.Equal("Unknown protocol scheme: some", err.Error())

	cl, err = InitConsulLock(s.HTTPAddr, lockName)
	assert.Nil(err)
	assert.NotNil(cl)

	err = cl.TryLock()
	assert.Nil(err)

	// fail if already locked
	err = cl.TryLock()
	assert.NotNil(err)
	assert.True(strings.HasPrefix(err.Error(), "Lock currently held at "+lockName+" by pid "+strconv.Itoa(os.Getpid())))
	_, ok := err.(LockHeldError)
	assert.True(ok)

	// fail if already locked by another lock
	ocl, err := InitConsulLock(s.HTTPAddr, lockName)
	assert.Nil(err)
	err = ocl.TryLock()
	assert.NotNil(err)
	assert.True(strings.HasPrefix(err.Error(), "Lock currently held at "+lockName))

	// only the lock which wrote the pair releases it
	assert.Equal(api.ErrLockNotHeld, ocl.Unlock())

	err = cl.Unlock()
	assert.Nil(err)

	// fail if already unlocked
	err = cl.Unlock()
	assert.NotNil(err)
	assert.Equal(api.ErrLockNotHeld, err)

	// free again
	err = ocl.TryLock()
	assert.Nil(err)
	assert.Nil(ocl.Unlock())
}

func TestFileLock(t *testing.T) {
	assert := assert.New(t)

	lockPath := filepath.Join(t.TempDir(), "lock")

	fl, err := InitFileLock(lockPath)
	assert.NotNil(fl)
	assert.Nil(err)
	assert.Equal(&FileLock{path: lockPath}, fl)

	// write to the file so that we can't get a lock on it
	err = os.WriteFile(lockPath, []byte("42\n"), 0666)
	assert.Nil(err)

	err = fl.TryLock()
	assert.NotNil(err)
	assert.Equal("Lock currently held at "+lockPath, err.Error())
	_, ok := err.(LockHeldError)
	assert.True(ok)

	err = fl.Unlock()
	assert.Nil(err)

	err = fl.TryLock()
	assert.Nil(err)

	record, err := os.ReadFile(lockPath)
	assert.Nil(err)
	var owner Owner
	assert.Nil(json.Unmarshal(record, &owner))
	assert.Equal(os.Getpid(), owner.PID)
	assert.False(owner.AcquiredAt.IsZero())

	err = fl.TryLock()
	assert.True(strings.HasPrefix(err.Error(), "Lock currently held at "+lockPath+" by pid "))

	err = fl.Unlock()
	assert.Nil(err)

	err = fl.Unlock()
	assert.NotNil(err)
	assert.Equal("remove "+lockPath+": no such file or directory", err.Error())
}

func TestGetLock(t *testing.T) {
	assert := assert.New(t)

	lockName := filepath.Join(t.TempDir(), "lock")

	// FileLock if consul == ""
	l, err := GetLock(lockName, "")
	assert.Nil(err)
	assert.Equal(&FileLock{path: lockName}, l)

	// error otherwise
	l, err = GetLock(lockName, "some://faulty.address")
	assert.Nil(l)
	assert.NotNil(err)
	assert.Equal("Unknown protocol scheme: some", err.Error())
}

func TestGetLock_Consul(t *testing.T) {
	assert := assert.New(t)

	s := makeServer(t)
	defer s.Stop()

	l, err := GetLock("lock", s.HTTPAddr)
	assert.Nil(err)
	_, ok := l.(*ConsulLock)
	assert.True(ok)
}

func TestFactory(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	factory := Factory(dir, "")

	l, err := factory("ns.def.name")
	assert.Nil(err)
	assert.Equal(&FileLock{path: filepath.Join(dir, "ns.def.name.lock")}, l)

	other, err := factory("ns.def.other")
	assert.Nil(err)

	assert.Nil(l.TryLock())
	assert.Nil(other.TryLock())
	assert.NotNil(l.TryLock())
	assert.Nil(l.Unlock())
	assert.Nil(other.Unlock())
}

func TestLockHeld(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(LockHeldError("Lock currently held at x"), lockHeld("x", nil))
	assert.Equal(LockHeldError("Lock currently held at x"), lockHeld("x", []byte("42")))

	record, _ := json.Marshal(Owner{PID: 42, Host: "worker-1", AcquiredAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)})
	assert.Equal(LockHeldError("Lock currently held at x by pid 42 on worker-1 since 2026-01-10T12:00:00Z"), lockHeld("x", record))
}
